package codec

import (
	"fmt"
	"strings"
)

// Kind identifies the wire shape a Descriptor describes.
type Kind uint8

const (
	KindScalar Kind = iota
	KindFixedPoint
	KindCluster
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindFixedPoint:
		return "fixed-point"
	case KindCluster:
		return "cluster"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Descriptor is the static wire metadata for a register or FIFO element.
// Descriptors are treated as immutable once built and may be shared between
// resources of the same shape.
type Descriptor struct {
	Kind Kind

	// Width is the true bit width of a scalar or fixed-point value. It may
	// exceed the storage word used by callers (a 33-bit FXP lives in a uint64).
	Width  int
	Signed bool
	// Float marks 32- and 64-bit scalars that carry IEEE-754 bit patterns.
	Float bool
	// Boolean marks the 8-bit scalar used for NiFpga_Bool.
	Boolean bool

	// FractionBits is Width minus the integer word length (FixedPoint only).
	FractionBits int

	// Count and Elem describe arrays.
	Count int
	Elem  *Descriptor

	// Fields lists cluster members in declaration order.
	Fields []Field
}

// Field is one named cluster member.
type Field struct {
	Name string
	Type *Descriptor
}

// Scalar returns an integer descriptor of the given width.
func Scalar(width int, signed bool) *Descriptor {
	d := &Descriptor{Kind: KindScalar, Width: width, Signed: signed}
	mustValidate(d)
	return d
}

// Unsigned is shorthand for Scalar(width, false).
func Unsigned(width int) *Descriptor { return Scalar(width, false) }

// Signed is shorthand for Scalar(width, true).
func Signed(width int) *Descriptor { return Scalar(width, true) }

// Bool describes a NiFpga_Bool, stored as one byte.
func Bool() *Descriptor {
	d := &Descriptor{Kind: KindScalar, Width: 8, Boolean: true}
	mustValidate(d)
	return d
}

// Float32 describes a single precision (Sgl) value.
func Float32() *Descriptor {
	d := &Descriptor{Kind: KindScalar, Width: 32, Signed: true, Float: true}
	mustValidate(d)
	return d
}

// Float64 describes a double precision (Dbl) value.
func Float64() *Descriptor {
	d := &Descriptor{Kind: KindScalar, Width: 64, Signed: true, Float: true}
	mustValidate(d)
	return d
}

// FixedPoint builds a descriptor from the vendor's FXP type info triple
// {signed, wordLength, integerWordLength}.
func FixedPoint(signed bool, wordLength, integerWordLength int) *Descriptor {
	d := &Descriptor{
		Kind:         KindFixedPoint,
		Width:        wordLength,
		Signed:       signed,
		FractionBits: wordLength - integerWordLength,
	}
	mustValidate(d)
	return d
}

// Cluster builds a composite of byte-aligned fields.
func Cluster(fields ...Field) *Descriptor {
	d := &Descriptor{Kind: KindCluster, Fields: append([]Field(nil), fields...)}
	mustValidate(d)
	return d
}

// Array builds a bit-concatenated array of count elements.
func Array(elem *Descriptor, count int) *Descriptor {
	d := &Descriptor{Kind: KindArray, Elem: elem, Count: count}
	mustValidate(d)
	return d
}

func mustValidate(d *Descriptor) {
	if err := d.Validate(); err != nil {
		panic(err)
	}
}

// Validate checks the structural invariants of d and of every nested
// descriptor.
func (d *Descriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("codec: nil descriptor")
	}
	switch d.Kind {
	case KindScalar:
		if d.Width < 1 || d.Width > 64 {
			return fmt.Errorf("codec: scalar width %d out of range 1..64", d.Width)
		}
		if d.Float && d.Width != 32 && d.Width != 64 {
			return fmt.Errorf("codec: float width must be 32 or 64, got %d", d.Width)
		}
	case KindFixedPoint:
		if d.Width < 1 || d.Width > 64 {
			return fmt.Errorf("codec: fixed-point width %d out of range 1..64", d.Width)
		}
		if d.FractionBits > d.Width {
			return fmt.Errorf("codec: fixed-point fraction bits %d exceed width %d", d.FractionBits, d.Width)
		}
	case KindCluster:
		if len(d.Fields) == 0 {
			return fmt.Errorf("codec: cluster has no fields")
		}
		for _, f := range d.Fields {
			if err := f.Type.Validate(); err != nil {
				return fmt.Errorf("codec: field %q: %w", f.Name, err)
			}
		}
	case KindArray:
		if d.Count < 1 {
			return fmt.Errorf("codec: array count must be positive, got %d", d.Count)
		}
		if err := d.Elem.Validate(); err != nil {
			return fmt.Errorf("codec: array element: %w", err)
		}
	default:
		return fmt.Errorf("codec: unknown kind %d", d.Kind)
	}
	return nil
}

// Bits returns the total number of bits the packed form of d occupies,
// including the byte padding of cluster fields.
func (d *Descriptor) Bits() int {
	switch d.Kind {
	case KindCluster:
		total := 0
		for _, f := range d.Fields {
			total += paddedBits(f.Type)
		}
		return total
	case KindArray:
		return d.Count * d.Elem.Bits()
	default:
		return d.Width
	}
}

// PackedSize returns ceil(Bits()/8), the exact length of a packed buffer.
func (d *Descriptor) PackedSize() int {
	return (d.Bits() + 7) / 8
}

func paddedBits(d *Descriptor) int {
	return d.PackedSize() * 8
}

// String renders a compact type signature such as "{i16,i16}[2]" or "fxp<s33,17>[4]".
func (d *Descriptor) String() string {
	if d == nil {
		return "<nil>"
	}
	switch d.Kind {
	case KindScalar:
		switch {
		case d.Boolean:
			return "bool"
		case d.Float && d.Width == 32:
			return "sgl"
		case d.Float:
			return "dbl"
		case d.Signed:
			return fmt.Sprintf("i%d", d.Width)
		default:
			return fmt.Sprintf("u%d", d.Width)
		}
	case KindFixedPoint:
		sign := "u"
		if d.Signed {
			sign = "s"
		}
		return fmt.Sprintf("fxp<%s%d,%d>", sign, d.Width, d.Width-d.FractionBits)
	case KindCluster:
		parts := make([]string, len(d.Fields))
		for i, f := range d.Fields {
			parts[i] = f.Type.String()
		}
		return "{" + strings.Join(parts, ",") + "}"
	case KindArray:
		return fmt.Sprintf("%s[%d]", d.Elem.String(), d.Count)
	default:
		return d.Kind.String()
	}
}
