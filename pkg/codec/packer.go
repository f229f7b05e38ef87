package codec

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch reports that a buffer length or value shape does not match
// the descriptor it is used with.
var ErrShapeMismatch = errors.New("codec: shape mismatch")

// Pack returns the packed form of v.
func Pack(d *Descriptor, v Value) ([]byte, error) {
	buf := make([]byte, d.PackedSize())
	if err := PackInto(buf, d, v); err != nil {
		return nil, err
	}
	return buf, nil
}

// PackInto writes the packed form of v into dst, which must be exactly
// d.PackedSize() bytes long. Bits are written most significant first.
// Cluster fields start on byte boundaries; array elements follow each other
// with no padding. Scalars wider than their descriptor are masked.
func PackInto(dst []byte, d *Descriptor, v Value) error {
	if want := d.PackedSize(); len(dst) != want {
		return fmt.Errorf("%w: pack %s needs %d bytes, got %d", ErrShapeMismatch, d, want, len(dst))
	}
	clear(dst)
	return packAt(dst, 0, d, v)
}

func packAt(dst []byte, off int, d *Descriptor, v Value) error {
	switch d.Kind {
	case KindScalar, KindFixedPoint:
		if v.IsList() {
			return fmt.Errorf("%w: %s given a composite value", ErrShapeMismatch, d)
		}
		putBits(dst, off, v.raw&mask(d.Width), d.Width)
		return nil
	case KindCluster:
		if v.Len() != len(d.Fields) {
			return fmt.Errorf("%w: cluster %s has %d fields, value has %d", ErrShapeMismatch, d, len(d.Fields), v.Len())
		}
		for i, f := range d.Fields {
			if err := packAt(dst, off, f.Type, v.items[i]); err != nil {
				return err
			}
			off += paddedBits(f.Type)
		}
		return nil
	case KindArray:
		if v.Len() != d.Count {
			return fmt.Errorf("%w: array %s has %d elements, value has %d", ErrShapeMismatch, d, d.Count, v.Len())
		}
		step := d.Elem.Bits()
		for i := 0; i < d.Count; i++ {
			if err := packAt(dst, off, d.Elem, v.items[i]); err != nil {
				return err
			}
			off += step
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrShapeMismatch, d.Kind)
	}
}

// Unpack decodes src according to d. src must hold at least d.PackedSize()
// bytes; any trailing bytes are ignored.
func Unpack(src []byte, d *Descriptor) (Value, error) {
	if want := d.PackedSize(); len(src) < want {
		return Value{}, fmt.Errorf("%w: unpack %s needs %d bytes, got %d", ErrShapeMismatch, d, want, len(src))
	}
	return unpackAt(src, 0, d), nil
}

func unpackAt(src []byte, off int, d *Descriptor) Value {
	switch d.Kind {
	case KindCluster:
		items := make([]Value, len(d.Fields))
		for i, f := range d.Fields {
			items[i] = unpackAt(src, off, f.Type)
			off += paddedBits(f.Type)
		}
		return Value{items: items}
	case KindArray:
		items := make([]Value, d.Count)
		step := d.Elem.Bits()
		for i := range items {
			items[i] = unpackAt(src, off, d.Elem)
			off += step
		}
		return Value{items: items}
	default:
		raw := getBits(src, off, d.Width)
		if d.Signed {
			raw = signExtend(raw, d.Width)
		}
		return Value{raw: raw}
	}
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(width) - 1
}

func signExtend(raw uint64, width int) uint64 {
	if width >= 64 || raw&(1<<uint(width-1)) == 0 {
		return raw
	}
	return raw | ^mask(width)
}

// putBits stores the low n bits of v at bit offset off, MSB first. The
// destination bits are assumed to be zero.
func putBits(dst []byte, off int, v uint64, n int) {
	for n > 0 {
		idx := off >> 3
		room := 8 - off&7
		take := min(room, n)
		chunk := byte(v>>uint(n-take)) & (0xFF >> uint(8-take))
		dst[idx] |= chunk << uint(room-take)
		off += take
		n -= take
	}
}

// getBits reads n bits starting at bit offset off, accumulating from the most
// significant fragment down.
func getBits(src []byte, off int, n int) uint64 {
	var v uint64
	for n > 0 {
		idx := off >> 3
		room := 8 - off&7
		take := min(room, n)
		chunk := (src[idx] >> uint(room-take)) & (0xFF >> uint(8-take))
		v = v<<uint(take) | uint64(chunk)
		off += take
		n -= take
	}
	return v
}
