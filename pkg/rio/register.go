package rio

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/codec"
)

// Native lists the Go types a register can map to directly.
type Native interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// DescriptorOf returns the wire descriptor of the native type T.
func DescriptorOf[T Native]() *codec.Descriptor {
	var zero T
	switch any(zero).(type) {
	case bool:
		return codec.Bool()
	case int8:
		return codec.Signed(8)
	case int16:
		return codec.Signed(16)
	case int32:
		return codec.Signed(32)
	case int64:
		return codec.Signed(64)
	case uint8:
		return codec.Unsigned(8)
	case uint16:
		return codec.Unsigned(16)
	case uint32:
		return codec.Unsigned(32)
	case uint64:
		return codec.Unsigned(64)
	case float32:
		return codec.Float32()
	default:
		return codec.Float64()
	}
}

func toValue[T Native](v T) codec.Value {
	switch x := any(v).(type) {
	case bool:
		return codec.BoolValue(x)
	case int8:
		return codec.Int(int64(x))
	case int16:
		return codec.Int(int64(x))
	case int32:
		return codec.Int(int64(x))
	case int64:
		return codec.Int(x)
	case uint8:
		return codec.Uint(uint64(x))
	case uint16:
		return codec.Uint(uint64(x))
	case uint32:
		return codec.Uint(uint64(x))
	case uint64:
		return codec.Uint(x)
	case float32:
		return codec.Float32Value(x)
	case float64:
		return codec.Float64Value(x)
	}
	panic(fmt.Sprintf("rio: unsupported native type %T", v))
}

func fromValue[T Native](v codec.Value) T {
	var zero T
	var out any
	switch any(zero).(type) {
	case bool:
		out = v.Bool()
	case int8:
		out = int8(v.Int())
	case int16:
		out = int16(v.Int())
	case int32:
		out = int32(v.Int())
	case int64:
		out = v.Int()
	case uint8:
		out = uint8(v.Uint())
	case uint16:
		out = uint16(v.Uint())
	case uint32:
		out = uint32(v.Uint())
	case uint64:
		out = v.Uint()
	case float32:
		out = v.Float32()
	case float64:
		out = v.Float64()
	}
	return out.(T)
}

func checkNative(res *Resource, want *codec.Descriptor) error {
	if res == nil || res.kind != KindRegister {
		return fmt.Errorf("%w: not a register", ErrResourceNotFound)
	}
	if res.desc.String() != want.String() {
		return fmt.Errorf("%w: %s is %s, not %s", ErrShapeMismatch, res.name, res.desc, want)
	}
	return nil
}

// Register is a scalar register accessed as the Go type T.
type Register[T Native] struct {
	res *Resource
}

// NewTypedRegister describes a register holding one T.
func NewTypedRegister[T Native](name string, addr uint32, dir Direction) Register[T] {
	return Register[T]{res: NewRegister(name, addr, DescriptorOf[T](), dir)}
}

// AsRegister views res as a register of T. The descriptor of res must be the
// descriptor of T.
func AsRegister[T Native](res *Resource) (Register[T], error) {
	if err := checkNative(res, DescriptorOf[T]()); err != nil {
		return Register[T]{}, err
	}
	return Register[T]{res: res}, nil
}

func (r Register[T]) Resource() *Resource { return r.res }

func (r Register[T]) Read(s *Session) (T, error) {
	v, err := s.Read(r.res)
	if err != nil {
		var zero T
		return zero, err
	}
	return fromValue[T](v), nil
}

func (r Register[T]) Write(s *Session, v T) error {
	return s.Write(r.res, toValue(v))
}

// ArrayRegister is a fixed-length array register accessed as []T.
type ArrayRegister[T Native] struct {
	res *Resource
}

// NewTypedArrayRegister describes a register holding count elements of T.
func NewTypedArrayRegister[T Native](name string, addr uint32, count int, dir Direction) ArrayRegister[T] {
	return ArrayRegister[T]{res: NewRegister(name, addr, codec.Array(DescriptorOf[T](), count), dir)}
}

// AsArrayRegister views res as an array register of T.
func AsArrayRegister[T Native](res *Resource) (ArrayRegister[T], error) {
	if res == nil || res.desc.Kind != codec.KindArray {
		return ArrayRegister[T]{}, fmt.Errorf("%w: not an array register", ErrShapeMismatch)
	}
	if err := checkNative(res, codec.Array(DescriptorOf[T](), res.desc.Count)); err != nil {
		return ArrayRegister[T]{}, err
	}
	return ArrayRegister[T]{res: res}, nil
}

func (r ArrayRegister[T]) Resource() *Resource { return r.res }

// Len returns the number of elements.
func (r ArrayRegister[T]) Len() int { return r.res.desc.Count }

func (r ArrayRegister[T]) Read(s *Session) ([]T, error) {
	v, err := s.Read(r.res)
	if err != nil {
		return nil, err
	}
	out := make([]T, v.Len())
	for i := range out {
		out[i] = fromValue[T](v.Index(i))
	}
	return out, nil
}

// Write stores values; len(values) must equal Len.
func (r ArrayRegister[T]) Write(s *Session, values []T) error {
	if len(values) != r.Len() {
		return fmt.Errorf("rio: write %s: %w: %d values for %d elements",
			r.res.name, ErrShapeMismatch, len(values), r.Len())
	}
	items := make([]codec.Value, len(values))
	for i, v := range values {
		items[i] = toValue(v)
	}
	return s.Write(r.res, codec.List(items...))
}
