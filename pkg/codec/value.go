package codec

import "math"

// Value is an in-memory register value. Scalars and fixed-point numbers carry
// their integer bit pattern (sign-extended to 64 bits when signed); clusters
// and arrays carry their members in declaration order.
type Value struct {
	raw   uint64
	items []Value
}

// Uint returns a scalar value holding v.
func Uint(v uint64) Value { return Value{raw: v} }

// Int returns a scalar value holding the two's-complement pattern of v.
func Int(v int64) Value { return Value{raw: uint64(v)} }

// BoolValue returns 1 for true and 0 for false.
func BoolValue(b bool) Value {
	if b {
		return Value{raw: 1}
	}
	return Value{}
}

// Float32Value stores the IEEE-754 bits of f. The pattern is sign-extended so
// it round-trips through a signed 32-bit descriptor.
func Float32Value(f float32) Value {
	return Value{raw: uint64(int64(int32(math.Float32bits(f))))}
}

// Float64Value stores the IEEE-754 bits of f.
func Float64Value(f float64) Value { return Value{raw: math.Float64bits(f)} }

// List returns a composite value built from items.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{items: items}
}

// Uint returns the raw bit pattern.
func (v Value) Uint() uint64 { return v.raw }

// Int returns the raw bit pattern reinterpreted as signed.
func (v Value) Int() int64 { return int64(v.raw) }

// Bool reports whether the scalar is non-zero.
func (v Value) Bool() bool { return v.raw != 0 }

func (v Value) Float32() float32 { return math.Float32frombits(uint32(v.raw)) }

func (v Value) Float64() float64 { return math.Float64frombits(v.raw) }

// IsList reports whether v is a cluster or array value.
func (v Value) IsList() bool { return v.items != nil }

// Len returns the number of members of a composite value.
func (v Value) Len() int { return len(v.items) }

// Index returns member i of a composite value.
func (v Value) Index(i int) Value { return v.items[i] }

// Items returns a copy of the members of a composite value.
func (v Value) Items() []Value { return append([]Value(nil), v.items...) }

// Equal reports whether v and o hold the same bits and shape.
func (v Value) Equal(o Value) bool {
	if v.IsList() != o.IsList() {
		return false
	}
	if !v.IsList() {
		return v.raw == o.raw
	}
	if len(v.items) != len(o.items) {
		return false
	}
	for i := range v.items {
		if !v.items[i].Equal(o.items[i]) {
			return false
		}
	}
	return true
}
