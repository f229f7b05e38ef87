package codec

import "math"

// FixedToFloat converts the integer bit pattern of a fixed-point value into
// its real quantity, scaling by 2^-FractionBits.
func FixedToFloat(d *Descriptor, v Value) float64 {
	var n float64
	if d.Signed {
		n = float64(int64(signExtend(v.raw&mask(d.Width), d.Width)))
	} else {
		n = float64(v.raw & mask(d.Width))
	}
	return math.Ldexp(n, -d.FractionBits)
}

// FloatToFixed converts f into the nearest representable fixed-point pattern,
// saturating at the range of d.
func FloatToFixed(d *Descriptor, f float64) Value {
	lo, hi := fixedRange(d)
	scaled := math.RoundToEven(math.Ldexp(f, d.FractionBits))
	switch {
	case math.IsNaN(scaled):
		return Value{}
	case scaled <= lo:
		if d.Signed {
			return Int(int64(lo))
		}
		return Uint(0)
	case scaled >= hi:
		if d.Signed {
			return Int(int64(mask(d.Width - 1)))
		}
		return Uint(mask(d.Width))
	}
	if d.Signed {
		return Int(int64(scaled))
	}
	return Uint(uint64(scaled))
}

// fixedRange returns the smallest and largest raw integers d can hold, as
// floats. Near 64 bits the upper bound rounds up, so callers clamp with >=.
func fixedRange(d *Descriptor) (float64, float64) {
	if d.Signed {
		half := math.Ldexp(1, d.Width-1)
		return -half, half - 1
	}
	return 0, math.Ldexp(1, d.Width) - 1
}
