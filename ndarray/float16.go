package ndarray

import "math"

// IEEE 754 half-precision conversion. The standard library has no
// float16 type, so the 16-bit payload is converted through its bit
// pattern: 1 sign bit, 5 exponent bits, 10 mantissa bits.

// float16ToFloat64 expands a half-precision bit pattern to float64.
func float16ToFloat64(bits uint16) float64 {
	sign := uint64(bits>>15) & 1
	exp := int((bits >> 10) & 0x1f)
	frac := uint64(bits & 0x3ff)

	switch exp {
	case 0:
		// Zero or subnormal.
		if frac == 0 {
			return math.Float64frombits(sign << 63)
		}
		f := float64(frac) / 1024.0 * math.Pow(2, -14)
		if sign != 0 {
			return -f
		}
		return f
	case 0x1f:
		// Inf or NaN.
		if frac == 0 {
			if sign != 0 {
				return math.Inf(-1)
			}
			return math.Inf(1)
		}
		return math.NaN()
	default:
		// Normal: rebase exponent from bias 15 to bias 1023.
		bits64 := sign<<63 | uint64(exp-15+1023)<<52 | frac<<42
		return math.Float64frombits(bits64)
	}
}

// float64ToFloat16 narrows a float64 to a half-precision bit pattern
// with round-to-nearest-even, saturating to infinity on overflow.
func float64ToFloat16(f float64) uint16 {
	bits64 := math.Float64bits(f)
	sign := uint16(bits64>>63) << 15
	exp := int(bits64>>52) & 0x7ff
	frac := bits64 & 0xfffffffffffff

	switch {
	case exp == 0x7ff:
		// Inf or NaN.
		if frac == 0 {
			return sign | 0x7c00
		}
		return sign | 0x7e00
	case exp-1023 > 15:
		// Overflow to infinity.
		return sign | 0x7c00
	case exp-1023 < -24:
		// Underflow to zero.
		return sign
	case exp-1023 < -14:
		// Subnormal half: shift in the implicit leading bit.
		shift := uint(-(exp - 1023) - 14 + 42)
		mant := (frac | 1<<52) >> shift
		if (frac|1<<52)>>(shift-1)&1 != 0 {
			mant++
		}
		return sign | uint16(mant)
	default:
		halfExp := uint16(exp-1023+15) << 10
		mant := uint16(frac >> 42)
		// Round to nearest even on the dropped bits.
		round := frac & (1<<42 - 1)
		half := uint64(1) << 41
		if round > half || (round == half && mant&1 != 0) {
			mant++
			if mant == 1<<10 {
				mant = 0
				halfExp += 1 << 10
				if halfExp >= 0x1f<<10 {
					return sign | 0x7c00
				}
			}
		}
		return sign | halfExp | mant
	}
}
