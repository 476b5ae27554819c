package internal

import (
	"math"
	"math/bits"
)

// InverseGolden is the fractional part of the golden ratio. Multiplying a
// table length by it and forcing the result odd produces a stride that visits
// every slot of a power-of-two table exactly once — the trick the
// frequent-items hash map iterator uses to walk its backing array without a
// dedicated free list.
const InverseGolden = 0.6180339887498949

// DefaultUpdateSeed is the murmur3 seed used for every HLL update (the
// frequent-items sketch hashes through its injected hasher instead), matching the seed the cross-language test vectors
// were generated with.
const DefaultUpdateSeed = uint64(9001)

// InvPow2 returns 2^(-e) using the IEEE-754 bit layout directly rather than
// math.Pow: the exponent field of a float64 is biased by 1023, so 2^(-e) is
// built by writing (1023-e) into the exponent bits of an otherwise-zero
// mantissa.
func InvPow2(e int) (float64, error) {
	if e < 0 || e > 1023 {
		return 0, errBadExponent(e)
	}
	bitsPattern := uint64(1023-e) << 52
	return math.Float64frombits(bitsPattern), nil
}

// LeadingZeros64 counts leading zero bits, re-exported so call sites in hll
// don't need a second import of math/bits for a one-line helper.
func LeadingZeros64(x uint64) int {
	return bits.LeadingZeros64(x)
}

// TrailingZeros64 counts trailing zero bits.
func TrailingZeros64(x uint64) int {
	return bits.TrailingZeros64(x)
}

// IsNil reports whether v is the zero value of its type.
func IsNil[C comparable](v C) bool {
	var zero C
	return v == zero
}
