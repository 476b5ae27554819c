// Package hll implements a HyperLogLog cardinality sketch with three
// progressively denser representations (a coupon list, a coupon hash set,
// and a dense register array in 4/6/8-bit encodings), a HIP/KxQ running
// estimator, and a union operator across differing configurations.
package hll

import (
	"math"

	"github.com/streamsketch/core/internal"
	"github.com/streamsketch/core/internal/errs"
)

const (
	defaultLgK     = 12
	lgInitListSize = 3
	lgInitSetSize  = 5

	minLogK   = 4
	maxLogK   = 21
	empty     = 0
	keyBits26 = 26
	valBits6  = 6
	keyMask26 = (1 << keyBits26) - 1
	valMask6  = (1 << valBits6) - 1

	resizeNumer = 3
	resizeDenom = 4

	hiNibbleMask = 0xf0
	loNibbleMask = 0x0f
	auxToken     = 0xf

	serVer = 1
)

var (
	hllNonHipRSEFactor = math.Sqrt((3.0 * math.Log(2.0)) - 1.0) // 1.03896
	hllHipRSEFactor    = math.Sqrt(math.Log(2.0))               // 0.8325546
	couponRSEFactor    = 0.409
)

// TgtHllType selects the register width of the dense representation a
// sketch will promote into. All three are isomorphic: the same lgConfigK and
// input stream produce identical estimates regardless of which is chosen.
type TgtHllType int

const (
	TgtHllTypeHll4    TgtHllType = 0
	TgtHllTypeHll6    TgtHllType = 1
	TgtHllTypeHll8    TgtHllType = 2
	TgtHllTypeDefault            = TgtHllTypeHll4
)

// curMode is the sketch's position in the LIST -> SET -> HLL promotion
// state machine.
type curMode int

const (
	curModeList curMode = 0
	curModeSet  curMode = 1
	curModeHll  curMode = 2
)

func (m curMode) String() string {
	switch m {
	case curModeList:
		return "LIST"
	case curModeSet:
		return "SET"
	case curModeHll:
		return "HLL"
	default:
		return "UNKNOWN"
	}
}

// lgAuxArrInts is the log2 starting size of the HLL_4 exception table,
// indexed by lgConfigK (only indices 4..21 are ever used).
var lgAuxArrInts = []int{
	0, 2, 2, 2, 2, 2, 2, 3, 3, 3,
	4, 4, 5, 5, 6, 7, 8, 9, 10, 11,
	12, 13, 14, 15, 16, 17, 18,
}

func checkLgK(lgK int) (int, error) {
	if lgK >= minLogK && lgK <= maxLogK {
		return lgK, nil
	}
	return 0, errs.InvalidArgumentf("log2(K) must be between %d and %d inclusive: %d", minLogK, maxLogK, lgK)
}

func checkNumStdDev(numStdDev int) error {
	if numStdDev < 1 || numStdDev > 3 {
		return errs.InvalidArgumentf("numStdDev must be between 1 and 3 inclusive: %d", numStdDev)
	}
	return nil
}

// pair packs a register slot number and its value into the 32-bit
// coupon/pair encoding shared by the coupon structures and the dense array
// iterators: low 26 bits are the slot address, remaining bits the value.
func pair(slotNo, value int) int {
	return (value << keyBits26) | (slotNo & keyMask26)
}

func getPairLow26(p int) int { return p & keyMask26 }
func getPairValue(p int) int { return p >> keyBits26 }

// computeLgArrInts picks the starting log2 array size for a coupon
// structure being rebuilt from a raw count, per mode.
func computeLgArrInts(mode curMode, count, lgConfigK int) int {
	if mode == curModeList {
		return lgInitListSize
	}
	ceilPwr2 := internal.CeilingPowerOf2(count)
	if resizeDenom*count > resizeNumer*ceilPwr2 {
		ceilPwr2 <<= 1
	}
	lg, _ := internal.ExactLog2(ceilPwr2)
	if mode == curModeSet {
		return max(lgInitSetSize, lg)
	}
	return max(lgAuxArrInts[lgConfigK], lg)
}

// GetMaxUpdatableSerializationBytes returns the size of the largest
// updatable image a sketch of the given configuration can ever produce,
// for callers that preallocate a destination buffer.
func GetMaxUpdatableSerializationBytes(lgConfigK int, tgtHllType TgtHllType) int {
	var arrBytes int
	switch tgtHllType {
	case TgtHllTypeHll4:
		auxBytes := 4 << lgAuxArrInts[lgConfigK]
		arrBytes = (1 << (lgConfigK - 1)) + auxBytes
	case TgtHllTypeHll6:
		numSlots := 1 << lgConfigK
		arrBytes = ((numSlots * 3) >> 2) + 1
	default:
		arrBytes = 1 << lgConfigK
	}
	return hllByteArrStart + arrBytes
}
