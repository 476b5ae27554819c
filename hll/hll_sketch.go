package hll

import (
	"encoding/binary"
	"math/bits"
	"unsafe"

	"github.com/twmb/murmur3"

	"github.com/streamsketch/core/internal"
)

// HllSketch estimates the number of distinct items presented to it, holding
// exactly one of a coupon list, a coupon hash set, or a dense register array
// at any given time and promoting between them as the stream grows.
type HllSketch interface {
	Copy() (HllSketch, error)
	CopyAs(tgtHllType TgtHllType) (HllSketch, error)

	GetEstimate() (float64, error)
	GetCompositeEstimate() (float64, error)
	GetLowerBound(numStdDev int) (float64, error)
	GetUpperBound(numStdDev int) (float64, error)

	UpdateUInt64(datum uint64) error
	UpdateInt64(datum int64) error
	UpdateSlice(datum []byte) error
	UpdateString(datum string) error

	Reset() error
	IsEmpty() bool

	GetLgConfigK() int
	GetTgtHllType() TgtHllType
	GetCurMode() curMode
	GetUpdatableSerializationBytes() int
	GetSerializationVersion() int

	ToCompactSlice() ([]byte, error)
	ToUpdatableSlice() ([]byte, error)

	updateCoupon(coupon int) error
	couponUpdate(coupon int) (hllSketchStateI, error)
	mergeTo(dest HllSketch) error
	iterator() pairIterator
}

type hllSketchState struct {
	sketch  hllSketchStateI
	scratch [8]byte
}

func newHllSketchState(s hllSketchStateI) HllSketch {
	return &hllSketchState{sketch: s}
}

// NewHllSketch constructs an empty sketch at the given log2(K) (between 4
// and 21 inclusive) that will promote into the given dense register
// encoding once the input stream grows large enough.
func NewHllSketch(lgConfigK int, tgtHllType TgtHllType) (HllSketch, error) {
	lgK, err := checkLgK(lgConfigK)
	if err != nil {
		return nil, err
	}
	cl, err := newCouponList(lgK, tgtHllType, curModeList)
	if err != nil {
		return nil, err
	}
	return newHllSketchState(&cl), nil
}

// NewHllSketchWithDefault constructs a sketch at the default log2(K) using
// the default dense register encoding.
func NewHllSketchWithDefault() (HllSketch, error) {
	return NewHllSketch(defaultLgK, TgtHllTypeDefault)
}

// NewHllSketchFromSlice deserializes a sketch from its binary image. When
// checkRebuild is set and the image is an HLL_8 array carrying the
// rebuild-needed flag, curMin/numAtCurMin/kxq0/kxq1 are recomputed from the
// live registers before the sketch is returned.
func NewHllSketchFromSlice(b []byte, checkRebuild bool) (HllSketch, error) {
	mode, err := checkPreamble(b)
	if err != nil {
		return nil, err
	}
	switch mode {
	case curModeList:
		cl, err := deserializeCouponList(b)
		if err != nil {
			return nil, err
		}
		return newHllSketchState(cl), nil
	case curModeSet:
		cs, err := deserializeCouponHashSet(b)
		if err != nil {
			return nil, err
		}
		return newHllSketchState(cs), nil
	default:
		tgtHllType := extractTgtHllType(b)
		var arr hllArray
		switch tgtHllType {
		case TgtHllTypeHll4:
			arr, err = deserializeHll4(b)
		case TgtHllTypeHll6:
			arr, err = deserializeHll6(b)
		default:
			arr, err = deserializeHll8(b)
		}
		if err != nil {
			return nil, err
		}
		sk := newHllSketchState(arr)
		if checkRebuild && tgtHllType == TgtHllTypeHll8 {
			if err := checkRebuildCurMinNumKxQ(sk); err != nil {
				return nil, err
			}
		}
		return sk, nil
	}
}

func (h *hllSketchState) Copy() (HllSketch, error) {
	sk, err := h.sketch.copy()
	if err != nil {
		return nil, err
	}
	return newHllSketchState(sk), nil
}

func (h *hllSketchState) CopyAs(tgtHllType TgtHllType) (HllSketch, error) {
	sk, err := h.sketch.copyAs(tgtHllType)
	if err != nil {
		return nil, err
	}
	return newHllSketchState(sk), nil
}

func (h *hllSketchState) GetEstimate() (float64, error)          { return h.sketch.GetEstimate() }
func (h *hllSketchState) GetCompositeEstimate() (float64, error) { return h.sketch.GetCompositeEstimate() }
func (h *hllSketchState) GetLowerBound(n int) (float64, error)    { return h.sketch.GetLowerBound(n) }
func (h *hllSketchState) GetUpperBound(n int) (float64, error)    { return h.sketch.GetUpperBound(n) }

func (h *hllSketchState) IsEmpty() bool                         { return h.sketch.IsEmpty() }
func (h *hllSketchState) GetLgConfigK() int                      { return h.sketch.GetLgConfigK() }
func (h *hllSketchState) GetTgtHllType() TgtHllType              { return h.sketch.GetTgtHllType() }
func (h *hllSketchState) GetCurMode() curMode                    { return h.sketch.GetCurMode() }
func (h *hllSketchState) GetUpdatableSerializationBytes() int    { return h.sketch.GetUpdatableSerializationBytes() }
func (h *hllSketchState) GetSerializationVersion() int           { return serVer }
func (h *hllSketchState) ToCompactSlice() ([]byte, error)        { return h.sketch.ToCompactSlice() }
func (h *hllSketchState) ToUpdatableSlice() ([]byte, error)      { return h.sketch.ToUpdatableSlice() }

func (h *hllSketchState) Reset() error {
	lgK, err := checkLgK(h.sketch.GetLgConfigK())
	if err != nil {
		return err
	}
	cl, err := newCouponList(lgK, h.sketch.GetTgtHllType(), curModeList)
	if err != nil {
		return err
	}
	h.sketch = &cl
	return nil
}

func (h *hllSketchState) UpdateUInt64(datum uint64) error {
	binary.LittleEndian.PutUint64(h.scratch[:], datum)
	return h.updateCoupon(coupon(h.hash(h.scratch[:])))
}

func (h *hllSketchState) UpdateInt64(datum int64) error { return h.UpdateUInt64(uint64(datum)) }

func (h *hllSketchState) UpdateSlice(datum []byte) error {
	if len(datum) == 0 {
		return nil
	}
	return h.updateCoupon(coupon(h.hash(datum)))
}

func (h *hllSketchState) UpdateString(datum string) error {
	if len(datum) == 0 {
		return nil
	}
	return h.UpdateSlice(unsafe.Slice(unsafe.StringData(datum), len(datum)))
}

// coupon packs a 32-bit value from a 128-bit hash: the low 26 bits of hashLo
// address a register slot, and the value is one more than the number of
// leading zero bits of hashHi (clamped to 62), the observable that makes HLL
// work.
func coupon(hashLo, hashHi uint64) int {
	addr26 := hashLo & keyMask26
	lz := uint64(bits.LeadingZeros64(hashHi))
	value := min(lz, 62) + 1
	return int((value << keyBits26) | addr26)
}

func (h *hllSketchState) updateCoupon(cp int) error {
	_, err := h.couponUpdate(cp)
	return err
}

func (h *hllSketchState) couponUpdate(cp int) (hllSketchStateI, error) {
	if (cp >> keyBits26) == empty {
		return h.sketch, nil
	}
	sk, err := h.sketch.couponUpdate(cp)
	if err != nil {
		return nil, err
	}
	h.sketch = sk
	return h.sketch, nil
}

func (h *hllSketchState) mergeTo(dest HllSketch) error { return h.sketch.mergeTo(dest) }
func (h *hllSketchState) iterator() pairIterator       { return h.sketch.iterator() }

func (h *hllSketchState) hash(bs []byte) (uint64, uint64) {
	return murmur3.SeedSum128(internal.DefaultUpdateSeed, internal.DefaultUpdateSeed, bs)
}
