package hll

import (
	"math/bits"

	"github.com/streamsketch/core/internal/errs"
)

// Union accumulates sketches of possibly differing lgConfigK into a single
// gadget sketch, always stored as HLL_8 internally, capped at lgMaxK.
type Union interface {
	GetEstimate() (float64, error)
	GetCompositeEstimate() (float64, error)
	GetLowerBound(numStdDev int) (float64, error)
	GetUpperBound(numStdDev int) (float64, error)

	UpdateUInt64(datum uint64) error
	UpdateInt64(datum int64) error
	UpdateSlice(datum []byte) error
	UpdateString(datum string) error
	UpdateSketch(sketch HllSketch) error

	GetResult(tgtHllType TgtHllType) (HllSketch, error)

	GetLgConfigK() int
	GetCurMode() curMode
	IsEmpty() bool
	Reset() error

	GetUpdatableSerializationBytes() int
	ToCompactSlice() ([]byte, error)
	ToUpdatableSlice() ([]byte, error)
}

type unionImpl struct {
	lgMaxK int
	gadget HllSketch
}

// NewUnion constructs an empty union capped at lgMaxK: no sketch merged into
// it will ever be tracked at a finer resolution than this.
func NewUnion(lgMaxK int) (Union, error) {
	lgK, err := checkLgK(lgMaxK)
	if err != nil {
		return nil, err
	}
	sk, err := NewHllSketch(lgK, TgtHllTypeHll8)
	if err != nil {
		return nil, err
	}
	return &unionImpl{lgMaxK: lgK, gadget: sk}, nil
}

func NewUnionWithDefault() (Union, error) { return NewUnion(defaultLgK) }

// DeserializeUnion builds a union whose gadget starts from a previously
// serialized sketch image.
func DeserializeUnion(b []byte) (Union, error) {
	if len(b) < 8 {
		return nil, errs.Truncatedf("possible corruption: input too small to hold a preamble: %d bytes", len(b))
	}
	lgK, err := checkLgK(extractLgK(b))
	if err != nil {
		return nil, err
	}
	sk, err := NewHllSketchFromSlice(b, false)
	if err != nil {
		return nil, err
	}
	u, err := NewUnion(lgK)
	if err != nil {
		return nil, err
	}
	if err := u.UpdateSketch(sk); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *unionImpl) GetEstimate() (float64, error)          { return u.gadget.GetEstimate() }
func (u *unionImpl) GetCompositeEstimate() (float64, error) { return u.gadget.GetCompositeEstimate() }
func (u *unionImpl) GetLowerBound(n int) (float64, error)    { return u.gadget.GetLowerBound(n) }
func (u *unionImpl) GetUpperBound(n int) (float64, error)    { return u.gadget.GetUpperBound(n) }

func (u *unionImpl) UpdateUInt64(datum uint64) error { return u.gadget.UpdateUInt64(datum) }
func (u *unionImpl) UpdateInt64(datum int64) error   { return u.gadget.UpdateInt64(datum) }
func (u *unionImpl) UpdateSlice(datum []byte) error  { return u.gadget.UpdateSlice(datum) }
func (u *unionImpl) UpdateString(datum string) error { return u.gadget.UpdateString(datum) }

func (u *unionImpl) GetLgConfigK() int { return u.gadget.GetLgConfigK() }
func (u *unionImpl) GetCurMode() curMode { return u.gadget.GetCurMode() }
func (u *unionImpl) IsEmpty() bool       { return u.gadget.IsEmpty() }
func (u *unionImpl) Reset() error        { return u.gadget.Reset() }

func (u *unionImpl) GetUpdatableSerializationBytes() int {
	return u.gadget.GetUpdatableSerializationBytes()
}

func (u *unionImpl) ToCompactSlice() ([]byte, error) {
	if err := checkRebuildCurMinNumKxQ(u.gadget); err != nil {
		return nil, err
	}
	return u.gadget.ToCompactSlice()
}

func (u *unionImpl) ToUpdatableSlice() ([]byte, error) {
	if err := checkRebuildCurMinNumKxQ(u.gadget); err != nil {
		return nil, err
	}
	return u.gadget.ToUpdatableSlice()
}

func (u *unionImpl) GetResult(tgtHllType TgtHllType) (HllSketch, error) {
	if err := checkRebuildCurMinNumKxQ(u.gadget); err != nil {
		return nil, err
	}
	return u.gadget.CopyAs(tgtHllType)
}

// UpdateSketch folds source into the gadget: coupon-mode sources replay
// directly; HLL-mode sources merge register-wise at the smaller of the two
// configured lgK values (capped at lgMaxK), down-sampling whichever side is
// larger first.
func (u *unionImpl) UpdateSketch(source HllSketch) error {
	if source == nil || source.IsEmpty() {
		return nil
	}

	if source.GetCurMode() != curModeHll {
		return source.mergeTo(u.gadget)
	}

	srcLgK := source.GetLgConfigK()

	// The source is dense but the gadget is still coupon-based: rebuild the
	// gadget from a copy of the source at the capped resolution, then replay
	// whatever coupons the old gadget held on top of it.
	if u.gadget.GetCurMode() != curModeHll {
		tgtLgK := min(srcLgK, u.lgMaxK)
		copied, err := source.CopyAs(TgtHllTypeHll8)
		if err != nil {
			return err
		}
		if srcLgK > tgtLgK {
			copied, err = downsampleHllSketch(copied, tgtLgK)
			if err != nil {
				return err
			}
		}
		old := u.gadget
		u.gadget = copied
		if !old.IsEmpty() {
			if err := old.mergeTo(u.gadget); err != nil {
				return err
			}
		}
		u.gadget.(hllOutOfOrderSetter).setOutOfOrder(true)
		return nil
	}

	gdgtLgK := u.gadget.GetLgConfigK()
	tgtLgK := min(srcLgK, gdgtLgK, u.lgMaxK)

	if gdgtLgK > tgtLgK {
		down, err := downsampleHllSketch(u.gadget, tgtLgK)
		if err != nil {
			return err
		}
		u.gadget = down
	}

	src := source
	if srcLgK > tgtLgK {
		down, err := downsampleHllSketch(source, tgtLgK)
		if err != nil {
			return err
		}
		src = down
	}

	if err := mergeHllRegisters(src, u.gadget); err != nil {
		return err
	}
	u.gadget.(hllOutOfOrderSetter).setOutOfOrder(true)
	return nil
}

// hllOutOfOrderSetter exposes the facade's underlying out-of-order flag to
// the union, which must mark its gadget out of order whenever it has
// absorbed anything but a single unmerged stream.
type hllOutOfOrderSetter interface {
	setOutOfOrder(bool)
}

func (h *hllSketchState) setOutOfOrder(v bool) { h.sketch.putOutOfOrder(v) }

// mergeHllRegisters folds every non-empty register of src (assumed already
// at tgt's lgConfigK) into tgt via the ordinary coupon-update contract, so
// the merge gets the same HIP/KxQ bookkeeping as a direct update would.
func mergeHllRegisters(src, tgt HllSketch) error {
	it := src.iterator()
	for it.Next() {
		if _, err := tgt.couponUpdate(it.Pair()); err != nil {
			return err
		}
	}
	return nil
}

// downsampleHllSketch rebuilds src (an HLL-mode sketch) at lgDstK < its
// current lgConfigK, following the block-collapse rule: the destination
// register at slot j is the max, over the 2^(lgSrcK-lgDstK) source
// registers it absorbs, of each source value adjusted by the bit-length of
// its relative position within the block.
func downsampleHllSketch(src HllSketch, lgDstK int) (HllSketch, error) {
	lgSrcK := src.GetLgConfigK()
	if lgDstK > lgSrcK {
		return nil, errs.InvalidArgumentf("downsampleHllSketch: lgDstK %d must not exceed lgSrcK %d", lgDstK, lgSrcK)
	}
	if lgDstK == lgSrcK {
		return src.Copy()
	}
	tgt, err := NewHllSketch(lgDstK, TgtHllTypeHll8)
	if err != nil {
		return nil, err
	}
	delta := lgSrcK - lgDstK
	blockSize := 1 << delta
	numDstSlots := 1 << lgDstK

	srcArr, ok := src.(interface{ rawSlotValue(int) int })
	if !ok {
		return nil, errs.LogicErrorf("downsampleHllSketch: source sketch does not expose raw registers")
	}

	for j := 0; j < numDstSlots; j++ {
		best := 0
		for p := 0; p < blockSize; p++ {
			r := srcArr.rawSlotValue(j*blockSize + p)
			if r == 0 {
				continue
			}
			adjusted := r + bitLength(p)
			if adjusted > 62 {
				adjusted = 62
			}
			if adjusted > best {
				best = adjusted
			}
		}
		if best > 0 {
			if _, err := tgt.couponUpdate(pair(j, best)); err != nil {
				return nil, err
			}
		}
	}
	tgt.(hllOutOfOrderSetter).setOutOfOrder(true)
	return tgt, nil
}

func bitLength(p int) int {
	if p == 0 {
		return 0
	}
	return bits.Len(uint(p))
}

func (h *hllSketchState) rawSlotValue(slotNo int) int {
	a, ok := h.sketch.(hllArray)
	if !ok {
		return 0
	}
	return a.getSlotValue(slotNo)
}
