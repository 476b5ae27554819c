package hll

import (
	"encoding/binary"

	"github.com/streamsketch/core/internal/errs"
)

// hllSketchConfig is the (lgConfigK, tgtHllType, curMode) triple every
// representation carries.
type hllSketchConfig struct {
	lgConfigK  int
	tgtHllType TgtHllType
	curMode    curMode
}

func (c hllSketchConfig) GetLgConfigK() int         { return c.lgConfigK }
func (c hllSketchConfig) GetTgtHllType() TgtHllType { return c.tgtHllType }
func (c hllSketchConfig) GetCurMode() curMode       { return c.curMode }

// hllCouponState is the backing array shared by the coupon list and coupon
// hash set representations: a sparse array of 32-bit coupon values.
type hllCouponState struct {
	lgCouponArrInts int
	couponCount     int
	couponIntArr    []int
}

func newHllCouponState(lgCouponArrInts, couponCount int, couponIntArr []int) hllCouponState {
	return hllCouponState{lgCouponArrInts: lgCouponArrInts, couponCount: couponCount, couponIntArr: couponIntArr}
}

// hllCoupon is the subset of hllSketchStateI every coupon-backed
// representation (list or set) implements; it is the common target of
// coupon replay during promotion and union.
type hllCoupon interface {
	hllSketchStateI
}

// couponListImpl is the LIST-mode representation: an unordered, deduplicated
// array of up to 8 coupons, linearly scanned on every insert. Once full it
// promotes to a couponHashSetImpl carrying the same coupons forward.
type couponListImpl struct {
	hllSketchConfig
	hllCouponState
}

func newCouponList(lgConfigK int, tgtHllType TgtHllType, mode curMode) (couponListImpl, error) {
	lgArr := lgInitListSize
	if mode != curModeList {
		lgArr = lgInitSetSize
	}
	return couponListImpl{
		hllSketchConfig: hllSketchConfig{lgConfigK: lgConfigK, tgtHllType: tgtHllType, curMode: mode},
		hllCouponState:  newHllCouponState(lgArr, 0, make([]int, 1<<lgArr)),
	}, nil
}

func (c *couponListImpl) IsEmpty() bool { return c.couponCount == 0 }

func (c *couponListImpl) GetEstimate() (float64, error)          { return couponEstimate(c.couponCount), nil }
func (c *couponListImpl) GetCompositeEstimate() (float64, error) { return couponEstimate(c.couponCount), nil }
func (c *couponListImpl) GetHipEstimate() (float64, error)       { return couponEstimate(c.couponCount), nil }

func (c *couponListImpl) GetLowerBound(numStdDev int) (float64, error) {
	if err := checkNumStdDev(numStdDev); err != nil {
		return 0, err
	}
	return couponBound(c.couponCount, numStdDev, false), nil
}

func (c *couponListImpl) GetUpperBound(numStdDev int) (float64, error) {
	if err := checkNumStdDev(numStdDev); err != nil {
		return 0, err
	}
	return couponBound(c.couponCount, numStdDev, true), nil
}

func (c *couponListImpl) GetUpdatableSerializationBytes() int {
	return c.getMemDataStart() + (4 << c.lgCouponArrInts)
}

func (c *couponListImpl) ToCompactSlice() ([]byte, error)   { return toCouponSlice(c, true) }
func (c *couponListImpl) ToUpdatableSlice() ([]byte, error) { return toCouponSlice(c, false) }

func (c *couponListImpl) getMemDataStart() int { return listIntArrStart }
func (c *couponListImpl) getPreInts() int      { return listPreInts }

func (c *couponListImpl) isOutOfOrder() bool                       { return false }
func (c *couponListImpl) putOutOfOrder(bool)                       {}
func (c *couponListImpl) isRebuildCurMinNumKxQFlag() bool          { return false }
func (c *couponListImpl) putRebuildCurMinNumKxQFlag(bool)          {}

func (c *couponListImpl) copy() (hllSketchStateI, error) {
	return c.copyAs(c.tgtHllType)
}

func (c *couponListImpl) copyAs(tgtHllType TgtHllType) (hllSketchStateI, error) {
	newC := &couponListImpl{
		hllSketchConfig: hllSketchConfig{lgConfigK: c.lgConfigK, tgtHllType: tgtHllType, curMode: c.curMode},
		hllCouponState:  newHllCouponState(c.lgCouponArrInts, c.couponCount, make([]int, len(c.couponIntArr))),
	}
	copy(newC.couponIntArr, c.couponIntArr)
	return newC, nil
}

func (c *couponListImpl) mergeTo(dest HllSketch) error {
	return mergeCouponTo(c, dest)
}

// couponUpdate appends coupon if it is new and there is room, or signals
// promotion to its caller by returning a different representation.
func (c *couponListImpl) couponUpdate(coupon int) (hllSketchStateI, error) {
	for _, existing := range c.couponIntArr[:c.couponCount] {
		if existing == coupon {
			return c, nil
		}
	}
	if c.couponCount < len(c.couponIntArr) {
		c.couponIntArr[c.couponCount] = coupon
		c.couponCount++
		return c, nil
	}

	// SET mode needs lgConfigK > 7 (newCouponHashSet rejects smaller values);
	// at lgConfigK <= 7 a full LIST promotes straight to a dense array.
	if c.lgConfigK <= 7 {
		tgt, err := newHllArray(c.lgConfigK, c.tgtHllType)
		if err != nil {
			return nil, err
		}
		tgt.putKxQ0(float64(uint64(1) << c.lgConfigK))
		for _, existing := range c.couponIntArr {
			if _, err := tgt.couponUpdate(existing); err != nil {
				return nil, err
			}
		}
		tgt.putOutOfOrder(false)
		return tgt.couponUpdate(coupon)
	}

	set, err := newCouponHashSet(c.lgConfigK, c.tgtHllType)
	if err != nil {
		return nil, err
	}
	var cur hllSketchStateI = &set
	for _, existing := range c.couponIntArr {
		cur, err = cur.couponUpdate(existing)
		if err != nil {
			return nil, err
		}
	}
	return cur.couponUpdate(coupon)
}

func (c *couponListImpl) iterator() pairIterator {
	return newIntArrayPairIterator(c.couponIntArr[:c.couponCount], c.lgConfigK)
}

// couponEstimate treats the coupon count itself as the cardinality estimate:
// at LIST/SET population levels collision probability is negligible, so no
// correction formula is applied.
func couponEstimate(count int) float64 { return float64(count) }

func couponBound(count, numStdDev int, upper bool) float64 {
	rse := couponRSEFactor / float64(int(1)<<13) * float64(numStdDev) * 3
	if upper {
		return float64(count) * (1 + rse)
	}
	b := float64(count) * (1 - rse)
	if b < 0 {
		return 0
	}
	return b
}

// toCouponSlice serializes a LIST or SET representation. compact writes only
// couponCount entries (SET) or the used prefix (LIST); the updatable form
// writes the full backing array.
func toCouponSlice(c hllCoupon, compact bool) ([]byte, error) {
	cl, ok := anyCouponState(c)
	if !ok {
		return nil, errs.LogicErrorf("toCouponSlice called on non-coupon representation")
	}
	preInts := c.getPreInts()
	dataStart := c.getMemDataStart()
	numEntries := cl.couponCount
	if !compact {
		numEntries = len(cl.couponIntArr)
	}
	out := make([]byte, dataStart+4*numEntries)
	insertPreInts(out, preInts)
	insertSerVer(out, serVer)
	insertFamilyIDHll(out)
	insertLgK(out, c.GetLgConfigK())
	lgArr := cl.lgCouponArrInts
	if compact {
		lgArr = 0
	}
	insertLgArr(out, lgArr)
	insertModeAndType(out, c.GetCurMode(), c.GetTgtHllType())
	insertFlags(out, cl.couponCount == 0, compact, c.isOutOfOrder())

	if c.GetCurMode() == curModeList {
		insertListCount(out, cl.couponCount)
	} else {
		insertHashSetCount(out, cl.couponCount)
	}

	if compact {
		if c.GetCurMode() == curModeList {
			for i := 0; i < cl.couponCount; i++ {
				binary.LittleEndian.PutUint32(out[dataStart+4*i:], uint32(cl.couponIntArr[i]))
			}
		} else {
			n := 0
			for _, v := range cl.couponIntArr {
				if v != empty {
					binary.LittleEndian.PutUint32(out[dataStart+4*n:], uint32(v))
					n++
				}
			}
		}
	} else {
		for i, v := range cl.couponIntArr {
			binary.LittleEndian.PutUint32(out[dataStart+4*i:], uint32(v))
		}
	}
	return out, nil
}

func anyCouponState(c hllCoupon) (*hllCouponState, bool) {
	switch v := c.(type) {
	case *couponListImpl:
		return &v.hllCouponState, true
	case *couponHashSetImpl:
		return &v.hllCouponState, true
	}
	return nil, false
}

func insertFamilyIDHll(b []byte) {
	insertFamilyID(b, familyIDHll)
}

const familyIDHll = 7

// deserializeCouponList reconstructs a LIST-mode sketch from its binary
// image.
func deserializeCouponList(b []byte) (hllCoupon, error) {
	lgConfigK := extractLgK(b)
	tgtHllType := extractTgtHllType(b)
	compact := extractCompactFlag(b)
	count := extractListCount(b)

	cl, err := newCouponList(lgConfigK, tgtHllType, curModeList)
	if err != nil {
		return nil, err
	}
	if compact {
		for i := 0; i < count; i++ {
			off := listIntArrStart + 4*i
			if len(b) < off+4 {
				return nil, errs.Truncatedf("possible corruption: truncated coupon list")
			}
			coupon := int(binary.LittleEndian.Uint32(b[off:]))
			sk, err := cl.couponUpdate(coupon)
			if err != nil {
				return nil, err
			}
			cl = *(sk.(*couponListImpl))
		}
	} else {
		if len(b) < listIntArrStart+4*len(cl.couponIntArr) {
			return nil, errs.Truncatedf("possible corruption: truncated coupon list")
		}
		cl.couponCount = count
		for i := range cl.couponIntArr {
			cl.couponIntArr[i] = int(binary.LittleEndian.Uint32(b[listIntArrStart+4*i:]))
		}
	}
	return &cl, nil
}
