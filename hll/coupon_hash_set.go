package hll

import (
	"encoding/binary"

	"github.com/streamsketch/core/internal/errs"
)

// couponHashSetImpl is the SET-mode representation: an open-addressed hash
// table of coupons, probed from the coupon's address with an odd stride taken
// from its higher address bits rather than a fixed step of one. It grows by
// doubling and promotes to a dense register array once it holds more than
// 3/4 of 2^lgConfigK entries.
type couponHashSetImpl struct {
	hllSketchConfig
	hllCouponState
}

func newCouponHashSet(lgConfigK int, tgtHllType TgtHllType) (couponHashSetImpl, error) {
	if lgConfigK <= 7 {
		return couponHashSetImpl{}, errs.InvalidArgumentf("lgConfigK must be > 7 for SET mode: %d", lgConfigK)
	}
	cl, err := newCouponList(lgConfigK, tgtHllType, curModeSet)
	if err != nil {
		return couponHashSetImpl{}, err
	}
	return couponHashSetImpl(cl), nil
}

func (c *couponHashSetImpl) IsEmpty() bool { return c.couponCount == 0 }

func (c *couponHashSetImpl) GetEstimate() (float64, error)          { return couponEstimate(c.couponCount), nil }
func (c *couponHashSetImpl) GetCompositeEstimate() (float64, error) { return couponEstimate(c.couponCount), nil }
func (c *couponHashSetImpl) GetHipEstimate() (float64, error)       { return couponEstimate(c.couponCount), nil }

func (c *couponHashSetImpl) GetLowerBound(numStdDev int) (float64, error) {
	if err := checkNumStdDev(numStdDev); err != nil {
		return 0, err
	}
	return couponBound(c.couponCount, numStdDev, false), nil
}

func (c *couponHashSetImpl) GetUpperBound(numStdDev int) (float64, error) {
	if err := checkNumStdDev(numStdDev); err != nil {
		return 0, err
	}
	return couponBound(c.couponCount, numStdDev, true), nil
}

func (c *couponHashSetImpl) GetUpdatableSerializationBytes() int {
	return c.getMemDataStart() + (4 << c.lgCouponArrInts)
}

func (c *couponHashSetImpl) ToCompactSlice() ([]byte, error)   { return toCouponSlice(c, true) }
func (c *couponHashSetImpl) ToUpdatableSlice() ([]byte, error) { return toCouponSlice(c, false) }

func (c *couponHashSetImpl) getMemDataStart() int { return hashSetIntArrStart }
func (c *couponHashSetImpl) getPreInts() int      { return hashSetPreInts }

func (c *couponHashSetImpl) isOutOfOrder() bool              { return false }
func (c *couponHashSetImpl) putOutOfOrder(bool)              {}
func (c *couponHashSetImpl) isRebuildCurMinNumKxQFlag() bool { return false }
func (c *couponHashSetImpl) putRebuildCurMinNumKxQFlag(bool) {}

func (c *couponHashSetImpl) copy() (hllSketchStateI, error) {
	return c.copyAs(c.tgtHllType)
}

func (c *couponHashSetImpl) copyAs(tgtHllType TgtHllType) (hllSketchStateI, error) {
	newC := &couponHashSetImpl{
		hllSketchConfig: hllSketchConfig{lgConfigK: c.lgConfigK, tgtHllType: tgtHllType, curMode: curModeSet},
		hllCouponState:  newHllCouponState(c.lgCouponArrInts, c.couponCount, make([]int, len(c.couponIntArr))),
	}
	copy(newC.couponIntArr, c.couponIntArr)
	return newC, nil
}

func (c *couponHashSetImpl) mergeTo(dest HllSketch) error {
	return mergeCouponTo(c, dest)
}

// couponUpdate inserts coupon into the hash table, growing or promoting to a
// dense array as capacity demands.
func (c *couponHashSetImpl) couponUpdate(coupon int) (hllSketchStateI, error) {
	index, err := findCoupon(c.couponIntArr, c.lgCouponArrInts, coupon)
	if err != nil {
		return nil, err
	}
	if index >= 0 {
		return c, nil // duplicate
	}
	c.couponIntArr[^index] = coupon
	c.couponCount++
	promote, err := c.checkGrowOrPromote()
	if err != nil {
		return nil, err
	}
	if promote {
		return promoteSetToHll(c)
	}
	return c, nil
}

func (c *couponHashSetImpl) iterator() pairIterator {
	return newIntArrayPairIteratorSkipEmpty(c.couponIntArr, c.lgConfigK)
}

// checkGrowOrPromote reports whether c holds more than 3/4 of 2^lgConfigK
// coupons (promote signal); below that it doubles the table whenever the
// count passes 3/4 of the current table size.
func (c *couponHashSetImpl) checkGrowOrPromote() (bool, error) {
	if resizeDenom*c.couponCount > resizeNumer*(1<<c.lgConfigK) {
		return true, nil
	}
	if resizeDenom*c.couponCount <= resizeNumer*(1<<c.lgCouponArrInts) {
		return false, nil
	}
	c.lgCouponArrInts++
	arr, err := growHashSet(c.couponIntArr, c.lgCouponArrInts)
	if err != nil {
		return false, err
	}
	c.couponIntArr = arr
	return false, nil
}

// growHashSet doubles the table and reinserts every live entry.
func growHashSet(couponIntArr []int, tgtLgCoupArrSize int) ([]int, error) {
	tgt := make([]int, 1<<tgtLgCoupArrSize)
	for _, coupon := range couponIntArr {
		if coupon == empty {
			continue
		}
		idx, err := findCoupon(tgt, tgtLgCoupArrSize, coupon)
		if err != nil {
			return nil, err
		}
		if idx >= 0 {
			return nil, errs.LogicErrorf("growHashSet: found duplicate while rehashing")
		}
		tgt[^idx] = coupon
	}
	return tgt, nil
}

// promoteSetToHll replays every coupon of src into a freshly allocated dense
// array, seeding its KxQ0 running sum to k (every register starts at zero)
// before folding entries in, matching the coupon-update contract's
// incremental bookkeeping.
func promoteSetToHll(src *couponHashSetImpl) (hllSketchStateI, error) {
	tgt, err := newHllArray(src.lgConfigK, src.tgtHllType)
	if err != nil {
		return nil, err
	}
	tgt.putKxQ0(float64(uint64(1) << src.lgConfigK))

	it := src.iterator()
	for it.Next() {
		if _, err := tgt.couponUpdate(it.Pair()); err != nil {
			return nil, err
		}
	}
	est, err := src.GetEstimate()
	if err != nil {
		return nil, err
	}
	tgt.putHipAccum(est)
	tgt.putOutOfOrder(false)
	return tgt, nil
}

// findCoupon probes array for coupon using a stride derived from its own
// address bits. A non-negative return is the index of a duplicate; a
// negative return is the one's complement of the first empty slot found.
func findCoupon(array []int, lgArrInts, coupon int) (int, error) {
	arrMask := len(array) - 1
	probe := coupon & arrMask
	start := probe
	for {
		at := array[probe]
		if at == empty {
			return ^probe, nil
		}
		if at == coupon {
			return probe, nil
		}
		stride := ((coupon & keyMask26) >> lgArrInts) | 1
		probe = (probe + stride) & arrMask
		if probe == start {
			return 0, errs.LogicErrorf("findCoupon: probe exhausted table without finding an empty slot")
		}
	}
}

// deserializeCouponHashSet reconstructs a SET-mode sketch from its binary
// image.
func deserializeCouponHashSet(b []byte) (hllCoupon, error) {
	lgConfigK := extractLgK(b)
	tgtHllType := extractTgtHllType(b)

	set, err := newCouponHashSet(lgConfigK, tgtHllType)
	if err != nil {
		return nil, err
	}
	compact := extractCompactFlag(b)
	couponCount := extractHashSetCount(b)
	lgCouponArrInts := extractLgArr(b)
	if lgCouponArrInts < lgInitSetSize {
		lgCouponArrInts = computeLgArrInts(curModeSet, couponCount, lgConfigK)
	}

	if compact {
		for i := 0; i < couponCount; i++ {
			off := hashSetIntArrStart + 4*i
			if off+4 > len(b) {
				return nil, errs.Truncatedf("possible corruption: truncated coupon hash set")
			}
			coupon := int(binary.LittleEndian.Uint32(b[off:]))
			sk, err := set.couponUpdate(coupon)
			if err != nil {
				return nil, err
			}
			s, ok := sk.(*couponHashSetImpl)
			if !ok {
				return nil, errs.LogicErrorf("deserializeCouponHashSet: unexpected promotion while replaying compact image")
			}
			set = *s
		}
	} else {
		n := 1 << lgCouponArrInts
		if len(b) < hashSetIntArrStart+4*n {
			return nil, errs.Truncatedf("possible corruption: truncated coupon hash set")
		}
		set.couponCount = couponCount
		set.lgCouponArrInts = lgCouponArrInts
		set.couponIntArr = make([]int, n)
		for i := 0; i < n; i++ {
			set.couponIntArr[i] = int(binary.LittleEndian.Uint32(b[hashSetIntArrStart+4*i:]))
		}
	}
	return &set, nil
}
