package hll

// hll8Array stores one register per byte: the simplest and fastest encoding,
// at the cost of using roughly twice the memory of HLL_4.
type hll8Array struct {
	hllArrayImpl
}

func newHll8Array(lgConfigK int) *hll8Array {
	numSlots := 1 << lgConfigK
	a := &hll8Array{hllArrayImpl{
		hllSketchConfig: hllSketchConfig{lgConfigK: lgConfigK, tgtHllType: TgtHllTypeHll8, curMode: curModeHll},
		numAtCurMin:     numSlots,
		hllByteArr:      make([]byte, numSlots),
	}}
	return a
}

func (a *hll8Array) getSlotValue(slotNo int) int { return int(a.hllByteArr[slotNo]) }

func (a *hll8Array) putSlotValue(slotNo int, value int) error {
	a.hllByteArr[slotNo] = byte(value)
	return nil
}

func (a *hll8Array) couponUpdate(coupon int) (hllSketchStateI, error) {
	return hllArrayCouponUpdate(a, coupon)
}

func (a *hll8Array) rebuildCurMinIfNeeded() error { return nil }

func (a *hll8Array) iterator() pairIterator {
	return newByteArrayPairIterator(a.hllByteArr, a.lgConfigK)
}

func (a *hll8Array) copy() (hllSketchStateI, error) { return a.copyAs(TgtHllTypeHll8) }

func (a *hll8Array) copyAs(tgtHllType TgtHllType) (hllSketchStateI, error) {
	common := a.copyCommon()
	if tgtHllType == TgtHllTypeHll8 {
		return &hll8Array{common}, nil
	}
	return convertHllArray(&hll8Array{common}, tgtHllType)
}

// byteArrayPairIterator walks a one-byte-per-register dense array, skipping
// zero-valued (never-touched) registers.
type byteArrayPairIterator struct {
	arr       []byte
	lgConfigK int
	idx       int
}

func newByteArrayPairIterator(arr []byte, lgConfigK int) *byteArrayPairIterator {
	return &byteArrayPairIterator{arr: arr, lgConfigK: lgConfigK, idx: -1}
}

func (it *byteArrayPairIterator) Next() bool {
	for {
		it.idx++
		if it.idx >= len(it.arr) {
			return false
		}
		if it.arr[it.idx] != 0 {
			return true
		}
	}
}

func (it *byteArrayPairIterator) Pair() int  { return pair(it.idx, int(it.arr[it.idx])) }
func (it *byteArrayPairIterator) Value() int { return int(it.arr[it.idx]) }
func (it *byteArrayPairIterator) Index() int { return it.idx }
