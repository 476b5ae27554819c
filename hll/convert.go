package hll

// convertHllArray materialises a fresh dense array of tgtHllType holding the
// same logical registers as src, by replaying every non-empty register as a
// coupon. This is the only path between the three encodings: a direct
// register-array reinterpretation is not possible since HLL_4 additionally
// needs curMin established and its aux table populated.
func convertHllArray(src hllArray, tgtHllType TgtHllType) (hllSketchStateI, error) {
	tgt, err := newHllArray(src.GetLgConfigK(), tgtHllType)
	if err != nil {
		return nil, err
	}
	tgt.putKxQ0(float64(uint64(1) << src.GetLgConfigK()))

	it := src.iterator()
	for it.Next() {
		if _, err := tgt.couponUpdate(pair(it.Index(), it.Value())); err != nil {
			return nil, err
		}
	}
	tgt.putHipAccum(src.getHipAccum())
	tgt.putOutOfOrder(src.isOutOfOrder())
	return tgt, nil
}
