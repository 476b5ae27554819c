package hll

import "math"

// hllCompositeEstimate computes the raw HLL cardinality estimate
// (alpha * k^2 over the split kxq0/kxq1 running sums), with the standard
// small- and large-range corrections layered on top: linear counting when
// registers are still mostly empty, and the bias correction for the high end
// of the range.
func hllCompositeEstimate(a *hllArrayImpl) (float64, error) {
	k := float64(uint64(1) << a.GetLgConfigK())
	alpha := 0.7213 / (1.0 + 1.079/k)
	switch a.GetLgConfigK() {
	case 4:
		alpha = 0.673
	case 5:
		alpha = 0.697
	case 6:
		alpha = 0.709
	}
	raw := (alpha * k * k) / (a.getKxQ0() + a.getKxQ1())

	numZeros := 0
	if a.getCurMin() == 0 {
		numZeros = a.getNumAtCurMin()
	}
	if numZeros > 0 && raw <= 2.5*k {
		return k * math.Log(k/float64(numZeros)), nil
	}
	const twoToThe32 = 4294967296.0
	if raw > twoToThe32/30.0 {
		return -twoToThe32 * math.Log(1.0-raw/twoToThe32), nil
	}
	return raw, nil
}

// rseFor returns the relative standard error used for bound computation:
// the lower, tighter HIP factor when the sketch has never been merged
// out of order, the looser non-HIP factor otherwise.
func rseFor(a *hllArrayImpl) float64 {
	k := math.Sqrt(float64(uint64(1) << a.GetLgConfigK()))
	if a.isOutOfOrder() {
		return hllNonHipRSEFactor / k
	}
	return hllHipRSEFactor / k
}

func hllUpperBound(a *hllArrayImpl, numStdDev int) (float64, error) {
	est, err := a.GetEstimate()
	if err != nil {
		return 0, err
	}
	return est * (1 + float64(numStdDev)*rseFor(a)), nil
}

func hllLowerBound(a *hllArrayImpl, numStdDev int) (float64, error) {
	est, err := a.GetEstimate()
	if err != nil {
		return 0, err
	}
	b := est * (1 - float64(numStdDev)*rseFor(a))
	if b < 0 {
		return 0, nil
	}
	return b, nil
}
