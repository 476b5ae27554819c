package hll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnionOfDisjointSetsEstimatesCombinedCardinality(t *testing.T) {
	u, err := NewUnion(12)
	require.NoError(t, err)

	a, err := NewHllSketch(12, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 10000; i++ {
		require.NoError(t, a.UpdateInt64(int64(i)))
	}
	b, err := NewHllSketch(12, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 10000; i < 20000; i++ {
		require.NoError(t, b.UpdateInt64(int64(i)))
	}

	require.NoError(t, u.UpdateSketch(a))
	require.NoError(t, u.UpdateSketch(b))

	est, err := u.GetEstimate()
	require.NoError(t, err)
	assert.InDelta(t, 20000, est, 20000*0.1)
}

func TestUnionOfOverlappingSetsDoesNotDoubleCount(t *testing.T) {
	u, err := NewUnion(12)
	require.NoError(t, err)

	a, err := NewHllSketch(12, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 10000; i++ {
		require.NoError(t, a.UpdateInt64(int64(i)))
	}
	b, err := NewHllSketch(12, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 10000; i++ {
		require.NoError(t, b.UpdateInt64(int64(i)))
	}

	require.NoError(t, u.UpdateSketch(a))
	require.NoError(t, u.UpdateSketch(b))

	est, err := u.GetEstimate()
	require.NoError(t, err)
	assert.InDelta(t, 10000, est, 10000*0.1)
}

func TestUnionAcrossDifferingLgKDownsamples(t *testing.T) {
	u, err := NewUnion(10)
	require.NoError(t, err)

	fine, err := NewHllSketch(14, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 30000; i++ {
		require.NoError(t, fine.UpdateInt64(int64(i)))
	}
	coarse, err := NewHllSketch(8, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 30000; i < 60000; i++ {
		require.NoError(t, coarse.UpdateInt64(int64(i)))
	}

	require.NoError(t, u.UpdateSketch(fine))
	require.NoError(t, u.UpdateSketch(coarse))

	assert.LessOrEqual(t, u.GetLgConfigK(), 10)
	est, err := u.GetEstimate()
	require.NoError(t, err)
	assert.InDelta(t, 60000, est, 60000*0.15)
}

func TestUnionOfCouponModeSketches(t *testing.T) {
	u, err := NewUnion(12)
	require.NoError(t, err)

	a, err := NewHllSketch(12, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, a.UpdateInt64(int64(i)))
	}
	b, err := NewHllSketch(12, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 4; i < 8; i++ {
		require.NoError(t, b.UpdateInt64(int64(i)))
	}

	require.NoError(t, u.UpdateSketch(a))
	require.NoError(t, u.UpdateSketch(b))

	est, err := u.GetEstimate()
	require.NoError(t, err)
	assert.Equal(t, 8.0, est)
}

func TestUnionCouponGadgetAbsorbsDenseSource(t *testing.T) {
	u, err := NewUnion(12)
	require.NoError(t, err)

	small, err := NewHllSketch(12, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		require.NoError(t, small.UpdateInt64(int64(i)))
	}
	require.NoError(t, u.UpdateSketch(small))
	require.Equal(t, curModeList, u.GetCurMode())

	dense, err := NewHllSketch(12, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 1000; i < 11000; i++ {
		require.NoError(t, dense.UpdateInt64(int64(i)))
	}
	require.Equal(t, curModeHll, dense.GetCurMode())
	require.NoError(t, u.UpdateSketch(dense))

	est, err := u.GetEstimate()
	require.NoError(t, err)
	assert.InDelta(t, 10006, est, 10006*0.1)
}

// Merging sketches configured at lgK 14 and 10 under a union capped at
// lgK 12 must settle on the smallest of the three, and materializing the
// result as HLL_4 must not change the estimate.
func TestUnionEffectiveLgKIsMinimumOfInputsAndCap(t *testing.T) {
	u, err := NewUnion(12)
	require.NoError(t, err)

	coarse, err := NewHllSketch(10, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 10000; i++ {
		require.NoError(t, coarse.UpdateInt64(int64(i)))
	}
	fine, err := NewHllSketch(14, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 10000; i < 40000; i++ {
		require.NoError(t, fine.UpdateInt64(int64(i)))
	}

	require.NoError(t, u.UpdateSketch(coarse))
	require.NoError(t, u.UpdateSketch(fine))
	assert.Equal(t, 10, u.GetLgConfigK())

	gadgetEst, err := u.GetEstimate()
	require.NoError(t, err)
	res, err := u.GetResult(TgtHllTypeHll4)
	require.NoError(t, err)
	assert.Equal(t, TgtHllTypeHll4, res.GetTgtHllType())
	resEst, err := res.GetEstimate()
	require.NoError(t, err)
	assert.InDelta(t, gadgetEst, resEst, gadgetEst*0.01)
}

func TestUnionGetResultMaterializesRequestedType(t *testing.T) {
	u, err := NewUnion(11)
	require.NoError(t, err)
	sk, err := NewHllSketch(11, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 5000; i++ {
		require.NoError(t, sk.UpdateInt64(int64(i)))
	}
	require.NoError(t, u.UpdateSketch(sk))

	res, err := u.GetResult(TgtHllTypeHll4)
	require.NoError(t, err)
	assert.Equal(t, TgtHllTypeHll4, res.GetTgtHllType())
	est, err := res.GetEstimate()
	require.NoError(t, err)
	assert.InDelta(t, 5000, est, 5000*0.1)
}
