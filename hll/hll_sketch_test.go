package hll

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHllSketchEmpty(t *testing.T) {
	sk, err := NewHllSketch(12, TgtHllTypeHll8)
	require.NoError(t, err)
	assert.True(t, sk.IsEmpty())
	est, err := sk.GetEstimate()
	require.NoError(t, err)
	assert.Equal(t, 0.0, est)
}

func TestHllSketchListModeExactForSmallCounts(t *testing.T) {
	sk, err := NewHllSketch(12, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, sk.UpdateInt64(int64(i)))
	}
	assert.Equal(t, curModeList, sk.GetCurMode())
	est, err := sk.GetEstimate()
	require.NoError(t, err)
	assert.Equal(t, 5.0, est)
}

// Eight distinct items fit the coupon list exactly: the sketch stays in LIST
// mode, counts them exactly, and the compact image round-trips bit-for-bit
// on the estimate.
func TestHllSketchFullListSerializesExactly(t *testing.T) {
	sk, err := NewHllSketch(4, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		require.NoError(t, sk.UpdateInt64(int64(i)))
	}
	assert.Equal(t, curModeList, sk.GetCurMode())
	est, err := sk.GetEstimate()
	require.NoError(t, err)
	assert.Equal(t, 8.0, est)

	b, err := sk.ToCompactSlice()
	require.NoError(t, err)
	back, err := NewHllSketchFromSlice(b, false)
	require.NoError(t, err)
	assert.Equal(t, curModeList, back.GetCurMode())
	backEst, err := back.GetEstimate()
	require.NoError(t, err)
	assert.Equal(t, est, backEst)
}

// The ninth distinct item promotes LIST to SET. The SET's table is capped
// at 2^(lgConfigK-3) slots, so at lgConfigK=8 the 25th coupon overflows the
// 3/4 load bound (25 > 24) and promotes SET to a dense array whose HIP
// estimate is seeded with the exact coupon count.
func TestHllSketchNinthCouponPromotesListToSet(t *testing.T) {
	sk, err := NewHllSketch(8, TgtHllTypeHll4)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		require.NoError(t, sk.UpdateInt64(int64(i)))
	}
	assert.Equal(t, curModeList, sk.GetCurMode())
	require.NoError(t, sk.UpdateInt64(8))
	assert.Equal(t, curModeSet, sk.GetCurMode())

	for i := 9; i < 24; i++ {
		require.NoError(t, sk.UpdateInt64(int64(i)))
	}
	assert.Equal(t, curModeSet, sk.GetCurMode())

	require.NoError(t, sk.UpdateInt64(24))
	assert.Equal(t, curModeHll, sk.GetCurMode())
	est, err := sk.GetEstimate()
	require.NoError(t, err)
	assert.InDelta(t, 25.0, est, 0.01)
}

func TestHllSketchPromotesThroughModes(t *testing.T) {
	sk, err := NewHllSketch(4, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 2000; i++ {
		require.NoError(t, sk.UpdateString(fmt.Sprintf("item-%d", i)))
	}
	assert.Equal(t, curModeHll, sk.GetCurMode())
	est, err := sk.GetEstimate()
	require.NoError(t, err)
	assert.InDelta(t, 2000, est, 2000*0.2)
}

func TestHllSketchCardinalityWithinErrorBounds(t *testing.T) {
	for _, tgtType := range []TgtHllType{TgtHllTypeHll4, TgtHllTypeHll6, TgtHllTypeHll8} {
		sk, err := NewHllSketch(11, tgtType)
		require.NoError(t, err)
		const n = 50000
		for i := 0; i < n; i++ {
			require.NoError(t, sk.UpdateInt64(int64(i)))
		}
		est, err := sk.GetEstimate()
		require.NoError(t, err)
		lb, err := sk.GetLowerBound(2)
		require.NoError(t, err)
		ub, err := sk.GetUpperBound(2)
		require.NoError(t, err)
		assert.LessOrEqual(t, lb, est)
		assert.LessOrEqual(t, est, ub)
		assert.InDelta(t, n, est, n*0.1)
	}
}

func TestHllSketchSerializationRoundTrip(t *testing.T) {
	sk, err := NewHllSketch(10, TgtHllTypeHll4)
	require.NoError(t, err)
	for i := 0; i < 20000; i++ {
		require.NoError(t, sk.UpdateInt64(int64(i)))
	}
	est, err := sk.GetEstimate()
	require.NoError(t, err)

	compact, err := sk.ToCompactSlice()
	require.NoError(t, err)
	back, err := NewHllSketchFromSlice(compact, true)
	require.NoError(t, err)
	backEst, err := back.GetEstimate()
	require.NoError(t, err)
	assert.Equal(t, est, backEst)

	updatable, err := sk.ToUpdatableSlice()
	require.NoError(t, err)
	back2, err := NewHllSketchFromSlice(updatable, true)
	require.NoError(t, err)
	backEst2, err := back2.GetEstimate()
	require.NoError(t, err)
	assert.Equal(t, est, backEst2)
}

func TestHllSketchResetReturnsToEmptyList(t *testing.T) {
	sk, err := NewHllSketch(12, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, sk.UpdateInt64(int64(i)))
	}
	require.NoError(t, sk.Reset())
	assert.True(t, sk.IsEmpty())
	assert.Equal(t, curModeList, sk.GetCurMode())
}

func TestHllSketchCopyIsIndependent(t *testing.T) {
	sk, err := NewHllSketch(12, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, sk.UpdateInt64(int64(i)))
	}
	cp, err := sk.Copy()
	require.NoError(t, err)
	require.NoError(t, sk.UpdateInt64(999999))

	estOrig, err := sk.GetEstimate()
	require.NoError(t, err)
	estCopy, err := cp.GetEstimate()
	require.NoError(t, err)
	assert.NotEqual(t, estOrig, estCopy)
}

func TestHllSketchCopyAsConvertsEncoding(t *testing.T) {
	sk, err := NewHllSketch(10, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 20000; i++ {
		require.NoError(t, sk.UpdateInt64(int64(i)))
	}
	est, err := sk.GetEstimate()
	require.NoError(t, err)

	conv, err := sk.CopyAs(TgtHllTypeHll4)
	require.NoError(t, err)
	assert.Equal(t, TgtHllTypeHll4, conv.GetTgtHllType())
	convEst, err := conv.GetEstimate()
	require.NoError(t, err)
	assert.InDelta(t, est, convEst, est*0.05)
}

// Flipping the family byte must be rejected, but flipping the lg_arr byte
// must not be (it's recomputed, not load-bearing for decode correctness).
func TestDeserializeRejectsCorruptFamilyButToleratesStaleLgArr(t *testing.T) {
	sk, err := NewHllSketch(10, TgtHllTypeHll8)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, sk.UpdateInt64(int64(i)))
	}
	b, err := sk.ToCompactSlice()
	require.NoError(t, err)

	corruptFamily := append([]byte(nil), b...)
	corruptFamily[familyByte] = 0
	_, err = NewHllSketchFromSlice(corruptFamily, false)
	assert.Error(t, err)

	staleLgArr := append([]byte(nil), b...)
	staleLgArr[lgArrByte] = 0
	_, err = NewHllSketchFromSlice(staleLgArr, false)
	assert.NoError(t, err)
}

func TestCheckLgKRejectsOutOfRange(t *testing.T) {
	_, err := NewHllSketch(3, TgtHllTypeHll8)
	assert.Error(t, err)
	_, err = NewHllSketch(22, TgtHllTypeHll8)
	assert.Error(t, err)
}
