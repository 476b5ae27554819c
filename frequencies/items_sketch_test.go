package frequencies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamsketch/core/common"
)

func newInt64Sketch(t *testing.T, maxMapSize int) *ItemsSketch[int64] {
	t.Helper()
	sk, err := NewItemsSketchWithMaxMapSize[int64](maxMapSize, common.Int64Hasher{}, common.Int64Serde{})
	require.NoError(t, err)
	return sk
}

func TestItemsSketchEmpty(t *testing.T) {
	sk := newInt64Sketch(t, 64)
	assert.True(t, sk.IsEmpty())
	assert.Equal(t, 0, sk.GetNumActiveItems())
	assert.Equal(t, int64(0), sk.GetStreamLength())

	slc, err := sk.ToSlice()
	require.NoError(t, err)
	assert.Len(t, slc, 8)

	back, err := NewItemsSketchFromSlice[int64](slc, common.Int64Hasher{}, common.Int64Serde{})
	require.NoError(t, err)
	assert.True(t, back.IsEmpty())
}

func TestItemsSketchExactCounting(t *testing.T) {
	sk := newInt64Sketch(t, 64)
	for i := int64(0); i < 10; i++ {
		require.NoError(t, sk.Update(i))
	}
	require.NoError(t, sk.UpdateMany(int64(0), 5))

	est, err := sk.GetEstimate(0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), est)

	assert.Equal(t, int64(0), sk.GetMaximumError())
	assert.Equal(t, int64(15), sk.GetStreamLength())
}

func TestItemsSketchPurgeBoundsHeavyHitter(t *testing.T) {
	sk := newInt64Sketch(t, 16)
	const heavy = int64(42)
	var total int64
	for i := int64(0); i < 2000; i++ {
		require.NoError(t, sk.Update(heavy))
		total++
		if i%3 == 0 {
			require.NoError(t, sk.Update(i+1000))
			total++
		}
	}

	est, err := sk.GetEstimate(heavy)
	require.NoError(t, err)
	lb, err := sk.GetLowerBound(heavy)
	require.NoError(t, err)
	ub, err := sk.GetUpperBound(heavy)
	require.NoError(t, err)

	assert.LessOrEqual(t, lb, est)
	assert.LessOrEqual(t, est, ub)
	assert.InDelta(t, float64(total)/2, float64(est), float64(total))

	rows, err := sk.GetFrequentItems(ErrorTypeEnum.NoFalseNegatives)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, heavy, rows[0].GetItem())
}

func TestItemsSketchSerializationRoundTrip(t *testing.T) {
	sk := newInt64Sketch(t, 32)
	for i := int64(0); i < 500; i++ {
		require.NoError(t, sk.UpdateMany(i%20, i+1))
	}

	slc, err := sk.ToSlice()
	require.NoError(t, err)

	back, err := NewItemsSketchFromSlice[int64](slc, common.Int64Hasher{}, common.Int64Serde{})
	require.NoError(t, err)

	assert.Equal(t, sk.GetStreamLength(), back.GetStreamLength())
	assert.Equal(t, sk.GetNumActiveItems(), back.GetNumActiveItems())
	assert.Equal(t, sk.GetMaximumError(), back.GetMaximumError())

	for i := int64(0); i < 20; i++ {
		want, err := sk.GetEstimate(i)
		require.NoError(t, err)
		got, err := back.GetEstimate(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestItemsSketchMerge(t *testing.T) {
	a := newInt64Sketch(t, 64)
	b := newInt64Sketch(t, 64)
	for i := int64(0); i < 100; i++ {
		require.NoError(t, a.Update(i % 5))
	}
	for i := int64(0); i < 100; i++ {
		require.NoError(t, b.Update(i % 5))
	}
	merged, err := a.Merge(b)
	require.NoError(t, err)
	assert.Equal(t, int64(200), merged.GetStreamLength())
	est, err := merged.GetEstimate(0)
	require.NoError(t, err)
	assert.Equal(t, int64(40), est)
}

func TestItemsSketchMergeIsAssociative(t *testing.T) {
	build := func(seed int64) *ItemsSketch[int64] {
		sk := newInt64Sketch(t, 64)
		for i := int64(0); i < 60; i++ {
			require.NoError(t, sk.UpdateMany((seed+i)%7, i+1))
		}
		return sk
	}

	left, err := build(0).Merge(build(1))
	require.NoError(t, err)
	left, err = left.Merge(build(2))
	require.NoError(t, err)

	bc, err := build(1).Merge(build(2))
	require.NoError(t, err)
	right, err := build(0).Merge(bc)
	require.NoError(t, err)

	assert.Equal(t, left.GetStreamLength(), right.GetStreamLength())
	for x := int64(0); x < 7; x++ {
		wantEst, err := left.GetEstimate(x)
		require.NoError(t, err)
		gotEst, err := right.GetEstimate(x)
		require.NoError(t, err)
		assert.Equal(t, wantEst, gotEst)
	}
}

func TestItemsSketchRejectsNegativeCount(t *testing.T) {
	sk := newInt64Sketch(t, 16)
	err := sk.UpdateMany(int64(1), -5)
	assert.Error(t, err)
}

func TestGetEpsilonRequiresPowerOfTwo(t *testing.T) {
	_, err := GetEpsilon(100)
	assert.Error(t, err)

	eps, err := GetEpsilon(128)
	require.NoError(t, err)
	assert.InDelta(t, 3.5/128.0, eps, 1e-12)
}

func TestItemsSketchStringRoundTrip(t *testing.T) {
	sk := newInt64Sketch(t, 32)
	for i := int64(0); i < 500; i++ {
		require.NoError(t, sk.UpdateMany(i%20, i+1))
	}

	str := sk.ToString()
	back, err := NewItemsSketchFromString[int64](str, common.Int64Hasher{}, common.Int64Serde{})
	require.NoError(t, err)

	assert.Equal(t, sk.GetStreamLength(), back.GetStreamLength())
	assert.Equal(t, sk.GetNumActiveItems(), back.GetNumActiveItems())
	assert.Equal(t, sk.GetMaximumError(), back.GetMaximumError())
	for i := int64(0); i < 20; i++ {
		want, err := sk.GetEstimate(i)
		require.NoError(t, err)
		got, err := back.GetEstimate(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestItemsSketchStringRoundTripEmpty(t *testing.T) {
	sk := newInt64Sketch(t, 32)
	back, err := NewItemsSketchFromString[int64](sk.ToString(), common.Int64Hasher{}, common.Int64Serde{})
	require.NoError(t, err)
	assert.True(t, back.IsEmpty())
}

// Three distinct weighted items, none numerous enough relative to
// lgMaxMapSize=4 to trigger a purge, so the sketch counts them exactly.
func TestItemsSketchExactWeightsNoFalsePositives(t *testing.T) {
	sk, err := NewItemsSketch[string](4, 3, common.StringHasher{}, common.StringSerde{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, sk.UpdateMany("A", 1000))
		require.NoError(t, sk.UpdateMany("B", 10))
		require.NoError(t, sk.UpdateMany("C", 1))
	}

	assert.Equal(t, int64(3033), sk.GetStreamLength())
	assert.Equal(t, int64(0), sk.GetMaximumError())

	rows, err := sk.GetFrequentItemsWithThreshold(0, ErrorTypeEnum.NoFalsePositives)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[0].GetItem())
	assert.Equal(t, "B", rows[1].GetItem())
	assert.Equal(t, "C", rows[2].GetItem())
}

// A small max map size forced into a purge by enough distinct
// singleton items, after which a single heavy item still surfaces.
func TestItemsSketchPurgeStillSurfacesHeavyHitter(t *testing.T) {
	sk, err := NewItemsSketch[int64](3, 3, common.Int64Hasher{}, common.Int64Serde{})
	require.NoError(t, err)
	for i := int64(0); i < 20; i++ {
		require.NoError(t, sk.Update(i))
	}
	require.NoError(t, sk.UpdateMany(int64(999), 100))

	assert.Equal(t, int64(120), sk.GetStreamLength())
	assert.Greater(t, sk.GetMaximumError(), int64(0))

	rows, err := sk.GetFrequentItemsWithThreshold(0, ErrorTypeEnum.NoFalsePositives)
	require.NoError(t, err)
	found := false
	for _, r := range rows {
		if r.GetItem() == int64(999) {
			found = true
		}
	}
	assert.True(t, found)
}

// GetFrequentItemsWithThreshold uses strict inequality: an item whose bound
// exactly equals the threshold must not be reported.
func TestItemsSketchFrequentItemsThresholdIsStrict(t *testing.T) {
	sk := newInt64Sketch(t, 64)
	require.NoError(t, sk.UpdateMany(int64(1), 10))
	require.NoError(t, sk.UpdateMany(int64(2), 20))

	rowsPos, err := sk.GetFrequentItemsWithThreshold(10, ErrorTypeEnum.NoFalsePositives)
	require.NoError(t, err)
	for _, r := range rowsPos {
		assert.NotEqual(t, int64(1), r.GetItem())
	}
	require.Len(t, rowsPos, 1)
	assert.Equal(t, int64(2), rowsPos[0].GetItem())

	rowsNeg, err := sk.GetFrequentItemsWithThreshold(20, ErrorTypeEnum.NoFalseNegatives)
	require.NoError(t, err)
	for _, r := range rowsNeg {
		assert.NotEqual(t, int64(2), r.GetItem())
	}
	assert.Empty(t, rowsNeg)
}
