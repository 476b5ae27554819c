package hll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHll4ArrayPromotesRegisterToAuxOnOverflow(t *testing.T) {
	a := newHll4Array(6)
	_, err := a.couponUpdate(pair(3, 14))
	require.NoError(t, err)
	assert.Equal(t, 14, a.getSlotValue(3))
	assert.NotEqual(t, auxToken, a.getNibble(3))

	_, err = a.couponUpdate(pair(3, 20))
	require.NoError(t, err)
	assert.Equal(t, auxToken, a.getNibble(3))
	assert.Equal(t, 20, a.getSlotValue(3))
}

func TestHll4ArrayUpdatableRoundTripCarriesAuxTable(t *testing.T) {
	a := newHll4Array(6)
	numSlots := 1 << 6
	for slot := 0; slot < numSlots; slot++ {
		_, err := a.couponUpdate(pair(slot, 3))
		require.NoError(t, err)
	}
	_, err := a.couponUpdate(pair(5, 30))
	require.NoError(t, err)
	_, err = a.couponUpdate(pair(9, 25))
	require.NoError(t, err)
	require.NotNil(t, a.auxHashMap)

	b, err := a.ToUpdatableSlice()
	require.NoError(t, err)
	back, err := deserializeHll4(b)
	require.NoError(t, err)
	assert.Equal(t, 30, back.getSlotValue(5))
	assert.Equal(t, 25, back.getSlotValue(9))
	assert.Equal(t, a.getAuxHashMap().auxCount, back.getAuxHashMap().auxCount)

	c, err := a.ToCompactSlice()
	require.NoError(t, err)
	back2, err := deserializeHll4(c)
	require.NoError(t, err)
	assert.Equal(t, 30, back2.getSlotValue(5))
	assert.Equal(t, 25, back2.getSlotValue(9))
}

func TestHll4ArrayAuxEntryDemotesAfterCurMinRebuild(t *testing.T) {
	a := newHll4Array(4)
	numSlots := 1 << 4
	for slot := 0; slot < numSlots; slot++ {
		_, err := a.couponUpdate(pair(slot, 1))
		require.NoError(t, err)
	}
	_, err := a.couponUpdate(pair(0, 20))
	require.NoError(t, err)
	assert.Equal(t, auxToken, a.getNibble(0))

	// Raising every other register to 7 exhausts the old curMin and lifts
	// the new one to 7, bringing slot 0's offset (20-7=13) back under the
	// nibble ceiling.
	for slot := 1; slot < numSlots; slot++ {
		_, err := a.couponUpdate(pair(slot, 7))
		require.NoError(t, err)
	}

	assert.Equal(t, 7, a.curMin)
	assert.NotEqual(t, auxToken, a.getNibble(0))
	assert.Equal(t, 20, a.getSlotValue(0))
	assert.Nil(t, a.auxHashMap)
}
