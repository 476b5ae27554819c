package frequencies

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/streamsketch/core/common"
	"github.com/streamsketch/core/internal"
	"github.com/streamsketch/core/internal/errs"
)

const reversePurgeItemHashMapLoadFactor = float64(0.75)

// reversePurgeItemHashMap is an open-addressed, linear-probed map from item
// to weight. Insertion tracks how far a slot has drifted from its natural
// probe position in states[]; purge removes the approximate median weight
// from every slot and reclaims everything that drops to zero or below,
// repacking the table so probe chains stay contiguous.
type reversePurgeItemHashMap[C comparable] struct {
	lgLength      int
	loadThreshold int
	keys          []C
	values        []int64
	states        []int16
	numActive     int
	hasher        common.ItemSketchHasher[C]
	serde         common.ItemSketchSerde[C]
}

func newReversePurgeItemHashMap[C comparable](mapSize int, hasher common.ItemSketchHasher[C], serde common.ItemSketchSerde[C]) (*reversePurgeItemHashMap[C], error) {
	lgLength, err := internal.ExactLog2(mapSize)
	if err != nil {
		return nil, err
	}
	return &reversePurgeItemHashMap[C]{
		lgLength:      lgLength,
		loadThreshold: int(float64(mapSize) * reversePurgeItemHashMapLoadFactor),
		keys:          make([]C, mapSize),
		values:        make([]int64, mapSize),
		states:        make([]int16, mapSize),
		hasher:        hasher,
		serde:         serde,
	}, nil
}

func (r *reversePurgeItemHashMap[C]) getCapacity() int {
	return r.loadThreshold
}

func (r *reversePurgeItemHashMap[C]) get(key C) (int64, error) {
	probe := r.hashProbe(key)
	if r.states[probe] > 0 {
		if r.keys[probe] != key {
			return 0, errs.LogicErrorf("key not found at expected probe position")
		}
		return r.values[probe], nil
	}
	return 0, nil
}

// adjustOrPutValue increments the weight stored for key, inserting it with
// adjustAmount if it isn't already present.
func (r *reversePurgeItemHashMap[C]) adjustOrPutValue(key C, adjustAmount int64) error {
	arrayMask := uint64(len(r.keys) - 1)
	probe := r.hasher.Hash(key) & arrayMask
	drift := 1

	for r.states[probe] != 0 && r.keys[probe] != key {
		probe = (probe + 1) & arrayMask
		drift++
	}

	if r.states[probe] == 0 {
		if r.numActive > r.loadThreshold {
			return errs.LogicErrorf("numActive %d exceeds loadThreshold %d", r.numActive, r.loadThreshold)
		}
		r.keys[probe] = key
		r.values[probe] = adjustAmount
		r.states[probe] = int16(drift)
		r.numActive++
		return nil
	}
	if r.keys[probe] != key {
		return errs.LogicErrorf("key not found at expected probe position")
	}
	r.values[probe] += adjustAmount
	return nil
}

func (r *reversePurgeItemHashMap[C]) resize(newSize int) error {
	oldKeys, oldValues, oldStates := r.keys, r.values, r.states
	lg, err := internal.ExactLog2(newSize)
	if err != nil {
		return err
	}
	r.keys = make([]C, newSize)
	r.values = make([]int64, newSize)
	r.states = make([]int16, newSize)
	r.loadThreshold = int(float64(newSize) * reversePurgeItemHashMapLoadFactor)
	r.lgLength = lg
	r.numActive = 0
	for i := range oldKeys {
		if oldStates[i] > 0 {
			if err := r.adjustOrPutValue(oldKeys[i], oldValues[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// purge removes the approximate median of up to sampleSize active weights
// from every counter and discards anything that falls to zero or below,
// returning the median so the caller can fold it into its running offset.
func (r *reversePurgeItemHashMap[C]) purge(sampleSize int) int64 {
	limit := min(sampleSize, r.numActive)
	samples := make([]int64, limit)
	numSamples, i := 0, 0
	for numSamples < limit {
		if r.states[i] > 0 {
			samples[numSamples] = r.values[i]
			numSamples++
		}
		i++
	}
	median := internal.QuickSelect(samples, 0, numSamples-1, limit/2)
	r.adjustAllValuesBy(-median)
	r.keepOnlyPositiveCounts()
	return median
}

func (r *reversePurgeItemHashMap[C]) adjustAllValuesBy(adjustAmount int64) {
	for i := len(r.values) - 1; i >= 0; i-- {
		r.values[i] += adjustAmount
	}
}

// keepOnlyPositiveCounts deletes every slot whose weight dropped to zero or
// below. It walks backward from the end of the table so hashDelete's
// forward-shift never undoes work already done by this pass.
func (r *reversePurgeItemHashMap[C]) keepOnlyPositiveCounts() {
	firstProbe := len(r.states) - 1
	for r.states[firstProbe] > 0 {
		firstProbe--
	}
	for probe := firstProbe; probe > 0; {
		probe--
		if r.states[probe] > 0 && r.values[probe] <= 0 {
			r.hashDelete(probe)
			r.numActive--
		}
	}
	for probe := len(r.states); probe > firstProbe; {
		probe--
		if r.states[probe] > 0 && r.values[probe] <= 0 {
			r.hashDelete(probe)
			r.numActive--
		}
	}
}

// hashDelete empties deleteProbe and pulls a later entry in its probe chain
// backward to fill the gap, decrementing its recorded drift accordingly, so
// active entries remain reachable by linear probing from their hash.
func (r *reversePurgeItemHashMap[C]) hashDelete(deleteProbe int) {
	r.states[deleteProbe] = 0
	drift := 1
	arrayMask := len(r.keys) - 1
	probe := (deleteProbe + drift) & arrayMask
	for r.states[probe] != 0 {
		if r.states[probe] > int16(drift) {
			r.keys[deleteProbe] = r.keys[probe]
			r.values[deleteProbe] = r.values[probe]
			r.states[deleteProbe] = r.states[probe] - int16(drift)
			r.states[probe] = 0
			drift = 0
			deleteProbe = probe
		}
		probe = (probe + 1) & arrayMask
		drift++
	}
}

func (r *reversePurgeItemHashMap[C]) getActiveValues() []int64 {
	if r.numActive == 0 {
		return nil
	}
	out := make([]int64, 0, r.numActive)
	for i, s := range r.states {
		if s > 0 {
			out = append(out, r.values[i])
		}
	}
	return out
}

func (r *reversePurgeItemHashMap[C]) getActiveKeys() []C {
	if r.numActive == 0 {
		return nil
	}
	out := make([]C, 0, r.numActive)
	for i, s := range r.states {
		if s > 0 {
			out = append(out, r.keys[i])
		}
	}
	return out
}

func (r *reversePurgeItemHashMap[C]) hashProbe(key C) int {
	arrayMask := uint64(len(r.keys) - 1)
	probe := r.hasher.Hash(key) & arrayMask
	for r.states[probe] > 0 && r.keys[probe] != key {
		probe = (probe + 1) & arrayMask
	}
	return int(probe)
}

func (r *reversePurgeItemHashMap[C]) serializeToString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d,%d,", r.numActive, len(r.keys))
	for i := range r.keys {
		if r.states[i] != 0 {
			fmt.Fprintf(&sb, "%s,%d,", r.serde.String(r.keys[i]), r.values[i])
		}
	}
	return sb.String()
}

// deserializeFromStringArray parses the item/value token pairs ToString
// wrote via serializeToString, starting at tokens[strPreambleTokens+2]: the
// leading tokens have already been consumed by the sketch-level preamble
// parse in NewItemsSketchFromString.
func deserializeFromStringArray[C comparable](tokens []string, hasher common.ItemSketchHasher[C], serde common.ItemSketchSerde[C]) (*reversePurgeItemHashMap[C], error) {
	numActive, err := strconv.Atoi(tokens[_strPreambleTokens])
	if err != nil {
		return nil, errs.InvalidArgumentf("bad active-item count token %q: %v", tokens[_strPreambleTokens], err)
	}
	mapSize, err := strconv.Atoi(tokens[_strPreambleTokens+1])
	if err != nil {
		return nil, errs.InvalidArgumentf("bad map-size token %q: %v", tokens[_strPreambleTokens+1], err)
	}
	hm, err := newReversePurgeItemHashMap[C](mapSize, hasher, serde)
	if err != nil {
		return nil, err
	}
	pos := _strPreambleTokens + 2
	for i := 0; i < numActive; i++ {
		if pos+1 >= len(tokens) {
			return nil, errs.Truncatedf("string representation truncated before item %d of %d", i, numActive)
		}
		item, err := serde.ParseOneFromString(tokens[pos])
		if err != nil {
			return nil, err
		}
		value, err := strconv.ParseInt(tokens[pos+1], 10, 64)
		if err != nil {
			return nil, errs.InvalidArgumentf("bad weight token %q: %v", tokens[pos+1], err)
		}
		if err := hm.adjustOrPutValue(item, value); err != nil {
			return nil, err
		}
		pos += 2
	}
	return hm, nil
}

func (r *reversePurgeItemHashMap[C]) String() string {
	var sb strings.Builder
	sb.WriteString("ReversePurgeItemHashMap:\n")
	fmt.Fprintf(&sb, "  %12s:%11s%20s %s\n", "Index", "States", "Values", "Keys")
	for i := range r.keys {
		if r.states[i] <= 0 {
			continue
		}
		fmt.Fprintf(&sb, "  %12d:%11d%20d %v\n", i, r.states[i], r.values[i], r.keys[i])
	}
	return sb.String()
}

func (r *reversePurgeItemHashMap[C]) iterator() *iteratorItemHashMap[C] {
	return newIteratorItemHashMap(r.keys, r.values, r.states, r.numActive)
}

// iteratorItemHashMap walks active slots of a reversePurgeItemHashMap in a
// golden-ratio stride order rather than index order, so repeated iteration
// over a slowly-changing table doesn't keep visiting the same early slots
// first.
type iteratorItemHashMap[C comparable] struct {
	keys      []C
	values    []int64
	states    []int16
	numActive int
	stride    int
	mask      int
	i         int
	count     int
}

func newIteratorItemHashMap[C comparable](keys []C, values []int64, states []int16, numActive int) *iteratorItemHashMap[C] {
	stride := int(uint64(float64(len(keys))*internal.InverseGolden) | 1)
	return &iteratorItemHashMap[C]{
		keys:      keys,
		values:    values,
		states:    states,
		numActive: numActive,
		stride:    stride,
		mask:      len(keys) - 1,
		i:         -stride,
	}
}

func (it *iteratorItemHashMap[C]) next() bool {
	it.i = (it.i + it.stride) & it.mask
	for it.count < it.numActive {
		if it.states[it.i] > 0 {
			it.count++
			return true
		}
		it.i = (it.i + it.stride) & it.mask
	}
	return false
}

func (it *iteratorItemHashMap[C]) getKey() C      { return it.keys[it.i] }
func (it *iteratorItemHashMap[C]) getValue() int64 { return it.values[it.i] }
