/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package frequencies is dedicated to streaming algorithms that estimate the
// frequency of occurrence of items in a weighted multiset stream. When the
// frequency distribution is sufficiently skewed, these algorithms identify
// the "heavy hitters" with well understood error bounds on the estimate of
// any single item's frequency.
package frequencies

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/streamsketch/core/common"
	"github.com/streamsketch/core/internal"
	"github.com/streamsketch/core/internal/errs"
)

// ItemsSketch is a Misra-Gries / space-saving heavy-hitter sketch over any
// comparable item type C, given an injected hasher and serde rather than a
// hand-specialised copy per item type.
type ItemsSketch[C comparable] struct {
	lgMaxMapSize int
	curMapCap    int
	offset       int64
	streamWeight int64
	sampleSize   int
	hashMap      *reversePurgeItemHashMap[C]
}

// NewItemsSketch constructs a sketch with the given maximum and starting
// internal map sizes (both log2 of a power of two).
func NewItemsSketch[C comparable](lgMaxMapSize, lgCurMapSize int, hasher common.ItemSketchHasher[C], serde common.ItemSketchSerde[C]) (*ItemsSketch[C], error) {
	lgMaxMapSz := max(lgMaxMapSize, _LG_MIN_MAP_SIZE)
	lgCurMapSz := max(lgCurMapSize, _LG_MIN_MAP_SIZE)
	hashMap, err := newReversePurgeItemHashMap[C](1<<lgCurMapSz, hasher, serde)
	if err != nil {
		return nil, err
	}
	maxMapCap := int(float64(uint64(1)<<lgMaxMapSz) * reversePurgeItemHashMapLoadFactor)
	return &ItemsSketch[C]{
		lgMaxMapSize: lgMaxMapSz,
		curMapCap:    hashMap.getCapacity(),
		sampleSize:   min(_SAMPLE_SIZE, maxMapCap),
		hashMap:      hashMap,
	}, nil
}

// NewItemsSketchWithMaxMapSize constructs a sketch with the given maxMapSize
// (a power of two) and the default starting map size.
func NewItemsSketchWithMaxMapSize[C comparable](maxMapSize int, hasher common.ItemSketchHasher[C], serde common.ItemSketchSerde[C]) (*ItemsSketch[C], error) {
	lg, err := internal.ExactLog2(maxMapSize)
	if err != nil {
		return nil, err
	}
	return NewItemsSketch[C](lg, _LG_MIN_MAP_SIZE, hasher, serde)
}

// NewItemsSketchFromSlice deserializes a sketch previously written by ToSlice.
func NewItemsSketchFromSlice[C comparable](slc []byte, hasher common.ItemSketchHasher[C], serde common.ItemSketchSerde[C]) (*ItemsSketch[C], error) {
	if serde == nil {
		return nil, errs.InvalidArgumentf("no serde provided")
	}
	pre0, err := checkPreambleSize(slc)
	if err != nil {
		return nil, err
	}
	maxPreLongs := internal.FamilyEnum.Frequency.MaxPreLongs

	preLongs := extractPreLongs(pre0)
	serVer := extractSerVer(pre0)
	familyID := extractFamilyID(pre0)
	lgMaxMapSize := extractLgMaxMapSize(pre0)
	lgCurMapSize := extractLgCurMapSize(pre0)
	empty := (extractFlags(pre0) & _EMPTY_FLAG_MASK) != 0

	preLongsEq1 := preLongs == 1
	preLongsEqMax := preLongs == maxPreLongs
	if !preLongsEq1 && !preLongsEqMax {
		return nil, errs.InvalidArgumentf("possible corruption: preLongs must be 1 or %d: %d", maxPreLongs, preLongs)
	}
	if serVer != _SER_VER {
		return nil, errs.InvalidArgumentf("possible corruption: ser ver must be %d: %d", _SER_VER, serVer)
	}
	if familyID != int(internal.FamilyEnum.Frequency.Id) {
		return nil, errs.InvalidArgumentf("possible corruption: familyID must be %d: %d", internal.FamilyEnum.Frequency.Id, familyID)
	}
	if empty && !preLongsEq1 {
		return nil, errs.InvalidArgumentf("possible corruption: empty flag inconsistent with preLongs")
	}
	if !empty && (lgCurMapSize < _LG_MIN_MAP_SIZE || lgCurMapSize > lgMaxMapSize) {
		return nil, errs.InvalidArgumentf("possible corruption: lgCurMapSize %d out of range [%d, %d]", lgCurMapSize, _LG_MIN_MAP_SIZE, lgMaxMapSize)
	}
	if empty {
		return NewItemsSketchWithMaxMapSize[C](1<<_LG_MIN_MAP_SIZE, hasher, serde)
	}

	preArr := make([]int64, preLongs)
	for j := 0; j < preLongs; j++ {
		if len(slc) < (j+1)<<3 {
			return nil, errs.Truncatedf("possible corruption: preamble truncated")
		}
		preArr[j] = int64(binary.LittleEndian.Uint64(slc[j<<3:]))
	}

	sk, err := NewItemsSketch[C](lgMaxMapSize, lgCurMapSize, hasher, serde)
	if err != nil {
		return nil, err
	}
	preBytes := preLongs << 3
	activeItems := extractActiveItems(preArr[1])

	countArray := make([]int64, activeItems)
	reqBytes := preBytes + activeItems*8
	if len(slc) < reqBytes {
		return nil, errs.Truncatedf("possible corruption: insufficient bytes in array: %d, %d", len(slc), reqBytes)
	}
	for j := 0; j < activeItems; j++ {
		countArray[j] = int64(binary.LittleEndian.Uint64(slc[preBytes+j<<3:]))
	}

	itemsOffset := preBytes + 8*activeItems
	itemArray, err := serde.DeserializeManyFromSlice(slc, itemsOffset, activeItems)
	if err != nil {
		return nil, errs.Truncatedf("possible corruption: item array: %v", err)
	}
	for j := 0; j < activeItems; j++ {
		if err := sk.UpdateMany(itemArray[j], countArray[j]); err != nil {
			return nil, err
		}
	}
	sk.streamWeight = preArr[2]
	sk.offset = preArr[3]
	return sk, nil
}

// GetEpsilon returns 3.5 / maxMapSize, the error bound used to compute a
// priori error for a sketch sized to maxMapSize before any data arrives.
func GetEpsilon(maxMapSize int) (float64, error) {
	if !internal.IsPowerOf2(maxMapSize) {
		return 0, errs.InvalidArgumentf("maxMapSize is not a power of 2: %d", maxMapSize)
	}
	return 3.5 / float64(maxMapSize), nil
}

// GetAprioriError estimates the maximum error of any item's frequency for a
// sketch of the given max map size after estimatedTotalStreamWeight updates.
func GetAprioriError(maxMapSize int, estimatedTotalStreamWeight int64) (float64, error) {
	eps, err := GetEpsilon(maxMapSize)
	if err != nil {
		return 0, err
	}
	return eps * float64(estimatedTotalStreamWeight), nil
}

func (s *ItemsSketch[C]) GetCurrentMapCapacity() int { return s.curMapCap }

// GetEstimate returns the estimated frequency of item: itemCount+offset if
// tracked, zero otherwise.
func (s *ItemsSketch[C]) GetEstimate(item C) (int64, error) {
	v, err := s.hashMap.get(item)
	if err != nil {
		return 0, err
	}
	if v > 0 {
		return v + s.offset, nil
	}
	return 0, nil
}

// GetLowerBound returns the guaranteed lower bound on item's true frequency.
func (s *ItemsSketch[C]) GetLowerBound(item C) (int64, error) {
	return s.hashMap.get(item)
}

// GetUpperBound returns the guaranteed upper bound on item's true frequency.
func (s *ItemsSketch[C]) GetUpperBound(item C) (int64, error) {
	v, err := s.hashMap.get(item)
	return v + s.offset, err
}

func (s *ItemsSketch[C]) frequencies(item C) (est, lower, upper int64, err error) {
	v, err := s.hashMap.get(item)
	lower = v
	upper = v + s.offset
	if v > 0 {
		est = v + s.offset
	}
	return
}

// GetFrequentItemsWithThreshold returns frequent items whose bound is
// strictly above threshold, or above GetMaximumError() if that is larger.
func (s *ItemsSketch[C]) GetFrequentItemsWithThreshold(threshold int64, et errorType) ([]*RowItem[C], error) {
	t := s.GetMaximumError()
	if threshold > t {
		t = threshold
	}
	return s.sortItems(t, et)
}

// GetFrequentItems is GetFrequentItemsWithThreshold at the default threshold
// GetMaximumError().
func (s *ItemsSketch[C]) GetFrequentItems(et errorType) ([]*RowItem[C], error) {
	return s.sortItems(s.GetMaximumError(), et)
}

func (s *ItemsSketch[C]) GetNumActiveItems() int { return s.hashMap.numActive }

// GetMaximumError returns the maximum distance between an item's upper and
// lower frequency bound, for any item.
func (s *ItemsSketch[C]) GetMaximumError() int64 { return s.offset }

func (s *ItemsSketch[C]) GetMaximumMapCapacity() int {
	return int(float64(uint64(1)<<s.lgMaxMapSize) * reversePurgeItemHashMapLoadFactor)
}

func (s *ItemsSketch[C]) GetStreamLength() int64 { return s.streamWeight }

func (s *ItemsSketch[C]) IsEmpty() bool { return s.GetNumActiveItems() == 0 }

// Update records a single occurrence of item.
func (s *ItemsSketch[C]) Update(item C) error {
	return s.UpdateMany(item, 1)
}

// UpdateMany records count occurrences of item. A count of zero is a no-op;
// a negative count is an error.
func (s *ItemsSketch[C]) UpdateMany(item C, count int64) error {
	if count == 0 {
		return nil
	}
	if count < 0 {
		return errs.InvalidArgumentf("count may not be negative: %d", count)
	}
	s.streamWeight += count
	if err := s.hashMap.adjustOrPutValue(item, count); err != nil {
		return err
	}
	if s.GetNumActiveItems() > s.curMapCap {
		if s.hashMap.lgLength < s.lgMaxMapSize {
			if err := s.hashMap.resize(2 * len(s.hashMap.keys)); err != nil {
				return err
			}
			s.curMapCap = s.hashMap.getCapacity()
		} else {
			s.offset += s.hashMap.purge(s.sampleSize)
			if s.GetNumActiveItems() > s.GetMaximumMapCapacity() {
				return errs.LogicErrorf("purge did not reduce active items below capacity")
			}
		}
	}
	return nil
}

// Merge folds other into s, in place, and returns s. Other may be of a
// different configured size; the merged sketch's error bound is the sum of
// the two inputs' offsets plus whatever the merge's own purges add.
func (s *ItemsSketch[C]) Merge(other *ItemsSketch[C]) (*ItemsSketch[C], error) {
	if other == nil || other.IsEmpty() {
		return s, nil
	}
	streamLen := s.streamWeight + other.streamWeight
	it := other.hashMap.iterator()
	for it.next() {
		if err := s.UpdateMany(it.getKey(), it.getValue()); err != nil {
			return nil, err
		}
	}
	s.offset += other.offset
	s.streamWeight = streamLen
	return s, nil
}

// Reset restores the sketch to its initial, empty state.
func (s *ItemsSketch[C]) Reset() error {
	hm, err := newReversePurgeItemHashMap[C](1<<_LG_MIN_MAP_SIZE, s.hashMap.hasher, s.hashMap.serde)
	if err != nil {
		return err
	}
	s.hashMap = hm
	s.curMapCap = hm.getCapacity()
	s.offset = 0
	s.streamWeight = 0
	return nil
}

// NewItemsSketchFromString parses the CSV-token form produced by ToString
// back into a sketch. It is a human-inspectable alternative to
// NewItemsSketchFromSlice, not a replacement for it.
func NewItemsSketchFromString[C comparable](str string, hasher common.ItemSketchHasher[C], serde common.ItemSketchSerde[C]) (*ItemsSketch[C], error) {
	if serde == nil {
		return nil, errs.InvalidArgumentf("no serde provided")
	}
	if len(str) < 1 {
		return nil, errs.InvalidArgumentf("string is empty")
	}
	if str[len(str)-1] == ',' {
		str = str[:len(str)-1]
	}
	tokens := strings.Split(str, ",")
	if len(tokens) < _strPreambleTokens+2 {
		return nil, errs.InvalidArgumentf("string not long enough: %d tokens", len(tokens))
	}
	serVer, err := strconv.Atoi(tokens[0])
	if err != nil {
		return nil, errs.InvalidArgumentf("bad serVer token %q: %v", tokens[0], err)
	}
	if serVer != _SER_VER {
		return nil, errs.InvalidArgumentf("possible corruption: ser ver must be %d: %d", _SER_VER, serVer)
	}
	famID, err := strconv.Atoi(tokens[1])
	if err != nil {
		return nil, errs.InvalidArgumentf("bad family id token %q: %v", tokens[1], err)
	}
	if famID != int(internal.FamilyEnum.Frequency.Id) {
		return nil, errs.InvalidArgumentf("possible corruption: family id must be %d: %d", internal.FamilyEnum.Frequency.Id, famID)
	}
	lgMax, err := strconv.Atoi(tokens[2])
	if err != nil {
		return nil, errs.InvalidArgumentf("bad lgMaxMapSize token %q: %v", tokens[2], err)
	}
	flags, err := strconv.Atoi(tokens[3])
	if err != nil {
		return nil, errs.InvalidArgumentf("bad flags token %q: %v", tokens[3], err)
	}
	streamWt, err := strconv.ParseInt(tokens[4], 10, 64)
	if err != nil {
		return nil, errs.InvalidArgumentf("bad streamWeight token %q: %v", tokens[4], err)
	}
	offset, err := strconv.ParseInt(tokens[5], 10, 64)
	if err != nil {
		return nil, errs.InvalidArgumentf("bad offset token %q: %v", tokens[5], err)
	}
	empty := flags&_EMPTY_FLAG_MASK != 0
	if empty {
		return NewItemsSketch[C](lgMax, _LG_MIN_MAP_SIZE, hasher, serde)
	}
	hm, err := deserializeFromStringArray[C](tokens, hasher, serde)
	if err != nil {
		return nil, err
	}
	maxMapCap := int(float64(uint64(1)<<lgMax) * reversePurgeItemHashMapLoadFactor)
	return &ItemsSketch[C]{
		lgMaxMapSize: lgMax,
		curMapCap:    hm.getCapacity(),
		offset:       offset,
		streamWeight: streamWt,
		sampleSize:   min(_SAMPLE_SIZE, maxMapCap),
		hashMap:      hm,
	}, nil
}

// ToString renders the sketch as the CSV-token form FromString parses back.
func (s *ItemsSketch[C]) ToString() string {
	var sb strings.Builder
	flags := int64(0)
	if s.hashMap.numActive == 0 {
		flags = _EMPTY_FLAG_MASK
	}
	fmt.Fprintf(&sb, "%d,%d,%d,%d,%d,%d,", _SER_VER, internal.FamilyEnum.Frequency.Id, s.lgMaxMapSize, flags, s.streamWeight, s.offset)
	sb.WriteString(s.hashMap.serializeToString())
	return sb.String()
}

// ToSlice serializes the sketch to the binary layout documented in the
// module's external interface: an 8-byte empty preamble, or a 4-word
// preamble followed by a count array and a serde-encoded item array.
func (s *ItemsSketch[C]) ToSlice() ([]byte, error) {
	if s.hashMap.serde == nil {
		return nil, errs.InvalidArgumentf("no serde provided")
	}
	empty := s.IsEmpty()
	activeItems := s.GetNumActiveItems()

	var itemBytes []byte
	preLongs := 1
	outBytes := 8
	if !empty {
		preLongs = internal.FamilyEnum.Frequency.MaxPreLongs
		itemBytes = s.hashMap.serde.SerializeManyToSlice(s.hashMap.getActiveKeys())
		outBytes = ((preLongs + activeItems) << 3) + len(itemBytes)
	}

	out := make([]byte, outBytes)
	pre0 := int64(0)
	pre0 = insertPreLongs(int64(preLongs), pre0)
	pre0 = insertSerVer(_SER_VER, pre0)
	pre0 = insertFamilyID(int64(internal.FamilyEnum.Frequency.Id), pre0)
	pre0 = insertLgMaxMapSize(int64(s.lgMaxMapSize), pre0)
	pre0 = insertLgCurMapSize(int64(s.hashMap.lgLength), pre0)
	if empty {
		pre0 = insertFlags(_EMPTY_FLAG_MASK, pre0)
		binary.LittleEndian.PutUint64(out, uint64(pre0))
		return out, nil
	}
	pre0 = insertFlags(0, pre0)

	preArr := make([]int64, preLongs)
	preArr[0] = pre0
	preArr[1] = insertActiveItems(int64(activeItems), 0)
	preArr[2] = s.streamWeight
	preArr[3] = s.offset
	for j := 0; j < preLongs; j++ {
		binary.LittleEndian.PutUint64(out[j<<3:], uint64(preArr[j]))
	}
	preBytes := preLongs << 3
	values := s.hashMap.getActiveValues()
	for j := 0; j < activeItems; j++ {
		binary.LittleEndian.PutUint64(out[preBytes+j<<3:], uint64(values[j]))
	}
	copy(out[preBytes+(activeItems<<3):], itemBytes)
	return out, nil
}

func (s *ItemsSketch[C]) String() string {
	var sb strings.Builder
	sb.WriteString("FrequentItemsSketch:\n")
	sb.WriteString("  Stream Length    : " + strconv.FormatInt(s.streamWeight, 10) + "\n")
	sb.WriteString("  Max Error Offset : " + strconv.FormatInt(s.offset, 10) + "\n")
	sb.WriteString(s.hashMap.String())
	return sb.String()
}

func (s *ItemsSketch[C]) sortItems(threshold int64, et errorType) ([]*RowItem[C], error) {
	rows := make([]*RowItem[C], 0)
	it := s.hashMap.iterator()
	for it.next() {
		est, lb, ub, err := s.frequencies(it.getKey())
		if err != nil {
			return nil, err
		}
		switch et {
		case ErrorTypeEnum.NoFalseNegatives:
			if ub > threshold {
				rows = append(rows, newRowItem[C](it.getKey(), est, ub, lb))
			}
		default: // NoFalsePositives
			if lb > threshold {
				rows = append(rows, newRowItem[C](it.getKey(), est, ub, lb))
			}
		}
	}
	slices.SortFunc(rows, func(a, b *RowItem[C]) int {
		switch {
		case a.est > b.est:
			return -1
		case a.est < b.est:
			return 1
		default:
			return 0
		}
	})
	return rows, nil
}
