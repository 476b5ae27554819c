package hll

import (
	"encoding/binary"

	"github.com/streamsketch/core/internal"
	"github.com/streamsketch/core/internal/errs"
)

// toHllSlice serializes any dense array representation. The updatable form
// always carries the full register array plus (for HLL_4) the complete aux
// hash table; the compact form packs only the live aux entries.
func toHllSlice(a hllArray, compact bool) ([]byte, error) {
	registerBytes := len(hllRegisterBytes(a))
	auxBytes := 0
	var auxEntries []int
	if a.GetTgtHllType() == TgtHllTypeHll4 {
		aux := a.getAuxHashMap()
		if aux != nil {
			if compact {
				it := aux.iterator()
				for it.Next() {
					auxEntries = append(auxEntries, it.Pair())
				}
				auxBytes = 4 * len(auxEntries)
			} else {
				auxBytes = 4 * len(aux.auxIntArr)
			}
		}
	}

	out := make([]byte, hllByteArrStart+registerBytes+auxBytes)
	insertPreInts(out, hllPreInts)
	insertSerVer(out, serVer)
	insertFamilyIDHll(out)
	insertLgK(out, a.GetLgConfigK())
	lgArr := 0
	if a.GetTgtHllType() == TgtHllTypeHll4 && !compact {
		if aux := a.getAuxHashMap(); aux != nil {
			lgArr = aux.lgAuxArrInts
		}
	}
	insertLgArr(out, lgArr)
	insertModeAndType(out, curModeHll, a.GetTgtHllType())
	insertFlags(out, a.IsEmpty(), compact, a.isOutOfOrder())
	insertCurMin(out, a.getCurMin())
	insertHipAccum(out, a.getHipAccum())
	insertKxQ0(out, a.getKxQ0())
	insertKxQ1(out, a.getKxQ1())
	insertNumAtCurMin(out, a.getNumAtCurMin())
	insertRebuildCurMinNumKxQFlag(out, false)

	registerSrc := hllRegisterBytes(a)
	copy(out[hllByteArrStart:hllByteArrStart+registerBytes], registerSrc)

	if a.GetTgtHllType() == TgtHllTypeHll4 {
		aux := a.getAuxHashMap()
		n := 0
		if aux != nil {
			n = aux.auxCount
		}
		insertAuxCount(out, n)
		start := hllByteArrStart + registerBytes
		if compact {
			for i, entry := range auxEntries {
				binary.LittleEndian.PutUint32(out[start+4*i:], uint32(entry))
			}
		} else if aux != nil {
			for i, entry := range aux.auxIntArr {
				binary.LittleEndian.PutUint32(out[start+4*i:], uint32(entry))
			}
		}
	}
	return out, nil
}

func hllRegisterBytes(a hllArray) []byte {
	switch v := a.(type) {
	case *hll4Array:
		return v.hllByteArr
	case *hll6Array:
		return v.hllByteArr
	case *hll8Array:
		return v.hllByteArr
	}
	return nil
}

func (a *hll4Array) ToCompactSlice() ([]byte, error)   { return toHllSlice(a, true) }
func (a *hll4Array) ToUpdatableSlice() ([]byte, error) { return toHllSlice(a, false) }
func (a *hll6Array) ToCompactSlice() ([]byte, error)   { return toHllSlice(a, true) }
func (a *hll6Array) ToUpdatableSlice() ([]byte, error) { return toHllSlice(a, false) }
func (a *hll8Array) ToCompactSlice() ([]byte, error)   { return toHllSlice(a, true) }
func (a *hll8Array) ToUpdatableSlice() ([]byte, error) { return toHllSlice(a, false) }

// checkHllImageLen rejects an image too short to hold the HLL preamble plus
// the full register array of the representation being reconstructed.
func checkHllImageLen(b []byte, registerBytes int) error {
	if len(b) < hllByteArrStart+registerBytes {
		return errs.Truncatedf("possible corruption: HLL image requires %d bytes, have %d", hllByteArrStart+registerBytes, len(b))
	}
	return nil
}

func deserializeHll8(b []byte) (hllArray, error) {
	lgConfigK := extractLgK(b)
	a := newHll8Array(lgConfigK)
	if err := checkHllImageLen(b, len(a.hllByteArr)); err != nil {
		return nil, err
	}
	a.extractCommonHll(b)
	return a, nil
}

func deserializeHll6(b []byte) (hllArray, error) {
	lgConfigK := extractLgK(b)
	a := newHll6Array(lgConfigK)
	if err := checkHllImageLen(b, len(a.hllByteArr)); err != nil {
		return nil, err
	}
	a.extractCommonHll(b)
	return a, nil
}

func deserializeHll4(b []byte) (hllArray, error) {
	lgConfigK := extractLgK(b)
	a := newHll4Array(lgConfigK)
	if err := checkHllImageLen(b, len(a.hllByteArr)); err != nil {
		return nil, err
	}
	a.extractCommonHll(b)

	compact := extractCompactFlag(b)
	auxCount := extractAuxCount(b)
	registerBytes := len(a.hllByteArr)
	auxStart := hllByteArrStart + registerBytes
	a.auxStart = auxStart

	if auxCount == 0 {
		return a, nil
	}

	if compact {
		a.auxHashMap = a.getNewAuxHashMap()
		for i := 0; i < auxCount; i++ {
			off := auxStart + 4*i
			if off+4 > len(b) {
				return nil, errs.Truncatedf("possible corruption: truncated HLL_4 aux table")
			}
			entry := int(binary.LittleEndian.Uint32(b[off:]))
			if err := a.auxHashMap.mustAdd(getPairLow26(entry), getPairValue(entry)); err != nil {
				return nil, err
			}
		}
	} else {
		lgAux := extractLgArr(b)
		if lgAux < lgAuxArrInts[lgConfigK] {
			lgAux = computeLgArrInts(curModeHll, auxCount, lgConfigK)
		}
		n := 1 << lgAux
		if len(b) < auxStart+4*n {
			return nil, errs.Truncatedf("possible corruption: truncated HLL_4 aux table")
		}
		a.auxHashMap = newAuxHashMap(lgAux, lgConfigK)
		for i := 0; i < n; i++ {
			off := auxStart + 4*i
			entry := int(binary.LittleEndian.Uint32(b[off:]))
			a.auxHashMap.auxIntArr[i] = entry
			if entry != empty {
				a.auxHashMap.auxCount++
			}
		}
	}
	return a, nil
}

// checkPreamble validates the shared preamble fields common to every
// representation and reports the sketch's current mode.
func checkPreamble(b []byte) (curMode, error) {
	if len(b) < 8 {
		return 0, errs.Truncatedf("possible corruption: input too small to hold a preamble: %d bytes", len(b))
	}
	if extractFamilyID(b) != familyIDHll {
		return 0, errs.InvalidArgumentf("possible corruption: invalid family id: %d", extractFamilyID(b))
	}
	if extractSerVer(b) != serVer {
		return 0, errs.InvalidArgumentf("possible corruption: invalid serialization version: %d", extractSerVer(b))
	}
	mode := extractCurMode(b)
	preInts := extractPreInts(b)
	var want int
	switch mode {
	case curModeList:
		want = listPreInts
	case curModeSet:
		want = hashSetPreInts
	case curModeHll:
		want = hllPreInts
	default:
		return 0, errs.InvalidArgumentf("possible corruption: unknown curMode: %d", mode)
	}
	if preInts != want {
		return 0, errs.InvalidArgumentf("possible corruption: preInts %d inconsistent with mode %d", preInts, mode)
	}
	return mode, nil
}

// checkRebuildCurMinNumKxQ repairs an HLL_8 sketch deserialized from an
// image carrying the rebuild-needed flag, by fully recomputing curMin,
// numAtCurMin, kxq0, and kxq1 from the live registers.
func checkRebuildCurMinNumKxQ(h HllSketch) error {
	st, ok := h.(*hllSketchState)
	if !ok {
		return nil
	}
	a, ok := st.sketch.(hllArray)
	if !ok {
		return nil
	}
	if !a.isRebuildCurMinNumKxQFlag() {
		return nil
	}
	numSlots := 1 << a.GetLgConfigK()
	newMin := 64
	numAtMin := 0
	kxq0 := 0.0
	kxq1 := 0.0
	for slot := 0; slot < numSlots; slot++ {
		v := a.getSlotValue(slot)
		if v < newMin {
			newMin = v
			numAtMin = 0
		}
		if v == newMin {
			numAtMin++
		}
	}
	for slot := 0; slot < numSlots; slot++ {
		v := a.getSlotValue(slot)
		inv, err := internal.InvPow2(v)
		if err != nil {
			return err
		}
		if v < 32 {
			kxq0 += inv
		} else {
			kxq1 += inv
		}
	}
	a.putCurMin(newMin)
	a.putNumAtCurMin(numAtMin)
	a.putKxQ0(kxq0)
	a.putKxQ1(kxq1)
	a.putRebuildCurMinNumKxQFlag(false)
	return nil
}
