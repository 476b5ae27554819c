package hll

import "github.com/streamsketch/core/internal/errs"

// auxHashMap is the HLL_4 overflow table: registers whose true value is too
// far above curMin to fit in a nibble are stored here as (slot, absolute
// value) pairs, open-addressed and probed from slot with an odd stride taken
// from the slot's higher address bits (not a fixed step of one), the same way
// the coupon hash set probes on coupon address.
type auxHashMap struct {
	lgAuxArrInts int
	lgConfigK    int
	auxCount     int
	auxIntArr    []int // each entry packs (value << keyBits26) | slot, empty == 0
}

func newAuxHashMap(lgAuxArrInts, lgConfigK int) *auxHashMap {
	return &auxHashMap{
		lgAuxArrInts: lgAuxArrInts,
		lgConfigK:    lgConfigK,
		auxIntArr:    make([]int, 1<<lgAuxArrInts),
	}
}

func (m *auxHashMap) copy() *auxHashMap {
	cp := &auxHashMap{lgAuxArrInts: m.lgAuxArrInts, lgConfigK: m.lgConfigK, auxCount: m.auxCount}
	cp.auxIntArr = make([]int, len(m.auxIntArr))
	copy(cp.auxIntArr, m.auxIntArr)
	return cp
}

// findAddr probes for slot's entry. A non-negative return is the index
// of an existing entry for slot; a negative return is the one's complement
// of the first empty slot found for an insert.
func (m *auxHashMap) findAddr(slot int) (int, error) {
	arrMask := len(m.auxIntArr) - 1
	probe := slot & arrMask
	start := probe
	for {
		entry := m.auxIntArr[probe]
		if entry == empty {
			return ^probe, nil
		}
		if getPairLow26(entry) == slot {
			return probe, nil
		}
		stride := ((slot & keyMask26) >> m.lgAuxArrInts) | 1
		probe = (probe + stride) & arrMask
		if probe == start {
			return 0, errs.LogicErrorf("auxHashMap: probe exhausted table without finding an empty slot")
		}
	}
}

// mustGet returns the absolute register value stored for slot, or an error
// if no entry exists: callers only reach here after the dense array's nibble
// reports AUX_TOKEN.
func (m *auxHashMap) mustGet(slot int) (int, error) {
	idx, err := m.findAddr(slot)
	if err != nil {
		return 0, err
	}
	if idx < 0 {
		return 0, errs.LogicErrorf("auxHashMap: slot %d has AUX_TOKEN but no aux entry", slot)
	}
	return getPairValue(m.auxIntArr[idx]), nil
}

// mustAdd inserts a new (slot, value) pair, growing the table first if the
// load factor would exceed 3/4.
func (m *auxHashMap) mustAdd(slot, value int) error {
	if resizeDenom*(m.auxCount+1) > resizeNumer*len(m.auxIntArr) {
		if err := m.grow(); err != nil {
			return err
		}
	}
	idx, err := m.findAddr(slot)
	if err != nil {
		return err
	}
	if idx >= 0 {
		return errs.LogicErrorf("auxHashMap: slot %d already present", slot)
	}
	m.auxIntArr[^idx] = pair(slot, value)
	m.auxCount++
	return nil
}

// mustReplace overwrites the value stored for an existing slot.
func (m *auxHashMap) mustReplace(slot, value int) error {
	idx, err := m.findAddr(slot)
	if err != nil {
		return err
	}
	if idx < 0 {
		return errs.LogicErrorf("auxHashMap: slot %d has no existing entry to replace", slot)
	}
	m.auxIntArr[idx] = pair(slot, value)
	return nil
}

// mustRemove deletes slot's entry. Probe chains use an address-derived
// stride, not plain linear probing, so a chain may pass through the vacated
// index without occupying its neighbors; the only safe repair is to rehash
// every surviving entry into a cleared table.
func (m *auxHashMap) mustRemove(slot int) error {
	idx, err := m.findAddr(slot)
	if err != nil {
		return err
	}
	if idx < 0 {
		return errs.LogicErrorf("auxHashMap: slot %d has no existing entry to remove", slot)
	}
	m.auxIntArr[idx] = empty

	old := m.auxIntArr
	m.auxIntArr = make([]int, len(old))
	m.auxCount = 0
	for _, entry := range old {
		if entry == empty {
			continue
		}
		if err := m.mustAdd(getPairLow26(entry), getPairValue(entry)); err != nil {
			return err
		}
	}
	return nil
}

func (m *auxHashMap) grow() error {
	tgt := make([]int, len(m.auxIntArr)<<1)
	tgtLg := m.lgAuxArrInts + 1
	for _, entry := range m.auxIntArr {
		if entry == empty {
			continue
		}
		slot := getPairLow26(entry)
		arrMask := len(tgt) - 1
		probe := slot & arrMask
		start := probe
		placed := false
		for {
			if tgt[probe] == empty {
				tgt[probe] = entry
				placed = true
				break
			}
			stride := ((slot & keyMask26) >> tgtLg) | 1
			probe = (probe + stride) & arrMask
			if probe == start {
				break
			}
		}
		if !placed {
			return errs.LogicErrorf("auxHashMap: grow could not reinsert slot %d", slot)
		}
	}
	m.auxIntArr = tgt
	m.lgAuxArrInts = tgtLg
	return nil
}

func (m *auxHashMap) iterator() pairIterator {
	return newIntArrayPairIteratorSkipEmpty(m.auxIntArr, m.lgConfigK)
}
