package frequencies

import "github.com/streamsketch/core/internal/errs"

// Bit layout of the first 8-byte preamble word (little-endian byte order):
//
//	byte 0: preamble length in longs
//	byte 1: serialization version
//	byte 2: family id
//	byte 3: lg(maxMapSize)
//	byte 4: lg(curMapSize)
//	byte 5: flags (bit 0 = empty)
//	bytes 6-7: unused
//
// The second preamble word packs the active item count in its low 32 bits;
// words 3 and 4 carry the raw int64 streamWeight and offset.

func insertPreLongs(preLongs, pre0 int64) int64 {
	return (pre0 &^ 0xff) | (preLongs & 0xff)
}

func extractPreLongs(pre0 int64) int {
	return int(pre0 & 0xff)
}

func insertSerVer(serVer, pre0 int64) int64 {
	return (pre0 &^ (0xff << 8)) | ((serVer & 0xff) << 8)
}

func extractSerVer(pre0 int64) int {
	return int((pre0 >> 8) & 0xff)
}

func insertFamilyID(famID, pre0 int64) int64 {
	return (pre0 &^ (0xff << 16)) | ((famID & 0xff) << 16)
}

func extractFamilyID(pre0 int64) int {
	return int((pre0 >> 16) & 0xff)
}

func insertLgMaxMapSize(lg, pre0 int64) int64 {
	return (pre0 &^ (0xff << 24)) | ((lg & 0xff) << 24)
}

func extractLgMaxMapSize(pre0 int64) int {
	return int((pre0 >> 24) & 0xff)
}

func insertLgCurMapSize(lg, pre0 int64) int64 {
	return (pre0 &^ (0xff << 32)) | ((lg & 0xff) << 32)
}

func extractLgCurMapSize(pre0 int64) int {
	return int((pre0 >> 32) & 0xff)
}

func insertFlags(flags, pre0 int64) int64 {
	return (pre0 &^ (0xff << 40)) | ((flags & 0xff) << 40)
}

func extractFlags(pre0 int64) int {
	return int((pre0 >> 40) & 0xff)
}

func insertActiveItems(activeItems, word int64) int64 {
	return (word &^ 0xffffffff) | (activeItems & 0xffffffff)
}

func extractActiveItems(word int64) int {
	return int(word & 0xffffffff)
}

func checkPreambleSize(slc []byte) (int64, error) {
	if len(slc) < 8 {
		return 0, errs.Truncatedf("preamble requires at least 8 bytes: %d", len(slc))
	}
	var pre0 int64
	for i := 7; i >= 0; i-- {
		pre0 = (pre0 << 8) | int64(slc[i])
	}
	return pre0, nil
}
