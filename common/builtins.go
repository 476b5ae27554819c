package common

import (
	"encoding/binary"
	"fmt"

	"github.com/streamsketch/core/internal/errs"
)

// Int64Hasher hashes a signed 64-bit integer with a murmur-style finalizer
// mix: cheap, allocation-free, and well distributed across the low bits the
// hash map actually masks on.
type Int64Hasher struct{}

func (Int64Hasher) Hash(item int64) uint64 {
	h := uint64(item)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// Int64Serde is the built-in fixed-width 8-byte little-endian codec for
// int64 items.
type Int64Serde struct{}

func (Int64Serde) SerializeOneToSlice(item int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(item))
	return b
}

func (Int64Serde) SerializeManyToSlice(items []int64) []byte {
	b := make([]byte, 8*len(items))
	for i, v := range items {
		binary.LittleEndian.PutUint64(b[i*8:], uint64(v))
	}
	return b
}

func (Int64Serde) DeserializeManyFromSlice(slc []byte, offset int, numItems int) ([]int64, error) {
	need := offset + numItems*8
	if len(slc) < need {
		return nil, errs.Truncatedf("possible corruption: need %d bytes, have %d", need, len(slc))
	}
	out := make([]int64, numItems)
	for i := 0; i < numItems; i++ {
		out[i] = int64(binary.LittleEndian.Uint64(slc[offset+i*8:]))
	}
	return out, nil
}

func (Int64Serde) String(item int64) string {
	return fmt.Sprintf("%d", item)
}

func (Int64Serde) ParseOneFromString(s string) (int64, error) {
	var v int64
	_, err := fmt.Sscanf(s, "%d", &v)
	if err != nil {
		return 0, errs.InvalidArgumentf("not a valid int64 token: %q", s)
	}
	return v, nil
}

// StringHasher hashes a string with the FNV-1a mix, a simple, dependency-free
// string avalanche used wherever an item type has no natural 64-bit key.
type StringHasher struct{}

func (StringHasher) Hash(item string) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	h := uint64(offset)
	for i := 0; i < len(item); i++ {
		h ^= uint64(item[i])
		h *= prime
	}
	return h
}

// StringSerde is the built-in 32-bit length-prefixed UTF-8 codec for string
// items.
type StringSerde struct{}

func (StringSerde) SerializeOneToSlice(item string) []byte {
	b := make([]byte, 4+len(item))
	binary.LittleEndian.PutUint32(b, uint32(len(item)))
	copy(b[4:], item)
	return b
}

func (StringSerde) SerializeManyToSlice(items []string) []byte {
	out := make([]byte, 0)
	for _, s := range items {
		out = append(out, StringSerde{}.SerializeOneToSlice(s)...)
	}
	return out
}

func (StringSerde) DeserializeManyFromSlice(slc []byte, offset int, numItems int) ([]string, error) {
	out := make([]string, numItems)
	pos := offset
	for i := 0; i < numItems; i++ {
		if len(slc) < pos+4 {
			return nil, errs.Truncatedf("possible corruption: truncated length prefix at %d", pos)
		}
		n := int(binary.LittleEndian.Uint32(slc[pos:]))
		pos += 4
		if len(slc) < pos+n {
			return nil, errs.Truncatedf("possible corruption: truncated string payload at %d", pos)
		}
		out[i] = string(slc[pos : pos+n])
		pos += n
	}
	return out, nil
}

func (StringSerde) String(item string) string {
	return item
}

// ParseOneFromString is the inverse of String; string items round-trip
// through the CSV-token form verbatim, so commas embedded in an item would
// break its tokenization.
func (StringSerde) ParseOneFromString(s string) (string, error) {
	return s, nil
}
