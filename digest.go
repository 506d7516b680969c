package kvdrive

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/zeebo/xxh3"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// hashKey computes the 64-bit XXH3 hash of a key. This is the index key for
// the in-memory key index and the value stored in every entry's trailer.
func hashKey(key []byte) uint64 {
	return xxh3.Hash(key)
}

// hashKeyBatch hashes every key in a single pass, preserving order. Pulling
// the hash computation out of the write critical section keeps the writer
// lock held for as short as possible.
func hashKeyBatch(keys [][]byte) []uint64 {
	hashes := make([]uint64, len(keys))
	for i, key := range keys {
		hashes[i] = xxh3.Hash(key)
	}

	return hashes
}

// checksumPayload computes the 4-byte little-endian CRC32C checksum of a
// payload.
func checksumPayload(payload []byte) [4]byte {
	sum := crc32.Checksum(payload, crc32cTable)

	var out [4]byte
	binary.LittleEndian.PutUint32(out[:], sum)

	return out
}

// streamingChecksum incrementally accumulates a CRC32C checksum across
// chunks supplied by [Store.WriteStream].
type streamingChecksum struct {
	state uint32
}

func (s *streamingChecksum) update(chunk []byte) {
	s.state = crc32.Update(s.state, crc32cTable, chunk)
}

func (s *streamingChecksum) finish() [4]byte {
	var out [4]byte
	binary.LittleEndian.PutUint32(out[:], s.state)

	return out
}
