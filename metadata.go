package kvdrive

import "encoding/binary"

// entryMetadata is the fixed 20-byte trailer written after every entry's
// payload:
//
//	bytes  0..8  key_hash     (u64 LE)
//	bytes  8..16 prev_offset  (u64 LE)
//	bytes 16..20 checksum     (4 bytes, CRC32C of the payload)
type entryMetadata struct {
	keyHash    uint64
	prevOffset uint64
	checksum   [4]byte
}

// serialize encodes m into exactly MetadataSize bytes.
func (m entryMetadata) serialize() [MetadataSize]byte {
	var buf [MetadataSize]byte

	binary.LittleEndian.PutUint64(buf[keyHashOffset:keyHashEnd], m.keyHash)
	binary.LittleEndian.PutUint64(buf[prevOffsetOffset:prevOffsetEnd], m.prevOffset)
	copy(buf[checksumOffset:checksumEnd], m.checksum[:])

	return buf
}

// deserializeMetadata decodes a trailer from data, which must be at least
// MetadataSize bytes.
func deserializeMetadata(data []byte) entryMetadata {
	var m entryMetadata

	m.keyHash = binary.LittleEndian.Uint64(data[keyHashOffset:keyHashEnd])
	m.prevOffset = binary.LittleEndian.Uint64(data[prevOffsetOffset:prevOffsetEnd])
	copy(m.checksum[:], data[checksumOffset:checksumEnd])

	return m
}

// checksumUint32 returns the trailer's checksum as a native uint32.
func (m entryMetadata) checksumUint32() uint32 {
	return binary.LittleEndian.Uint32(m.checksum[:])
}

// prePadLen returns the number of zero bytes that must precede a payload
// starting logically at entryStart (the previous entry's end offset) so
// that the payload itself begins on a PayloadAlignment boundary.
func prePadLen(entryStart uint64) uint64 {
	return (PayloadAlignment - (entryStart % PayloadAlignment)) % PayloadAlignment
}

// isTombstonePayload reports whether payload is the single reserved
// tombstone byte.
func isTombstonePayload(payload []byte) bool {
	return len(payload) == 1 && payload[0] == TombstoneByte
}
