package kvdrive

import (
	"unsafe"
)

// Metadata is the decoded trailer of an entry: its key hash, the absolute
// file offset at which this entry begins (the end of the previous entry's
// trailer in write order, whatever its key; 0 for the file's first entry),
// and the payload's CRC32C checksum.
type Metadata struct {
	KeyHash    uint64
	PrevOffset uint64
	Checksum   uint32
}

func metadataFromEntry(m entryMetadata) Metadata {
	return Metadata{
		KeyHash:    m.keyHash,
		PrevOffset: m.prevOffset,
		Checksum:   m.checksumUint32(),
	}
}

// EntryHandle is a zero-copy, reference-counted view of one entry's payload
// inside a memory-mapped data file.
//
// As long as any EntryHandle referencing a given mapping is reachable, that
// mapping stays mapped even if the store has since remapped to a larger
// file after a later write - see mmap_region.go. EntryHandle carries no
// exported fields and has no exported constructor; obtain one via
// [Store.ReadHandle] and friends.
type EntryHandle struct {
	region   *mmapRegion
	start    int
	end      int
	metadata entryMetadata
}

// newEntryHandle builds a handle over region[start:end], retaining the
// region for as long as the handle (or a clone of it) is reachable.
func newEntryHandle(region *mmapRegion, start, end int, metadata entryMetadata) *EntryHandle {
	h := &EntryHandle{
		region:   region.retain(),
		start:    start,
		end:      end,
		metadata: metadata,
	}
	region.attachFinalizer(h)

	return h
}

// AsBytes returns a zero-copy view of the entry's payload. The returned
// slice must not be retained past the EntryHandle's own lifetime.
func (h *EntryHandle) AsBytes() []byte {
	return h.region.data[h.start:h.end]
}

// Clone returns a new handle over the same bytes, incrementing the
// underlying mapping's reference count rather than copying any payload
// bytes.
func (h *EntryHandle) Clone() *EntryHandle {
	return newEntryHandle(h.region, h.start, h.end, h.metadata)
}

// Metadata returns the entry's decoded trailer.
func (h *EntryHandle) Metadata() Metadata {
	return metadataFromEntry(h.metadata)
}

// Size returns the payload length in bytes.
func (h *EntryHandle) Size() int {
	return h.end - h.start
}

// SizeWithMetadata returns the payload length plus the trailer size.
func (h *EntryHandle) SizeWithMetadata() int {
	return h.Size() + MetadataSize
}

// KeyHash returns the entry's key hash.
func (h *EntryHandle) KeyHash() uint64 {
	return h.metadata.keyHash
}

// Checksum returns the entry's stored CRC32C checksum.
func (h *EntryHandle) Checksum() uint32 {
	return h.metadata.checksumUint32()
}

// RawChecksum returns the entry's stored checksum as its 4 little-endian
// wire bytes.
func (h *EntryHandle) RawChecksum() [4]byte {
	return h.metadata.checksum
}

// IsValidChecksum recomputes the CRC32C of the payload and compares it
// against the stored checksum.
func (h *EntryHandle) IsValidChecksum() bool {
	return checksumPayload(h.AsBytes()) == h.metadata.checksum
}

// StartOffset returns the payload's absolute start offset within the data
// file.
func (h *EntryHandle) StartOffset() int {
	return h.start
}

// EndOffset returns the payload's absolute end offset within the data file.
func (h *EntryHandle) EndOffset() int {
	return h.end
}

// OffsetRange returns [StartOffset, EndOffset).
func (h *EntryHandle) OffsetRange() (start, end int) {
	return h.start, h.end
}

// AddressRange returns the in-process virtual address range the payload
// occupies. Valid only for the lifetime of this handle: once every handle
// referencing the underlying mapping is gone, the mapping may be unmapped
// and these addresses become dangling.
func (h *EntryHandle) AddressRange() (start, end unsafe.Pointer) {
	b := h.AsBytes()
	if len(b) == 0 {
		p := unsafe.Pointer(&b)
		return p, p
	}

	startPtr := unsafe.Pointer(&b[0])
	endPtr := unsafe.Add(startPtr, len(b))

	return startPtr, endPtr
}

// Uint32s reinterprets the payload as a slice of little-endian uint32
// values without copying, provided the payload's length is a multiple of 4
// and its address is 4-byte aligned - which Invariant 3's 64-byte payload
// alignment always guarantees. If either condition fails it falls back to
// an allocated copy, decoded value by value.
func (h *EntryHandle) Uint32s() []uint32 {
	b := h.AsBytes()
	const width = 4

	if len(b)%width == 0 && len(b) > 0 && uintptr(unsafe.Pointer(&b[0]))%width == 0 {
		return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/width)
	}

	out := make([]uint32, len(b)/width)
	for i := range out {
		out[i] = uint32(b[i*width]) | uint32(b[i*width+1])<<8 | uint32(b[i*width+2])<<16 | uint32(b[i*width+3])<<24
	}

	return out
}

// Uint64s reinterprets the payload as a slice of little-endian uint64
// values without copying, provided the payload's length is a multiple of 8
// and its address is 8-byte aligned. See Uint32s.
func (h *EntryHandle) Uint64s() []uint64 {
	b := h.AsBytes()
	const width = 8

	if len(b)%width == 0 && len(b) > 0 && uintptr(unsafe.Pointer(&b[0]))%width == 0 {
		return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/width)
	}

	out := make([]uint64, len(b)/width)
	for i := range out {
		var v uint64
		for j := 0; j < width; j++ {
			v |= uint64(b[i*width+j]) << (8 * j)
		}
		out[i] = v
	}

	return out
}
