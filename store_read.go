package kvdrive

import (
	"bytes"
	"errors"
	"fmt"
)

// Read returns the current payload for key, or [ErrNotFound] if the key has
// never been written or was last written as a deletion. The returned slice
// is a freshly allocated copy the caller may hold indefinitely; use
// [Store.ReadHandle] for zero-copy access.
func (s *Store) Read(key []byte) ([]byte, error) {
	handle, err := s.ReadHandle(key)
	if err != nil {
		return nil, err
	}

	return bytes.Clone(handle.AsBytes()), nil
}

// ReadHandle is like Read but returns a zero-copy [EntryHandle] instead of a
// freshly allocated byte slice.
func (s *Store) ReadHandle(key []byte) (*EntryHandle, error) {
	return s.readHashedKey(hashKey(key))
}

// readHashedKey resolves a key hash to its current live entry via the key
// index, which always points at the entry's own trailer - payload bounds
// are then recovered from that single trailer, since prev_offset doubles as
// this entry's own start offset.
func (s *Store) readHashedKey(hash uint64) (*EntryHandle, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	metadataOffset, ok := s.index.get(hash)
	if !ok {
		return nil, fmt.Errorf("key hash %d: %w", hash, ErrNotFound)
	}

	region := s.currentRegion()
	defer region.release()

	if metadataOffset+MetadataSize > uint64(region.len()) {
		return nil, fmt.Errorf("%w: indexed offset %d outside mapped region", ErrCorrupt, metadataOffset)
	}

	trailer := deserializeMetadata(region.data[metadataOffset : metadataOffset+MetadataSize])

	payloadStart, payloadEnd := entryPayloadRange(trailer, metadataOffset)
	if payloadStart >= payloadEnd {
		return nil, fmt.Errorf("%w: entry at offset %d has no payload", ErrCorrupt, metadataOffset)
	}

	if isTombstonePayload(region.data[payloadStart:payloadEnd]) {
		return nil, fmt.Errorf("key hash %d: %w", hash, ErrNotFound)
	}

	return newEntryHandle(region, int(payloadStart), int(payloadEnd), trailer), nil
}

// entryPayloadRange derives an entry's payload bounds from its own trailer:
// prev_offset is this entry's start offset (including pre-pad), and
// metadataOffset is the exclusive end of its payload.
func entryPayloadRange(trailer entryMetadata, metadataOffset uint64) (start, end uint64) {
	entryStart := trailer.prevOffset
	pad := prePadLen(entryStart)

	return entryStart + pad, metadataOffset
}

// Exists reports whether key currently has a live (non-deleted) value. It
// looks the key up through [Store.ReadHandle] and discards the handle.
func (s *Store) Exists(key []byte) (bool, error) {
	_, err := s.ReadHandle(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	return false, err
}

// ReadMetadata returns the trailer for key's live value without reading its
// payload bytes.
func (s *Store) ReadMetadata(key []byte) (Metadata, error) {
	handle, err := s.ReadHandle(key)
	if err != nil {
		return Metadata{}, err
	}

	return handle.Metadata(), nil
}

// BatchRead resolves multiple keys in one call. The result slice has the
// same length as keys; entries for keys with no live value are nil, and
// present entries are freshly allocated copies as with [Store.Read].
func (s *Store) BatchRead(keys [][]byte) ([][]byte, error) {
	return s.BatchReadHashedKeys(hashKeyBatch(keys), nil)
}

// BatchReadHashedKeys is like BatchRead but takes pre-computed key hashes,
// skipping hash computation for callers that already have them (e.g. from a
// [NamespaceHasher]). keysForVerification, if non-nil, must have the same
// length as hashes; each entry i is re-hashed and compared against
// hashes[i], and a mismatch - which can only happen if the caller passed an
// inconsistent (hash, key) pair, not from a genuine collision, since no
// original key bytes are stored on disk - reports that slot absent rather
// than returning a value for the wrong key.
func (s *Store) BatchReadHashedKeys(hashes []uint64, keysForVerification [][]byte) ([][]byte, error) {
	if keysForVerification != nil && len(keysForVerification) != len(hashes) {
		return nil, fmt.Errorf("%w: keysForVerification must match hashes length", ErrInvalidInput)
	}

	out := make([][]byte, len(hashes))

	for i, h := range hashes {
		if keysForVerification != nil && hashKey(keysForVerification[i]) != h {
			continue
		}

		handle, err := s.readHashedKey(h)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}

			return nil, err
		}

		out[i] = bytes.Clone(handle.AsBytes())
	}

	return out, nil
}

// ReadLastEntry returns the most recently appended entry in the file,
// regardless of whether it is a tombstone or whether a newer entry for a
// different key has since superseded it in the index - this is a
// diagnostic accessor onto raw write order, not part of the key/value read
// path.
func (s *Store) ReadLastEntry() (*EntryHandle, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	region := s.currentRegion()
	defer region.release()

	tail := s.tailOffset.Load()
	if tail < MetadataSize {
		return nil, fmt.Errorf("%w: store is empty", ErrNotFound)
	}

	metadataOffset := tail - MetadataSize
	trailer := deserializeMetadata(region.data[metadataOffset : metadataOffset+MetadataSize])

	payloadStart, payloadEnd := entryPayloadRange(trailer, metadataOffset)

	return newEntryHandle(region, int(payloadStart), int(payloadEnd), trailer), nil
}
