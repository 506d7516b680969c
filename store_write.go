package kvdrive

import (
	"errors"
	"fmt"
	"io"
)

// Write appends a single key/payload pair and returns the absolute file
// offset of its trailer. payload must be non-empty and must not equal the
// single reserved tombstone byte; use [Store.Delete] to remove a key.
func (s *Store) Write(key, payload []byte) (uint64, error) {
	offsets, err := s.BatchWrite([][]byte{key}, [][]byte{payload})
	if err != nil {
		return 0, err
	}

	return offsets[0], nil
}

// WriteWithKeyHash is like Write but takes an already-computed key hash
// instead of a key, skipping the hash computation. Callers are responsible
// for ensuring the hash was produced by the same hashing scheme kvdrive uses
// internally (see [NamespaceHasher] for the namespaced variant).
func (s *Store) WriteWithKeyHash(keyHash uint64, payload []byte) (uint64, error) {
	offsets, err := s.batchWrite([]uint64{keyHash}, [][]byte{payload}, false)
	if err != nil {
		return 0, err
	}

	return offsets[0], nil
}

// BatchWrite appends multiple key/payload pairs as a single append, sharing
// one remap and one index update. keys and payloads must be the same length.
// If the same key appears more than once, later entries chain to earlier
// ones within the same batch, exactly as if they had been written one at a
// time.
func (s *Store) BatchWrite(keys, payloads [][]byte) ([]uint64, error) {
	if len(keys) != len(payloads) {
		return nil, fmt.Errorf("%w: keys and payloads must have the same length", ErrInvalidInput)
	}

	return s.batchWrite(hashKeyBatch(keys), payloads, false)
}

// batchWrite is the shared append path for every write and delete operation.
// allowTombstone controls whether the single reserved tombstone byte is
// accepted as a payload: false for every public write method, true only for
// the internal delete path.
func (s *Store) batchWrite(hashes []uint64, payloads [][]byte, allowTombstone bool) ([]uint64, error) {
	if len(hashes) != len(payloads) {
		return nil, fmt.Errorf("%w: hashes and payloads must have the same length", ErrInvalidInput)
	}

	for _, p := range payloads {
		if len(p) == 0 {
			return nil, fmt.Errorf("%w: payload must not be empty", ErrInvalidInput)
		}
		if !allowTombstone && isTombstonePayload(p) {
			return nil, fmt.Errorf("%w: payload equals the reserved tombstone byte", ErrInvalidInput)
		}
	}

	var offsets []uint64

	err := s.withWriterLock(func() error {
		startOffset := s.tailOffset.Load()

		buf, newTail, updates := buildAppendBuffer(startOffset, hashes, payloads)

		if _, err := s.file.WriteAt(buf, int64(startOffset)); err != nil {
			return fmt.Errorf("appending to %s: %w", s.path, err)
		}

		if err := s.remapAfterAppend(newTail); err != nil {
			return err
		}

		offsets = make([]uint64, len(hashes))
		for i, h := range hashes {
			offsets[i] = updates[i]
			s.index.insert(h, updates[i])
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return offsets, nil
}

// buildAppendBuffer encodes a run of entries starting at startOffset into a
// single contiguous buffer. prev_offset is not a per-key pointer: it is the
// absolute offset at which this entry itself begins (where its own pre-pad
// starts), which for every entry but the file's first is simply the
// preceding entry's trailer-end offset. Resolving "what is the current value
// of key K" is entirely the key index's job, not this chain's - the chain
// exists for recovery and full-file iteration, not for per-key history.
func buildAppendBuffer(startOffset uint64, hashes []uint64, payloads [][]byte) ([]byte, uint64, []uint64) {
	total := uint64(0)
	cursor := startOffset
	for _, payload := range payloads {
		entrySize := prePadLen(cursor) + uint64(len(payload)) + MetadataSize
		total += entrySize
		cursor += entrySize
	}

	buf := make([]byte, total)
	trailerOffsets := make([]uint64, len(hashes))

	cursor = startOffset
	pos := 0

	for i, hash := range hashes {
		entryStart := cursor
		payload := payloads[i]

		pad := prePadLen(entryStart)
		pos += int(pad) // pre-pad bytes stay zero from make
		cursor += pad

		pos += simdCopy(buf[pos:pos+len(payload)], payload)
		cursor += uint64(len(payload))

		trailer := entryMetadata{
			keyHash:    hash,
			prevOffset: entryStart,
			checksum:   checksumPayload(payload),
		}
		serialized := trailer.serialize()
		copy(buf[pos:], serialized[:])
		pos += MetadataSize

		trailerOffsets[i] = cursor
		cursor += MetadataSize
	}

	return buf, cursor, trailerOffsets
}

// WriteStream appends a single entry whose payload is copied from r in
// chunks of Options.StreamChunkSize (default [WriteStreamChunk]), checksumming
// incrementally rather than buffering the whole payload in memory. It returns
// the trailer offset and the number of payload bytes copied.
func (s *Store) WriteStream(key []byte, r io.Reader) (uint64, int64, error) {
	hash := hashKey(key)

	var (
		offset  uint64
		written int64
	)

	err := s.withWriterLock(func() error {
		startOffset := s.tailOffset.Load()
		pad := prePadLen(startOffset)

		chunk := make([]byte, s.opts.streamChunkSize())
		var sum streamingChecksum

		payloadStart := startOffset + pad
		cursor := int64(payloadStart)

		var firstByte byte

		for {
			n, readErr := r.Read(chunk)
			if n > 0 {
				if _, err := s.file.WriteAt(chunk[:n], cursor); err != nil {
					return fmt.Errorf("streaming write to %s: %w", s.path, err)
				}
				if written == 0 {
					firstByte = chunk[0]
				}
				sum.update(chunk[:n])
				cursor += int64(n)
				written += int64(n)
			}
			if readErr != nil {
				if !errors.Is(readErr, io.EOF) {
					return fmt.Errorf("reading stream source: %w", readErr)
				}
				break
			}
		}

		if written == 0 {
			return fmt.Errorf("%w: stream produced no bytes", ErrInvalidInput)
		}
		// The reserved tombstone payload is as forbidden here as in Write;
		// the stray byte already written sits past the tail and is
		// overwritten by the next append or truncated at the next open.
		if written == 1 && firstByte == TombstoneByte {
			return fmt.Errorf("%w: stream payload equals the reserved tombstone byte", ErrInvalidInput)
		}

		if pad > 0 {
			padding := make([]byte, pad)
			if _, err := s.file.WriteAt(padding, int64(startOffset)); err != nil {
				return fmt.Errorf("writing stream pre-pad to %s: %w", s.path, err)
			}
		}

		trailer := entryMetadata{keyHash: hash, prevOffset: startOffset, checksum: sum.finish()}
		serialized := trailer.serialize()

		metadataOffset := uint64(cursor)
		if _, err := s.file.WriteAt(serialized[:], int64(metadataOffset)); err != nil {
			return fmt.Errorf("writing stream trailer to %s: %w", s.path, err)
		}

		newTail := metadataOffset + MetadataSize
		if err := s.remapAfterAppend(newTail); err != nil {
			return err
		}

		s.index.insert(hash, metadataOffset)
		offset = metadataOffset

		return nil
	})

	if err != nil {
		return 0, written, err
	}

	return offset, written, nil
}

// Delete marks key as logically deleted by appending a tombstone entry. A
// subsequent [Store.Read] for key returns [ErrNotFound]. The key's prior
// versions remain on disk until the next [Store.Compact].
func (s *Store) Delete(key []byte) (uint64, error) {
	offsets, err := s.batchWrite([]uint64{hashKey(key)}, [][]byte{{TombstoneByte}}, true)
	if err != nil {
		return 0, err
	}

	return offsets[0], nil
}

// BatchDelete tombstones multiple keys as a single append.
func (s *Store) BatchDelete(keys [][]byte) ([]uint64, error) {
	hashes := hashKeyBatch(keys)
	payloads := make([][]byte, len(hashes))
	for i := range payloads {
		payloads[i] = []byte{TombstoneByte}
	}

	return s.batchWrite(hashes, payloads, true)
}

// Rename moves the value stored under oldKey to newKey within this same
// store, returning the trailer offset of oldKey's tombstone. It returns
// [ErrNotFound] if oldKey has no live value. The two appends (the new
// entry, then oldKey's tombstone) are each individually serialized by the
// writer lock but are not jointly atomic: a crash between them may leave
// both keys present until the next Rename.
func (s *Store) Rename(oldKey, newKey []byte) (uint64, error) {
	payload, err := s.Read(oldKey)
	if err != nil {
		return 0, err
	}

	if _, err := s.Write(newKey, payload); err != nil {
		return 0, err
	}

	return s.Delete(oldKey)
}

// Copy reads key's current payload from this store and writes it into dst
// under the same key, leaving this store unchanged and returning the
// trailer offset of the new entry in dst. It returns [ErrNotFound] if key
// has no live value here.
func (s *Store) Copy(key []byte, dst *Store) (uint64, error) {
	payload, err := s.Read(key)
	if err != nil {
		return 0, err
	}

	return dst.Write(key, payload)
}

// Move is [Store.Copy] followed by a tombstone for key in this store. The
// returned offset is the new entry's trailer offset in dst.
func (s *Store) Move(key []byte, dst *Store) (uint64, error) {
	payload, err := s.Read(key)
	if err != nil {
		return 0, err
	}

	offset, err := dst.Write(key, payload)
	if err != nil {
		return 0, err
	}

	if _, err := s.Delete(key); err != nil {
		return 0, err
	}

	return offset, nil
}
