package kvdrive

import "sync"

// keyIndex maps key_hash to the absolute file offset of that key's trailer
// block for the most recently written version, including tombstones.
// Tombstones stay in the index rather than being removed, so a read against
// a deleted key resolves to "absent" in O(1) instead of falling through to
// an older, still-indexed version.
type keyIndex struct {
	mu sync.RWMutex
	m  map[uint64]uint64
}

func newKeyIndex() *keyIndex {
	return &keyIndex{m: make(map[uint64]uint64)}
}

// buildKeyIndex performs the single backward pass described in the data
// model: starting from tailOffset, it walks prev_offset chains, keeping only
// the first (i.e. most recent) occurrence of each key hash.
func buildKeyIndex(region *mmapRegion, tailOffset uint64) *keyIndex {
	idx := newKeyIndex()

	cursor := tailOffset
	for cursor >= MetadataSize {
		metadataOffset := cursor - MetadataSize
		trailer := deserializeMetadata(region.data[metadataOffset : metadataOffset+MetadataSize])

		if _, seen := idx.m[trailer.keyHash]; !seen {
			idx.m[trailer.keyHash] = metadataOffset
		}

		if trailer.prevOffset == 0 {
			break
		}

		cursor = trailer.prevOffset
	}

	return idx
}

// get returns the indexed trailer offset for hash, if any.
func (idx *keyIndex) get(hash uint64) (uint64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	offset, ok := idx.m[hash]
	return offset, ok
}

// insert records the trailer offset for hash, returning the previous offset
// if one existed.
func (idx *keyIndex) insert(hash, offset uint64) (uint64, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	prev, existed := idx.m[hash]
	idx.m[hash] = offset

	return prev, existed
}

// len returns the number of distinct key hashes tracked by the index,
// including tombstoned ones.
func (idx *keyIndex) len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.m)
}
