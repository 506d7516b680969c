package kvdrive

import (
	"runtime"
	"sync"
)

// Len returns the number of live, non-tombstoned keys. It walks the full
// entry chain, so its cost is proportional to the file's write history, not
// to the number of live keys alone; callers on a hot path should prefer the
// key index's own size via a cached count if this becomes a bottleneck.
func (s *Store) Len() int {
	region := s.currentRegion()
	defer region.release()

	return len(scanLiveEntries(region, s.tailOffset.Load()))
}

// IsEmpty reports whether the store has no live keys.
func (s *Store) IsEmpty() bool {
	if s.tailOffset.Load() == 0 {
		return true
	}

	region := s.currentRegion()
	defer region.release()

	positions := scanLiveEntries(region, s.tailOffset.Load())

	return len(positions) == 0
}

// FileSize returns the current on-disk size of the data file in bytes.
func (s *Store) FileSize() uint64 {
	return s.tailOffset.Load()
}

// Iter returns a push iterator over the store's live, non-tombstoned
// entries, most-recent-first and deduplicated by key hash. The snapshot it
// walks is the mapping current at the time Iter is called; writes that
// happen while the caller is still ranging over the result are not
// reflected in it.
func (s *Store) Iter() EntrySeq {
	region := s.currentRegion()
	tailOffset := s.tailOffset.Load()

	// The snapshot reference is dropped after the first full (or aborted)
	// pass; ranging over the same EntrySeq again must not release it twice.
	var releaseOnce sync.Once

	return func(yield func(*EntryHandle) bool) {
		defer releaseOnce.Do(region.release)

		for h := range iterEntries(region, tailOffset) {
			if !yield(h) {
				return
			}
		}
	}
}

// IterParallel behaves like Iter but constructs handles across a worker
// pool after a single sequential trailer walk. workers <= 0 falls back to
// Options.IterWorkers, then to one worker per available CPU. The returned
// slice has no defined order; callers that need most-recent-first ordering
// should use Iter instead.
func (s *Store) IterParallel(workers int) []*EntryHandle {
	if workers <= 0 {
		workers = s.opts.IterWorkers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	region := s.currentRegion()
	defer region.release()

	return iterEntriesParallel(region, s.tailOffset.Load(), workers)
}

// EstimateCompactionSavings estimates the number of bytes [Store.Compact]
// would reclaim: the current file size minus the space the live entries
// would occupy on their own, including their trailers but excluding
// re-derived pre-pad (compaction re-aligns entries from scratch, so actual
// savings may differ slightly once re-padded).
func (s *Store) EstimateCompactionSavings() uint64 {
	region := s.currentRegion()
	defer region.release()

	fileSize := s.tailOffset.Load()

	var liveSize uint64
	for _, pos := range scanLiveEntries(region, fileSize) {
		liveSize += (pos.end - pos.start) + MetadataSize
	}

	if liveSize >= fileSize {
		return 0
	}

	return fileSize - liveSize
}
