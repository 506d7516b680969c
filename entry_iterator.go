package kvdrive

import "sync"

// EntrySeq matches the shape of Go 1.23's iter.Seq[*EntryHandle]: yield is
// called once per live entry, most-recent-first, until it returns false or
// there are no more entries. kvdrive declares its own type instead of
// importing the iter package; callers range over it directly or call it
// with their own yield function.
type EntrySeq func(yield func(*EntryHandle) bool)

// entryPos locates one live, non-tombstoned entry's payload bounds and
// decoded trailer, without yet constructing an EntryHandle for it.
type entryPos struct {
	start, end uint64
	trailer    entryMetadata
}

// scanLiveEntries walks the trailer chain backward from tailOffset,
// deduplicating by key hash and skipping tombstones, and returns the
// resulting positions in most-recent-first order. This is the sequential
// pass every iteration mode - plain, and the handle-construction stage of
// the parallel variant - builds on.
func scanLiveEntries(region *mmapRegion, tailOffset uint64) []entryPos {
	var out []entryPos

	seen := make(map[uint64]struct{})
	cursor := tailOffset

	for cursor >= MetadataSize {
		metadataOffset := cursor - MetadataSize
		if metadataOffset+MetadataSize > uint64(region.len()) {
			break
		}

		trailer := deserializeMetadata(region.data[metadataOffset : metadataOffset+MetadataSize])

		entryStart := trailer.prevOffset
		entryEnd := metadataOffset

		if entryStart >= entryEnd || entryEnd > uint64(region.len()) {
			break
		}

		cursor = trailer.prevOffset

		if _, dup := seen[trailer.keyHash]; dup {
			continue
		}
		seen[trailer.keyHash] = struct{}{}

		pad := prePadLen(entryStart)
		payloadStart := entryStart + pad
		if payloadStart > entryEnd {
			break
		}

		if isTombstonePayload(region.data[payloadStart:entryEnd]) {
			continue
		}

		out = append(out, entryPos{start: payloadStart, end: entryEnd, trailer: trailer})
	}

	return out
}

// iterEntries returns a push iterator over live entries, most-recent-first,
// deduplicated by key hash, with tombstoned keys omitted.
func iterEntries(region *mmapRegion, tailOffset uint64) EntrySeq {
	return func(yield func(*EntryHandle) bool) {
		for _, pos := range scanLiveEntries(region, tailOffset) {
			handle := newEntryHandle(region, int(pos.start), int(pos.end), pos.trailer)
			if !yield(handle) {
				return
			}
		}
	}
}

// iterEntriesParallel collects trailer offsets sequentially (so the walk
// itself stays race-free) and then constructs handles across a worker pool.
// The resulting slice has no defined order - callers that need a stable
// order should use iterEntries instead, per the data model's note that
// parallel iteration only guarantees the same *set* of entries.
func iterEntriesParallel(region *mmapRegion, tailOffset uint64, workers int) []*EntryHandle {
	positions := scanLiveEntries(region, tailOffset)
	if len(positions) == 0 {
		return nil
	}

	if workers < 1 {
		workers = 1
	}

	handles := make([]*EntryHandle, len(positions))

	var wg sync.WaitGroup
	jobs := make(chan int, len(positions))

	for range workers {
		wg.Go(func() {
			for i := range jobs {
				pos := positions[i]
				handles[i] = newEntryHandle(region, int(pos.start), int(pos.end), pos.trailer)
			}
		})
	}

	for i := range positions {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	return handles
}
