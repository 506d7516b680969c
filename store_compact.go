package kvdrive

import (
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// Compact rewrites the data file to contain only the current, live,
// deduplicated entries, discarding superseded versions and tombstones. It
// writes into a sibling file, renames that sibling over the original path,
// and reopens the store in place. An error while building or promoting the
// sibling leaves the store in its pre-compaction state; an error while
// reopening comes after the compacted file has replaced the original and
// the store's old file handle has been closed, and is not rolled back.
//
// Storage size strictly decreases unless there was nothing to compact.
// Concurrent writers are blocked for the duration of Compact, since it runs
// under the writer lock; concurrent readers holding handles issued before
// Compact keep reading their own now-detached mapping until those handles
// are released.
func (s *Store) Compact() error {
	return s.withWriterLock(func() error {
		siblingPath := compactionSiblingPath(s.path)

		if err := s.writeCompactedSibling(siblingPath); err != nil {
			return err
		}

		if err := atomic.ReplaceFile(siblingPath, s.path); err != nil {
			_ = os.Remove(siblingPath)
			return fmt.Errorf("promoting compacted %s over %s: %w", siblingPath, s.path, err)
		}

		return s.reopenLocked()
	})
}

// writeCompactedSibling builds the sibling file at siblingPath containing
// only this store's current live entries, most-recent-first order rewritten
// into oldest-first append order so the sibling's own chain is valid from
// offset 0.
func (s *Store) writeCompactedSibling(siblingPath string) error {
	region := s.currentRegion()
	defer region.release()

	positions := scanLiveEntries(region, s.tailOffset.Load())

	if err := os.Remove(siblingPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing stale compaction sibling %s: %w", siblingPath, err)
	}

	sibling, err := Open(Options{Path: siblingPath})
	if err != nil {
		return fmt.Errorf("creating compaction sibling %s: %w", siblingPath, err)
	}
	defer sibling.Close()

	// scanLiveEntries yields most-recent-first; append oldest-first so each
	// key's sole surviving entry lands exactly once, in deterministic order.
	for i := len(positions) - 1; i >= 0; i-- {
		pos := positions[i]
		payload := region.data[pos.start:pos.end]

		if _, err := sibling.WriteWithKeyHash(pos.trailer.keyHash, payload); err != nil {
			return fmt.Errorf("writing %s into compaction sibling: %w", siblingPath, err)
		}
	}

	return nil
}

// reopenLocked re-opens the data file in place after Compact has renamed the
// sibling over it, replacing the store's file handle, mapping, and index.
// Must be called with the writer lock already held.
func (s *Store) reopenLocked() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing %s before reopen: %w", s.path, err)
	}

	file, err := os.OpenFile(s.path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("reopening %s after compaction: %w", s.path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat %s after compaction: %w", s.path, err)
	}

	region, err := mapRegion(int(file.Fd()), int(info.Size()))
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("mmap %s after compaction: %w", s.path, err)
	}

	s.file = file
	s.index = buildKeyIndex(region, uint64(info.Size()))
	s.swapRegion(region)
	s.tailOffset.Store(uint64(info.Size()))

	return nil
}
