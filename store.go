package kvdrive

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
)

// Store is a handle to one open data file. It is safe for concurrent use by
// multiple goroutines: reads run concurrently, and writes (Write,
// WriteStream, BatchWrite, Delete, BatchDelete, Rename, Copy, Move,
// Compact) are serialized by an internal writer lock. A Store is
// process-local; no cross-process locking is attempted, matching the
// explicit "one process per data file" design choice.
type Store struct {
	path string
	opts Options

	file *os.File

	// writerMu serializes all mutating operations. lockPoisoned is set if a
	// panic escaped while writerMu was held; Go's sync.Mutex does not poison
	// itself the way a Rust Mutex does, so kvdrive tracks this explicitly.
	writerMu     sync.Mutex
	lockPoisoned atomic.Bool

	// mmapMu guards swapping the current mapping pointer on remap. It is
	// held only long enough to clone the pointer/swap it, never for the
	// duration of an I/O operation.
	mmapMu sync.RWMutex
	region *mmapRegion

	index *keyIndex

	tailOffset atomic.Uint64

	closed atomic.Bool
}

// currentRegion returns the store's current mapping, retained so it stays
// alive for as long as the caller holds the returned pointer (or any handle
// built from it).
func (s *Store) currentRegion() *mmapRegion {
	s.mmapMu.RLock()
	defer s.mmapMu.RUnlock()

	if s.region == nil { // closed
		return &mmapRegion{}
	}

	return s.region.retain()
}

// swapRegion installs newRegion as current and releases the store's own
// reference to the previous one. Any handles still referencing the old
// region keep it alive independently via their own retained reference.
func (s *Store) swapRegion(newRegion *mmapRegion) {
	s.mmapMu.Lock()
	old := s.region
	s.region = newRegion
	s.mmapMu.Unlock()

	old.release()
}

// withWriterLock runs fn under the writer lock, serializing it against all
// other mutating operations. If fn panics, the panic propagates to this
// call's caller, the store is marked poisoned, and every subsequent call
// fails with [ErrLockPoisoned] until the store is closed and reopened.
func (s *Store) withWriterLock(fn func() error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.lockPoisoned.Load() {
		return ErrLockPoisoned
	}

	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	poisoned := true
	defer func() {
		if poisoned {
			s.lockPoisoned.Store(true)
		}
	}()

	err := fn()
	poisoned = false

	return err
}

// Close releases the store's file handle and drops the store's own
// reference to its current mapping. Handles issued before Close keep their
// own mapping reachable via their retained reference and remain valid to
// read from after Close returns. Close is idempotent.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Wait for any in-flight write to finish before pulling the file handle
	// out from under it.
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	s.mmapMu.Lock()
	region := s.region
	s.region = nil
	s.mmapMu.Unlock()

	region.release()

	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", s.path, err)
	}

	return nil
}

// Path returns the data file path the store was opened against.
func (s *Store) Path() string {
	return s.path
}
