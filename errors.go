package kvdrive

import "errors"

// Sentinel errors returned by kvdrive operations.
//
// Callers should use [errors.Is] to classify errors:
//
//	if errors.Is(err, kvdrive.ErrCorrupt) {
//	    // the data file is inconsistent and could not be repaired in place
//	}
var (
	// ErrCorrupt indicates an inconsistency the store could not repair.
	// [Open] discards a torn tail by truncating to the deepest chain-valid
	// prefix and returns no error when that succeeds; it returns ErrCorrupt
	// only when truncating or syncing the file fails. Reads return it when
	// an indexed entry lies outside the mapping or has no payload.
	ErrCorrupt = errors.New("kvdrive: corrupt")

	// ErrNotFound indicates [OpenExisting] was called on a missing file, or
	// [Store.Rename] was called with an absent source key.
	ErrNotFound = errors.New("kvdrive: not found")

	// ErrInvalidInput indicates an empty payload, a reserved tombstone-byte
	// payload passed to a public write method, or an otherwise malformed
	// argument.
	ErrInvalidInput = errors.New("kvdrive: invalid input")

	// ErrClosed indicates the [Store] has already been closed.
	ErrClosed = errors.New("kvdrive: closed")

	// ErrLockPoisoned indicates a previous write panicked while holding the
	// writer lock. The store is no longer usable; callers must re-open it.
	ErrLockPoisoned = errors.New("kvdrive: lock poisoned")
)
