// Package kvdrive provides an embedded, single-file, append-only key/value
// storage engine optimized for zero-copy reads via memory mapping and
// SIMD-friendly payload alignment.
//
// kvdrive is not a database server. It is a library embedded directly into a
// single process, backed by one append-only file on disk. Writers append new
// versions of a key; readers see the most recent version through a
// memory-mapped, zero-copy [EntryHandle]. There is no support for multiple
// writer processes against the same file - exactly one process should own a
// given data file at a time.
//
// # Basic usage
//
//	store, err := kvdrive.Open(kvdrive.Options{Path: "/tmp/my.kvdrive"})
//	if err != nil {
//	    // handle error
//	}
//	defer store.Close()
//
//	_, err = store.Write([]byte("k"), []byte("v1"))
//	value, err := store.Read([]byte("k"))
//	if err == nil {
//	    fmt.Println(string(value))
//	}
//
// # Concurrency
//
// kvdrive uses a multi-reader, single-writer model, scoped to one process:
//   - Read operations on [Store] are safe for concurrent use by multiple
//     goroutines.
//   - Write operations (Write, WriteStream, BatchWrite, Delete, BatchDelete,
//     Rename, Compact) are serialized internally; callers need no external
//     locking, but only one such call makes progress at a time.
//
// # Error handling
//
// Errors fall into two categories, mirroring the sentinel errors in this
// package:
//
// Rebuild-class errors ([ErrCorrupt]): the data file is inconsistent in a
// way the store could not repair. A torn tail found at open time is
// discarded silently (Open succeeds and data written after the torn point
// is gone); ErrCorrupt is returned only when that truncation itself fails,
// or when a read finds an indexed entry that does not fit the mapping.
//
// Operational errors ([ErrInvalidInput], [ErrNotFound], [ErrClosed]): the
// caller should fix the input or retry against a different key.
package kvdrive
