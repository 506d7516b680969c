package kvdrive

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// mmapRegion is a reference-counted memory mapping of the data file. It
// plays the role the original engine gives an Arc<Mmap>: the store swaps
// its own pointer to the "current" region on every successful write, while
// any [EntryHandle] issued against an older region keeps that region's
// refcount above zero until the handle itself is garbage collected.
type mmapRegion struct {
	data []byte
	refs atomic.Int32
}

// mapRegion memory-maps the first size bytes of fd read-only. size may be 0,
// in which case an empty, unmapped region is returned (mmap of a zero-length
// file is not portable). The caller owns the region's first reference and
// must release it exactly once - for the store itself that release happens
// when the region is swapped out or the store is closed.
func mapRegion(fd int, size int) (*mmapRegion, error) {
	if size == 0 {
		return &mmapRegion{data: nil}, nil
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	r := &mmapRegion{data: data}
	r.refs.Store(1)

	return r, nil
}

func (r *mmapRegion) retain() *mmapRegion {
	if r.data != nil {
		r.refs.Add(1)
	}

	return r
}

// release drops one reference, unmapping the region once the count reaches
// zero. release is idempotent-safe only if each retain is matched by exactly
// one release; callers must not call it more than once per retain.
func (r *mmapRegion) release() {
	if r.data == nil {
		return
	}

	if r.refs.Add(-1) == 0 {
		_ = unix.Munmap(r.data)
	}
}

// len returns the number of bytes covered by the region.
func (r *mmapRegion) len() int {
	return len(r.data)
}

// attachFinalizer arranges for release to run automatically when owner
// becomes unreachable, standing in for the destructor Go lacks. This is how
// an [EntryHandle] keeps its region alive for exactly as long as the handle
// itself is reachable, without requiring callers to call an explicit
// Close/Release method that the public API does not expose.
func (r *mmapRegion) attachFinalizer(owner *EntryHandle) {
	runtime.SetFinalizer(owner, func(h *EntryHandle) {
		h.region.release()
	})
}
