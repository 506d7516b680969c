package kvdrive

import "sync"

// WriteBuffer stages small writes in memory so many of them can be
// committed as a single batched append instead of one append per key.
// Buffered writes are invisible to [Store.Read] until flushed; if the same
// key is buffered more than once before a flush, only the newest payload
// survives.
//
// A WriteBuffer is safe for concurrent use. Go has no DashMap in the
// standard library, so the sharded concurrent map the original buffer used
// is replaced with a single mutex - write buffering is not the store's hot
// path, and BufWrite/BufWriteFlush calls are expected to be infrequent
// relative to Store.Write itself.
type WriteBuffer struct {
	mu         sync.Mutex
	pending    map[uint64][]byte
	bytesInMem int
	softLimit  int
}

// NewWriteBuffer returns an empty WriteBuffer that reports "should flush"
// once its buffered byte count reaches softLimit.
func NewWriteBuffer(softLimit int) *WriteBuffer {
	return &WriteBuffer{
		pending:   make(map[uint64][]byte),
		softLimit: softLimit,
	}
}

// BufWrite stages payload under keyHash, replacing any payload already
// staged for that hash. It returns true once the buffer's total staged
// byte count has reached the configured soft limit, signaling that the
// caller should call BufWriteFlush soon.
func (b *WriteBuffer) BufWrite(keyHash uint64, payload []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.pending[keyHash]; ok {
		b.bytesInMem -= len(old)
	}

	b.pending[keyHash] = payload
	b.bytesInMem += len(payload)

	return b.bytesInMem >= b.softLimit
}

// BufWriteFlush commits every staged payload into store as a single batched
// append and resets the buffer. It returns the number of keys flushed. On
// error the staged payloads stay buffered, so the caller can retry the flush
// after addressing the failure; the buffer is only cleared on success.
func (b *WriteBuffer) BufWriteFlush(store *Store) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return 0, nil
	}

	hashes := make([]uint64, 0, len(b.pending))
	payloads := make([][]byte, 0, len(b.pending))

	for hash, payload := range b.pending {
		hashes = append(hashes, hash)
		payloads = append(payloads, payload)
	}

	if _, err := store.batchWrite(hashes, payloads, false); err != nil {
		return 0, err
	}

	b.pending = make(map[uint64][]byte)
	b.bytesInMem = 0

	return len(hashes), nil
}

// IsEmpty reports whether the buffer currently has no staged writes.
func (b *WriteBuffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.pending) == 0
}
