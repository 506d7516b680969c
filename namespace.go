package kvdrive

import "encoding/binary"

// NamespaceHasher combines a namespace prefix with arbitrary keys so that
// unrelated callers can share a single store file without their keys
// colliding. The prefix is hashed once at construction time; each call to
// Namespace then hashes the key and concatenates the two 8-byte hashes into
// a 16-byte composite key suitable for passing to [Store.Write]/[Store.Read].
type NamespaceHasher struct {
	prefixHash uint64
}

// NewNamespaceHasher hashes prefix once, up front.
func NewNamespaceHasher(prefix []byte) NamespaceHasher {
	return NamespaceHasher{prefixHash: hashKey(prefix)}
}

// Namespace returns the 16-byte key (8-byte prefix hash + 8-byte key hash)
// identifying key within this hasher's namespace.
func (n NamespaceHasher) Namespace(key []byte) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[0:8], n.prefixHash)
	binary.LittleEndian.PutUint64(out[8:16], hashKey(key))

	return out
}
