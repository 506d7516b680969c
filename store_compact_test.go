package kvdrive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactPreservesLatestDiscardsSuperseded(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.kv")

	store, err := Open(Options{Path: path})
	require.NoError(t, err, "Open should succeed")

	writes := []struct{ key, val string }{
		{"a", "1"}, {"a", "2"}, {"b", "3"}, {"a", "4"},
	}
	for _, w := range writes {
		_, err := store.Write([]byte(w.key), []byte(w.val))
		require.NoError(t, err, "Write(%s) should succeed", w.key)
	}

	beforeSize := store.FileSize()

	require.NoError(t, store.Compact(), "Compact should succeed")

	assert.Equal(t, 2, store.Len(), "compacted store should hold exactly the live keys")

	a, err := store.Read([]byte("a"))
	require.NoError(t, err, "Read(a) after compact")
	assert.Equal(t, "4", string(a), "compact must keep the most recent version of a")

	b, err := store.Read([]byte("b"))
	require.NoError(t, err, "Read(b) after compact")
	assert.Equal(t, "3", string(b), "compact must keep b's only version")

	assert.Less(t, store.FileSize(), beforeSize, "compaction must strictly shrink the file")

	require.NoError(t, store.Close(), "Close should succeed")

	reopened, err := OpenExisting(Options{Path: path})
	require.NoError(t, err, "OpenExisting after compact")
	defer reopened.Close()

	a, err = reopened.Read([]byte("a"))
	require.NoError(t, err, "Read(a) after reopen")
	assert.Equal(t, "4", string(a), "compacted file must survive a reopen")
}

func TestCompactEmptyStoreIsNoop(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	require.NoError(t, store.Compact(), "Compact(empty) should succeed")
	assert.True(t, store.IsEmpty(), "store should remain empty after compacting an empty store")
}

func TestCompactRemovesTombstonedKeys(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	_, err := store.Write([]byte("a"), []byte("1"))
	require.NoError(t, err, "Write should succeed")
	_, err = store.Delete([]byte("a"))
	require.NoError(t, err, "Delete should succeed")

	require.NoError(t, store.Compact(), "Compact should succeed")

	_, err = store.Read([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound, "compacted tombstone must read as absent")
	assert.True(t, store.IsEmpty(), "store should be empty after compacting away a tombstoned key")
}

func TestCompactPreservesKeyHashesAcrossRewrite(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	_, err := store.Write([]byte("k"), []byte("v"))
	require.NoError(t, err, "Write should succeed")

	before, err := store.ReadMetadata([]byte("k"))
	require.NoError(t, err, "ReadMetadata before compact")

	require.NoError(t, store.Compact(), "Compact should succeed")

	after, err := store.ReadMetadata([]byte("k"))
	require.NoError(t, err, "ReadMetadata after compact")

	assert.Equal(t, before.KeyHash, after.KeyHash, "compact must preserve key hashes")
	assert.Equal(t, before.Checksum, after.Checksum, "compact must preserve payload checksums")
}
