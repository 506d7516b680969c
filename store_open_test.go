package kvdrive

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.kv")

	store, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestOpenCreatesEmptyFile(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	if !store.IsEmpty() {
		t.Fatal("freshly opened store should be empty")
	}

	if got := store.FileSize(); got != 0 {
		t.Fatalf("FileSize = %d, want 0", got)
	}
}

func TestOpenExistingMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing.kv")

	_, err := OpenExisting(Options{Path: path})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOpenRoundTripsWrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.kv")

	store, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := store.Write([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenExisting(Options{Path: path})
	if err != nil {
		t.Fatalf("OpenExisting: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Read([]byte("k1"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("Read = %q, want %q", got, "v1")
	}
}

func TestOpenRecoversTornSuffix(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.kv")

	store, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Write([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := store.Write([]byte("k2"), []byte("v2")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	validSize := store.FileSize()
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Simulate a crash mid-write: append arbitrary torn garbage past the
	// last valid trailer.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.Write([]byte{1, 2, 3, 4, 5, 6, 7}); err != nil {
		t.Fatalf("writing torn suffix: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing torn file: %v", err)
	}

	recovered, err := OpenExisting(Options{Path: path})
	if err != nil {
		t.Fatalf("OpenExisting after tear: %v", err)
	}
	defer recovered.Close()

	if got := recovered.FileSize(); got != validSize {
		t.Fatalf("FileSize after recovery = %d, want %d", got, validSize)
	}

	v1, err := recovered.Read([]byte("k1"))
	if err != nil || string(v1) != "v1" {
		t.Fatalf("Read(k1) = %q, %v", v1, err)
	}
	v2, err := recovered.Read([]byte("k2"))
	if err != nil || string(v2) != "v2" {
		t.Fatalf("Read(k2) = %q, %v", v2, err)
	}

	// Further writes must succeed against the recovered, truncated file.
	if _, err := recovered.Write([]byte("k3"), []byte("v3")); err != nil {
		t.Fatalf("Write after recovery: %v", err)
	}
}

func TestRecoverValidChainEmptyFile(t *testing.T) {
	t.Parallel()

	region := &mmapRegion{data: nil}
	if got := recoverValidChain(region, 0); got != 0 {
		t.Fatalf("recoverValidChain(empty) = %d, want 0", got)
	}
}

func TestRecoverValidChainShortFile(t *testing.T) {
	t.Parallel()

	region := &mmapRegion{data: make([]byte, MetadataSize-1)}

	if got := recoverValidChain(region, MetadataSize-1); got != 0 {
		t.Fatalf("recoverValidChain(short) = %d, want 0", got)
	}
}
