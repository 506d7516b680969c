package kvdrive

import (
	"sort"
	"testing"
)

func TestLenCountsLiveDeduplicatedKeys(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	if store.Len() != 0 {
		t.Fatalf("Len(empty) = %d, want 0", store.Len())
	}

	if _, err := store.Write([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := store.Write([]byte("a"), []byte("2")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := store.Write([]byte("b"), []byte("3")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if got := store.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	if _, err := store.Delete([]byte("b")); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if got := store.Len(); got != 1 {
		t.Fatalf("Len() after delete = %d, want 1", got)
	}
}

func TestIsEmptyAllTombstoned(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	if _, err := store.Write([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := store.Delete([]byte("a")); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if !store.IsEmpty() {
		t.Fatal("store with only tombstones should be empty")
	}
}

func TestEstimateCompactionSavingsGrowsWithSupersededVersions(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	if _, err := store.Write([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	before := store.EstimateCompactionSavings()

	if _, err := store.Write([]byte("a"), []byte("22")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	after := store.EstimateCompactionSavings()
	if after <= before {
		t.Fatalf("EstimateCompactionSavings did not grow: before=%d after=%d", before, after)
	}
}

func TestFileSizeGrowsMonotonically(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	var last uint64
	for i := 0; i < 5; i++ {
		if _, err := store.Write([]byte{byte(i)}, []byte("payload")); err != nil {
			t.Fatalf("Write: %v", err)
		}
		got := store.FileSize()
		if got <= last {
			t.Fatalf("FileSize did not grow: last=%d got=%d", last, got)
		}
		last = got
	}
}

func TestIterMostRecentFirstDedupedAndTombstonesSkipped(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	if _, err := store.Write([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := store.Write([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := store.Write([]byte("a"), []byte("3")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := store.Delete([]byte("b")); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var got []string
	for h := range store.Iter() {
		got = append(got, string(h.AsBytes()))
	}

	if len(got) != 1 || got[0] != "3" {
		t.Fatalf("Iter() = %v, want [\"3\"]", got)
	}
}

func TestIterParallelSameSetAsSequential(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	for _, kv := range [][2]string{{"a", "1"}, {"b", "2"}, {"c", "3"}} {
		if _, err := store.Write([]byte(kv[0]), []byte(kv[1])); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	var sequential []string
	for h := range store.Iter() {
		sequential = append(sequential, string(h.AsBytes()))
	}

	var parallel []string
	for _, h := range store.IterParallel(4) {
		parallel = append(parallel, string(h.AsBytes()))
	}

	sort.Strings(sequential)
	sort.Strings(parallel)

	if len(sequential) != len(parallel) {
		t.Fatalf("IterParallel returned %d entries, want %d", len(parallel), len(sequential))
	}
	for i := range sequential {
		if sequential[i] != parallel[i] {
			t.Fatalf("IterParallel set mismatch: %v vs %v", parallel, sequential)
		}
	}
}
