package kvdrive

import "testing"

// buildChainWithTombstone is like buildTestChain but lets the caller mark
// specific entries as tombstones (single 0x00 payload).
func buildChainWithTombstone(keyHashes []uint64, tombstone []bool, payloadLen int) ([]byte, uint64) {
	var buf []byte
	var prev uint64

	for i, kh := range keyHashes {
		start := uint64(len(buf))
		pad := prePadLen(start)
		for j := uint64(0); j < pad; j++ {
			buf = append(buf, 0)
		}

		var payload []byte
		if tombstone[i] {
			payload = []byte{TombstoneByte}
		} else {
			payload = make([]byte, payloadLen)
			for j := range payload {
				payload[j] = byte(i + 1)
			}
		}
		buf = append(buf, payload...)

		trailer := entryMetadata{keyHash: kh, prevOffset: prev, checksum: checksumPayload(payload)}
		ser := trailer.serialize()
		buf = append(buf, ser[:]...)

		prev = uint64(len(buf))
	}

	return buf, prev
}

func TestIterEntriesDedupAndOrder(t *testing.T) {
	data, tail := buildTestChain([]uint64{1, 2, 1, 3}, 8)
	region := &mmapRegion{data: data}
	region.retain()

	var gotKeys []uint64
	for h := range iterEntries(region, tail) {
		gotKeys = append(gotKeys, h.KeyHash())
	}

	want := []uint64{3, 1, 2}
	if len(gotKeys) != len(want) {
		t.Fatalf("got %d entries, want %d (%v)", len(gotKeys), len(want), gotKeys)
	}
	for i, k := range want {
		if gotKeys[i] != k {
			t.Errorf("position %d: got key %d, want %d", i, gotKeys[i], k)
		}
	}
}

func TestIterEntriesSkipsTombstones(t *testing.T) {
	data, tail := buildChainWithTombstone([]uint64{1, 2}, []bool{false, true}, 8)
	region := &mmapRegion{data: data}
	region.retain()

	var gotKeys []uint64
	for h := range iterEntries(region, tail) {
		gotKeys = append(gotKeys, h.KeyHash())
	}

	if len(gotKeys) != 1 || gotKeys[0] != 1 {
		t.Fatalf("got %v, want only key 1 (key 2 is tombstoned)", gotKeys)
	}
}

func TestIterEntriesStopsWhenYieldReturnsFalse(t *testing.T) {
	data, tail := buildTestChain([]uint64{1, 2, 3}, 8)
	region := &mmapRegion{data: data}
	region.retain()

	var gotKeys []uint64
	for h := range iterEntries(region, tail) {
		gotKeys = append(gotKeys, h.KeyHash())
		break
	}

	if len(gotKeys) != 1 {
		t.Fatalf("expected iteration to stop after first yield, got %d entries", len(gotKeys))
	}
}

func TestIterEntriesParallelSameSet(t *testing.T) {
	data, tail := buildTestChain([]uint64{1, 2, 1, 3, 4}, 8)
	region := &mmapRegion{data: data}
	region.retain()

	var sequential []uint64
	for h := range iterEntries(region, tail) {
		sequential = append(sequential, h.KeyHash())
	}

	parallel := iterEntriesParallel(region, tail, 4)

	if len(parallel) != len(sequential) {
		t.Fatalf("parallel returned %d entries, sequential returned %d", len(parallel), len(sequential))
	}

	seqSet := make(map[uint64]int)
	for _, k := range sequential {
		seqSet[k]++
	}
	for _, h := range parallel {
		seqSet[h.KeyHash()]--
	}
	for k, count := range seqSet {
		if count != 0 {
			t.Errorf("key %d: parallel/sequential set mismatch (delta %d)", k, count)
		}
	}
}
