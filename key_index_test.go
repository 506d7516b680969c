package kvdrive

import "testing"

// buildTestChain writes entries directly into a byte buffer following the
// on-disk layout, returning the buffer and the tail offset. Each entry in
// keyHashes forms a chain: entry i's prev_offset points at entry i-1's
// trailer end (0 for i==0).
func buildTestChain(keyHashes []uint64, payloadLen int) ([]byte, uint64) {
	var buf []byte
	var prev uint64

	for _, kh := range keyHashes {
		start := uint64(len(buf))
		pad := prePadLen(start)
		for i := uint64(0); i < pad; i++ {
			buf = append(buf, 0)
		}

		payload := make([]byte, payloadLen)
		buf = append(buf, payload...)

		trailer := entryMetadata{keyHash: kh, prevOffset: prev, checksum: checksumPayload(payload)}
		ser := trailer.serialize()
		buf = append(buf, ser[:]...)

		prev = uint64(len(buf))
	}

	return buf, prev
}

func TestBuildKeyIndexKeepsMostRecent(t *testing.T) {
	data, tail := buildTestChain([]uint64{1, 2, 1, 3}, 8)
	region := &mmapRegion{data: data}

	idx := buildKeyIndex(region, tail)

	if idx.len() != 3 {
		t.Fatalf("index has %d keys, want 3", idx.len())
	}

	offsetFor1, ok := idx.get(1)
	if !ok {
		t.Fatal("key 1 missing from index")
	}

	// The most recent occurrence of key 1 is the third entry (index 2),
	// which ends later in the file than the first occurrence.
	offsetFor2, _ := idx.get(2)
	if offsetFor1 <= offsetFor2 {
		t.Errorf("expected most-recent offset for key 1 (%d) to be after key 2's offset (%d)", offsetFor1, offsetFor2)
	}
}

func TestKeyIndexInsertOverwrites(t *testing.T) {
	idx := newKeyIndex()

	_, existed := idx.insert(7, 100)
	if existed {
		t.Fatal("first insert should report no previous value")
	}

	prev, existed := idx.insert(7, 200)
	if !existed || prev != 100 {
		t.Fatalf("second insert: existed=%v prev=%d, want true/100", existed, prev)
	}

	got, ok := idx.get(7)
	if !ok || got != 200 {
		t.Fatalf("get(7) = (%d, %v), want (200, true)", got, ok)
	}
}
