package vector

import (
	"os"
	"testing"

	"github.com/personaldrive/semidx/internal/semerr"
)

func buildIndex(t *testing.T, vecs [][]float32) *FlatIndex {
	t.Helper()
	idx, err := NewFlatIndex(len(vecs[0]))
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vecs {
		if _, err := idx.Insert(v); err != nil {
			t.Fatal(err)
		}
	}
	return idx
}

func TestSnapshot_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	snap := NewSnapshot(dir)

	idx := buildIndex(t, [][]float32{{1, 0, 0}, {0, 1, 0}, {0.5, 0.5, 0}})
	ids := []string{"doc1", "doc2", "doc3"}
	if err := snap.Save(idx, ids); err != nil {
		t.Fatal(err)
	}

	loaded, loadedIDs, err := snap.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 3 || loaded.Dimensions() != 3 {
		t.Fatalf("loaded size=%d dim=%d", loaded.Size(), loaded.Dimensions())
	}
	for i, id := range ids {
		if loadedIDs[i] != id {
			t.Errorf("id[%d]=%s, want %s", i, loadedIDs[i], id)
		}
	}
	for slot := 0; slot < idx.Size(); slot++ {
		want, got := idx.At(slot), loaded.At(slot)
		for j := range want {
			if want[j] != got[j] {
				t.Fatalf("vector %d differs at %d: %f vs %f", slot, j, want[j], got[j])
			}
		}
	}
}

func TestSnapshot_LoadFresh(t *testing.T) {
	snap := NewSnapshot(t.TempDir())
	idx, ids, err := snap.Load()
	if err != nil {
		t.Fatal(err)
	}
	if idx != nil || ids != nil {
		t.Error("no prior state should load as nil, nil")
	}
}

func TestSnapshot_OneArtifactMissing(t *testing.T) {
	dir := t.TempDir()
	snap := NewSnapshot(dir)
	idx := buildIndex(t, [][]float32{{1, 0}})
	if err := snap.Save(idx, []string{"doc1"}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(snap.IDsPath()); err != nil {
		t.Fatal(err)
	}
	_, _, err := snap.Load()
	if !semerr.IsKind(err, semerr.KindCorruptState) {
		t.Errorf("missing counterpart should be corrupt state, got %v", err)
	}
}

func TestSnapshot_CountDisagreement(t *testing.T) {
	dir := t.TempDir()
	snapA := NewSnapshot(dir)
	idx := buildIndex(t, [][]float32{{1, 0}, {0, 1}})
	if err := snapA.Save(idx, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	// Overwrite only the ids artifact with a shorter table.
	dirB := t.TempDir()
	snapB := NewSnapshot(dirB)
	short := buildIndex(t, [][]float32{{1, 0}})
	if err := snapB.Save(short, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(snapB.IDsPath(), snapA.IDsPath()); err != nil {
		t.Fatal(err)
	}
	_, _, err := snapA.Load()
	if !semerr.IsKind(err, semerr.KindCorruptState) {
		t.Errorf("count disagreement should be corrupt state, got %v", err)
	}
}

func TestSnapshot_SaveRejectsMismatchedTable(t *testing.T) {
	snap := NewSnapshot(t.TempDir())
	idx := buildIndex(t, [][]float32{{1, 0}})
	err := snap.Save(idx, []string{"a", "b"})
	if !semerr.IsKind(err, semerr.KindCorruptState) {
		t.Errorf("mismatched table should be rejected, got %v", err)
	}
}

func TestSnapshot_SaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	snap := NewSnapshot(dir)
	idx := buildIndex(t, [][]float32{{1, 0}})
	if err := snap.Save(idx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Insert([]float32{0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := snap.Save(idx, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	loaded, ids, err := snap.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 || len(ids) != 2 {
		t.Errorf("second save should replace the first: size=%d ids=%d", loaded.Size(), len(ids))
	}
}
