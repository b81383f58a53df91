// Package vector provides the dense slot-addressed vector index and its
// on-disk snapshot format.
package vector

import (
	"sort"

	"github.com/personaldrive/semidx/internal/semerr"
)

// FlatIndex is an append-only brute-force index. Slot i holds the i-th
// inserted vector; slots are never reused or reordered. Search is an exact
// linear scan by squared Euclidean distance, which is the right tradeoff for
// a bounded corpus (tens of thousands of vectors).
//
// FlatIndex is not safe for concurrent use. The index manager owns the one
// lock that guards it together with the identifier table.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
}

// Neighbor is a single search hit.
type Neighbor struct {
	Slot     int
	Distance float64 // squared L2 distance; lower is closer
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, semerr.Newf(semerr.KindInvalidArgument, "dimensions must be positive, got %d", dimensions)
	}
	return &FlatIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
	}, nil
}

// Dimensions returns the fixed vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Size returns the number of stored vectors.
func (f *FlatIndex) Size() int {
	return len(f.vectors)
}

// Insert appends vec and returns its slot. The vector is copied.
func (f *FlatIndex) Insert(vec []float32) (int, error) {
	if len(vec) != f.dimensions {
		return 0, semerr.Newf(semerr.KindDimensionMismatch,
			"vector dimension mismatch: got %d, expected %d", len(vec), f.dimensions)
	}
	cp := make([]float32, f.dimensions)
	copy(cp, vec)
	f.vectors = append(f.vectors, cp)
	return len(f.vectors) - 1, nil
}

// At returns the vector stored at slot. The returned slice must not be mutated.
func (f *FlatIndex) At(slot int) []float32 {
	return f.vectors[slot]
}

// Search returns the min(k, Size()) nearest slots to query, ascending by
// squared L2 distance. Equal distances are ordered by slot (insertion order)
// so results are deterministic. Searching an empty index returns an empty
// list; k <= 0 is invalid input.
func (f *FlatIndex) Search(query []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, semerr.Newf(semerr.KindInvalidArgument, "k must be positive, got %d", k)
	}
	if len(query) != f.dimensions {
		return nil, semerr.Newf(semerr.KindDimensionMismatch,
			"query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	if len(f.vectors) == 0 {
		return []Neighbor{}, nil
	}
	neighbors := make([]Neighbor, len(f.vectors))
	for i, vec := range f.vectors {
		neighbors[i] = Neighbor{Slot: i, Distance: SquaredL2(query, vec)}
	}
	// Stable sort over the slot-ordered slice keeps ties in insertion order.
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
	if k > len(neighbors) {
		k = len(neighbors)
	}
	return neighbors[:k], nil
}

// SquaredL2 returns the squared Euclidean distance between a and b.
// Monotonic in true L2, so ranking is unaffected by skipping the sqrt.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
