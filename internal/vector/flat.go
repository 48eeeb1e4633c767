package vector

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"sync"
)

// cancelCheckInterval is how many distance computations run between context checks.
const cancelCheckInterval = 1024

// FlatIndex is an append-only, in-memory index answering exact k-NN queries by
// brute-force squared Euclidean distance. Positions are assigned in insertion order
// and never move.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty index. When dimensions is positive every vector must
// have that length; otherwise the dimension is fixed by the first insertion.
func NewFlatIndex(dimensions int) *FlatIndex {
	if dimensions < 0 {
		dimensions = 0
	}
	return &FlatIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
	}
}

// Add appends a copy of vec and returns its position.
func (f *FlatIndex) Add(vec []float32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos := len(f.vectors)
	if err := f.checkLocked(vec, pos); err != nil {
		return 0, err
	}
	f.appendLocked(vec)
	return pos, nil
}

// AddBatch appends all vectors at contiguous positions and returns the first one.
// Either every vector is added or none is; on failure DimensionError.Position is
// the offset of the first offending vector within vectors.
func (f *FlatIndex) AddBatch(vectors [][]float32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	first := len(f.vectors)
	if len(vectors) == 0 {
		return first, nil
	}
	dims := f.dimensions
	for i, vec := range vectors {
		if len(vec) == 0 || (dims > 0 && len(vec) != dims) {
			return 0, &DimensionError{Expected: dims, Actual: len(vec), Position: i}
		}
		if err := checkFinite(vec, i); err != nil {
			return 0, err
		}
		if dims == 0 {
			dims = len(vec)
		}
	}
	for _, vec := range vectors {
		f.appendLocked(vec)
	}
	return first, nil
}

func (f *FlatIndex) checkLocked(vec []float32, pos int) error {
	if len(vec) == 0 || (f.dimensions > 0 && len(vec) != f.dimensions) {
		return &DimensionError{Expected: f.dimensions, Actual: len(vec), Position: pos}
	}
	return checkFinite(vec, pos)
}

func (f *FlatIndex) appendLocked(vec []float32) {
	if f.dimensions == 0 {
		f.dimensions = len(vec)
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	f.vectors = append(f.vectors, cp)
}

// Search returns the k stored vectors closest to query, ascending by distance with
// ties broken by ascending position. When k exceeds Size all vectors are returned.
// An empty index is reported before an invalid k or a malformed query.
// The context is checked periodically so long scans can be abandoned.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.vectors) == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != f.dimensions {
		return nil, &DimensionError{Expected: f.dimensions, Actual: len(query), Position: -1}
	}
	if err := checkFinite(query, -1); err != nil {
		return nil, err
	}
	if k > len(f.vectors) {
		k = len(f.vectors)
	}

	h := make(worstFirst, 0, k)
	for pos, vec := range f.vectors {
		if pos%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("search interrupted at position %d: %w", pos, err)
			}
		}
		n := Neighbor{Position: pos, Distance: SquaredL2(query, vec)}
		if len(h) < k {
			heap.Push(&h, n)
			continue
		}
		if closer(n, h[0]) {
			h[0] = n
			heap.Fix(&h, 0)
		}
	}
	result := []Neighbor(h)
	sort.Slice(result, func(i, j int) bool { return closer(result[i], result[j]) })
	return result, nil
}

// Truncate drops every vector at position n and beyond. It lets an owner that pairs
// vectors with other records undo an append whose partner step failed. The
// established dimension is kept.
func (f *FlatIndex) Truncate(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n >= len(f.vectors) {
		return
	}
	for i := n; i < len(f.vectors); i++ {
		f.vectors[i] = nil
	}
	f.vectors = f.vectors[:n]
}

// Dimensions returns the established vector length, or 0 if none is fixed yet.
func (f *FlatIndex) Dimensions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dimensions
}

// Size returns the number of stored vectors.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}
