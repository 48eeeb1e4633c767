// Package corpus binds the vector index and the document store into one structure
// whose positions always correspond.
package corpus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/vector"
)

// Corpus pairs every indexed vector with its document record. Both sides always have
// the same length and order. Mutations take the write lock; queries on a frozen
// corpus take no lock because nothing can change underneath them.
type Corpus struct {
	index  *vector.FlatIndex
	store  *Store
	mu     sync.RWMutex
	frozen atomic.Bool
}

// New creates an empty corpus. A positive dimensions pins the vector length up front;
// otherwise the first document fixes it.
func New(dimensions int) *Corpus {
	return &Corpus{
		index: vector.NewFlatIndex(dimensions),
		store: NewStore(),
	}
}

// AddDocument appends vec, text and synopsis at one shared position and returns it.
// On any failure neither the index nor the store is changed.
func (c *Corpus) AddDocument(vec []float32, text, synopsis string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen.Load() {
		return 0, ErrCorpusFrozen
	}
	before := c.store.Len()
	if n := c.index.Size(); n != before {
		return 0, corrupted("index holds %d vectors, store holds %d records", n, before)
	}
	pos, err := c.index.Add(vec)
	if err != nil {
		return 0, err
	}
	if storePos := c.store.Append(text, synopsis); storePos != pos {
		c.index.Truncate(before)
		c.store.truncate(before)
		return 0, corrupted("store assigned position %d, index assigned %d", storePos, pos)
	}
	return pos, nil
}

// Query returns the k documents nearest to vec in rank order. Index errors are
// returned unchanged; a hit without a record is reported as ErrCorpusCorrupted.
func (c *Corpus) Query(ctx context.Context, vec []float32, k int) ([]*models.SearchResult, error) {
	if !c.frozen.Load() {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	neighbors, err := c.index.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	results := make([]*models.SearchResult, len(neighbors))
	for rank, n := range neighbors {
		rec, err := c.store.Get(n.Position)
		if err != nil {
			return nil, corrupted("hit at position %d has no record: %v", n.Position, err)
		}
		results[rank] = &models.SearchResult{
			Position: n.Position,
			Text:     rec.Text,
			Synopsis: rec.Synopsis,
			Distance: n.Distance,
			Rank:     rank,
		}
	}
	return results, nil
}

// Record returns the document stored at pos.
func (c *Corpus) Record(pos int) (models.DocumentRecord, error) {
	if !c.frozen.Load() {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	return c.store.Get(pos)
}

// Freeze makes the corpus read-only. Calling it again has no effect.
func (c *Corpus) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen.Store(true)
}

// IsFrozen reports whether Freeze has been called.
func (c *Corpus) IsFrozen() bool {
	return c.frozen.Load()
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	if !c.frozen.Load() {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	return c.store.Len()
}

// Dimensions returns the vector length shared by every document, or 0 before the
// first document when no dimension was pinned.
func (c *Corpus) Dimensions() int {
	return c.index.Dimensions()
}

// IsCorrupted reports whether err signals a broken index/store correspondence.
func IsCorrupted(err error) bool {
	return errors.Is(err, ErrCorpusCorrupted)
}
