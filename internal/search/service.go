// Package search answers k-nearest-neighbor queries over a frozen corpus.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hyperjump/ruiji/internal/corpus"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/models"
)

const (
	// DefaultK is the number of results returned when the caller does not ask
	// for a specific count.
	DefaultK = 5
	// DefaultMaxK caps what a caller may ask for.
	DefaultMaxK = 100
	// DefaultMaxConcurrent bounds concurrently running searches.
	DefaultMaxConcurrent = 10
)

var (
	// ErrInvalidQuery is returned for a blank query or a negative k.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrServiceAborted is returned by every search after the corpus was found corrupted.
	ErrServiceAborted = errors.New("query service aborted")
	// ErrNotFrozen is returned when a service is built over a corpus that can still change.
	ErrNotFrozen = errors.New("corpus is not frozen")
)

// Corpus is the read side of a corpus.Corpus.
type Corpus interface {
	Query(ctx context.Context, vec []float32, k int) ([]*models.SearchResult, error)
	Record(pos int) (models.DocumentRecord, error)
	Len() int
	Dimensions() int
	IsFrozen() bool
}

// Service embeds query text and looks it up in a frozen corpus. It is safe for
// concurrent use; at most MaxConcurrent searches run at once and the rest wait.
type Service struct {
	corpus   Corpus
	embedder embedding.Embedder
	defaultK int
	maxK     int
	slots    int64
	sem      *semaphore.Weighted
	logger   *zap.Logger
	onAbort  func(error)

	abortOnce sync.Once
	mu        sync.RWMutex
	abortErr  error
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultK sets the result count used when a search passes k <= 0.
func WithDefaultK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.defaultK = k
		}
	}
}

// WithMaxK caps the result count a caller may ask for.
func WithMaxK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.maxK = k
		}
	}
}

// WithMaxConcurrent bounds how many searches run at once.
func WithMaxConcurrent(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.slots = int64(n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAbortHandler registers fn to be called once, with the cause, when the
// service aborts because the corpus is corrupted.
func WithAbortHandler(fn func(error)) Option {
	return func(s *Service) { s.onAbort = fn }
}

// NewService creates a query service over c. c must be frozen and, once it
// holds documents, share the embedder's dimension.
func NewService(c Corpus, embedder embedding.Embedder, opts ...Option) (*Service, error) {
	if !c.IsFrozen() {
		return nil, ErrNotFrozen
	}
	if d := c.Dimensions(); d > 0 && d != embedder.Dimensions() {
		return nil, fmt.Errorf("corpus has %d dimensions, embedder produces %d", d, embedder.Dimensions())
	}
	s := &Service{
		corpus:   c,
		embedder: embedder,
		defaultK: DefaultK,
		maxK:     DefaultMaxK,
		slots:    DefaultMaxConcurrent,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultK > s.maxK {
		s.defaultK = s.maxK
	}
	s.sem = semaphore.NewWeighted(s.slots)
	return s, nil
}

// Search returns the k documents nearest to text, best first. k <= 0 means the
// default and larger values are capped at the maximum. Errors carry their kind:
// embedding.ErrEmbeddingFailed, vector.ErrEmptyIndex, vector.ErrDimensionMismatch,
// corpus.ErrCorpusCorrupted, ErrServiceAborted or the context's error.
func (s *Service) Search(ctx context.Context, text string, k int) ([]*models.SearchResult, error) {
	if err := s.Healthy(); err != nil {
		return nil, err
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for search slot: %w", err)
	}
	defer s.sem.Release(1)

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		if !errors.Is(err, embedding.ErrEmbeddingFailed) {
			err = fmt.Errorf("%w: %w", embedding.ErrEmbeddingFailed, err)
		}
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: embedder returned an empty vector", embedding.ErrEmbeddingFailed)
	}
	results, err := s.corpus.Query(ctx, vec, s.resolveK(k))
	if err != nil {
		if corpus.IsCorrupted(err) {
			s.abort(err)
		}
		return nil, err
	}
	return results, nil
}

// Query validates q and runs it, returning the response with timing.
func (s *Service) Query(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	k := s.resolveK(q.K)
	results, err := s.Search(ctx, q.Query, k)
	if err != nil {
		s.logger.Debug("search failed", zap.String("query", q.Query), zap.Error(err))
		return nil, err
	}
	resp := &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		K:         k,
		QueryTime: time.Since(start).Milliseconds(),
		Query:     q.Query,
	}
	s.logger.Debug("search completed",
		zap.String("query", q.Query),
		zap.Int("k", k),
		zap.Int("results", resp.Total),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

// Record returns the document at pos.
func (s *Service) Record(pos int) (models.DocumentRecord, error) {
	if err := s.Healthy(); err != nil {
		return models.DocumentRecord{}, err
	}
	return s.corpus.Record(pos)
}

func (s *Service) resolveK(k int) int {
	if k <= 0 {
		k = s.defaultK
	}
	if k > s.maxK {
		k = s.maxK
	}
	return k
}

func (s *Service) abort(cause error) {
	s.abortOnce.Do(func() {
		s.mu.Lock()
		s.abortErr = fmt.Errorf("%w: %w", ErrServiceAborted, cause)
		s.mu.Unlock()
		s.logger.Error("query service aborted", zap.Error(cause))
		if s.onAbort != nil {
			s.onAbort(cause)
		}
	})
}

// Healthy returns nil, or the error every search fails with after an abort.
func (s *Service) Healthy() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.abortErr
}

// Status describes the service for monitoring.
type Status struct {
	Documents     int    `json:"documents"`
	Dimensions    int    `json:"dimensions"`
	DefaultK      int    `json:"default_k"`
	MaxK          int    `json:"max_k"`
	MaxConcurrent int64  `json:"max_concurrent"`
	Healthy       bool   `json:"healthy"`
	Error         string `json:"error,omitempty"`
}

// Status reports the corpus size and service limits.
func (s *Service) Status() Status {
	st := Status{
		Documents:     s.corpus.Len(),
		Dimensions:    s.corpus.Dimensions(),
		DefaultK:      s.defaultK,
		MaxK:          s.maxK,
		MaxConcurrent: s.slots,
		Healthy:       true,
	}
	if err := s.Healthy(); err != nil {
		st.Healthy = false
		st.Error = err.Error()
	}
	return st
}
