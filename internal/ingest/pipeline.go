// Package ingest builds a frozen corpus from raw documents: extract text,
// summarize it, embed it and add it to the corpus.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/ruiji/internal/corpus"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/extract"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/summarize"
)

// Extractor turns a raw document into text.
type Extractor interface {
	Extract(ctx context.Context, doc models.RawDocument) (string, error)
}

// Summarizer produces a synopsis of text. An empty synopsis is valid.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// DefaultWorkers is how many documents are prepared concurrently.
const DefaultWorkers = 4

// Pipeline runs documents through extraction, summarization and embedding and
// adds them to a new corpus in input order.
type Pipeline struct {
	extractor  Extractor
	summarizer Summarizer
	embedder   embedding.Embedder
	policy     FailurePolicy
	dimensions int
	workers    int
	logger     *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for run and per-document events.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPolicy sets the failure policy. The default is PolicySkip.
func WithPolicy(policy FailurePolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithDimensions pins the corpus vector length. By default it is the embedder's.
func WithDimensions(d int) Option {
	return func(p *Pipeline) { p.dimensions = d }
}

// WithWorkers sets how many documents are prepared at once. Documents are
// still added to the corpus in input order.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewPipeline creates a pipeline over the given collaborators.
func NewPipeline(extractor Extractor, summarizer Summarizer, embedder embedding.Embedder, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:  extractor,
		summarizer: summarizer,
		embedder:   embedder,
		policy:     PolicySkip,
		dimensions: embedder.Dimensions(),
		workers:    DefaultWorkers,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type prepared struct {
	text     string
	synopsis string
	vector   []float32
	err      *DocumentIngestError
}

// Run ingests docs and returns the frozen corpus with a report of the run.
// Under PolicySkip failed documents are left out and listed in the report;
// under PolicyAbort the first failure in input order ends the run and is
// returned with no corpus. Cancelling ctx ends the run with ctx's error.
func (p *Pipeline) Run(ctx context.Context, docs []models.RawDocument) (*corpus.Corpus, *Report, error) {
	report := newReport(p.policy, len(docs))
	p.logger.Info("ingest run started",
		zap.String("run_id", report.ID),
		zap.Int("documents", len(docs)),
		zap.String("policy", string(p.policy)))

	results := make([]prepared, len(docs))
	// Under PolicyAbort nothing after the lowest failing position is
	// needed, so workers stop picking up documents past it.
	var firstFailed atomic.Int64
	firstFailed.Store(int64(len(docs)))
	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := range docs {
		if p.policy == PolicyAbort && int64(i) > firstFailed.Load() {
			break
		}
		i := i
		g.Go(func() error {
			if p.policy == PolicyAbort && int64(i) > firstFailed.Load() {
				return nil
			}
			results[i] = p.prepare(ctx, docs[i])
			if results[i].err != nil && p.policy == PolicyAbort {
				lowerFailed(&firstFailed, int64(i))
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		report.finish(true)
		return nil, report, fmt.Errorf("ingest run %s: %w", report.ID, err)
	}

	c := corpus.New(p.dimensions)
	for i, r := range results {
		if r.err == nil {
			if _, err := c.AddDocument(r.vector, r.text, r.synopsis); err != nil {
				r.err = &DocumentIngestError{Ref: docs[i].Ref, Stage: StageIndex, Err: err}
			}
		}
		if r.err != nil {
			report.addFailure(r.err)
			p.logger.Warn("document not indexed",
				zap.String("ref", r.err.Ref),
				zap.String("stage", string(r.err.Stage)),
				zap.Error(r.err.Err))
			if p.policy == PolicyAbort || corpus.IsCorrupted(r.err.Err) {
				report.finish(true)
				p.logger.Error("ingest run aborted", zap.String("run_id", report.ID), zap.Error(r.err))
				return nil, report, r.err
			}
			continue
		}
		report.Indexed++
		p.logger.Debug("document indexed", zap.String("ref", docs[i].Ref), zap.Int("position", report.Indexed-1))
	}
	c.Freeze()
	report.finish(false)
	p.logger.Info("ingest run finished",
		zap.String("run_id", report.ID),
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", len(report.Failures)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return c, report, nil
}

// prepare runs the collaborator stages for one document. Errors are classified
// with the collaborator's kind when the collaborator did not do so itself.
func (p *Pipeline) prepare(ctx context.Context, doc models.RawDocument) prepared {
	fail := func(stage Stage, kind, err error) prepared {
		if !errors.Is(err, kind) {
			err = fmt.Errorf("%w: %w", kind, err)
		}
		return prepared{err: &DocumentIngestError{Ref: doc.Ref, Stage: stage, Err: err}}
	}

	raw, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		return fail(StageExtract, extract.ErrExtractionFailed, err)
	}
	text := Preprocess(raw)
	if text == "" {
		return fail(StageExtract, extract.ErrExtractionFailed, errors.New("no text after preprocessing"))
	}
	synopsis, err := p.summarizer.Summarize(ctx, text)
	if err != nil {
		return fail(StageSummarize, summarize.ErrSummarizationFailed, err)
	}
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return fail(StageEmbed, embedding.ErrEmbeddingFailed, err)
	}
	return prepared{text: text, synopsis: synopsis, vector: vec}
}

// lowerFailed lowers v to i if i is smaller.
func lowerFailed(v *atomic.Int64, i int64) {
	for {
		cur := v.Load()
		if i >= cur || v.CompareAndSwap(cur, i) {
			return
		}
	}
}
