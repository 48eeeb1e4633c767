package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/extract"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/summarize"
	"github.com/hyperjump/ruiji/internal/vector"
)

// mapExtractor returns the document's Data as text and fails for refs in fail.
type mapExtractor struct {
	fail map[string]error
}

func (e *mapExtractor) Extract(_ context.Context, doc models.RawDocument) (string, error) {
	if err := e.fail[doc.Ref]; err != nil {
		return "", err
	}
	return string(doc.Data), nil
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, string) (string, error) {
	return "", errors.New("model unavailable")
}

// shortEmbedder returns a vector of the wrong length for texts containing "short".
type shortEmbedder struct {
	*embedding.MockEmbedder
	mu    sync.Mutex
	plain error
}

func (e *shortEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	plain := e.plain
	e.mu.Unlock()
	if plain != nil && strings.Contains(text, "broken") {
		return nil, plain
	}
	if strings.Contains(text, "short") {
		return []float32{1}, nil
	}
	return e.MockEmbedder.Embed(ctx, text)
}

func docs(texts ...string) []models.RawDocument {
	out := make([]models.RawDocument, len(texts))
	for i, text := range texts {
		out[i] = models.RawDocument{Ref: fmt.Sprintf("doc%d.txt", i), Data: []byte(text)}
	}
	return out
}

func newTestPipeline(ext Extractor, emb embedding.Embedder, opts ...Option) *Pipeline {
	if ext == nil {
		ext = &mapExtractor{}
	}
	if emb == nil {
		emb = embedding.NewMockEmbedder(8)
	}
	return NewPipeline(ext, summarize.NewFrequencySummarizer(0.2, 5), emb, opts...)
}

func TestPipeline_RunKeepsInputOrder(t *testing.T) {
	input := docs(
		"Alpha document about cats.  It has   two sentences.",
		"Beta document about dogs.",
		"Gamma document about birds.",
	)
	p := newTestPipeline(nil, nil, WithWorkers(3))
	c, report, err := p.Run(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	if !c.IsFrozen() {
		t.Error("corpus should be frozen")
	}
	if c.Len() != 3 || report.Indexed != 3 || report.Total != 3 {
		t.Fatalf("len=%d indexed=%d total=%d, want 3", c.Len(), report.Indexed, report.Total)
	}
	rec, err := c.Record(0)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Text != "Alpha document about cats. It has two sentences." {
		t.Errorf("text not preprocessed: %q", rec.Text)
	}
	if rec.Synopsis == "" {
		t.Error("expected a synopsis")
	}
	for pos, want := range []string{"Alpha", "Beta", "Gamma"} {
		rec, _ := c.Record(pos)
		if !strings.HasPrefix(rec.Text, want) {
			t.Errorf("position %d holds %q, want %s...", pos, rec.Text, want)
		}
	}
	if report.ID == "" || report.Aborted || report.Err() != nil {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestPipeline_QueryFindsIngestedText(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	c, _, err := newTestPipeline(nil, emb).Run(context.Background(), docs("First text.", "Second text.", "Third text."))
	if err != nil {
		t.Fatal(err)
	}
	q, _ := emb.Embed(context.Background(), "Second text.")
	res, err := c.Query(context.Background(), q, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res[0].Position != 1 || res[0].Distance != 0 {
		t.Errorf("got %+v, want position 1 at distance 0", res[0])
	}
}

func TestPipeline_SkipPolicy(t *testing.T) {
	ext := &mapExtractor{fail: map[string]error{"doc1.txt": errors.New("corrupt file")}}
	c, report, err := newTestPipeline(ext, nil).Run(context.Background(), docs("One.", "Two.", "Three."))
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 || report.Indexed != 2 {
		t.Fatalf("len=%d indexed=%d, want 2", c.Len(), report.Indexed)
	}
	rec, _ := c.Record(1)
	if rec.Text != "Three." {
		t.Errorf("position 1 = %q, want Three.", rec.Text)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("failures=%d, want 1", len(report.Failures))
	}
	f := report.Failures[0]
	if f.Ref != "doc1.txt" || f.Stage != StageExtract {
		t.Errorf("unexpected failure %+v", f)
	}
	if !errors.Is(f, ErrDocumentIngestFailed) || !errors.Is(f, extract.ErrExtractionFailed) {
		t.Errorf("failure not classified: %v", f)
	}
	if !errors.Is(report.Err(), ErrDocumentIngestFailed) {
		t.Errorf("report.Err() = %v", report.Err())
	}
}

func TestPipeline_AbortPolicy(t *testing.T) {
	ext := &mapExtractor{fail: map[string]error{"doc1.txt": errors.New("corrupt file")}}
	c, report, err := newTestPipeline(ext, nil, WithPolicy(PolicyAbort)).Run(context.Background(), docs("One.", "Two.", "Three."))
	if c != nil {
		t.Error("aborted run should return no corpus")
	}
	var ingestErr *DocumentIngestError
	if !errors.As(err, &ingestErr) {
		t.Fatalf("expected *DocumentIngestError, got %v", err)
	}
	if ingestErr.Ref != "doc1.txt" {
		t.Errorf("Ref = %q, want doc1.txt", ingestErr.Ref)
	}
	if !report.Aborted || report.Indexed != 1 {
		t.Errorf("aborted=%v indexed=%d, want true and 1", report.Aborted, report.Indexed)
	}
}

// countingExtractor counts Extract calls and fails for refs in fail.
type countingExtractor struct {
	mapExtractor
	calls atomic.Int64
}

func (e *countingExtractor) Extract(ctx context.Context, doc models.RawDocument) (string, error) {
	e.calls.Add(1)
	return e.mapExtractor.Extract(ctx, doc)
}

func TestPipeline_AbortStopsPreparing(t *testing.T) {
	texts := make([]string, 200)
	for i := range texts {
		texts[i] = fmt.Sprintf("Document number %d.", i)
	}
	ext := &countingExtractor{mapExtractor: mapExtractor{fail: map[string]error{"doc0.txt": errors.New("corrupt file")}}}
	p := newTestPipeline(ext, nil, WithPolicy(PolicyAbort), WithWorkers(1))
	c, _, err := p.Run(context.Background(), docs(texts...))
	if c != nil {
		t.Error("aborted run should return no corpus")
	}
	var ingestErr *DocumentIngestError
	if !errors.As(err, &ingestErr) || ingestErr.Ref != "doc0.txt" || ingestErr.Stage != StageExtract {
		t.Fatalf("expected extract failure for doc0.txt, got %v", err)
	}
	if calls := ext.calls.Load(); calls > 2 {
		t.Errorf("extractor called %d times after the first document failed", calls)
	}
}

func TestPipeline_AbortReportsFirstFailureInOrder(t *testing.T) {
	fail := map[string]error{}
	for _, ref := range []string{"doc3.txt", "doc7.txt", "doc12.txt"} {
		fail[ref] = errors.New("corrupt file")
	}
	texts := make([]string, 20)
	for i := range texts {
		texts[i] = fmt.Sprintf("Document number %d.", i)
	}
	p := newTestPipeline(&mapExtractor{fail: fail}, nil, WithPolicy(PolicyAbort), WithWorkers(8))
	_, report, err := p.Run(context.Background(), docs(texts...))
	var ingestErr *DocumentIngestError
	if !errors.As(err, &ingestErr) || ingestErr.Ref != "doc3.txt" {
		t.Fatalf("expected failure for doc3.txt, got %v", err)
	}
	if report.Indexed != 3 {
		t.Errorf("Indexed = %d, want 3", report.Indexed)
	}
}

func TestPipeline_StageClassification(t *testing.T) {
	emb := &shortEmbedder{MockEmbedder: embedding.NewMockEmbedder(4), plain: errors.New("tensor error")}
	tests := []struct {
		name  string
		text  string
		sum   Summarizer
		stage Stage
		kind  error
	}{
		{"summarizer", "Some text.", failingSummarizer{}, StageSummarize, summarize.ErrSummarizationFailed},
		{"embedder", "A broken text.", nil, StageEmbed, embedding.ErrEmbeddingFailed},
		{"index", "A short text.", nil, StageIndex, vector.ErrDimensionMismatch},
		{"blank after preprocessing", "\x00\x01 \t", nil, StageExtract, extract.ErrExtractionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(nil, emb)
			if tt.sum != nil {
				p.summarizer = tt.sum
			}
			c, report, err := p.Run(context.Background(), docs(tt.text))
			if err != nil {
				t.Fatal(err)
			}
			if c.Len() != 0 || len(report.Failures) != 1 {
				t.Fatalf("len=%d failures=%d", c.Len(), len(report.Failures))
			}
			f := report.Failures[0]
			if f.Stage != tt.stage {
				t.Errorf("stage = %s, want %s", f.Stage, tt.stage)
			}
			if !errors.Is(f, tt.kind) {
				t.Errorf("error %v does not match %v", f, tt.kind)
			}
		})
	}
}

func TestPipeline_EmptyInput(t *testing.T) {
	c, report, err := newTestPipeline(nil, nil).Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 || !c.IsFrozen() || report.Total != 0 {
		t.Errorf("len=%d frozen=%v total=%d", c.Len(), c.IsFrozen(), report.Total)
	}
	if _, err := c.Query(context.Background(), make([]float32, 8), 5); !errors.Is(err, vector.ErrEmptyIndex) {
		t.Errorf("expected ErrEmptyIndex, got %v", err)
	}
}

func TestPipeline_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, report, err := newTestPipeline(nil, nil).Run(ctx, docs("One."))
	if c != nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled and no corpus, got %v", err)
	}
	if !report.Aborted {
		t.Error("canceled run should be marked aborted")
	}
}

func TestReport_Run(t *testing.T) {
	ext := &mapExtractor{fail: map[string]error{"doc0.txt": extract.ErrUnsupportedFormat}}
	_, report, _ := newTestPipeline(ext, nil).Run(context.Background(), docs("x", "Fine text."))
	run := report.Run()
	if run.ID != report.ID || run.Policy != "skip" || run.Total != 2 || run.Indexed != 1 {
		t.Errorf("unexpected run %+v", run)
	}
	if run.Failed() != 1 || run.Failures[0].DocumentRef != "doc0.txt" || run.Failures[0].Stage != "extract" {
		t.Errorf("unexpected failures %+v", run.Failures)
	}
	if !strings.Contains(run.Failures[0].Message, "unsupported") {
		t.Errorf("message %q should carry the cause", run.Failures[0].Message)
	}
	if run.FinishedAt.Before(run.StartedAt) {
		t.Error("finished before started")
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]FailurePolicy{"": PolicySkip, "skip": PolicySkip, "abort": PolicyAbort} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestPreprocess(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  hello   world  ", "hello world"},
		{"line1\n\n\tline2", "line1 line2"},
		{"bad\x00byte�", "badbyte"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Preprocess(tt.in); got != tt.want {
			t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
