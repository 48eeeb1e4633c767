// Package embedding turns text into fixed-length vectors via ONNX, with an LRU
// cache in front for repeated queries.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmbeddingFailed is returned when text cannot be turned into a vector.
var ErrEmbeddingFailed = errors.New("embedding failed")

// Embedder produces vector embeddings for text. Every vector it returns has
// Dimensions() elements.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// failed classifies err as an embedding failure unless it already is one.
func failed(err error) error {
	if err == nil || errors.Is(err, ErrEmbeddingFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
}

func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text is empty", ErrEmbeddingFailed)
	}
	return nil
}
