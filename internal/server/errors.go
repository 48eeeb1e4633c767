package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/hyperjump/ruiji/internal/corpus"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/search"
	"github.com/hyperjump/ruiji/internal/storage"
	"github.com/hyperjump/ruiji/internal/vector"
)

// errorKind maps an error to its HTTP status and the kind reported to clients.
// Order matters: an aborted service wraps the corruption that caused it.
func errorKind(err error) (int, string) {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		return http.StatusBadRequest, "invalid_query"
	case errors.Is(err, search.ErrServiceAborted):
		return http.StatusServiceUnavailable, "service_aborted"
	case errors.Is(err, corpus.ErrCorpusCorrupted):
		return http.StatusInternalServerError, "corpus_corrupted"
	case errors.Is(err, embedding.ErrEmbeddingFailed):
		return http.StatusUnprocessableEntity, "embedding_failed"
	case errors.Is(err, vector.ErrEmptyIndex):
		return http.StatusServiceUnavailable, "empty_index"
	case errors.Is(err, vector.ErrDimensionMismatch):
		return http.StatusInternalServerError, "dimension_mismatch"
	case errors.Is(err, vector.ErrNonFiniteVector):
		return http.StatusInternalServerError, "non_finite_vector"
	case errors.Is(err, corpus.ErrIndexOutOfRange):
		return http.StatusNotFound, "index_out_of_range"
	case errors.Is(err, storage.ErrRunNotFound):
		return http.StatusNotFound, "run_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
