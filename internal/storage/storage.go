// Package storage persists ingestion run reports so operators can see what the
// last runs indexed and which documents failed.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/ruiji/internal/models"
)

// ErrRunNotFound is returned when no run matches a lookup.
var ErrRunNotFound = errors.New("ingest run not found")

// RunLog records ingestion runs and their per-document failures.
type RunLog interface {
	SaveRun(ctx context.Context, run *models.IngestRun) error
	GetRun(ctx context.Context, id string) (*models.IngestRun, error)
	LatestRun(ctx context.Context) (*models.IngestRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.IngestRun, error)
	PruneRuns(ctx context.Context, keep int) (int64, error)
	Close() error
}
