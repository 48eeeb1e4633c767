package ingest

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/hyperjump/ruiji/internal/models"
)

// Report summarizes one pipeline run.
type Report struct {
	ID         string
	Policy     FailurePolicy
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Indexed    int
	Aborted    bool
	Failures   []*DocumentIngestError
}

func newReport(policy FailurePolicy, total int) *Report {
	return &Report{
		ID:        uuid.New().String(),
		Policy:    policy,
		StartedAt: time.Now().UTC(),
		Total:     total,
	}
}

func (r *Report) addFailure(err *DocumentIngestError) {
	r.Failures = append(r.Failures, err)
}

func (r *Report) finish(aborted bool) {
	r.Aborted = aborted
	r.FinishedAt = time.Now().UTC()
}

// Err combines every document failure into one error, or nil if there were none.
func (r *Report) Err() error {
	var err error
	for _, f := range r.Failures {
		err = multierr.Append(err, f)
	}
	return err
}

// Run converts the report to its stored form.
func (r *Report) Run() *models.IngestRun {
	run := &models.IngestRun{
		ID:         r.ID,
		Policy:     string(r.Policy),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Total:      r.Total,
		Indexed:    r.Indexed,
		Aborted:    r.Aborted,
	}
	for _, f := range r.Failures {
		run.Failures = append(run.Failures, &models.IngestFailure{
			DocumentRef: f.Ref,
			Stage:       string(f.Stage),
			Message:     f.Err.Error(),
		})
	}
	return run
}
