package models

import "time"

// IngestRun summarizes one ingestion pipeline run.
type IngestRun struct {
	ID         string           `json:"id"`
	Policy     string           `json:"policy"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Total      int              `json:"total"`
	Indexed    int              `json:"indexed"`
	Aborted    bool             `json:"aborted"`
	Failures   []*IngestFailure `json:"failures,omitempty"`
}

// Failed returns the number of documents that were not indexed because of an error.
func (r *IngestRun) Failed() int {
	return len(r.Failures)
}

// IngestFailure records why one document was not indexed.
type IngestFailure struct {
	DocumentRef string `json:"document_ref"`
	Stage       string `json:"stage"`
	Message     string `json:"message"`
}
