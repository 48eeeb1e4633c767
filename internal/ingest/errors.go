package ingest

import (
	"errors"
	"fmt"
)

// ErrDocumentIngestFailed marks the failure of one document within a run.
var ErrDocumentIngestFailed = errors.New("document ingest failed")

// Stage names the pipeline step a document failed in.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageSummarize Stage = "summarize"
	StageEmbed     Stage = "embed"
	StageIndex     Stage = "index"
)

// DocumentIngestError reports which document failed and at which stage. It
// matches both ErrDocumentIngestFailed and the collaborator's own error kind
// under errors.Is.
type DocumentIngestError struct {
	Ref   string
	Stage Stage
	Err   error
}

func (e *DocumentIngestError) Error() string {
	return fmt.Sprintf("%s: %s (%s): %v", ErrDocumentIngestFailed, e.Ref, e.Stage, e.Err)
}

func (e *DocumentIngestError) Unwrap() []error {
	return []error{ErrDocumentIngestFailed, e.Err}
}

// FailurePolicy decides what a run does when a document fails.
type FailurePolicy string

const (
	// PolicySkip logs the failure and continues with the next document.
	PolicySkip FailurePolicy = "skip"
	// PolicyAbort stops the run at the first failure.
	PolicyAbort FailurePolicy = "abort"
)

// ParsePolicy parses a policy name. An empty name is PolicySkip.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want %q or %q)", s, PolicySkip, PolicyAbort)
	}
}
