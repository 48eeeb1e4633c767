// Package cli formats search results, ingest runs and service status for the ruiji CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one line per result.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	textPreviewRunes     = 200
	compactSynopsisRunes = 80
	separator            = "---------------------------------------------------------"
)

// ParseOutputFormat returns the format named s.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%d\t%.4f\t#%d\t%s\n", r.Rank+1, r.Distance, r.Position,
				utils.Truncate(utils.SingleLine(synopsisOrText(r)), compactSynopsisRunes))
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func synopsisOrText(r *models.SearchResult) string {
	if strings.TrimSpace(r.Synopsis) != "" {
		return r.Synopsis
	}
	return r.Text
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms for %q\n\n", response.Total, response.QueryTime, response.Query)
	for _, r := range response.Results {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "Rank: %d | Distance: %.4f | Document: %d\n", r.Rank+1, r.Distance, r.Position)
		if r.Synopsis != "" {
			fmt.Fprintf(w, "Synopsis: %s\n", utils.SingleLine(r.Synopsis))
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Text, textPreviewRunes))
	}
}

// WriteRun writes one ingest run report, including its failures.
func WriteRun(w io.Writer, run *models.IngestRun, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, run)
	case OutputCompact:
		writeRunLine(w, run)
		return nil
	default:
		state := "completed"
		if run.Aborted {
			state = "aborted"
		}
		fmt.Fprintf(w, "run:       %s (%s)\n", run.ID, state)
		fmt.Fprintf(w, "policy:    %s\n", run.Policy)
		fmt.Fprintf(w, "started:   %s\n", run.StartedAt.Local().Format(time.RFC3339))
		fmt.Fprintf(w, "elapsed:   %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
		fmt.Fprintf(w, "documents: %d total, %d indexed, %d failed\n", run.Total, run.Indexed, run.Failed())
		if len(run.Failures) > 0 {
			fmt.Fprintln(w, "\n# failures")
			for _, f := range run.Failures {
				fmt.Fprintf(w, "  [%s] %s: %s\n", f.Stage, f.DocumentRef, f.Message)
			}
		}
		return nil
	}
}

// WriteRuns writes a list of ingest runs, newest first, one line each unless format is JSON.
func WriteRuns(w io.Writer, runs []*models.IngestRun, format OutputFormat) error {
	if format == OutputJSON {
		if runs == nil {
			runs = []*models.IngestRun{}
		}
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no ingest runs recorded")
		return nil
	}
	for _, run := range runs {
		writeRunLine(w, run)
	}
	return nil
}

func writeRunLine(w io.Writer, run *models.IngestRun) {
	state := "ok"
	if run.Aborted {
		state = "aborted"
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d indexed\t%d failed\n",
		run.ID, run.StartedAt.Local().Format(time.RFC3339), state, run.Indexed, run.Total, run.Failed())
}

// Status is the shape of GET /api/v1/status.
type Status struct {
	Documents      int               `json:"documents"`
	Dimensions     int               `json:"dimensions"`
	DefaultK       int               `json:"default_k"`
	MaxK           int               `json:"max_k"`
	MaxConcurrent  int64             `json:"max_concurrent"`
	Healthy        bool              `json:"healthy"`
	Error          string            `json:"error,omitempty"`
	LastRun        *models.IngestRun `json:"last_run,omitempty"`
	DiskUsageBytes *int64            `json:"disk_usage_bytes,omitempty"`
}

// WriteStatus writes the service status.
func WriteStatus(w io.Writer, status *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "documents:       %d   # documents in the corpus\n", status.Documents)
	fmt.Fprintf(w, "dimensions:      %d\n", status.Dimensions)
	fmt.Fprintf(w, "default_k:       %d\n", status.DefaultK)
	fmt.Fprintf(w, "max_k:           %d\n", status.MaxK)
	fmt.Fprintf(w, "max_concurrent:  %d   # searches running at once\n", status.MaxConcurrent)
	fmt.Fprintf(w, "healthy:         %t\n", status.Healthy)
	if status.Error != "" {
		fmt.Fprintf(w, "error:           %s\n", status.Error)
	}
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage:      %d   # run log bytes on disk\n", *status.DiskUsageBytes)
	}
	if status.LastRun != nil {
		fmt.Fprintln(w, "\n# last ingest run")
		return WriteRun(w, status.LastRun, OutputText)
	}
	return nil
}
