package models

import (
	"fmt"
	"strings"
)

// SearchQuery is a search request. K <= 0 means the service default.
type SearchQuery struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate trims the query and rejects blank queries and negative k.
func (q *SearchQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.K < 0 {
		return fmt.Errorf("k cannot be negative: %d", q.K)
	}
	return nil
}
