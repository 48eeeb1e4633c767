package models

// SearchResult is a single ranked hit. Rank is 0-based and equals the hit's index in
// the returned slice; Distance is the squared Euclidean distance to the query vector.
type SearchResult struct {
	Position int     `json:"position"`
	Text     string  `json:"text"`
	Synopsis string  `json:"synopsis"`
	Distance float64 `json:"distance"`
	Rank     int     `json:"rank"`
}

// SearchResponse is the response for a search request. Results are in ascending rank.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	K         int             `json:"k"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}
