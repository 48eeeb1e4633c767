// Package models defines core data structures for documents, queries, search results and ingestion runs.
package models

// RawDocument is a source document before text extraction. Ref identifies it in
// logs and failure reports (usually the file path). When Data is nil the extractor
// reads Path.
type RawDocument struct {
	Ref  string `json:"ref"`
	Path string `json:"path,omitempty"`
	Data []byte `json:"-"`
}

// DocumentRecord is the stored text of one corpus position and its synopsis.
type DocumentRecord struct {
	Text     string `json:"text"`
	Synopsis string `json:"synopsis"`
}
