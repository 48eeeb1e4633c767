package corpus

import "github.com/hyperjump/ruiji/internal/models"

// Store holds document records by position. It does no synchronization of its own;
// Corpus owns it and serializes access.
type Store struct {
	records []models.DocumentRecord
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{records: make([]models.DocumentRecord, 0)}
}

// Append stores a record and returns its position. An empty synopsis is valid.
func (s *Store) Append(text, synopsis string) int {
	s.records = append(s.records, models.DocumentRecord{Text: text, Synopsis: synopsis})
	return len(s.records) - 1
}

// Get returns the record at pos.
func (s *Store) Get(pos int) (models.DocumentRecord, error) {
	if pos < 0 || pos >= len(s.records) {
		return models.DocumentRecord{}, &RangeError{Position: pos, Length: len(s.records)}
	}
	return s.records[pos], nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

func (s *Store) truncate(n int) {
	if n < len(s.records) {
		s.records = s.records[:n]
	}
}
