package corpus

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned when a position is outside [0, Len).
	ErrIndexOutOfRange = errors.New("position out of range")
	// ErrCorpusFrozen is returned when mutating a frozen corpus.
	ErrCorpusFrozen = errors.New("corpus is frozen")
	// ErrCorpusCorrupted means the index and the document store no longer line up.
	// It signals a bug, never a bad request.
	ErrCorpusCorrupted = errors.New("corpus corrupted")
)

// RangeError reports a lookup outside the store.
type RangeError struct {
	Position int
	Length   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %d not in [0, %d)", ErrIndexOutOfRange, e.Position, e.Length)
}

func (e *RangeError) Unwrap() error { return ErrIndexOutOfRange }

func corrupted(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrCorpusCorrupted}, args...)...)
}
