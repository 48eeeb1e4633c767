// Package extract turns source documents into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/ruiji/internal/models"
)

var (
	// ErrExtractionFailed is returned when a document yields no usable text.
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrUnsupportedFormat is returned for extensions no reader handles.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

type readFunc func(content []byte) (string, error)

var readers = map[string]readFunc{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractExcel,
	".pptx": extractPPTX,
	".odp":  extractODP,
	".ods":  extractODS,
	".odt":  extractWithCat,
	".rtf":  extractWithCat,
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
}

// SupportedExtensions returns the lowercase extensions, with leading dot, that
// Extract understands.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(readers))
	for ext := range readers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supported reports whether ext (with leading dot, any case) has a reader.
func Supported(ext string) bool {
	_, ok := readers[strings.ToLower(ext)]
	return ok
}

// Extractor extracts plain text from documents.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text of doc. Content comes from doc.Data, or from doc.Path
// when Data is nil; the format is chosen by the extension of Path (or Ref).
// Every failure, including a document with no text at all, wraps ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, doc models.RawDocument) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrExtractionFailed, doc.Ref, err)
	}
	name := doc.Path
	if name == "" {
		name = doc.Ref
	}
	content := doc.Data
	if content == nil {
		if doc.Path == "" {
			return "", fmt.Errorf("%w: %s: no content and no path", ErrExtractionFailed, doc.Ref)
		}
		var err error
		if content, err = os.ReadFile(doc.Path); err != nil {
			return "", fmt.Errorf("%w: read file: %w", ErrExtractionFailed, err)
		}
	}
	text, err := e.ExtractBytes(content, filepath.Ext(name))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s: no text content", ErrExtractionFailed, doc.Ref)
	}
	return text, nil
}

// ExtractBytes extracts text from content based on ext, which includes the
// leading dot (e.g. ".pdf"). An empty ext is read as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)
	if ext == "" {
		ext = ".txt"
	}
	read, ok := readers[ext]
	if !ok {
		return "", fmt.Errorf("%w: %w %q", ErrExtractionFailed, ErrUnsupportedFormat, ext)
	}
	text, err := read(content)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return text, nil
}
