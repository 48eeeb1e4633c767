package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/ruiji/internal/extract"
	"github.com/hyperjump/ruiji/internal/models"
)

// Collect lists the regular files under dirs whose extension is in exts
// (case-insensitive, with or without the dot; empty means every extension the
// extractor supports). Files come in lexical path order per directory,
// directories in the order given, and a file reached twice is listed once.
// Subdirectories are entered only when recursive is set.
func Collect(dirs, exts []string, recursive bool) ([]models.RawDocument, error) {
	if len(exts) == 0 {
		exts = extract.SupportedExtensions()
	}
	seen := make(map[string]bool)
	var docs []models.RawDocument
	for _, dir := range dirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("absolute path: %w", err)
		}
		info, err := os.Stat(absDir)
		if err != nil {
			return nil, fmt.Errorf("stat directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("not a directory: %s", absDir)
		}
		var paths []string
		err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != absDir && !recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if !extensionAllowed(filepath.Ext(path), exts) {
				return nil
			}
			// Resolve symlinks so only regular files are read.
			finfo, statErr := os.Stat(path)
			if statErr != nil || !finfo.Mode().IsRegular() {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", absDir, err)
		}
		sort.Strings(paths)
		for _, p := range paths {
			if seen[p] {
				continue
			}
			seen[p] = true
			docs = append(docs, models.RawDocument{Ref: p, Path: p})
		}
	}
	return docs, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
