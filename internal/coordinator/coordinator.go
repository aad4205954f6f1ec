// Package coordinator implements the import coordinator:
// extension dispatch to registered importers, per-record validation, and
// batch accounting that never aborts on a single file's failure.
package coordinator

import (
	"fmt"
	"strings"
	"time"

	"isometry/internal/importers"
	"isometry/internal/logging"
	"isometry/internal/model"
)

// FileError pairs a failed file with its error, for ImportFiles' batch
// accumulator.
type FileError struct {
	File  string
	Error error
}

// BatchResult is importFiles' accumulator: {imported, skipped, errors[],
// duration, records}.
type BatchResult struct {
	Imported int
	Skipped  int
	Errors   []FileError
	Duration time.Duration
	Records  []model.CanonicalRecord
}

// Coordinator holds the extension -> importer registry. Registration is
// idempotent: re-registering the same extensions overwrites the prior
// importer rather than erroring.
type Coordinator struct {
	registry map[string]importers.Importer
}

func New() *Coordinator {
	return &Coordinator{registry: make(map[string]importers.Importer)}
}

// Register normalizes extensions to lowercase (with a leading dot) and
// binds them to imp. Safe to call repeatedly for the same extension.
func (c *Coordinator) Register(extensions []string, imp importers.Importer) {
	for _, ext := range extensions {
		c.registry[normalizeExtension(ext)] = imp
	}
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// DetectFormat extracts filename's extension and confirms it is
// registered; fails with *model.UnsupportedFormat otherwise.
func (c *Coordinator) DetectFormat(filename string) (string, error) {
	ext := extensionOf(filename)
	if ext == "" {
		return "", &model.UnsupportedFormat{Filename: filename}
	}
	if _, ok := c.registry[ext]; !ok {
		return "", &model.UnsupportedFormat{Filename: filename, Extension: ext}
	}
	return ext, nil
}

func extensionOf(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	// Guard against a dotfile with no real extension, e.g. ".gitignore".
	base := filename[:idx]
	if base == "" || strings.HasSuffix(base, "/") {
		return ""
	}
	return strings.ToLower(filename[idx:])
}

// ImportFile dispatches source to its registered importer, then validates
// every produced record. A single record's validation failure aborts the
// whole file with an indexed error.
func (c *Coordinator) ImportFile(source importers.FileSource) ([]model.CanonicalRecord, error) {
	ext, err := c.DetectFormat(source.Filename)
	if err != nil {
		return nil, err
	}

	imp := c.registry[ext]
	raw, err := imp.Import(source)
	if err != nil {
		return nil, err
	}

	validated := make([]model.CanonicalRecord, 0, len(raw))
	for i, rec := range raw {
		v, err := model.Validate(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d from %s failed validation: %w", i, source.Filename, err)
		}
		validated = append(validated, v)
	}
	return validated, nil
}

// ImportFiles processes sources sequentially in the order given; within a
// single file, records are written (here: accumulated) in importer-
// emission order. Per-file failures do not abort the batch.
func (c *Coordinator) ImportFiles(sources []importers.FileSource) BatchResult {
	start := time.Now()
	result := BatchResult{}

	for _, source := range sources {
		records, err := c.ImportFile(source)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, FileError{File: source.Filename, Error: err})
			logging.Import("skipped %s: %v", source.Filename, err)
			continue
		}
		result.Imported++
		result.Records = append(result.Records, records...)
	}

	result.Duration = time.Since(start)
	return result
}
