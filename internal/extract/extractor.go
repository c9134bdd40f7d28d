package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// MaxFileSizeBytes is the upload ceiling enforced before extraction runs.
const MaxFileSizeBytes = 50 * 1024 * 1024

// UnitKind hints how the normalizer should treat a raw unit.
type UnitKind string

const (
	UnitText      UnitKind = "text"       // free text, bullet detection applies
	UnitTable     UnitKind = "table"      // already flattened table row
	UnitSlideText UnitKind = "slide_text" // text lifted from a presentation slide
)

// RawUnit is one extraction unit before normalization. Locator is the
// 1-based page or slide number the unit came from.
type RawUnit struct {
	Locator int
	Kind    UnitKind
	Text    string
}

// RawExtraction is the output of one extraction collaborator.
type RawExtraction struct {
	Filename string
	Format   string
	Units    []RawUnit
}

// Extractor converts raw file bytes of one format into extraction units.
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename string) (*RawExtraction, error)
}

// Registry maps format tags to their extraction collaborator.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry builds the default registry. pdfExtractor may be nil when no
// extraction service is configured; pdf uploads then fail with a clear error.
func NewRegistry(pdfExtractor Extractor) *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	r.Register("txt", &TextExtractor{})
	r.Register("md", &MarkdownExtractor{})
	r.Register("csv", &CSVExtractor{})
	r.Register("xlsx", &XLSXExtractor{})
	r.Register("docx", &DocxExtractor{})
	r.Register("pptx", &PptxExtractor{})
	if pdfExtractor != nil {
		r.Register("pdf", pdfExtractor)
	}
	return r
}

// Register adds or replaces the extractor for a format tag.
func (r *Registry) Register(format string, e Extractor) {
	r.extractors[strings.ToLower(format)] = e
}

// Lookup returns the extractor for a format tag.
func (r *Registry) Lookup(format string) (Extractor, bool) {
	e, ok := r.extractors[strings.ToLower(strings.TrimSpace(format))]
	return e, ok
}

// FormatFromFilename derives the format tag from a filename extension.
func FormatFromFilename(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Extract dispatches to the registered extractor for the file's format.
func (r *Registry) Extract(ctx context.Context, data []byte, filename string) (*RawExtraction, error) {
	format := FormatFromFilename(filename)
	e, ok := r.Lookup(format)
	if !ok {
		return nil, fmt.Errorf("no extractor registered for format %q", format)
	}
	raw, err := e.Extract(ctx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("extraction failed for %s: %w", filename, err)
	}
	raw.Filename = filename
	raw.Format = format
	return raw, nil
}
