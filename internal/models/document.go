package models

import (
	"strings"
	"time"
)

// BlockKind classifies a normalized content block.
type BlockKind string

const (
	BlockParagraph BlockKind = "paragraph"
	BlockBullet    BlockKind = "bullet"
	BlockTable     BlockKind = "table"
	BlockSlideText BlockKind = "slide_text"
)

// SupportedFormats lists the document formats the pipeline accepts.
var SupportedFormats = []string{"pdf", "docx", "pptx", "txt", "csv", "xlsx", "md"}

// IsSupportedFormat reports whether the format tag is accepted for upload.
func IsSupportedFormat(format string) bool {
	format = strings.ToLower(strings.TrimSpace(format))
	for _, f := range SupportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

// ContentBlock is one normalized unit of source content. SourceLocator is
// the 1-based page, slide, or sheet number the block came from.
type ContentBlock struct {
	ID            string    `json:"id"`
	Kind          BlockKind `json:"kind"`
	SourceLocator int       `json:"source_locator"`
	Text          string    `json:"text"`
}

// ExtractedDocument is the format-independent result of normalization. Block
// order follows reading order of the source document.
type ExtractedDocument struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	Format      string         `json:"format"`
	Blocks      []ContentBlock `json:"blocks"`
	WordCount   int            `json:"word_count"`
	PageCount   int            `json:"page_count"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// FullText joins all block text in reading order.
func (d *ExtractedDocument) FullText() string {
	parts := make([]string, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n\n")
}

// BlockByID returns the block with the given id, or nil.
func (d *ExtractedDocument) BlockByID(id string) *ContentBlock {
	for i := range d.Blocks {
		if d.Blocks[i].ID == id {
			return &d.Blocks[i]
		}
	}
	return nil
}

// HasBlock reports whether the document contains a block with the given id.
func (d *ExtractedDocument) HasBlock(id string) bool {
	return d.BlockByID(id) != nil
}
