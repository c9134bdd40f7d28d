package extract

import (
	"context"
	"strings"
)

// textPageWords is the synthetic page size for plain-text files: extraction
// units need a locator even when the format has no native page concept.
const textPageWords = 1000

// TextExtractor handles plain .txt files by windowing words into synthetic
// pages, one unit per paragraph.
type TextExtractor struct{}

func (e *TextExtractor) Extract(_ context.Context, data []byte, _ string) (*RawExtraction, error) {
	text := string(data)
	raw := &RawExtraction{}

	page := 1
	wordsOnPage := 0
	for _, para := range splitParagraphs(text) {
		words := len(strings.Fields(para))
		if wordsOnPage > 0 && wordsOnPage+words > textPageWords {
			page++
			wordsOnPage = 0
		}
		wordsOnPage += words
		raw.Units = append(raw.Units, RawUnit{Locator: page, Kind: UnitText, Text: para})
	}
	return raw, nil
}

// MarkdownExtractor treats each heading-delimited section as one page.
type MarkdownExtractor struct{}

func (e *MarkdownExtractor) Extract(_ context.Context, data []byte, _ string) (*RawExtraction, error) {
	raw := &RawExtraction{}
	section := 1
	sawContent := false

	var buf []string
	flush := func() {
		if len(buf) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if joined == "" {
			return
		}
		for _, para := range splitParagraphs(joined) {
			raw.Units = append(raw.Units, RawUnit{Locator: section, Kind: UnitText, Text: para})
		}
		sawContent = true
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			flush()
			if sawContent {
				section++
			}
			heading := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
			if heading != "" {
				raw.Units = append(raw.Units, RawUnit{Locator: section, Kind: UnitText, Text: heading})
				sawContent = true
			}
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return raw, nil
}

// splitParagraphs splits text on blank lines, keeping single-newline groups
// (bullet lists and such) together so the normalizer can see them line-wise.
func splitParagraphs(text string) []string {
	var paras []string
	for _, chunk := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			paras = append(paras, chunk)
		}
	}
	return paras
}
