package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// docxPageWords is the synthetic page size for Word documents; the OOXML body
// carries no page boundaries, so pages are approximated by word count.
const docxPageWords = 500

// DocxExtractor pulls paragraphs and table rows out of the OOXML document
// part. DOCX is a zip of XML parts; only word/document.xml matters here.
type DocxExtractor struct{}

func (e *DocxExtractor) Extract(_ context.Context, data []byte, _ string) (*RawExtraction, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a valid docx archive: %w", err)
	}
	part, err := readZipPart(zr, "word/document.xml")
	if err != nil {
		return nil, err
	}

	units, err := walkOfficeXML(part)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document.xml: %w", err)
	}

	raw := &RawExtraction{}
	page := 1
	wordsOnPage := 0
	for _, u := range units {
		words := len(strings.Fields(u.Text))
		if wordsOnPage > 0 && wordsOnPage+words > docxPageWords {
			page++
			wordsOnPage = 0
		}
		wordsOnPage += words
		u.Locator = page
		raw.Units = append(raw.Units, u)
	}
	return raw, nil
}

// PptxExtractor pulls per-slide text and table rows out of the slide parts.
type PptxExtractor struct{}

var slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func (e *PptxExtractor) Extract(_ context.Context, data []byte, _ string) (*RawExtraction, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a valid pptx archive: %w", err)
	}

	type slidePart struct {
		number int
		file   *zip.File
	}
	var parts []slidePart
	for _, f := range zr.File {
		m := slidePartRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		parts = append(parts, slidePart{number: n, file: f})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].number < parts[j].number })

	raw := &RawExtraction{}
	for _, part := range parts {
		rc, err := part.file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open slide part %d: %w", part.number, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read slide part %d: %w", part.number, err)
		}
		units, err := walkOfficeXML(content)
		if err != nil {
			return nil, fmt.Errorf("failed to parse slide %d: %w", part.number, err)
		}
		for _, u := range units {
			if u.Kind == UnitText {
				u.Kind = UnitSlideText
			}
			u.Locator = part.number
			raw.Units = append(raw.Units, u)
		}
	}
	return raw, nil
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open %s: %w", name, err)
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("archive has no %s part", name)
}

// walkOfficeXML scans an OOXML part and emits one unit per paragraph and one
// per table row. WordprocessingML and DrawingML share local element names
// (p, t, tbl, tr, tc), so a single walker covers docx bodies and pptx slides.
func walkOfficeXML(part []byte) ([]RawUnit, error) {
	decoder := xml.NewDecoder(bytes.NewReader(part))

	var units []RawUnit
	var para strings.Builder
	var cell strings.Builder
	var row []string
	tableDepth := 0
	inCell := false
	inText := false

	flushPara := func() {
		text := strings.TrimSpace(para.String())
		para.Reset()
		if text != "" {
			units = append(units, RawUnit{Kind: UnitText, Text: text})
		}
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "tr":
				if tableDepth > 0 {
					row = row[:0]
				}
			case "tc":
				if tableDepth > 0 {
					inCell = true
					cell.Reset()
				}
			case "t":
				inText = true
			case "br", "tab":
				if inCell {
					cell.WriteString(" ")
				} else {
					para.WriteString(" ")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				if tableDepth > 0 {
					tableDepth--
				}
			case "tr":
				if tableDepth > 0 && len(row) > 0 {
					units = append(units, RawUnit{Kind: UnitTable, Text: strings.Join(row, " | ")})
				}
			case "tc":
				if tableDepth > 0 {
					row = append(row, strings.TrimSpace(cell.String()))
					inCell = false
				}
			case "t":
				inText = false
			case "p":
				if !inCell && tableDepth == 0 {
					flushPara()
				} else if inCell {
					cell.WriteString(" ")
				}
			}
		case xml.CharData:
			if !inText {
				continue
			}
			if inCell {
				cell.Write(t)
			} else if tableDepth == 0 {
				para.Write(t)
			}
		}
	}
	flushPara()
	return units, nil
}
