package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFromFilename(t *testing.T) {
	assert.Equal(t, "pdf", FormatFromFilename("report.PDF"))
	assert.Equal(t, "docx", FormatFromFilename("notes.docx"))
	assert.Equal(t, "", FormatFromFilename("noextension"))
}

func TestTextExtractorParagraphsAndPaging(t *testing.T) {
	e := &TextExtractor{}
	raw, err := e.Extract(context.Background(), []byte("first paragraph\n\nsecond paragraph"), "a.txt")
	require.NoError(t, err)
	require.Len(t, raw.Units, 2)
	assert.Equal(t, "first paragraph", raw.Units[0].Text)
	assert.Equal(t, 1, raw.Units[0].Locator)
	assert.Equal(t, UnitText, raw.Units[0].Kind)

	// Two paragraphs of 600 words each must land on different synthetic pages.
	big := strings.Repeat("word ", 600)
	raw, err = e.Extract(context.Background(), []byte(big+"\n\n"+big), "b.txt")
	require.NoError(t, err)
	require.Len(t, raw.Units, 2)
	assert.Equal(t, 1, raw.Units[0].Locator)
	assert.Equal(t, 2, raw.Units[1].Locator)
}

func TestMarkdownExtractorSections(t *testing.T) {
	md := "# Intro\nwelcome text\n\n## Details\nmore text\n"
	raw, err := (&MarkdownExtractor{}).Extract(context.Background(), []byte(md), "doc.md")
	require.NoError(t, err)
	require.Len(t, raw.Units, 4)
	assert.Equal(t, "Intro", raw.Units[0].Text)
	assert.Equal(t, 1, raw.Units[0].Locator)
	assert.Equal(t, 1, raw.Units[1].Locator)
	assert.Equal(t, "Details", raw.Units[2].Text)
	assert.Equal(t, 2, raw.Units[2].Locator)
	assert.Equal(t, "more text", raw.Units[3].Text)
	assert.Equal(t, 2, raw.Units[3].Locator)
}

func TestCSVExtractor(t *testing.T) {
	csvData := "name,role\nana,trainer\nbo,learner\n"
	raw, err := (&CSVExtractor{}).Extract(context.Background(), []byte(csvData), "people.csv")
	require.NoError(t, err)
	require.Len(t, raw.Units, 4)
	assert.Equal(t, "HEADERS: name, role", raw.Units[0].Text)
	assert.Equal(t, "name: ana | role: trainer", raw.Units[1].Text)
	assert.Equal(t, "SUMMARY: 2 rows, 2 columns (name, role)", raw.Units[3].Text)
	for _, u := range raw.Units {
		assert.Equal(t, UnitTable, u.Kind)
		assert.Equal(t, 1, u.Locator)
	}
}

func buildZip(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range parts {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDocxExtractorParagraphsAndTables(t *testing.T) {
	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>A</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>B</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
    <w:p><w:r><w:t>After table</w:t></w:r></w:p>
  </w:body>
</w:document>`
	data := buildZip(t, map[string]string{"word/document.xml": doc})

	raw, err := (&DocxExtractor{}).Extract(context.Background(), data, "doc.docx")
	require.NoError(t, err)
	require.Len(t, raw.Units, 3)
	assert.Equal(t, "Hello world", raw.Units[0].Text)
	assert.Equal(t, UnitText, raw.Units[0].Kind)
	assert.Equal(t, "A | B", raw.Units[1].Text)
	assert.Equal(t, UnitTable, raw.Units[1].Kind)
	assert.Equal(t, "After table", raw.Units[2].Text)
	assert.Equal(t, 1, raw.Units[2].Locator)
}

func TestDocxExtractorSyntheticPaging(t *testing.T) {
	para := "<w:p><w:r><w:t>" + strings.TrimSpace(strings.Repeat("word ", 300)) + "</w:t></w:r></w:p>"
	doc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		para + para + para + `</w:body></w:document>`
	data := buildZip(t, map[string]string{"word/document.xml": doc})

	raw, err := (&DocxExtractor{}).Extract(context.Background(), data, "long.docx")
	require.NoError(t, err)
	require.Len(t, raw.Units, 3)
	assert.Equal(t, 1, raw.Units[0].Locator)
	assert.Equal(t, 2, raw.Units[1].Locator)
	assert.Equal(t, 3, raw.Units[2].Locator)
}

func TestPptxExtractorSlideOrderAndKind(t *testing.T) {
	slide := func(text string) string {
		return `<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:sld>`
	}
	data := buildZip(t, map[string]string{
		"ppt/slides/slide10.xml": slide("tenth"),
		"ppt/slides/slide2.xml":  slide("second"),
		"ppt/slides/slide1.xml":  slide("first"),
	})

	raw, err := (&PptxExtractor{}).Extract(context.Background(), data, "deck.pptx")
	require.NoError(t, err)
	require.Len(t, raw.Units, 3)
	assert.Equal(t, "first", raw.Units[0].Text)
	assert.Equal(t, 1, raw.Units[0].Locator)
	assert.Equal(t, "second", raw.Units[1].Text)
	assert.Equal(t, 2, raw.Units[1].Locator)
	assert.Equal(t, "tenth", raw.Units[2].Text)
	assert.Equal(t, 10, raw.Units[2].Locator)
	for _, u := range raw.Units {
		assert.Equal(t, UnitSlideText, u.Kind)
	}
}

func TestPDFExtractorOCRFallback(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseMultipartForm(1<<20))
		ocr := r.FormValue("ocr") == "true"
		resp := pdfExtractResponse{Pages: []pdfPageResult{
			{Page: 1, Text: "page one text"},
			{Page: 2, Text: ""},
		}}
		if ocr {
			resp.Pages[1].Text = "ocr recovered text"
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewPDFExtractor(srv.URL, 10*time.Second)
	raw, err := e.Extract(context.Background(), []byte("%PDF-1.4"), "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, raw.Units, 2)
	assert.Equal(t, "page one text", raw.Units[0].Text)
	assert.Equal(t, 1, raw.Units[0].Locator)
	assert.Equal(t, "ocr recovered text", raw.Units[1].Text)
	assert.Equal(t, 2, raw.Units[1].Locator)
}

func TestPDFExtractorBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"error":"parser crashed"}`)
	}))
	defer srv.Close()

	e := NewPDFExtractor(srv.URL, 10*time.Second)
	_, err := e.Extract(context.Background(), []byte("%PDF-1.4"), "broken.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parser crashed")
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry(nil)

	raw, err := r.Extract(context.Background(), []byte("hello there"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", raw.Filename)
	assert.Equal(t, "txt", raw.Format)

	_, err = r.Extract(context.Background(), []byte("x"), "image.png")
	require.Error(t, err)

	// No pdf collaborator configured means pdf lookups fail.
	_, ok := r.Lookup("pdf")
	assert.False(t, ok)
}
