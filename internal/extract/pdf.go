package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// PDFExtractor delegates PDF parsing to the extraction backend. PDFs need a
// real text-layer parser plus OCR for scanned pages, which lives in a
// separate service.
type PDFExtractor struct {
	baseURL string
	client  *http.Client
}

func NewPDFExtractor(baseURL string, timeout time.Duration) *PDFExtractor {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &PDFExtractor{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type pdfPageResult struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

type pdfExtractResponse struct {
	Pages []pdfPageResult `json:"pages"`
	Error string          `json:"error,omitempty"`
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte, filename string) (*RawExtraction, error) {
	pages, err := e.requestPages(ctx, data, filename, false)
	if err != nil {
		return nil, err
	}

	// Pages with an empty text layer are usually scans; retry those with OCR.
	var blank []int
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			blank = append(blank, p.Page)
		}
	}
	if len(blank) > 0 {
		logrus.Infof("PDF %s has %d pages without a text layer, retrying with OCR", filename, len(blank))
		ocrPages, err := e.requestPages(ctx, data, filename, true)
		if err != nil {
			logrus.Warnf("OCR pass failed for %s, keeping text-layer results: %v", filename, err)
		} else {
			byPage := make(map[int]string, len(ocrPages))
			for _, p := range ocrPages {
				byPage[p.Page] = p.Text
			}
			for i := range pages {
				if strings.TrimSpace(pages[i].Text) == "" {
					pages[i].Text = byPage[pages[i].Page]
				}
			}
		}
	}

	raw := &RawExtraction{}
	for _, p := range pages {
		for _, para := range splitParagraphs(p.Text) {
			raw.Units = append(raw.Units, RawUnit{
				Locator: p.Page,
				Kind:    UnitText,
				Text:    para,
			})
		}
	}
	return raw, nil
}

func (e *PDFExtractor) requestPages(ctx context.Context, data []byte, filename string, ocr bool) ([]pdfPageResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file to form: %w", err)
	}
	if ocr {
		if err := writer.WriteField("ocr", "true"); err != nil {
			return nil, fmt.Errorf("failed to write form field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	apiURL := fmt.Sprintf("%s/extract/pdf", e.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		logrus.Errorf("HTTP request failed to extraction backend %s: %v", apiURL, err)
		return nil, fmt.Errorf("failed to call extraction backend: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logrus.Errorf("Extraction backend returned status %d: %s", resp.StatusCode, string(respBytes))
		var errResp pdfExtractResponse
		if err := json.Unmarshal(respBytes, &errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("extraction backend error: %s", errResp.Error)
		}
		return nil, fmt.Errorf("extraction backend returned status %d", resp.StatusCode)
	}

	var parsed pdfExtractResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	return parsed.Pages, nil
}
