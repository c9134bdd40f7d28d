package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXExtractor flattens a workbook into row-wise table units, one synthetic
// page per sheet.
type XLSXExtractor struct{}

func (e *XLSXExtractor) Extract(_ context.Context, data []byte, _ string) (*RawExtraction, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	raw := &RawExtraction{}
	for sheetIdx, sheet := range f.GetSheetList() {
		locator := sheetIdx + 1
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		var headers []string
		for rowIdx, row := range rows {
			if rowIdx == 0 {
				headers = row
				raw.Units = append(raw.Units, RawUnit{
					Locator: locator,
					Kind:    UnitTable,
					Text:    fmt.Sprintf("SHEET %s HEADERS: %s", sheet, strings.Join(row, ", ")),
				})
				continue
			}
			parts := make([]string, 0, len(row))
			for i, val := range row {
				col := fmt.Sprintf("col%d", i+1)
				if i < len(headers) && headers[i] != "" {
					col = headers[i]
				}
				parts = append(parts, fmt.Sprintf("%s: %s", col, val))
			}
			raw.Units = append(raw.Units, RawUnit{Locator: locator, Kind: UnitTable, Text: strings.Join(parts, " | ")})
		}
	}
	return raw, nil
}
