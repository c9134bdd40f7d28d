package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVExtractor flattens a CSV file into row-wise table units on one page,
// headers first.
type CSVExtractor struct{}

func (e *CSVExtractor) Extract(_ context.Context, data []byte, _ string) (*RawExtraction, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	raw := &RawExtraction{}
	headers, err := reader.Read()
	if err == io.EOF {
		return raw, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	raw.Units = append(raw.Units, RawUnit{
		Locator: 1,
		Kind:    UnitTable,
		Text:    "HEADERS: " + strings.Join(headers, ", "),
	})

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		parts := make([]string, 0, len(record))
		for i, val := range record {
			col := fmt.Sprintf("col%d", i+1)
			if i < len(headers) {
				col = headers[i]
			}
			parts = append(parts, fmt.Sprintf("%s: %s", col, val))
		}
		raw.Units = append(raw.Units, RawUnit{Locator: 1, Kind: UnitTable, Text: strings.Join(parts, " | ")})
		rows++
	}

	if rows > 0 {
		raw.Units = append(raw.Units, RawUnit{
			Locator: 1,
			Kind:    UnitTable,
			Text:    fmt.Sprintf("SUMMARY: %d rows, %d columns (%s)", rows, len(headers), strings.Join(headers, ", ")),
		})
	}
	return raw, nil
}
