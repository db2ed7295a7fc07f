// Package export serializes curated dictionary rows for download. The CSV
// layout is a round-trip contract with downstream consumers: the raw data
// columns in schema order followed by the fixed trailing columns desired,
// category, keyword_matched, with booleans rendered as TRUE/FALSE.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/curation/curator/internal/domain/dictionary"
)

// Trailing selection columns appended after the data columns.
var selectionColumns = []string{"desired", "category", "keyword_matched"}

// CSVExporter writes rows as CSV.
type CSVExporter struct{}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter() *CSVExporter { return &CSVExporter{} }

// ContentType returns the MIME type for CSV downloads.
func (e *CSVExporter) ContentType() string { return "text/csv" }

// FileName returns the download file name for a dictionary type.
func (e *CSVExporter) FileName(t dictionary.Type) string {
	return fmt.Sprintf("%s_desired.csv", t)
}

// Write serializes rows to w. The header is taken from the first row's
// column set plus a source column; rows whose schema differs (a collection
// can mix source systems) have missing columns rendered empty.
func (e *CSVExporter) Write(w io.Writer, rows []*dictionary.Row) error {
	cw := csv.NewWriter(w)

	dataCols := columnUnion(rows)
	header := append([]string{}, dataCols...)
	header = append(header, "source")
	header = append(header, selectionColumns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, 0, len(header))
	for _, row := range rows {
		record = record[:0]
		for _, c := range dataCols {
			record = append(record, row.Values[c])
		}
		record = append(record, string(row.Source))
		record = append(record, boolText(row.Desired), row.Category, row.KeywordMatched)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.Key, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// columnUnion returns the data columns across all rows, preserving first-seen
// order so rows from the same schema keep their declared column order.
func columnUnion(rows []*dictionary.Row) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, c := range row.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}

func boolText(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
