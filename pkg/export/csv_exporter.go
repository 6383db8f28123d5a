package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// CSVExporter writes the header row followed by one record per row. Title and
// subtitle are dropped so the file stays machine readable.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType implements Renderer.
func (e *CSVExporter) ContentType() string { return "text/csv" }

// Extension implements Renderer.
func (e *CSVExporter) Extension() string { return "csv" }

// Render implements Renderer.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the dataset to w.
func (e *CSVExporter) Write(w io.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return ErrNoHeaders
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(data.Headers); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	var record []string
	for i := range data.Rows {
		record = data.Record(i, record)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
