package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/nao1215/tgsimilar/internal/model"
)

// CSVWriter writes the export table as CSV: the header row, then one row
// per discovered channel.
//
// Rows keep their source channel, so a channel recommended by two sources
// appears twice. Only succeeded sources contribute rows; failures are
// visible in the other formats.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the export table of run.
func (w *CSVWriter) Write(run *model.CrawlRun) (int, error) {
	return w.WriteTable(Aggregate(run))
}

// WriteTable outputs an already aggregated table.
func (w *CSVWriter) WriteTable(table ExportTable) (int, error) {
	cw := &countingWriter{w: w.output}
	enc := csv.NewWriter(cw)
	if err := enc.Write(table.Header); err != nil {
		return cw.n, fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := enc.WriteAll(table.Rows); err != nil {
		return cw.n, fmt.Errorf("failed to write csv rows: %w", err)
	}
	return cw.n, nil
}
