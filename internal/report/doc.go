// Package report turns crawl runs into export tables and rendered reports.
//
// Aggregate builds the source-preserving export table. Writers render a run
// in one of the supported formats:
//   - CSVWriter: the export table with a header row
//   - MarkdownWriter: summary, status chart and discovered channels
//   - JSONWriter: the run with its derived views
//   - SimpleWriter: human-readable text for terminal display
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
