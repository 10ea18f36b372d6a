package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nao1215/tgsimilar/internal/model"
)

// JSONWriter outputs runs in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Document is the JSON shape written by JSONWriter.
type Document struct {
	*model.CrawlRun

	// Sources lists the queried channels in input order.
	Sources []model.ChannelID `json:"sources"`

	// SimilarChannels maps succeeded sources to their channels.
	SimilarChannels map[model.ChannelID][]model.DiscoveredChannel `json:"similar_channels"`

	// UniqueUsernames lists every discovered username once.
	UniqueUsernames []string `json:"unique_usernames"`

	// TotalSimilar is the number of export rows.
	TotalSimilar int `json:"total_similar_channels"`

	// Export is the flat table also used for CSV.
	Export ExportTable `json:"export_data"`
}

// NewDocument builds the JSON document of run.
func NewDocument(run *model.CrawlRun) Document {
	usernames := run.UniqueUsernames()
	if usernames == nil {
		usernames = []string{}
	}
	table := Aggregate(run)
	return Document{
		CrawlRun:        run,
		Sources:         run.Sources(),
		SimilarChannels: run.SimilarChannels(),
		UniqueUsernames: usernames,
		TotalSimilar:    table.Len(),
		Export:          table,
	}
}

// Write outputs the run and its derived views.
func (w *JSONWriter) Write(run *model.CrawlRun) (int, error) {
	return w.writeJSON(NewDocument(run))
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
