package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nao1215/tgsimilar/internal/model"
)

func TestCSVWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n, err := NewCSVWriter(&buf).Write(createTestRun())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != buf.Len() {
		t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want header + 3 rows", len(records))
	}
	if strings.Join(records[0], ",") != "Source Channel,Title,Username,URL,Members,Category" {
		t.Errorf("header = %v", records[0])
	}
}

func TestCSVWriter_Escaping(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	table := ExportTable{
		Header: ExportHeader,
		Rows:   [][]string{{"src", `Title, with "quotes"`, "user", "https://t.me/user", Unknown, Unknown}},
	}
	if _, err := NewCSVWriter(&buf).WriteTable(table); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"Title, with ""quotes"""`) {
		t.Errorf("field not escaped: %s", buf.String())
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("compact", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("compact output should be a single line")
		}

		var doc map[string]any
		if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		for _, key := range []string{"id", "total_channels", "successful_channels", "failed_channels", "sources", "similar_channels", "unique_usernames", "export_data"} {
			if _, ok := doc[key]; !ok {
				t.Errorf("missing key %q", key)
			}
		}
		similar, ok := doc["similar_channels"].(map[string]any)
		if !ok || len(similar) != 2 {
			t.Errorf("similar_channels = %v, want two succeeded sources", doc["similar_channels"])
		}
		if doc["total_similar_channels"] != float64(3) {
			t.Errorf("total_similar_channels = %v", doc["total_similar_channels"])
		}
		if got := fmt.Sprint(doc["sources"]); got != "[golang rustlang missing]" {
			t.Errorf("sources = %s, want every queried channel in input order", got)
		}
	})

	t.Run("pretty", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent("", "\t")).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n\t\"id\": \"run-1\"") {
			t.Errorf("expected tab indentation:\n%s", buf.String())
		}
	})
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{
			"TELEGRAM SIMILAR CHANNELS REPORT",
			"run-1",
			"SUCCEEDED:  2",
			"FAILED:     1",
			"3 channels (2 unique)",
			"[+] @golang: 2 similar",
			"[?] @missing (not_a_channel, 1 attempts)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q", want)
			}
		}
		if strings.Contains(output, "* @gonews") {
			t.Error("channel list should only appear in verbose mode")
		}
	})

	t.Run("verbose lists channels and errors", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "* @gonews (Go News) members: 1200") {
			t.Errorf("verbose output missing channel line:\n%s", output)
		}
		if !strings.Contains(output, "Error: missing: not_a_channel") {
			t.Error("verbose output missing error")
		}
	})

	t.Run("show empty", func(t *testing.T) {
		t.Parallel()

		run := model.NewCrawlRun("empty", nil, createTestRun().StartedAt)
		run.Status = model.RunCompleted

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No channels resolved") {
			t.Error("expected empty section")
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf).Write(createTestRun()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()
	for _, want := range []string{
		"# Telegram Similar Channels Report",
		"## Summary",
		"```mermaid",
		"Channel Status",
		"[@gonews](https://t.me/gonews)",
		"## Failed Channels",
		"not_a_channel",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestMarkdownWriter_ConnectionFailure(t *testing.T) {
	t.Parallel()

	run := model.NewCrawlRun("r", model.NewWorkItems([]model.ChannelID{"abc"}), createTestRun().StartedAt)
	run.Items[0].Status = model.ItemFailed
	run.Items[0].ErrorClass = model.ErrorClassConnectionFailure
	run.Status = model.RunConnectionFailed
	run.Error = "platform connection failed: refused"
	run.Recount()

	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf).Write(run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Could not connect to Telegram") {
		t.Errorf("expected caution alert:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "No similar channels discovered.") {
		t.Error("expected empty channel section")
	}
}

type failingWriter struct{}

func (failingWriter) Write(*model.CrawlRun) (int, error) { return 3, errors.New("disk full") }

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	n, err := NewMultiWriter(NewCSVWriter(&a), NewJSONWriter(&b)).Write(createTestRun())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != a.Len()+b.Len() {
		t.Errorf("n = %d, want %d", n, a.Len()+b.Len())
	}

	var c bytes.Buffer
	n, err = NewMultiWriter(failingWriter{}, NewCSVWriter(&c)).Write(createTestRun())
	if err == nil || n != 3 || c.Len() != 0 {
		t.Errorf("expected stop on first error: n=%d err=%v wrote=%d", n, err, c.Len())
	}
}

func TestNewWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		want   string
	}{
		{FormatCSV, "*report.CSVWriter"},
		{FormatMarkdown, "*report.MarkdownWriter"},
		{FormatJSON, "*report.JSONWriter"},
		{FormatText, "*report.SimpleWriter"},
		{"", "*report.SimpleWriter"},
	}
	for _, tt := range tests {
		w, err := NewWriter(tt.format, &bytes.Buffer{}, false)
		if err != nil {
			t.Fatalf("NewWriter(%q) error = %v", tt.format, err)
		}
		if got := fmt.Sprintf("%T", w); got != tt.want {
			t.Errorf("NewWriter(%q) = %s, want %s", tt.format, got, tt.want)
		}
	}

	if _, err := NewWriter("xml", &bytes.Buffer{}, false); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("err = %v, want ErrUnknownFormat", err)
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 2, "ab"},
		{"каналы телеграм", 9, "каналы..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
