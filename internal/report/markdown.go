package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/tgsimilar/internal/model"
)

const timeRounding = time.Second

// MarkdownWriter outputs runs as Markdown for documentation and sharing.
//
// The report starts with the run summary and a mermaid pie chart of item
// outcomes, then lists the discovered channels per source and the failed
// items with their error class. An alert below the summary names the
// outcome, e.g. the connection error of a run that never connected.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.CrawlRun) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run)
	w.writeChannels(md, run)
	w.writeFailures(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.CrawlRun) {
	md.H1("Telegram Similar Channels Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + run.ID + "`"},
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", run.Duration().Round(timeRounding).String()},
			{"Status", markdownStatus(run)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run *model.CrawlRun) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Channels", strconv.Itoa(run.Total)},
			{"✅ Succeeded", strconv.Itoa(run.Succeeded)},
			{"❌ Failed", strconv.Itoa(run.Failed)},
			{"⏹️ Cancelled", strconv.Itoa(run.Cancelled)},
			{"Dropped before crawl", strconv.Itoa(run.Dropped)},
			{"**Similar channels**", "**" + strconv.Itoa(DiscoveredCount(run)) + "**"},
			{"Unique usernames", strconv.Itoa(len(run.UniqueUsernames()))},
		},
	})
	md.PlainText("")

	if run.Total > 0 {
		w.writePieChart(md, run)
	}
	w.writeAlert(md, run)
}

// writePieChart writes a mermaid pie chart of item statuses.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, run *model.CrawlRun) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Channel Status"),
		piechart.WithShowData(true),
	)
	if run.Succeeded > 0 {
		chart.LabelAndIntValue("Succeeded", uint64(run.Succeeded))
	}
	if run.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(run.Failed))
	}
	if run.Cancelled > 0 {
		chart.LabelAndIntValue("Cancelled", uint64(run.Cancelled))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.CrawlRun) {
	switch {
	case run.Status == model.RunConnectionFailed:
		md.Cautionf("Could not connect to Telegram: %s", run.Error)
	case run.Status == model.RunCancelled:
		md.Warningf("The run was cancelled. %d channel(s) were not crawled.", run.Cancelled)
	case run.Failed > 0:
		md.Importantf("%d of %d channel(s) failed.", run.Failed, run.Total)
	case run.Total == 0:
		md.Note("No channels were submitted.")
	default:
		md.Tip("All channels were crawled successfully.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeChannels(md *markdown.Markdown, run *model.CrawlRun) {
	md.H2("Similar Channels")
	md.PlainText("")

	table := Aggregate(run)
	if table.Len() == 0 {
		md.PlainText("No similar channels discovered.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(table.Rows))
	for i, row := range table.Rows {
		rows[i] = []string{
			"@" + row[0],
			truncateString(row[1], 50),
			"[@" + row[2] + "](" + row[3] + ")",
			row[4],
			row[5],
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Source", "Title", "Channel", "Members", "Category"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, run *model.CrawlRun) {
	failed := run.FailedItems()
	if len(failed) == 0 {
		return
	}
	md.H2("Failed Channels")
	md.PlainText("")

	rows := make([][]string, len(failed))
	for i, item := range failed {
		msg := item.Error
		if msg == "" {
			msg = "-"
		}
		rows[i] = []string{
			"@" + item.Source.String(),
			string(item.ErrorClass),
			strconv.Itoa(item.Attempts),
			truncateString(msg, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Channel", "Class", "Attempts", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [tgsimilar](https://github.com/nao1215/tgsimilar)*")
}

func markdownStatus(run *model.CrawlRun) string {
	switch run.Status {
	case model.RunCancelled:
		return "⚠️ " + statusText(run)
	case model.RunConnectionFailed:
		return "❌ " + statusText(run)
	case model.RunCompleted:
		return "✅ " + statusText(run)
	default:
		return statusText(run)
	}
}

// statusText describes the run status for humans.
func statusText(run *model.CrawlRun) string {
	switch run.Status {
	case model.RunCancelled:
		return "Cancelled (partial results)"
	case model.RunConnectionFailed:
		return "Connection failed - " + run.Error
	case model.RunCompleted:
		return "Complete"
	default:
		return string(run.Status)
	}
}

// truncateString truncates s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
