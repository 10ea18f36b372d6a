package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/tgsimilar/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text for terminal display.
//
// By default it prints counts per source; verbose mode adds every
// discovered channel with its member count. It is also the summary the
// CLI prints next to a report written to a file.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints sections that have nothing to list.
	showEmpty bool

	// verbose lists every discovered channel instead of counts only.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables listing every discovered channel.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary.
func (w *SimpleWriter) Write(run *model.CrawlRun) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, run)
	w.writeSummary(&sb, run)
	w.writeSources(&sb, run)
	w.writeFailures(&sb, run)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, run *model.CrawlRun) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                   TELEGRAM SIMILAR CHANNELS REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:     %s\n", run.ID)
	fmt.Fprintf(sb, "Started:    %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:   %s\n", run.Duration().Round(timeRounding))
	fmt.Fprintf(sb, "Status:     %s\n", statusText(run))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, run *model.CrawlRun) {
	section(sb, "SUMMARY")

	fmt.Fprintf(sb, "  CHANNELS:   %d\n", run.Total)
	fmt.Fprintf(sb, "  SUCCEEDED:  %d\n", run.Succeeded)
	fmt.Fprintf(sb, "  FAILED:     %d\n", run.Failed)
	if run.Cancelled > 0 || w.showEmpty {
		fmt.Fprintf(sb, "  CANCELLED:  %d\n", run.Cancelled)
	}
	if run.Dropped > 0 || w.showEmpty {
		fmt.Fprintf(sb, "  DROPPED:    %d\n", run.Dropped)
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  SIMILAR:    %d channels (%d unique)\n", DiscoveredCount(run), len(run.UniqueUsernames()))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSources(sb *strings.Builder, run *model.CrawlRun) {
	if run.Succeeded == 0 && !w.showEmpty {
		return
	}
	section(sb, "SIMILAR CHANNELS")

	if run.Succeeded == 0 {
		sb.WriteString("  No channels resolved\n\n")
		return
	}
	for _, item := range run.Items {
		if item.Status != model.ItemSucceeded {
			continue
		}
		channels := DedupeSource(item.Channels)
		fmt.Fprintf(sb, "[+] @%s: %d similar\n", item.Source, len(channels))
		if !w.verbose {
			continue
		}
		for _, ch := range channels {
			fmt.Fprintf(sb, "    * @%s", ch.Username)
			if ch.Title != "" {
				fmt.Fprintf(sb, " (%s)", ch.Title)
			}
			fmt.Fprintf(sb, " members: %s\n", formatMembers(ch.MemberCount))
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, run *model.CrawlRun) {
	failed := run.FailedItems()
	if len(failed) == 0 && !w.showEmpty {
		return
	}
	section(sb, "FAILED CHANNELS")

	if len(failed) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, item := range failed {
		fmt.Fprintf(sb, "[%s] @%s (%s, %d attempts)\n", failureIndicator(item), item.Source, item.ErrorClass, item.Attempts)
		if w.verbose && item.Error != "" {
			fmt.Fprintf(sb, "    Error: %s\n", item.Error)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by tgsimilar\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// failureIndicator returns a short marker for the failure class.
func failureIndicator(item model.ItemResult) string {
	switch item.ErrorClass {
	case model.ErrorClassNotAChannel:
		return "?"
	case model.ErrorClassRateLimited:
		return "~"
	case model.ErrorClassCancelled:
		return "-"
	case model.ErrorClassFatal, model.ErrorClassConnectionFailure:
		return "!!"
	case model.ErrorClassNone, model.ErrorClassTransient:
		return "!"
	default:
		return "!"
	}
}
