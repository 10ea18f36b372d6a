package report

import (
	"strconv"

	"github.com/nao1215/tgsimilar/internal/model"
)

// Unknown fills export cells the platform did not report.
const Unknown = "Unknown"

// ExportHeader is the header row of every export table.
var ExportHeader = []string{"Source Channel", "Title", "Username", "URL", "Members", "Category"}

// ExportTable is the flat, source-preserving view of a run.
type ExportTable struct {
	Header []string   `json:"headers"`
	Rows   [][]string `json:"rows"`
}

// Len returns the number of data rows.
func (t ExportTable) Len() int {
	return len(t.Rows)
}

// Aggregate builds the export table of run. Rows follow the input order of
// sources and then discovery order. A channel is listed once per source but
// may appear under several sources.
func Aggregate(run *model.CrawlRun) ExportTable {
	table := ExportTable{
		Header: append([]string(nil), ExportHeader...),
		Rows:   [][]string{},
	}
	if run == nil {
		return table
	}
	for _, item := range run.Items {
		if item.Status != model.ItemSucceeded {
			continue
		}
		for _, ch := range DedupeSource(item.Channels) {
			table.Rows = append(table.Rows, exportRow(item.Source, ch))
		}
	}
	return table
}

// DedupeSource removes records with a repeated username from one source's
// list, keeping the first occurrence.
func DedupeSource(channels []model.DiscoveredChannel) []model.DiscoveredChannel {
	seen := make(map[string]struct{}, len(channels))
	out := make([]model.DiscoveredChannel, 0, len(channels))
	for _, ch := range channels {
		key := ch.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ch)
	}
	return out
}

// DiscoveredCount returns the number of rows Aggregate would produce.
func DiscoveredCount(run *model.CrawlRun) int {
	n := 0
	for _, item := range run.Items {
		if item.Status == model.ItemSucceeded {
			n += len(DedupeSource(item.Channels))
		}
	}
	return n
}

func exportRow(source model.ChannelID, ch model.DiscoveredChannel) []string {
	return []string{
		source.String(),
		ch.Title,
		ch.Username,
		model.ChannelURL(ch.Username),
		formatMembers(ch.MemberCount),
		orUnknown(ch.Category),
	}
}

func formatMembers(n *int64) string {
	if n == nil {
		return Unknown
	}
	return strconv.FormatInt(*n, 10)
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
