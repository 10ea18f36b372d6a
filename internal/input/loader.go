package input

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies the layout of a channel list file.
type Format string

const (
	// FormatText is one identifier per line. Lines starting with "#",
	// after leading whitespace, are comments.
	FormatText Format = "text"
	// FormatCSV takes the first column of each record.
	FormatCSV Format = "csv"
	// FormatJSON accepts ["a", "b"] or {"channels": ["a", "b"]}.
	FormatJSON Format = "json"
)

var (
	// ErrUnsupportedFormat is returned for an unknown Format value.
	ErrUnsupportedFormat = errors.New("unsupported list format")

	// ErrInvalidJSONList is returned when a JSON document is neither a string
	// array nor an object with a "channels" string array.
	ErrInvalidJSONList = errors.New(`JSON list must be an array of strings or an object with a "channels" array`)

	// ErrEmptyList is returned when a file contains no entries at all.
	ErrEmptyList = errors.New("no channel identifiers found")
)

// FormatFromPath picks a Format from the file extension.
// Unknown extensions are read as plain text.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	default:
		return FormatText
	}
}

// LoadFile reads a channel list from path.
// The returned entries are raw; pass them to Validate.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open channel list: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	entries, err := ReadList(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyList
	}
	return entries, nil
}

// ReadList reads raw entries from r in the given format.
// Blank lines and empty records are skipped, and so are "#" comment lines
// of text lists. Comments never reach Validate, so they are not counted as
// dropped.
func ReadList(r io.Reader, format Format) ([]string, error) {
	switch format {
	case FormatText:
		return readText(r)
	case FormatCSV:
		return readCSV(r)
	case FormatJSON:
		return readJSON(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func readText(r io.Reader) ([]string, error) {
	var entries []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func readCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entries []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 || isBlank(record[0]) {
			continue
		}
		entries = append(entries, strings.TrimSpace(record[0]))
	}
	return entries, nil
}

func readJSON(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Channels *[]string `json:"channels"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil || wrapped.Channels == nil {
		return nil, ErrInvalidJSONList
	}
	return *wrapped.Channels, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
