// Package output renders analysis results for terminals and files.
package output

import (
	"errors"
	"fmt"
	"strings"
)

// Format selects how a result is rendered.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatSummary  Format = "summary"
	FormatMermaid  Format = "mermaid"
)

// Formats lists every accepted format.
var Formats = []Format{FormatTable, FormatJSON, FormatMarkdown, FormatCSV, FormatSummary, FormatMermaid}

// ErrInvalidFormat is returned by ParseFormat.
var ErrInvalidFormat = errors.New("invalid format")

// ParseFormat validates s. The empty string means table.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatTable, nil
	}
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("%w %q: must be one of %s", ErrInvalidFormat, s, strings.Join(names, ", "))
}

// Supports reports whether f is in allowed; commands use it to reject
// formats they cannot produce.
func Supports(f Format, allowed ...Format) error {
	for _, a := range allowed {
		if f == a {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return fmt.Errorf("%w %q for this command: use %s", ErrInvalidFormat, f, strings.Join(names, ", "))
}
