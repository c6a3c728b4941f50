package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes results to w. Styling is applied only on terminals.
type Printer struct {
	w     io.Writer
	color bool
	width int
}

// New returns a printer that styles output when w is a terminal.
func New(w io.Writer) *Printer {
	return &Printer{w: w, color: IsTerminal(w), width: 100}
}

// Plain returns a printer that never styles output.
func Plain(w io.Writer) *Printer {
	return &Printer{w: w, width: 100}
}

// Writer is the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Styled reports whether terminal styling is on.
func (p *Printer) Styled() bool { return p.color }

// JSON writes v as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Text writes s, adding a trailing newline when missing.
func (p *Printer) Text(s string) error {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, err := io.WriteString(p.w, s)
	return err
}

// Markdown writes md, rendered through glamour on terminals.
func (p *Printer) Markdown(md string) error {
	if p.color {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(p.width))
		if err == nil {
			if out, err := r.Render(md); err == nil {
				_, err = io.WriteString(p.w, out)
				return err
			}
		}
	}
	return p.Text(md)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Table writes rows under headers with a box border.
func (p *Printer) Table(headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow && p.color {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})
	return p.Text(t.String())
}

// CSV writes rows under headers as RFC 4180 CSV.
func (p *Printer) CSV(headers []string, rows [][]string) error {
	w := csv.NewWriter(p.w)
	if err := w.Write(headers); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// Severity colors text by level on terminals: error red, warning yellow,
// anything else cyan.
func (p *Printer) Severity(level, text string) string {
	if !p.color {
		return text
	}
	color := "6"
	switch strings.ToLower(level) {
	case "error", "critical", "high":
		color = "1"
	case "warning", "medium":
		color = "3"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(text)
}

// Bytes formats a size such as "1.2 MB".
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Count formats an integer with thousands separators.
func Count(n int) string { return humanize.Comma(int64(n)) }

// Ago formats t relative to now, such as "3 days ago".
func Ago(t time.Time) string { return humanize.Time(t) }

// Duration rounds d for display.
func Duration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}

// Open returns a writer for path, or stdout when path is empty or "-".
func Open(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
