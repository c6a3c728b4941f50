package churn

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// FormatSummary is the short plain report.
func FormatSummary(a *Analysis) string {
	var b strings.Builder
	b.WriteString("# Code Churn Analysis\n\n")
	fmt.Fprintf(&b, "Period: %d days\n", a.PeriodDays)
	fmt.Fprintf(&b, "Total files changed: %d\n", a.Summary.TotalFilesChanged)
	fmt.Fprintf(&b, "Total commits: %d\n\n", a.Summary.TotalCommits)

	if len(a.Summary.HotspotFiles) > 0 {
		b.WriteString("## Hotspot Files (High Churn)\n")
		for i, f := range head(a.Summary.HotspotFiles, 5) {
			fmt.Fprintf(&b, "%d. %s\n", i+1, f)
		}
		b.WriteString("\n")
	}
	if len(a.Summary.StableFiles) > 0 {
		b.WriteString("## Stable Files (Low Churn)\n")
		for i, f := range head(a.Summary.StableFiles, 5) {
			fmt.Fprintf(&b, "%d. %s\n", i+1, f)
		}
	}
	return b.String()
}

// FormatMarkdown renders the top ten files as a table.
func FormatMarkdown(a *Analysis) string {
	var b strings.Builder
	b.WriteString("# Code Churn Analysis Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n", a.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "**Repository:** %s\n", a.RepositoryRoot)
	fmt.Fprintf(&b, "**Period:** %d days\n\n", a.PeriodDays)

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Total files changed: %d\n", a.Summary.TotalFilesChanged)
	fmt.Fprintf(&b, "- Total commits: %d\n", a.Summary.TotalCommits)
	fmt.Fprintf(&b, "- Unique contributors: %d\n\n", len(a.Summary.AuthorContributions))

	b.WriteString("## Top 10 Files by Churn Score\n\n")
	b.WriteString("| File | Commits | Changes | Churn Score | Authors |\n")
	b.WriteString("|------|---------|---------|-------------|---------|\n")
	n := len(a.Files)
	if n > 10 {
		n = 10
	}
	for _, f := range a.Files[:n] {
		fmt.Fprintf(&b, "| %s | %d | +%d -%d | %.2f | %d |\n",
			f.RelPath, f.CommitCount, f.Additions, f.Deletions, f.Score, len(f.UniqueAuthors))
	}
	return b.String()
}

// FormatCSV writes one row per file.
func FormatCSV(a *Analysis) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"file_path", "commits", "additions", "deletions", "churn_score", "unique_authors", "last_modified"}); err != nil {
		return "", err
	}
	for _, f := range a.Files {
		row := []string{
			f.RelPath,
			strconv.Itoa(f.CommitCount),
			strconv.Itoa(f.Additions),
			strconv.Itoa(f.Deletions),
			strconv.FormatFloat(f.Score, 'f', 3, 64),
			strconv.Itoa(len(f.UniqueAuthors)),
			f.LastModified.Format("2006-01-02"),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.String(), nil
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
