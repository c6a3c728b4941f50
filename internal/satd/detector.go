package satd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"lukechampine.com/blake3"

	"pmat/internal/discovery"
	"pmat/internal/logging"
)

// MaxLineLength is the longest line comment extraction accepts.
const MaxLineLength = 10000

// ErrLineTooLong aborts extraction for a file with an oversized line.
var ErrLineTooLong = errors.New("line too long for comment extraction")

// Item is one debt marker found in a comment.
type Item struct {
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Text        string   `json:"text"`
	File        string   `json:"file"`
	Line        int      `json:"line"`
	Column      int      `json:"column"`
	ContextHash string   `json:"context_hash"`
}

// Summary counts items by severity and category.
type Summary struct {
	TotalItems    int            `json:"total_items"`
	BySeverity    map[string]int `json:"by_severity"`
	ByCategory    map[string]int `json:"by_category"`
	FilesWithSATD int            `json:"files_with_satd"`
}

// Result is a project scan.
type Result struct {
	Items              []Item    `json:"items"`
	Summary            Summary   `json:"summary"`
	TotalFilesAnalyzed int       `json:"total_files_analyzed"`
	FilesWithDebt      int       `json:"files_with_debt"`
	TotalLines         int       `json:"total_lines"`
	AnalyzedAt         time.Time `json:"analysis_timestamp"`
}

// ExtractFromContent scans content line by line. Lines inside a Rust
// #[cfg(test)] block are ignored. Items are ordered by line then column.
func ExtractFromContent(path string, content []byte) ([]Item, error) {
	var items []Item
	isRust := strings.EqualFold(filepath.Ext(path), ".rs")
	inTest := false
	depth := 0

	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), len(content)+1)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		if isRust {
			if strings.HasPrefix(trimmed, "#[cfg(test)]") {
				inTest = true
				depth = 0
			} else if inTest {
				depth += strings.Count(trimmed, "{")
				if closes := strings.Count(trimmed, "}"); closes > 0 {
					depth -= closes
					if depth < 0 {
						depth = 0
					}
					if depth == 0 && strings.HasSuffix(trimmed, "}") {
						inTest = false
					}
				}
			}
		}
		if inTest {
			continue
		}

		item, ok, err := extractLine(path, line, lineNo)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if ok {
			items = append(items, item)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Line != items[j].Line {
			return items[i].Line < items[j].Line
		}
		return items[i].Column < items[j].Column
	})
	return items, nil
}

func extractLine(path, line string, lineNo int) (Item, bool, error) {
	text, ok, err := CommentText(line)
	if err != nil || !ok {
		return Item{}, false, err
	}
	category, severity, ok := Classify(text)
	if !ok {
		return Item{}, false, nil
	}
	return Item{
		Category:    category,
		Severity:    severity,
		Text:        strings.TrimSpace(text),
		File:        path,
		Line:        lineNo,
		Column:      commentColumn(line),
		ContextHash: ContextHash(path, lineNo, text),
	}, true, nil
}

// CommentText returns the body of a line comment, a single-line block
// comment, or an HTML comment. ok is false for lines that are not comments.
func CommentText(line string) (string, bool, error) {
	if len(line) > MaxLineLength {
		return "", false, fmt.Errorf("%w (>%d chars)", ErrLineTooLong, MaxLineLength)
	}
	trimmed := strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(trimmed, "//"):
		return strings.TrimSpace(trimmed[2:]), true, nil
	case strings.HasPrefix(trimmed, "#"):
		return strings.TrimSpace(trimmed[1:]), true, nil
	case strings.HasPrefix(trimmed, "/*") && strings.HasSuffix(trimmed, "*/") && len(trimmed) >= 4:
		return strings.TrimSpace(trimmed[2 : len(trimmed)-2]), true, nil
	case strings.HasPrefix(trimmed, "<!--") && strings.HasSuffix(trimmed, "-->") && len(trimmed) >= 7:
		return strings.TrimSpace(trimmed[4 : len(trimmed)-3]), true, nil
	}
	return "", false, nil
}

func commentColumn(line string) int {
	for _, marker := range []string{"//", "#", "/*", "<!--"} {
		if pos := strings.Index(line, marker); pos >= 0 {
			return pos + 1
		}
	}
	return 1
}

// ContextHash identifies an item across runs: the first 16 bytes of
// blake3(path, little-endian line, content), hex encoded.
func ContextHash(path string, line int, content string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(path))
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(line))
	h.Write(buf[:])
	h.Write([]byte(content))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// Options controls a project scan.
type Options struct {
	IncludeTests bool
	Workers      int
}

// AnalyzeFiles scans every source file. Files that fail extraction are
// logged and skipped.
func AnalyzeFiles(ctx context.Context, files []discovery.File, opts Options) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryAnalysis, "satd")
	defer timer.Stop()

	candidates := discovery.Filter(files, func(f discovery.File) bool {
		if !discovery.IsSource(f.Language) {
			return false
		}
		if f.IsTest && !opts.IncludeTests {
			return false
		}
		return !discovery.IsGeneratedArtifact(f.RelPath)
	})

	var (
		mu         sync.Mutex
		items      []Item
		totalLines int
	)
	err := discovery.ReadAll(ctx, candidates, opts.Workers, func(ctx context.Context, f discovery.File, content []byte) error {
		found, err := ExtractFromContent(f.RelPath, content)
		if err != nil {
			logging.AnalysisWarn("satd: skipping %s: %v", f.RelPath, err)
			return nil
		}
		lines := bytes.Count(content, []byte{'\n'})
		if len(content) > 0 && content[len(content)-1] != '\n' {
			lines++
		}

		mu.Lock()
		items = append(items, found...)
		totalLines += lines
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].File != items[j].File {
			return items[i].File < items[j].File
		}
		if items[i].Line != items[j].Line {
			return items[i].Line < items[j].Line
		}
		return items[i].Column < items[j].Column
	})

	r := &Result{
		Items:              items,
		Summary:            Summarize(items),
		TotalFilesAnalyzed: len(candidates),
		TotalLines:         totalLines,
		AnalyzedAt:         time.Now().UTC(),
	}
	if r.Items == nil {
		r.Items = []Item{}
	}
	r.FilesWithDebt = r.Summary.FilesWithSATD
	logging.Analysis("satd: %d items in %d/%d files", len(items), r.FilesWithDebt, r.TotalFilesAnalyzed)
	return r, nil
}

// Summarize counts items by severity, category and file.
func Summarize(items []Item) Summary {
	s := Summary{
		TotalItems: len(items),
		BySeverity: map[string]int{},
		ByCategory: map[string]int{},
	}
	files := map[string]bool{}
	for _, it := range items {
		s.BySeverity[string(it.Severity)]++
		s.ByCategory[string(it.Category)]++
		files[it.File] = true
	}
	s.FilesWithSATD = len(files)
	return s
}

// CategoryMetrics aggregates one category.
type CategoryMetrics struct {
	Count       int      `json:"count"`
	Files       []string `json:"files"`
	AvgSeverity float64  `json:"avg_severity"`
}

// Metrics are density and per-category figures.
type Metrics struct {
	TotalDebts     int                         `json:"total_debts"`
	DensityPerKLOC float64                     `json:"debt_density_per_kloc"`
	ByCategory     map[string]*CategoryMetrics `json:"by_category"`
	Critical       []Item                      `json:"critical_debts"`
}

// ComputeMetrics derives density per thousand lines and per-category
// average severity (Low=1 through Critical=4).
func ComputeMetrics(items []Item, totalLines int) Metrics {
	m := Metrics{
		TotalDebts: len(items),
		ByCategory: map[string]*CategoryMetrics{},
		Critical:   []Item{},
	}
	if totalLines > 0 {
		m.DensityPerKLOC = float64(len(items)) / float64(totalLines) * 1000
	}

	sums := map[string]int{}
	seen := map[string]map[string]bool{}
	for _, it := range items {
		key := string(it.Category)
		cm, ok := m.ByCategory[key]
		if !ok {
			cm = &CategoryMetrics{}
			m.ByCategory[key] = cm
			seen[key] = map[string]bool{}
		}
		cm.Count++
		sums[key] += it.Severity.Rank()
		if !seen[key][it.File] {
			seen[key][it.File] = true
			cm.Files = append(cm.Files, it.File)
		}
		if it.Severity == SeverityCritical {
			m.Critical = append(m.Critical, it)
		}
	}
	for key, cm := range m.ByCategory {
		cm.AvgSeverity = float64(sums[key]) / float64(cm.Count)
		sort.Strings(cm.Files)
	}
	return m
}
