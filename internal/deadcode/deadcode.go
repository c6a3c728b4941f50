// Package deadcode reports functions and types unreachable from entry points,
// plus statements that follow an unconditional exit.
package deadcode

import (
	"context"
	"sort"
	"strings"

	"pmat/internal/dag"
	"pmat/internal/discovery"
	"pmat/internal/lang"
	"pmat/internal/logging"
)

// Kind classifies a dead code finding.
type Kind string

const (
	KindUnusedFunction  Kind = "unused_function"
	KindUnusedClass     Kind = "unused_class"
	KindUnreachableCode Kind = "unreachable_code"
)

// Summary confidence reported for the project as a whole.
const ConfidenceLevel = 0.85

// Item is one dead region.
type Item struct {
	Kind       Kind    `json:"type"`
	Name       string  `json:"name"`
	File       string  `json:"file"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Lines is the inclusive span.
func (it Item) Lines() int {
	return it.EndLine - it.StartLine + 1
}

// FileResult collects a file's findings.
type FileResult struct {
	Path       string  `json:"path"`
	DeadLines  int     `json:"dead_lines"`
	TotalLines int     `json:"total_lines"`
	Percentage float64 `json:"percentage"`
	Items      []Item  `json:"items"`
}

// Summary aggregates a run.
type Summary struct {
	FilesAnalyzed      int          `json:"files_analyzed"`
	FilesWithDeadCode  int          `json:"files_with_dead_code"`
	TotalDeadCodeLines int          `json:"total_dead_code_lines"`
	TotalLines         int          `json:"total_lines"`
	PercentageDead     float64      `json:"percentage_dead"`
	DeadByType         map[Kind]int `json:"dead_by_type"`
	ConfidenceLevel    float64      `json:"confidence_level"`
}

// Report is the dead code result. Files are ranked by dead lines.
type Report struct {
	Summary Summary      `json:"summary"`
	Files   []FileResult `json:"files"`
}

// Options controls a run.
type Options struct {
	// IncludeTests reports findings inside test files too.
	IncludeTests bool
	Workers      int
	// Top limits Files; zero keeps all.
	Top int
}

// Analyze parses files and reports dead code.
func Analyze(ctx context.Context, files []discovery.File, opts Options) (*Report, error) {
	units, err := lang.ParseFiles(ctx, files, opts.Workers)
	if err != nil {
		return nil, err
	}
	defer lang.CloseAll(units)
	return Detect(units, opts), nil
}

// Detect runs reachability over the dependency graph of units.
func Detect(units []*lang.Unit, opts Options) *Report {
	timer := logging.StartTimer(logging.CategoryAnalysis, "deadcode")
	defer timer.Stop()

	g := dag.Build(units)
	linkValues(g, units)
	linkMethods(g, units)

	reached := dag.Reachable(g, entryPoints(g, units))
	foreign := foreignNames(units)

	report := &Report{Files: []FileResult{}}
	report.Summary.DeadByType = map[Kind]int{}
	report.Summary.ConfidenceLevel = ConfidenceLevel

	for _, u := range units {
		total := strings.Count(string(u.Source), "\n")
		if len(u.Source) > 0 && !strings.HasSuffix(string(u.Source), "\n") {
			total++
		}
		isTest := discovery.IsTestFile(u.Path)
		if isTest && !opts.IncludeTests {
			continue
		}
		report.Summary.FilesAnalyzed++
		report.Summary.TotalLines += total

		fr := FileResult{Path: u.Path, TotalLines: total}
		if !isTest {
			fr.Items = append(fr.Items, unusedFunctions(u, reached, foreign)...)
			fr.Items = append(fr.Items, unusedTypes(u, reached)...)
		}
		fr.Items = append(fr.Items, unreachable(u)...)
		if len(fr.Items) == 0 {
			continue
		}
		sort.Slice(fr.Items, func(i, j int) bool { return fr.Items[i].StartLine < fr.Items[j].StartLine })
		for _, it := range fr.Items {
			report.Summary.DeadByType[it.Kind]++
		}
		fr.DeadLines = coveredLines(fr.Items)
		if total > 0 {
			fr.Percentage = float64(fr.DeadLines) / float64(total) * 100
		}
		report.Summary.TotalDeadCodeLines += fr.DeadLines
		report.Files = append(report.Files, fr)
	}

	sort.SliceStable(report.Files, func(i, j int) bool {
		if report.Files[i].DeadLines != report.Files[j].DeadLines {
			return report.Files[i].DeadLines > report.Files[j].DeadLines
		}
		return report.Files[i].Path < report.Files[j].Path
	})
	report.Summary.FilesWithDeadCode = len(report.Files)
	if report.Summary.TotalLines > 0 {
		report.Summary.PercentageDead = float64(report.Summary.TotalDeadCodeLines) / float64(report.Summary.TotalLines) * 100
	}
	if opts.Top > 0 && len(report.Files) > opts.Top {
		report.Files = report.Files[:opts.Top]
	}
	logging.Analysis("deadcode: %d dead lines in %d files", report.Summary.TotalDeadCodeLines, report.Summary.FilesWithDeadCode)
	return report
}

// coveredLines counts the lines inside at least one item. Items must be
// sorted by start line; nested and overlapping spans count once.
func coveredLines(items []Item) int {
	n, end := 0, 0
	for _, it := range items {
		start := it.StartLine
		if start <= end {
			start = end + 1
		}
		if it.EndLine >= start {
			n += it.EndLine - start + 1
			end = it.EndLine
		}
	}
	return n
}

// entryPoints returns module nodes (top-level code runs on load), main and
// init functions, exported symbols and everything declared in test files.
func entryPoints(g *dag.Graph, units []*lang.Unit) []string {
	var roots []string
	for _, u := range units {
		roots = append(roots, u.Path)
		isTest := discovery.IsTestFile(u.Path)
		for _, fn := range u.Functions {
			if isTest || fn.Exported || isEntryName(fn.Name) {
				roots = append(roots, dag.FunctionID(u.Path, fn.QualifiedName))
			}
		}
		for _, t := range u.Types {
			if isTest || t.Exported {
				roots = append(roots, u.Path+"::"+t.Name)
			}
		}
	}
	return roots
}

func isEntryName(name string) bool {
	switch name {
	case "main", "init", "__init__", "__main__":
		return true
	}
	return strings.HasPrefix(name, "Test") || strings.HasPrefix(name, "test_") ||
		strings.HasPrefix(name, "Benchmark") || strings.HasPrefix(name, "Example")
}

// linkValues adds uses edges for functions referenced without a call, such
// as handlers passed as values. Resolution stays within the language.
func linkValues(g *dag.Graph, units []*lang.Unit) {
	byName := map[string][]string{}
	langOf := map[string]string{}
	for _, u := range units {
		langOf[u.Path] = u.Language
		for _, fn := range u.Functions {
			byName[fn.Name] = append(byName[fn.Name], dag.FunctionID(u.Path, fn.QualifiedName))
		}
	}
	for _, u := range units {
		for _, ref := range u.Refs {
			if ref.Call {
				continue
			}
			from := u.Path
			if ref.From != "" {
				from = dag.FunctionID(u.Path, ref.From)
			}
			for _, id := range byName[ref.Name] {
				n := g.Nodes[id]
				if id != from && langOf[n.File] == u.Language {
					g.AddEdge(dag.Edge{From: from, To: id, Type: dag.EdgeUses})
				}
			}
		}
	}
}

// linkMethods makes methods reachable through their receiver type, since
// dispatch through interfaces cannot be resolved statically.
func linkMethods(g *dag.Graph, units []*lang.Unit) {
	for _, u := range units {
		for _, fn := range u.Functions {
			owner, _, ok := strings.Cut(fn.QualifiedName, ".")
			if !ok {
				continue
			}
			typeID := u.Path + "::" + owner
			if _, exists := g.Nodes[typeID]; !exists {
				continue
			}
			g.AddEdge(dag.Edge{From: typeID, To: dag.FunctionID(u.Path, fn.QualifiedName), Type: dag.EdgeUses})
		}
	}
}

// foreignNames maps a referenced name to the languages referencing it.
func foreignNames(units []*lang.Unit) map[string]map[string]bool {
	out := map[string]map[string]bool{}
	for _, u := range units {
		for _, ref := range u.Refs {
			if out[ref.Name] == nil {
				out[ref.Name] = map[string]bool{}
			}
			out[ref.Name][u.Language] = true
		}
	}
	return out
}

func unusedFunctions(u *lang.Unit, reached map[string]bool, foreign map[string]map[string]bool) []Item {
	var out []Item
	for _, fn := range u.Functions {
		if reached[dag.FunctionID(u.Path, fn.QualifiedName)] {
			continue
		}
		it := Item{
			Kind:       KindUnusedFunction,
			Name:       fn.QualifiedName,
			File:       u.Path,
			StartLine:  fn.StartLine,
			EndLine:    fn.EndLine,
			Confidence: 0.95,
			Reason:     "not reachable from any entry point",
		}
		for l := range foreign[fn.Name] {
			if l != u.Language {
				it.Confidence = 0.8
				it.Reason = "referenced by name only from " + l + " code"
				break
			}
		}
		out = append(out, it)
	}
	return out
}

func unusedTypes(u *lang.Unit, reached map[string]bool) []Item {
	var out []Item
	for _, t := range u.Types {
		if reached[u.Path+"::"+t.Name] {
			continue
		}
		out = append(out, Item{
			Kind:       KindUnusedClass,
			Name:       t.Name,
			File:       u.Path,
			StartLine:  t.StartLine,
			EndLine:    t.EndLine,
			Confidence: 0.9,
			Reason:     "type is never referenced",
		})
	}
	return out
}
