package actions

import (
	"fmt"
	"strconv"
	"strings"

	"pmat/internal/churn"
	"pmat/internal/complexity"
	"pmat/internal/dag"
	"pmat/internal/deadcode"
	"pmat/internal/deepcontext"
	"pmat/internal/defect"
	"pmat/internal/duplicates"
	"pmat/internal/makefile"
	"pmat/internal/output"
	"pmat/internal/remote"
	"pmat/internal/satd"
	"pmat/internal/tdg"
	"pmat/internal/templates"
)

// Write renders an action result in format f. JSON is available for every
// result; other formats depend on the result type.
func Write(p *output.Printer, f output.Format, v any) error {
	if f == output.FormatJSON {
		return p.JSON(v)
	}
	switch r := v.(type) {
	case *complexity.Report:
		return writeComplexity(p, f, r)
	case *churn.Analysis:
		return writeChurn(p, f, r)
	case *satd.Result:
		return writeSATD(p, f, r)
	case *dag.Result:
		return writeDAG(p, f, r)
	case *Architecture:
		return writeArchitecture(p, f, r)
	case *deadcode.Report:
		return writeDeadCode(p, f, r)
	case *duplicates.Report:
		return writeDuplicates(p, f, r)
	case *tdg.Analysis:
		return writeTDG(p, f, r)
	case *defect.Analysis:
		return writeDefects(p, f, r)
	case *makefile.Result:
		return writeLint(p, f, r)
	case *deepcontext.Report:
		if err := output.Supports(f, output.FormatMarkdown, output.FormatSummary); err != nil {
			return err
		}
		return p.Markdown(deepcontext.FormatMarkdown(r))
	case []*templates.Template:
		return writeTemplates(p, f, r)
	case []templates.SearchResult:
		return writeSearch(p, f, r)
	case *templates.Generated:
		if err := output.Supports(f, output.FormatTable, output.FormatMarkdown, output.FormatSummary); err != nil {
			return err
		}
		return p.Text(r.Content)
	case *templates.ValidationResult:
		return writeValidation(p, f, r)
	case *remote.Metadata:
		return writeRepo(p, f, r)
	case *templates.ScaffoldResult:
		return writeScaffold(p, f, r)
	}
	return fmt.Errorf("%w: no renderer for %T", output.ErrInvalidFormat, v)
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(v float64, prec int) string { return strconv.FormatFloat(v, 'f', prec, 64) }

func writeComplexity(p *output.Printer, f output.Format, r *complexity.Report) error {
	if err := output.Supports(f, output.FormatTable, output.FormatSummary, output.FormatMarkdown, output.FormatCSV); err != nil {
		return err
	}
	switch f {
	case output.FormatSummary:
		return p.Markdown(complexity.FormatSummary(r))
	case output.FormatMarkdown:
		return p.Markdown(complexity.FormatFull(r))
	}
	headers := []string{"File", "Function", "Line", "Cyclomatic", "Cognitive", "Nesting"}
	var rows [][]string
	for _, fc := range r.Files {
		for _, fn := range fc.Functions {
			rows = append(rows, []string{
				fc.Path, fn.Name, itoa(fn.LineStart),
				itoa(fn.Metrics.Cyclomatic), itoa(fn.Metrics.Cognitive), itoa(fn.Metrics.NestingMax),
			})
		}
	}
	if f == output.FormatCSV {
		return p.CSV(headers, rows)
	}
	if err := p.Table(headers, rows); err != nil {
		return err
	}
	return p.Text(fmt.Sprintf("%s functions, %s errors, %s warnings",
		output.Count(r.Summary.TotalFunctions),
		p.Severity("error", itoa(r.ErrorCount())),
		p.Severity("warning", itoa(r.WarningCount()))))
}

func writeChurn(p *output.Printer, f output.Format, a *churn.Analysis) error {
	if err := output.Supports(f, output.FormatTable, output.FormatSummary, output.FormatMarkdown, output.FormatCSV); err != nil {
		return err
	}
	switch f {
	case output.FormatSummary:
		return p.Markdown(churn.FormatSummary(a))
	case output.FormatMarkdown:
		return p.Markdown(churn.FormatMarkdown(a))
	case output.FormatCSV:
		s, err := churn.FormatCSV(a)
		if err != nil {
			return err
		}
		return p.Text(strings.TrimSuffix(s, "\n"))
	}
	rows := make([][]string, 0, len(a.Files))
	for _, fm := range a.Files {
		rows = append(rows, []string{
			fm.RelPath, itoa(fm.CommitCount), itoa(len(fm.UniqueAuthors)),
			"+" + itoa(fm.Additions) + " -" + itoa(fm.Deletions),
			ftoa(fm.Score, 2), output.Ago(fm.LastModified),
		})
	}
	return p.Table([]string{"File", "Commits", "Authors", "Changes", "Score", "Last Modified"}, rows)
}

func writeSATD(p *output.Printer, f output.Format, r *satd.Result) error {
	if err := output.Supports(f, output.FormatTable, output.FormatSummary, output.FormatMarkdown, output.FormatCSV); err != nil {
		return err
	}
	if f == output.FormatSummary || f == output.FormatMarkdown {
		return p.Markdown(satd.FormatMarkdown(r))
	}
	headers := []string{"Location", "Severity", "Category", "Text"}
	rows := make([][]string, 0, len(r.Items))
	for _, it := range r.Items {
		sev := string(it.Severity)
		if f == output.FormatTable {
			sev = p.Severity(strings.ToLower(sev), sev)
		}
		rows = append(rows, []string{it.File + ":" + itoa(it.Line), sev, string(it.Category), it.Text})
	}
	if f == output.FormatCSV {
		return p.CSV(headers, rows)
	}
	return p.Table(headers, rows)
}

func writeDAG(p *output.Printer, f output.Format, r *dag.Result) error {
	if err := output.Supports(f, output.FormatMermaid, output.FormatMarkdown, output.FormatTable, output.FormatSummary); err != nil {
		return err
	}
	switch f {
	case output.FormatMermaid:
		return p.Text(strings.TrimSuffix(r.Mermaid, "\n"))
	case output.FormatTable:
		rows := make([][]string, 0, len(r.TopRanked))
		for _, n := range r.TopRanked {
			rows = append(rows, []string{n.ID, ftoa(n.Score, 4)})
		}
		return p.Table([]string{"Node", "PageRank"}, rows)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Dependency Graph (%s)\n\n", r.Mode)
	fmt.Fprintf(&b, "- Nodes: %d\n- Edges: %d\n- Cycles: %d\n\n", r.TotalNodes, r.TotalEdges, len(r.Cycles))
	if f == output.FormatMarkdown {
		fmt.Fprintf(&b, "```mermaid\n%s```\n", r.Mermaid)
	}
	for i, c := range r.Cycles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.Join(c, " -> "))
	}
	return p.Markdown(b.String())
}

func writeArchitecture(p *output.Printer, f output.Format, a *Architecture) error {
	if err := output.Supports(f, output.FormatMarkdown, output.FormatSummary, output.FormatMermaid, output.FormatTable); err != nil {
		return err
	}
	if f == output.FormatMermaid {
		return p.Text(strings.TrimSuffix(a.Mermaid, "\n"))
	}
	headers := []string{"Component", "Files", "Functions", "Cyclomatic", "Fan-in", "Fan-out"}
	rows := make([][]string, 0, len(a.Components))
	for _, c := range a.Components {
		rows = append(rows, []string{c.Name, itoa(c.Files), itoa(c.Functions), itoa(c.Cyclomatic), itoa(c.FanIn), itoa(c.FanOut)})
	}
	if f == output.FormatTable {
		return p.Table(headers, rows)
	}

	var b strings.Builder
	b.WriteString("# System Architecture\n\n")
	fmt.Fprintf(&b, "- Modules: %d\n- Dependencies: %d\n- Cycles: %d\n\n", a.Modules, a.Dependencies, len(a.Cycles))
	b.WriteString("## Components\n\n| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString(strings.Repeat("|---", len(headers)) + "|\n")
	for _, r := range rows {
		b.WriteString("| " + strings.Join(r, " | ") + " |\n")
	}
	if len(a.CoreModules) > 0 {
		b.WriteString("\n## Core Modules\n\n")
		for _, n := range a.CoreModules {
			fmt.Fprintf(&b, "- %s (%.4f)\n", n.ID, n.Score)
		}
	}
	if f == output.FormatMarkdown && a.Modules > 0 {
		fmt.Fprintf(&b, "\n## Module Graph\n\n```mermaid\n%s```\n", a.Mermaid)
	}
	return p.Markdown(b.String())
}

func writeDeadCode(p *output.Printer, f output.Format, r *deadcode.Report) error {
	if err := output.Supports(f, output.FormatTable, output.FormatSummary, output.FormatMarkdown); err != nil {
		return err
	}
	if f != output.FormatTable {
		return p.Markdown(deadcode.FormatMarkdown(r))
	}
	rows := make([][]string, 0, len(r.Files))
	for _, fr := range r.Files {
		rows = append(rows, []string{fr.Path, itoa(fr.DeadLines), itoa(len(fr.Items)), ftoa(fr.Percentage, 1) + "%"})
	}
	return p.Table([]string{"File", "Dead Lines", "Items", "Dead %"}, rows)
}

func writeDuplicates(p *output.Printer, f output.Format, r *duplicates.Report) error {
	if err := output.Supports(f, output.FormatTable, output.FormatSummary, output.FormatMarkdown); err != nil {
		return err
	}
	if f != output.FormatTable {
		return p.Markdown(duplicates.FormatMarkdown(r))
	}
	var rows [][]string
	for _, g := range r.Groups {
		for _, in := range g.Fragments {
			rows = append(rows, []string{
				itoa(g.ID), in.File, itoa(in.StartLine) + "-" + itoa(in.EndLine), ftoa(in.Similarity, 2),
			})
		}
	}
	return p.Table([]string{"Group", "File", "Lines", "Similarity"}, rows)
}

func writeTDG(p *output.Printer, f output.Format, a *tdg.Analysis) error {
	if err := output.Supports(f, output.FormatTable, output.FormatSummary, output.FormatMarkdown, output.FormatCSV); err != nil {
		return err
	}
	if f == output.FormatSummary || f == output.FormatMarkdown {
		return p.Markdown(tdg.FormatMarkdown(a))
	}
	headers := []string{"File", "TDG", "Severity", "Percentile", "Confidence"}
	rows := make([][]string, 0, len(a.Scores))
	for _, s := range a.Scores {
		sev := string(s.Severity)
		if f == output.FormatTable {
			sev = p.Severity(sev, sev)
		}
		rows = append(rows, []string{s.Path, ftoa(s.Value, 2), sev, ftoa(s.Percentile, 1), ftoa(s.Confidence, 2)})
	}
	if f == output.FormatCSV {
		return p.CSV(headers, rows)
	}
	return p.Table(headers, rows)
}

func writeDefects(p *output.Printer, f output.Format, a *defect.Analysis) error {
	if err := output.Supports(f, output.FormatTable, output.FormatSummary, output.FormatMarkdown, output.FormatCSV); err != nil {
		return err
	}
	if f == output.FormatSummary || f == output.FormatMarkdown {
		return p.Markdown(defect.FormatSummary(a))
	}
	headers := []string{"File", "Probability", "Risk", "Confidence"}
	rows := make([][]string, 0, len(a.Scores))
	for _, s := range a.Scores {
		risk := string(s.Risk)
		if f == output.FormatTable {
			risk = p.Severity(map[defect.Risk]string{defect.RiskHigh: "high", defect.RiskMedium: "medium"}[s.Risk], risk)
		}
		rows = append(rows, []string{s.Path, ftoa(s.Probability, 3), risk, ftoa(s.Confidence, 2)})
	}
	if f == output.FormatCSV {
		return p.CSV(headers, rows)
	}
	return p.Table(headers, rows)
}

func writeLint(p *output.Printer, f output.Format, r *makefile.Result) error {
	if err := output.Supports(f, output.FormatTable, output.FormatSummary, output.FormatMarkdown); err != nil {
		return err
	}
	if f != output.FormatTable {
		return p.Markdown(makefile.FormatMarkdown(r))
	}
	rows := make([][]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		rows = append(rows, []string{itoa(v.Line), v.Rule, p.Severity(string(v.Severity), string(v.Severity)), v.Message})
	}
	if err := p.Table([]string{"Line", "Rule", "Severity", "Message"}, rows); err != nil {
		return err
	}
	return p.Text(fmt.Sprintf("Quality score: %.0f%%", r.QualityScore*100))
}

func writeTemplates(p *output.Printer, f output.Format, ts []*templates.Template) error {
	if err := output.Supports(f, output.FormatTable, output.FormatSummary); err != nil {
		return err
	}
	rows := make([][]string, 0, len(ts))
	for _, t := range ts {
		rows = append(rows, []string{t.URI, t.Toolchain, t.Category, t.Description})
	}
	return p.Table([]string{"URI", "Toolchain", "Category", "Description"}, rows)
}

func writeSearch(p *output.Printer, f output.Format, rs []templates.SearchResult) error {
	if err := output.Supports(f, output.FormatTable, output.FormatSummary); err != nil {
		return err
	}
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, []string{r.Template.URI, ftoa(r.Relevance, 0), strings.Join(r.Matches, ", ")})
	}
	return p.Table([]string{"URI", "Relevance", "Matches"}, rows)
}

func writeValidation(p *output.Printer, f output.Format, r *templates.ValidationResult) error {
	if err := output.Supports(f, output.FormatTable, output.FormatSummary); err != nil {
		return err
	}
	if r.Valid {
		return p.Text("All parameters are valid.")
	}
	rows := make([][]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		rows = append(rows, []string{e.Field, e.Message})
	}
	return p.Table([]string{"Field", "Problem"}, rows)
}

func writeScaffold(p *output.Printer, f output.Format, r *templates.ScaffoldResult) error {
	if err := output.Supports(f, output.FormatTable, output.FormatSummary); err != nil {
		return err
	}
	rows := make([][]string, 0, len(r.Files)+len(r.Errors))
	for _, fl := range r.Files {
		rows = append(rows, []string{fl.Path, "created", fl.Checksum[:12]})
	}
	for _, e := range r.Errors {
		rows = append(rows, []string{e.Template, "failed", e.Error})
	}
	return p.Table([]string{"File", "Status", "Detail"}, rows)
}
