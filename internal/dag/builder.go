package dag

import (
	"path"
	"sort"
	"strings"

	"pmat/internal/complexity"
	"pmat/internal/discovery"
	"pmat/internal/lang"
	"pmat/internal/logging"
)

// Mode selects which edges a graph keeps.
type Mode string

const (
	ModeCallGraph   Mode = "call-graph"
	ModeImportGraph Mode = "import-graph"
	ModeInheritance Mode = "inheritance"
	ModeFull        Mode = "full-dependency"
)

// ParseMode accepts the mode names and a few aliases.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "call-graph", "call", "calls":
		return ModeCallGraph, true
	case "import-graph", "import", "imports":
		return ModeImportGraph, true
	case "inheritance", "inherits":
		return ModeInheritance, true
	case "full-dependency", "full":
		return ModeFull, true
	}
	return "", false
}

// Apply filters g for the mode.
func (m Mode) Apply(g *Graph) *Graph {
	switch m {
	case ModeCallGraph:
		return g.FilterByEdgeType(EdgeCalls)
	case ModeImportGraph:
		return g.FilterByEdgeType(EdgeImports)
	case ModeInheritance:
		return g.FilterByEdgeType(EdgeInherits, EdgeImplements)
	}
	return g
}

// FunctionID is the node ID of a function in file.
func FunctionID(file, qualified string) string {
	return file + "::" + qualified
}

type builder struct {
	g         *Graph
	modules   map[string]bool
	funcs     map[string][]string // langKey -> ids
	fileFuncs map[string]map[string]string
	types     map[string][]string
	fileTypes map[string]map[string]string
}

// Build creates the full dependency graph: a module node per file, a node
// per function and type, and calls, imports, inherits, implements and uses
// edges resolved within the project.
func Build(units []*lang.Unit) *Graph {
	b := &builder{
		g:         New(),
		modules:   map[string]bool{},
		funcs:     map[string][]string{},
		fileFuncs: map[string]map[string]string{},
		types:     map[string][]string{},
		fileTypes: map[string]map[string]string{},
	}
	for _, u := range units {
		b.declare(u)
	}
	for k := range b.funcs {
		sort.Strings(b.funcs[k])
	}
	for k := range b.types {
		sort.Strings(b.types[k])
	}
	for _, u := range units {
		b.link(u)
	}
	logging.AnalysisDebug("dag: %d nodes, %d edges from %d files", len(b.g.Nodes), len(b.g.Edges), len(units))
	return b.g
}

func (b *builder) declare(u *lang.Unit) {
	b.modules[u.Path] = true
	b.fileFuncs[u.Path] = map[string]string{}
	b.fileTypes[u.Path] = map[string]string{}

	total := 0
	for _, fn := range u.Functions {
		m := complexity.Measure(u, fn)
		total += m.Cyclomatic
		id := FunctionID(u.Path, fn.QualifiedName)
		b.g.AddNode(NodeInfo{
			ID:         id,
			Label:      fn.QualifiedName,
			Type:       NodeFunction,
			File:       u.Path,
			Line:       fn.StartLine,
			Complexity: m.Cyclomatic,
		})
		k := langKey(u.Language, fn.Name)
		b.funcs[k] = append(b.funcs[k], id)
		b.fileFuncs[u.Path][fn.Name] = id
	}
	for _, t := range u.Types {
		id := u.Path + "::" + t.Name
		nt := NodeClass
		switch t.Kind {
		case "interface":
			nt = NodeInterface
		case "trait":
			nt = NodeTrait
		}
		b.g.AddNode(NodeInfo{ID: id, Label: t.Name, Type: nt, File: u.Path, Line: t.StartLine})
		k := langKey(u.Language, t.Name)
		b.types[k] = append(b.types[k], id)
		b.fileTypes[u.Path][t.Name] = id
	}
	b.g.AddNode(NodeInfo{ID: u.Path, Label: u.Path, Type: NodeModule, File: u.Path, Line: 1, Complexity: total})
}

func (b *builder) link(u *lang.Unit) {
	for _, imp := range u.Imports {
		for _, target := range b.resolveImport(u, imp.Path) {
			if target != u.Path {
				b.g.AddEdge(Edge{From: u.Path, To: target, Type: EdgeImports})
			}
		}
	}

	for _, ref := range u.Refs {
		from := u.Path
		if ref.From != "" {
			from = FunctionID(u.Path, ref.From)
		}
		if ref.Call {
			if to := resolve(ref.Name, u.Language, b.fileFuncs[u.Path], b.funcs); to != "" && to != from {
				b.g.AddEdge(Edge{From: from, To: to, Type: EdgeCalls})
			}
			continue
		}
		if ref.From == "" {
			continue
		}
		if to := resolve(ref.Name, u.Language, b.fileTypes[u.Path], b.types); to != "" {
			b.g.AddEdge(Edge{From: from, To: to, Type: EdgeUses})
		}
	}

	for _, rel := range u.Relations {
		from, ok := b.fileTypes[u.Path][rel.From]
		if !ok {
			continue
		}
		to := resolve(rel.To, u.Language, b.fileTypes[u.Path], b.types)
		if to == "" {
			continue
		}
		kind := EdgeInherits
		if rel.Kind == "implements" {
			kind = EdgeImplements
		}
		b.g.AddEdge(Edge{From: from, To: to, Type: kind})
	}
}

func langKey(language, name string) string {
	return language + ":" + name
}

// resolve prefers a same-file declaration, then a project-wide one in the
// same language when the name is unambiguous.
func resolve(name, language string, local map[string]string, global map[string][]string) string {
	if id, ok := local[name]; ok {
		return id
	}
	if ids := global[langKey(language, name)]; len(ids) == 1 {
		return ids[0]
	}
	return ""
}

func (b *builder) resolveImport(u *lang.Unit, imp string) []string {
	dir := path.Dir(u.Path)
	var candidates []string

	switch u.Language {
	case discovery.LangPython:
		trimmed := strings.TrimLeft(imp, ".")
		rel := strings.ReplaceAll(trimmed, ".", "/")
		if trimmed != imp {
			rel = path.Join(dir, rel)
		}
		candidates = []string{rel + ".py", rel + "/__init__.py"}

	case discovery.LangJavaScript, discovery.LangTypeScript:
		if !strings.HasPrefix(imp, ".") {
			return nil
		}
		base := path.Join(dir, imp)
		for _, ext := range []string{"", ".ts", ".tsx", ".js", ".jsx", ".mjs", "/index.ts", "/index.js"} {
			if b.modules[base+ext] {
				return []string{base + ext}
			}
		}
		return nil

	case discovery.LangRust:
		segs := strings.Split(imp, "::")
		for len(segs) > 0 && (segs[0] == "crate" || segs[0] == "self" || segs[0] == "super") {
			segs = segs[1:]
		}
		for k := len(segs); k > 0; k-- {
			p := strings.Join(segs[:k], "/")
			candidates = append(candidates, p+".rs", p+"/mod.rs")
		}

	case discovery.LangGo:
		return b.goPackageFiles(imp)
	}

	for _, c := range candidates {
		if ids := b.modulesBySuffix(c); len(ids) > 0 {
			return ids[:1]
		}
	}
	return nil
}

func (b *builder) modulesBySuffix(suffix string) []string {
	var out []string
	for m := range b.modules {
		if m == suffix || strings.HasSuffix(m, "/"+suffix) {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// goPackageFiles returns the non-test files of the directory whose path is a
// suffix of the import path.
func (b *builder) goPackageFiles(imp string) []string {
	var out []string
	for m := range b.modules {
		if !strings.HasSuffix(m, ".go") || strings.HasSuffix(m, "_test.go") {
			continue
		}
		d := path.Dir(m)
		if d == "." {
			continue
		}
		if imp == d || strings.HasSuffix(imp, "/"+d) {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}
