package dag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmat/internal/config"
	"pmat/internal/discovery"
	"pmat/internal/lang"
)

func graphOf(edges ...Edge) *Graph {
	g := New()
	for _, e := range edges {
		for _, id := range []string{e.From, e.To} {
			if _, ok := g.Nodes[id]; !ok {
				g.AddNode(NodeInfo{ID: id, Label: id, Type: NodeFunction})
			}
		}
		g.AddEdge(e)
	}
	return g
}

func TestPageRankAndMermaid(t *testing.T) {
	g := New()
	g.AddNode(NodeInfo{ID: "a", Label: "A", Type: NodeFunction, Complexity: 3})
	g.AddNode(NodeInfo{ID: "b", Label: "B", Type: NodeFunction, Complexity: 25})
	g.AddEdge(Edge{From: "a", To: "b", Type: EdgeCalls})

	q := Quantize(PageRank(g, DefaultDamping, DefaultIterations))
	assert.InDelta(t, 750, q["a"], 1)
	assert.InDelta(t, 1387, q["b"], 1)

	want := "graph TD\n    b[B]\n    a[A]\n\n    a --> b\n"
	assert.Equal(t, want, Mermaid(g, MermaidOptions{}))

	styled := Mermaid(g, MermaidOptions{ShowComplexity: true})
	assert.Contains(t, styled, "    style a fill:#90EE90,stroke-width:2px\n")
	assert.Contains(t, styled, "    style b fill:#FF6347,stroke-width:2px\n")
}

func TestMermaidDeterministic(t *testing.T) {
	build := func() *Graph {
		return graphOf(
			Edge{From: "x", To: "y", Type: EdgeImports},
			Edge{From: "y", To: "z", Type: EdgeInherits},
			Edge{From: "z", To: "x", Type: EdgeImplements},
			Edge{From: "w", To: "x", Type: EdgeUses},
		)
	}
	first := Mermaid(build(), MermaidOptions{})
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Mermaid(build(), MermaidOptions{}))
	}
	assert.Contains(t, first, "    x -.-> y\n")
	assert.Contains(t, first, "    y -->|inherits| z\n")
	assert.Contains(t, first, "    z -.->|implements| x\n")
	assert.Contains(t, first, "    w --- x\n")
}

func TestMermaidShapesAndPrune(t *testing.T) {
	g := graphOf(Edge{From: "a", To: "hub", Type: EdgeCalls}, Edge{From: "b", To: "hub", Type: EdgeCalls})
	n := g.Nodes["hub"]
	n.Type = NodeTrait
	g.AddNode(n)

	out := Mermaid(g, MermaidOptions{MaxNodes: 1})
	assert.Equal(t, "graph TD\n    hub[hub]\n\n", out)

	n.Type = NodeInterface
	g.AddNode(n)
	out = Mermaid(g, MermaidOptions{})
	assert.Contains(t, out, "    hub[hub]\n")
	assert.Contains(t, out, "    a[a]\n")
	assert.NotContains(t, out, "((")
}

func TestSanitizeAndEscape(t *testing.T) {
	assert.Equal(t, "src_main_rs_foo_bar", SanitizeID("src/main.rs::foo-bar"))
	assert.Equal(t, "_1abc", SanitizeID("1abc"))
	assert.Equal(t, "_empty", SanitizeID(""))
	assert.Equal(t, "caf__x", SanitizeID("café x"))
	assert.Equal(t, "a(b) and 'c' - (d)", EscapeLabel(`a<b>&"c"|[d]`))
}

func TestCyclesAndReachable(t *testing.T) {
	g := graphOf(
		Edge{From: "a", To: "b", Type: EdgeCalls},
		Edge{From: "b", To: "c", Type: EdgeCalls},
		Edge{From: "c", To: "a", Type: EdgeCalls},
		Edge{From: "c", To: "d", Type: EdgeCalls},
		Edge{From: "d", To: "d", Type: EdgeCalls},
	)
	assert.Equal(t, [][]string{{"a", "b", "c"}}, Cycles(g))

	seen := Reachable(g, []string{"d"})
	assert.Equal(t, map[string]bool{"d": true}, seen)
	seen = Reachable(g, []string{"b", "missing"})
	assert.Len(t, seen, 4)
}

func TestFilterByEdgeType(t *testing.T) {
	g := graphOf(Edge{From: "a", To: "b", Type: EdgeImports}, Edge{From: "b", To: "c", Type: EdgeCalls})
	f := g.FilterByEdgeType(EdgeCalls)
	assert.Len(t, f.Edges, 1)
	assert.Len(t, f.Nodes, 2)
	assert.NotContains(t, f.Nodes, "a")

	none := g.FilterByEdgeType(EdgeInherits)
	assert.Empty(t, none.Nodes)

	bare := New()
	bare.AddNode(NodeInfo{ID: "solo"})
	assert.Len(t, bare.FilterByEdgeType(EdgeCalls).Nodes, 1)
}

func TestAddEdgeMergesWeight(t *testing.T) {
	g := graphOf(Edge{From: "a", To: "b", Type: EdgeCalls})
	g.AddEdge(Edge{From: "a", To: "b", Type: EdgeCalls})
	g.AddEdge(Edge{From: "a", To: "b", Type: EdgeUses})
	require.Len(t, g.Edges, 2)
	assert.Equal(t, 2, g.Edges[0].Weight)
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("imports")
	assert.True(t, ok)
	assert.Equal(t, ModeImportGraph, m)
	_, ok = ParseMode("sideways")
	assert.False(t, ok)
}

func parseUnit(t *testing.T, path, language, src string) *lang.Unit {
	t.Helper()
	u, err := lang.Parse(context.Background(), path, language, []byte(src))
	require.NoError(t, err)
	t.Cleanup(u.Close)
	return u
}

func hasEdge(g *Graph, from, to string, typ EdgeType) bool {
	for _, e := range g.Edges {
		if e.From == from && e.To == to && e.Type == typ {
			return true
		}
	}
	return false
}

func TestBuildGo(t *testing.T) {
	mainSrc := `package main

import "example.com/app/pkg"

func main() {
	local()
	pkg.Helper()
}

func local() {}
`
	utilSrc := `package pkg

type Store struct{}

func Helper() {
	var s Store
	_ = s
}
`
	g := Build([]*lang.Unit{
		parseUnit(t, "main.go", "go", mainSrc),
		parseUnit(t, "pkg/util.go", "go", utilSrc),
	})

	assert.Equal(t, NodeModule, g.Nodes["main.go"].Type)
	assert.Equal(t, NodeClass, g.Nodes["pkg/util.go::Store"].Type)
	assert.True(t, hasEdge(g, "main.go", "pkg/util.go", EdgeImports))
	assert.True(t, hasEdge(g, "main.go::main", "main.go::local", EdgeCalls))
	assert.True(t, hasEdge(g, "main.go::main", "pkg/util.go::Helper", EdgeCalls))
	assert.True(t, hasEdge(g, "pkg/util.go::Helper", "pkg/util.go::Store", EdgeUses))

	calls := ModeCallGraph.Apply(g)
	assert.Len(t, calls.Edges, 2)
}

func TestBuildPythonInheritance(t *testing.T) {
	src := `from .base import Base

class Child(Base):
    pass
`
	base := `class Base:
    pass
`
	g := Build([]*lang.Unit{
		parseUnit(t, "app/child.py", "python", src),
		parseUnit(t, "app/base.py", "python", base),
	})
	assert.True(t, hasEdge(g, "app/child.py::Child", "app/base.py::Base", EdgeInherits))
	assert.True(t, hasEdge(g, "app/child.py", "app/base.py", EdgeImports))
}

func TestAnalyze(t *testing.T) {
	root := t.TempDir()
	src := "package main\n\nfunc main() { helper() }\n\nfunc helper() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(src), 0644))

	w, err := discovery.NewWalker(config.DefaultDiscoveryConfig())
	require.NoError(t, err)
	files, err := w.Discover(context.Background(), root)
	require.NoError(t, err)

	r, err := Analyze(context.Background(), files, Options{Mode: ModeCallGraph, Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, r.TotalNodes)
	assert.Equal(t, 1, r.TotalEdges)
	assert.Contains(t, r.Mermaid, "main_go_main --> main_go_helper")
	assert.Empty(t, r.Cycles)
	assert.Equal(t, "main.go::helper", r.TopRanked[0].ID)
}
