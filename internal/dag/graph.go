// Package dag builds dependency graphs from parsed sources and renders them
// as deterministic Mermaid diagrams.
package dag

import "sort"

// NodeType classifies a graph node.
type NodeType string

const (
	NodeFunction  NodeType = "function"
	NodeClass     NodeType = "class"
	NodeModule    NodeType = "module"
	NodeTrait     NodeType = "trait"
	NodeInterface NodeType = "interface"
)

// EdgeType classifies a dependency.
type EdgeType string

const (
	EdgeCalls      EdgeType = "calls"
	EdgeImports    EdgeType = "imports"
	EdgeInherits   EdgeType = "inherits"
	EdgeImplements EdgeType = "implements"
	EdgeUses       EdgeType = "uses"
)

// NodeInfo is one graph node.
type NodeInfo struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Type       NodeType `json:"node_type"`
	File       string   `json:"file_path"`
	Line       int      `json:"line_number"`
	Complexity int      `json:"complexity"`
}

// Edge is a directed dependency.
type Edge struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Type   EdgeType `json:"edge_type"`
	Weight int      `json:"weight"`
}

// Graph is a dependency graph keyed by node ID.
type Graph struct {
	Nodes map[string]NodeInfo `json:"nodes"`
	Edges []Edge              `json:"edges"`

	index map[edgeKey]int
}

type edgeKey struct {
	from, to string
	typ      EdgeType
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{Nodes: map[string]NodeInfo{}, Edges: []Edge{}}
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(n NodeInfo) {
	g.Nodes[n.ID] = n
}

// AddEdge appends an edge. A repeated (from, to, type) edge increments the
// weight of the existing one.
func (g *Graph) AddEdge(e Edge) {
	if g.index == nil {
		g.index = make(map[edgeKey]int, len(g.Edges))
		for i, existing := range g.Edges {
			g.index[edgeKey{existing.From, existing.To, existing.Type}] = i
		}
	}
	if e.Weight == 0 {
		e.Weight = 1
	}
	key := edgeKey{e.From, e.To, e.Type}
	if i, ok := g.index[key]; ok {
		g.Edges[i].Weight += e.Weight
		return
	}
	g.index[key] = len(g.Edges)
	g.Edges = append(g.Edges, e)
}

// NodeIDs returns the node IDs in lexical order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FilterByEdgeType keeps edges of the given types and the nodes they touch.
// A graph with no edges at all keeps every node; a graph whose edges are all
// filtered out keeps none.
func (g *Graph) FilterByEdgeType(types ...EdgeType) *Graph {
	if len(g.Edges) == 0 {
		out := New()
		for id, n := range g.Nodes {
			out.Nodes[id] = n
		}
		return out
	}

	want := map[EdgeType]bool{}
	for _, t := range types {
		want[t] = true
	}
	out := New()
	for _, e := range g.Edges {
		if !want[e.Type] {
			continue
		}
		out.Edges = append(out.Edges, e)
		if n, ok := g.Nodes[e.From]; ok {
			out.Nodes[e.From] = n
		}
		if n, ok := g.Nodes[e.To]; ok {
			out.Nodes[e.To] = n
		}
	}
	return out
}

// Subgraph keeps the listed nodes and the edges between them.
func (g *Graph) Subgraph(ids []string) *Graph {
	out := New()
	for _, id := range ids {
		if n, ok := g.Nodes[id]; ok {
			out.Nodes[id] = n
		}
	}
	for _, e := range g.Edges {
		_, from := out.Nodes[e.From]
		_, to := out.Nodes[e.To]
		if from && to {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// Degrees returns in- and out-degree per node.
func (g *Graph) Degrees() (in, out map[string]int) {
	in = map[string]int{}
	out = map[string]int{}
	for _, e := range g.Edges {
		out[e.From]++
		in[e.To]++
	}
	return in, out
}
