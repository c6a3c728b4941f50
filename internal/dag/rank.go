package dag

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

// PageRank defaults.
const (
	DefaultDamping     = 0.85
	DefaultIterations  = 100
	QuantizationFactor = 10000
)

// PageRank runs a fixed number of synchronous power iterations starting from
// a uniform distribution. Rank flowing out of dangling nodes is dropped, so
// scores need not sum to one; the fixed iteration count keeps output stable.
func PageRank(g *Graph, damping float64, iterations int) map[string]float64 {
	n := len(g.Nodes)
	scores := make(map[string]float64, n)
	if n == 0 {
		return scores
	}

	ids := g.NodeIDs()
	incoming := make(map[string][]string, n)
	outCount := make(map[string]int, n)
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			continue
		}
		if _, ok := g.Nodes[e.To]; !ok {
			continue
		}
		incoming[e.To] = append(incoming[e.To], e.From)
		outCount[e.From]++
	}

	for _, id := range ids {
		scores[id] = 1 / float64(n)
	}
	base := (1 - damping) / float64(n)
	for i := 0; i < iterations; i++ {
		next := make(map[string]float64, n)
		for _, id := range ids {
			s := base
			for _, src := range incoming[id] {
				s += damping * scores[src] / float64(outCount[src])
			}
			next[id] = s
		}
		scores = next
	}
	return scores
}

// Quantize scales scores to integers so ordering is immune to float drift.
func Quantize(scores map[string]float64) map[string]int {
	out := make(map[string]int, len(scores))
	for id, s := range scores {
		out[id] = int(s * QuantizationFactor)
	}
	return out
}

// RankedIDs orders nodes by quantized PageRank descending, then by ID.
func RankedIDs(g *Graph) []string {
	q := Quantize(PageRank(g, DefaultDamping, DefaultIterations))
	ids := g.NodeIDs()
	sort.SliceStable(ids, func(i, j int) bool {
		if q[ids[i]] != q[ids[j]] {
			return q[ids[i]] > q[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Prune keeps the maxNodes highest-ranked nodes. maxNodes <= 0 keeps all.
func Prune(g *Graph, maxNodes int) *Graph {
	if maxNodes <= 0 || len(g.Nodes) <= maxNodes {
		return g
	}
	return g.Subgraph(RankedIDs(g)[:maxNodes])
}

// Cycles returns the strongly connected components with more than one node,
// each sorted, ordered by their first member.
func Cycles(g *Graph) [][]string {
	dg, ids, _ := directed(g)

	var cycles [][]string
	for _, scc := range topo.TarjanSCC(dg) {
		if len(scc) < 2 {
			continue
		}
		members := make([]string, 0, len(scc))
		for _, node := range scc {
			members = append(members, ids[node.ID()])
		}
		sort.Strings(members)
		cycles = append(cycles, members)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// Reachable returns every node reachable from roots along edges.
func Reachable(g *Graph, roots []string) map[string]bool {
	dg, ids, index := directed(g)
	seen := map[string]bool{}
	bfs := traverse.BreadthFirst{
		Visit: func(n graph.Node) { seen[ids[n.ID()]] = true },
	}
	for _, r := range roots {
		if i, ok := index[r]; ok {
			bfs.Walk(dg, dg.Node(i), nil)
		}
	}
	return seen
}

// directed converts g to a gonum graph whose node IDs index the sorted ID
// list. Self loops are dropped.
func directed(g *Graph) (graph.Directed, []string, map[string]int64) {
	ids := g.NodeIDs()
	index := make(map[string]int64, len(ids))
	dg := simple.NewDirectedGraph()
	for i, id := range ids {
		index[id] = int64(i)
		dg.AddNode(simple.Node(i))
	}
	for _, e := range g.Edges {
		from, ok1 := index[e.From]
		to, ok2 := index[e.To]
		if ok1 && ok2 && from != to {
			dg.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		}
	}
	return dg, ids, index
}
