package dag

import (
	"context"

	"pmat/internal/discovery"
	"pmat/internal/lang"
)

// Options controls an analysis run.
type Options struct {
	Mode           Mode
	MaxNodes       int
	ShowComplexity bool
	Workers        int
}

// RankedNode is a node with its PageRank score.
type RankedNode struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Result is a rendered graph.
type Result struct {
	Mode       Mode         `json:"mode"`
	Graph      *Graph       `json:"graph"`
	Mermaid    string       `json:"mermaid"`
	Cycles     [][]string   `json:"cycles"`
	TopRanked  []RankedNode `json:"top_ranked"`
	TotalNodes int          `json:"total_nodes"`
	TotalEdges int          `json:"total_edges"`
}

// Analyze parses files, builds the graph for the mode and renders it.
func Analyze(ctx context.Context, files []discovery.File, opts Options) (*Result, error) {
	units, err := lang.ParseFiles(ctx, files, opts.Workers)
	if err != nil {
		return nil, err
	}
	defer lang.CloseAll(units)
	return FromGraph(Build(units), opts), nil
}

// FromGraph filters, prunes and renders an already built graph.
func FromGraph(full *Graph, opts Options) *Result {
	if opts.Mode == "" {
		opts.Mode = ModeCallGraph
	}
	g := Prune(opts.Mode.Apply(full), opts.MaxNodes)

	scores := PageRank(g, DefaultDamping, DefaultIterations)
	ranked := RankedIDs(g)
	top := make([]RankedNode, 0, 10)
	for _, id := range ranked {
		if len(top) == 10 {
			break
		}
		top = append(top, RankedNode{ID: id, Score: scores[id]})
	}

	cycles := Cycles(g)
	if cycles == nil {
		cycles = [][]string{}
	}
	return &Result{
		Mode:       opts.Mode,
		Graph:      g,
		Mermaid:    Mermaid(g, MermaidOptions{ShowComplexity: opts.ShowComplexity}),
		Cycles:     cycles,
		TopRanked:  top,
		TotalNodes: len(g.Nodes),
		TotalEdges: len(g.Edges),
	}
}
