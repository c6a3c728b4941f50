package dag

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// MermaidOptions controls rendering.
type MermaidOptions struct {
	ShowComplexity bool
	MaxNodes       int
}

var arrows = map[EdgeType]string{
	EdgeCalls:      "-->",
	EdgeImports:    "-.->",
	EdgeInherits:   "-->|inherits|",
	EdgeImplements: "-.->|implements|",
	EdgeUses:       "---",
}

// Mermaid renders g as a "graph TD" diagram. Output is byte-identical for
// equal graphs: nodes are ordered by quantized PageRank then ID, edges by
// endpoints then type.
func Mermaid(g *Graph, opts MermaidOptions) string {
	g = Prune(g, opts.MaxNodes)

	var b strings.Builder
	b.WriteString("graph TD\n")

	ranked := RankedIDs(g)
	for _, id := range ranked {
		n := g.Nodes[id]
		label := EscapeLabel(n.Label)
		if label == "" {
			label = EscapeLabel(id)
		}
		fmt.Fprintf(&b, "    %s[%s]\n", SanitizeID(id), label)
	}
	b.WriteString("\n")

	edges := make([]Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		_, from := g.Nodes[e.From]
		_, to := g.Nodes[e.To]
		if from && to {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Type < edges[j].Type
	})
	for _, e := range edges {
		arrow, ok := arrows[e.Type]
		if !ok {
			arrow = "-->"
		}
		fmt.Fprintf(&b, "    %s %s %s\n", SanitizeID(e.From), arrow, SanitizeID(e.To))
	}

	if opts.ShowComplexity {
		b.WriteString("\n")
		for _, id := range g.NodeIDs() {
			fmt.Fprintf(&b, "    style %s fill:%s,stroke-width:2px\n", SanitizeID(id), ComplexityColor(g.Nodes[id].Complexity))
		}
	}
	return b.String()
}

// ComplexityColor buckets a complexity score into a fill color.
func ComplexityColor(c int) string {
	switch {
	case c <= 10:
		return "#90EE90"
	case c <= 20:
		return "#FFA500"
	default:
		return "#FF6347"
	}
}

// SanitizeID maps an arbitrary ID onto Mermaid's identifier alphabet.
func SanitizeID(id string) string {
	s := strings.ReplaceAll(id, "::", "_")
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	switch {
	case out == "":
		return "_empty"
	case out[0] >= '0' && out[0] <= '9':
		return "_" + out
	}
	return out
}

var labelReplacer = strings.NewReplacer(
	"&", " and ",
	`"`, "'",
	"<", "(",
	">", ")",
	"|", " - ",
	"[", "(",
	"]", ")",
	"{", "(",
	"}", ")",
	"\n", " ",
)

// EscapeLabel replaces characters that break Mermaid node labels.
func EscapeLabel(label string) string {
	return labelReplacer.Replace(label)
}
