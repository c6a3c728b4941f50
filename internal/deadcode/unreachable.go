package deadcode

import (
	sitter "github.com/smacker/go-tree-sitter"

	"pmat/internal/lang"
)

var blockNodes = map[string]bool{
	"block":           true,
	"statement_block": true,
	"statement_list":  true,
}

// terminators end control flow for the rest of their block. Rust exits are
// expressions, bare or wrapped in an expression_statement.
var terminators = map[string]bool{
	"return_statement":    true,
	"raise_statement":     true,
	"throw_statement":     true,
	"break_statement":     true,
	"continue_statement":  true,
	"goto_statement":      true,
	"return_expression":   true, // rust
	"break_expression":    true,
	"continue_expression": true,
}

// terminator reports the control flow exit n performs, if any.
func terminator(n *sitter.Node) (string, bool) {
	if n.Type() == "expression_statement" && n.NamedChildCount() > 0 {
		n = n.NamedChild(0)
	}
	if terminators[n.Type()] {
		return n.Type(), true
	}
	return "", false
}

type span struct {
	start, end uint32
}

// unreachable finds statements after a terminator in the same block. Each
// extracted function is walked on its own, so the walk stops at nested ones.
func unreachable(u *lang.Unit) []Item {
	own := make(map[span]bool, len(u.Functions))
	for _, fn := range u.Functions {
		if fn.Node != nil {
			own[span{fn.Node.StartByte(), fn.Node.EndByte()}] = true
		}
	}

	var out []Item
	var walk func(n *sitter.Node, fn string, top bool)
	walk = func(n *sitter.Node, fn string, top bool) {
		if !top && own[span{n.StartByte(), n.EndByte()}] {
			return
		}
		if blockNodes[n.Type()] {
			if it, ok := deadTail(u, n, fn); ok {
				out = append(out, it)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i), fn, false)
		}
	}
	for _, fn := range u.Functions {
		if fn.Node != nil {
			walk(fn.Node, fn.QualifiedName, true)
		}
	}
	return out
}

func deadTail(u *lang.Unit, block *sitter.Node, fn string) (Item, bool) {
	count := int(block.NamedChildCount())
	for i := 0; i < count; i++ {
		exit, ok := terminator(block.NamedChild(i))
		if !ok {
			continue
		}
		var first, last *sitter.Node
		for j := i + 1; j < count; j++ {
			s := block.NamedChild(j)
			if s.Type() == "comment" || s.Type() == "line_comment" || s.Type() == "block_comment" {
				continue
			}
			if first == nil {
				first = s
			}
			last = s
		}
		if first == nil {
			return Item{}, false
		}
		return Item{
			Kind:       KindUnreachableCode,
			Name:       fn,
			File:       u.Path,
			StartLine:  lang.LineOf(first),
			EndLine:    lang.EndLineOf(last),
			Confidence: 0.99,
			Reason:     "follows " + exit,
		}, true
	}
	return Item{}, false
}
