// Package complexity computes cyclomatic and cognitive complexity per function.
package complexity

import (
	sitter "github.com/smacker/go-tree-sitter"

	"pmat/internal/lang"
)

// Metrics for one function.
type Metrics struct {
	Cyclomatic int `json:"cyclomatic"`
	Cognitive  int `json:"cognitive"`
	NestingMax int `json:"nesting_max"`
	Lines      int `json:"lines"`
}

// branch nodes add one path and one nesting level.
var branchNodes = map[string]bool{
	"if_statement":                true,
	"if_expression":               true,
	"if_let_expression":           true,
	"for_statement":               true,
	"for_in_statement":            true,
	"for_expression":              true,
	"while_statement":             true,
	"while_expression":            true,
	"loop_expression":             true,
	"do_statement":                true,
	"catch_clause":                true,
	"except_clause":               true,
	"conditional_expression":      true,
	"ternary_expression":          true,
	"match_expression":            true,
	"switch_statement":            true,
	"expression_switch_statement": true,
	"type_switch_statement":       true,
	"select_statement":            true,
	"match_statement":             true,
}

// case nodes add a path but no nesting.
var caseNodes = map[string]bool{
	"expression_case":    true,
	"type_case":          true,
	"communication_case": true,
	"switch_case":        true,
	"match_arm":          true,
	"case_clause":        true,
}

// switch-like nodes only nest; their arms carry the cyclomatic paths.
var switchNodes = map[string]bool{
	"match_expression":            true,
	"switch_statement":            true,
	"expression_switch_statement": true,
	"type_switch_statement":       true,
	"select_statement":            true,
	"match_statement":             true,
}

// nested function literals raise nesting without scoring.
var lambdaNodes = map[string]bool{
	"func_literal":        true,
	"arrow_function":      true,
	"function_expression": true,
	"function":            true,
	"lambda":              true,
	"closure_expression":  true,
}

var declNodes = map[string]bool{
	"function_declaration": true,
	"method_declaration":   true,
	"function_definition":  true,
	"function_item":        true,
	"method_definition":    true,
}

// Measure computes metrics for a function.
func Measure(u *lang.Unit, fn lang.Function) Metrics {
	m := Metrics{Cyclomatic: 1, Lines: fn.Lines()}
	if fn.Node == nil {
		return m
	}

	var visit func(n *sitter.Node, nesting int)
	visit = func(n *sitter.Node, nesting int) {
		t := n.Type()
		childNesting := nesting

		switch {
		case n != fn.Node && declNodes[t]:
			// measured as its own function
			return

		case lambdaNodes[t] && n != fn.Node:
			childNesting = nesting + 1

		case isElseIf(n):
			m.Cyclomatic++
			m.Cognitive++
			// an else-if stays at its parent's level
			childNesting = nesting

		case branchNodes[t]:
			if !switchNodes[t] {
				m.Cyclomatic++
			}
			m.Cognitive += 1 + nesting
			childNesting = nesting + 1
			if childNesting > m.NestingMax {
				m.NestingMax = childNesting
			}

		case caseNodes[t]:
			if !isDefaultCase(u, n) {
				m.Cyclomatic++
			}

		case t == "else_clause" || t == "else":
			if !wrapsIf(n) {
				m.Cognitive++
			}

		case isBooleanOperator(u, n):
			m.Cyclomatic++
			if !continuesSequence(u, n) {
				m.Cognitive++
			}
		}

		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i), childNesting)
		}
	}
	visit(fn.Node, 0)

	// Go's if_statement alternative is a bare block for plain else
	goElse(fn.Node, &m)
	return m
}

// isElseIf reports an if that is the alternative branch of another if.
func isElseIf(n *sitter.Node) bool {
	t := n.Type()
	if t == "elif_clause" {
		return true
	}
	if t != "if_statement" && t != "if_expression" && t != "if_let_expression" {
		return false
	}
	parent := n.Parent()
	if parent == nil {
		return false
	}
	if parent.Type() == "else_clause" {
		return true
	}
	if parent.Type() == "if_statement" {
		if alt := parent.ChildByFieldName("alternative"); alt != nil && alt.StartByte() == n.StartByte() && alt.Type() == t {
			return true
		}
	}
	return false
}

func wrapsIf(n *sitter.Node) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		switch n.NamedChild(i).Type() {
		case "if_statement", "if_expression", "if_let_expression":
			return true
		}
	}
	return false
}

// goElse counts plain else blocks in Go, which have no else node.
func goElse(root *sitter.Node, m *Metrics) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "if_statement" {
			if alt := n.ChildByFieldName("alternative"); alt != nil && alt.Type() == "block" {
				m.Cognitive++
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if declNodes[child.Type()] {
				continue
			}
			walk(child)
		}
	}
	walk(root)
}

func isDefaultCase(u *lang.Unit, n *sitter.Node) bool {
	switch n.Type() {
	case "expression_case", "type_case", "communication_case":
		return false
	case "switch_case":
		return n.ChildByFieldName("value") == nil
	case "match_arm":
		if p := n.ChildByFieldName("pattern"); p != nil {
			return u.Text(p) == "_"
		}
	case "case_clause":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "case_pattern" && u.Text(c) == "_" {
				return true
			}
		}
	}
	return false
}

func operatorOf(u *lang.Unit, n *sitter.Node) string {
	switch n.Type() {
	case "binary_expression":
		if op := n.ChildByFieldName("operator"); op != nil {
			return u.Text(op)
		}
	case "boolean_operator":
		if op := n.ChildByFieldName("operator"); op != nil {
			return u.Text(op)
		}
	}
	return ""
}

func isBooleanOperator(u *lang.Unit, n *sitter.Node) bool {
	switch operatorOf(u, n) {
	case "&&", "||", "and", "or":
		return true
	}
	return false
}

// continuesSequence is true when n's parent applies the same boolean operator,
// so "a && b && c" scores one cognitive point.
func continuesSequence(u *lang.Unit, n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}
	return operatorOf(u, parent) == operatorOf(u, n)
}
