// Package duplicates finds Type-2 clones with MinHash and locality-sensitive
// hashing over normalized token streams.
package duplicates

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"pmat/internal/lang"
)

// Placeholder for every normalized literal.
const literalToken = "LITERAL"

var identifierNodes = map[string]bool{
	"identifier":                    true,
	"field_identifier":              true,
	"type_identifier":               true,
	"property_identifier":           true,
	"shorthand_property_identifier": true,
	"package_identifier":            true,
	"label_name":                    true,
}

// literal nodes are emitted as one token without descending.
var literalNodes = map[string]bool{
	"interpreted_string_literal": true,
	"raw_string_literal":         true,
	"rune_literal":               true,
	"int_literal":                true,
	"float_literal":              true,
	"imaginary_literal":          true,
	"string":                     true,
	"template_string":            true,
	"number":                     true,
	"integer":                    true,
	"float":                      true,
	"string_literal":             true,
	"char_literal":               true,
	"integer_literal":            true,
	"boolean_literal":            true,
	"true":                       true,
	"false":                      true,
}

var commentNodes = map[string]bool{
	"comment":       true,
	"line_comment":  true,
	"block_comment": true,
}

// Normalizer maps identifiers to positional names. One normalizer spans one
// fragment, so renamed variables produce identical streams.
type Normalizer struct {
	idents   bool
	literals bool
	names    map[string]string
}

// NewNormalizer creates a normalizer with the given options.
func NewNormalizer(idents, literals bool) *Normalizer {
	return &Normalizer{idents: idents, literals: literals, names: map[string]string{}}
}

func (z *Normalizer) ident(name string) string {
	if !z.idents {
		return name
	}
	if c, ok := z.names[name]; ok {
		return c
	}
	c := fmt.Sprintf("VAR_%d", len(z.names))
	z.names[name] = c
	return c
}

// Tokens flattens the leaves under n, dropping comments.
func Tokens(u *lang.Unit, n *sitter.Node, z *Normalizer) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		t := n.Type()
		switch {
		case commentNodes[t]:
			return
		case literalNodes[t]:
			if z.literals {
				out = append(out, literalToken)
			} else {
				out = append(out, u.Text(n))
			}
			return
		case identifierNodes[t]:
			out = append(out, z.ident(u.Text(n)))
			return
		}
		count := int(n.ChildCount())
		if count == 0 {
			if text := u.Text(n); text != "" {
				out = append(out, text)
			}
			return
		}
		for i := 0; i < count; i++ {
			walk(n.Child(i))
		}
	}
	walk(n)
	return out
}
