package lang

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"pmat/internal/discovery"
)

var functionNodes = map[string]bool{
	"function_declaration":           true, // go, js, ts
	"method_declaration":             true, // go
	"function_definition":            true, // python
	"function_item":                  true, // rust
	"method_definition":              true, // js, ts
	"generator_function_declaration": true,
}

var typeNodes = map[string]string{
	"class_definition":           "class", // python
	"class_declaration":          "class", // js, ts
	"abstract_class_declaration": "class",
	"interface_declaration":      "interface", // ts
	"struct_item":                "struct",    // rust
	"enum_item":                  "enum",
	"trait_item":                 "trait",
	"enum_declaration":           "enum", // ts
}

var callNodes = map[string]bool{
	"call_expression": true,
	"call":            true,
	"new_expression":  true,
}

var identNodes = map[string]bool{
	"identifier":                    true,
	"field_identifier":              true,
	"type_identifier":               true,
	"property_identifier":           true,
	"shorthand_property_identifier": true,
}

type extractor struct {
	u       *Unit
	defined map[uint32]bool
}

func newExtractor(u *Unit) *extractor {
	return &extractor{u: u, defined: make(map[uint32]bool)}
}

func (e *extractor) text(n *sitter.Node) string {
	return n.Content(e.u.Source)
}

func (e *extractor) run() {
	var walk func(n *sitter.Node, fn string, owner string)
	walk = func(n *sitter.Node, fn string, owner string) {
		nodeType := n.Type()

		switch {
		case functionNodes[nodeType]:
			if f, ok := e.function(n, owner); ok {
				e.u.Functions = append(e.u.Functions, f)
				fn = f.QualifiedName
			}

		case nodeType == "variable_declarator":
			// const handler = () => {...}
			if value := n.ChildByFieldName("value"); value != nil && isFunctionValue(value.Type()) {
				if name := n.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
					e.defined[name.StartByte()] = true
					f := Function{
						Name:          e.text(name),
						QualifiedName: e.text(name),
						StartLine:     LineOf(n),
						EndLine:       EndLineOf(n),
						Exported:      e.exported(n.Parent(), e.text(name)),
						Node:          value,
					}
					e.u.Functions = append(e.u.Functions, f)
					fn = f.QualifiedName
				}
			}

		case nodeType == "type_spec":
			e.goTypeSpec(n)

		case typeNodes[nodeType] != "":
			e.typeDecl(n, typeNodes[nodeType])
			if name := n.ChildByFieldName("name"); name != nil {
				owner = e.text(name)
			}

		case nodeType == "impl_item":
			if t := n.ChildByFieldName("type"); t != nil {
				owner = baseName(e.text(t))
				if trait := n.ChildByFieldName("trait"); trait != nil {
					e.u.Relations = append(e.u.Relations, Relation{From: owner, To: baseName(e.text(trait)), Kind: "implements"})
				}
			}

		case nodeType == "import_spec", nodeType == "import_statement",
			nodeType == "import_from_statement", nodeType == "use_declaration":
			e.imports(n)

		case callNodes[nodeType]:
			if callee := e.callee(n); callee != "" {
				e.u.Refs = append(e.u.Refs, Reference{Name: callee, From: fn, Line: LineOf(n), Call: true})
			}

		case identNodes[nodeType]:
			if !e.defined[n.StartByte()] {
				e.u.Refs = append(e.u.Refs, Reference{Name: e.text(n), From: fn, Line: LineOf(n)})
			}
		}

		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i), fn, owner)
		}
	}
	walk(e.u.Root(), "", "")
}

func isFunctionValue(t string) bool {
	return t == "arrow_function" || t == "function_expression" || t == "function"
}

func (e *extractor) function(n *sitter.Node, owner string) (Function, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return Function{}, false
	}
	e.defined[name.StartByte()] = true
	simple := e.text(name)

	if n.Type() == "method_declaration" {
		if recv := n.ChildByFieldName("receiver"); recv != nil {
			owner = goReceiverType(e.text(recv))
		}
	}
	qualified := simple
	if owner != "" {
		qualified = owner + "." + simple
	}

	return Function{
		Name:          simple,
		QualifiedName: qualified,
		StartLine:     LineOf(n),
		EndLine:       EndLineOf(n),
		Exported:      e.exported(n, simple),
		Node:          n,
	}, true
}

func (e *extractor) goTypeSpec(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	e.defined[name.StartByte()] = true
	kind := "type"
	if t := n.ChildByFieldName("type"); t != nil {
		switch t.Type() {
		case "struct_type":
			kind = "struct"
		case "interface_type":
			kind = "interface"
		}
	}
	simple := e.text(name)
	e.u.Types = append(e.u.Types, TypeDecl{
		Name:      simple,
		Kind:      kind,
		StartLine: LineOf(n),
		EndLine:   EndLineOf(n),
		Exported:  e.exported(n, simple),
	})
}

func (e *extractor) typeDecl(n *sitter.Node, kind string) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	e.defined[name.StartByte()] = true
	simple := e.text(name)
	e.u.Types = append(e.u.Types, TypeDecl{
		Name:      simple,
		Kind:      kind,
		StartLine: LineOf(n),
		EndLine:   EndLineOf(n),
		Exported:  e.exported(n, simple),
	})

	// Python: class Foo(Base)
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			base := supers.NamedChild(i)
			if base.Type() == "identifier" || base.Type() == "attribute" {
				e.u.Relations = append(e.u.Relations, Relation{From: simple, To: baseName(e.text(base)), Kind: "inherits"})
			}
		}
	}

	// JS/TS: class Foo extends Base implements Iface
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "class_heritage" {
			continue
		}
		e.heritage(simple, child)
	}
}

func (e *extractor) heritage(class string, n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		switch clause.Type() {
		case "extends_clause", "implements_clause":
			kind := "inherits"
			if clause.Type() == "implements_clause" {
				kind = "implements"
			}
			for j := 0; j < int(clause.NamedChildCount()); j++ {
				target := clause.NamedChild(j)
				if target.Type() == "type_arguments" {
					continue
				}
				e.u.Relations = append(e.u.Relations, Relation{From: class, To: baseName(e.text(target)), Kind: kind})
			}
		case "identifier", "member_expression":
			// javascript grammar: class_heritage holds the expression directly
			e.u.Relations = append(e.u.Relations, Relation{From: class, To: baseName(e.text(clause)), Kind: "inherits"})
		}
	}
}

func (e *extractor) imports(n *sitter.Node) {
	line := LineOf(n)
	add := func(path string) {
		path = strings.Trim(path, "\"'`")
		if path != "" {
			e.u.Imports = append(e.u.Imports, Import{Path: path, Line: line})
		}
	}

	switch n.Type() {
	case "import_spec":
		if p := n.ChildByFieldName("path"); p != nil {
			add(e.text(p))
		}
	case "use_declaration":
		if arg := n.ChildByFieldName("argument"); arg != nil {
			add(e.text(arg))
		}
	case "import_from_statement":
		if m := n.ChildByFieldName("module_name"); m != nil {
			add(e.text(m))
		}
	case "import_statement":
		if src := n.ChildByFieldName("source"); src != nil {
			add(e.text(src))
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "dotted_name":
				add(e.text(child))
			case "aliased_import":
				if name := child.ChildByFieldName("name"); name != nil {
					add(e.text(name))
				}
			}
		}
	}
}

func (e *extractor) callee(n *sitter.Node) string {
	target := n.ChildByFieldName("function")
	if target == nil {
		target = n.ChildByFieldName("constructor")
	}
	if target == nil {
		return ""
	}

	var nameNode *sitter.Node
	switch target.Type() {
	case "identifier":
		nameNode = target
	case "selector_expression", "field_expression":
		nameNode = target.ChildByFieldName("field")
	case "attribute":
		nameNode = target.ChildByFieldName("attribute")
	case "member_expression":
		nameNode = target.ChildByFieldName("property")
	case "scoped_identifier":
		nameNode = target.ChildByFieldName("name")
	case "generic_function":
		if inner := target.ChildByFieldName("function"); inner != nil {
			return baseName(e.text(inner))
		}
	}
	if nameNode == nil {
		return baseName(e.text(target))
	}
	// mark so the identifier walk does not count it twice
	e.defined[nameNode.StartByte()] = true
	return e.text(nameNode)
}

func (e *extractor) exported(n *sitter.Node, name string) bool {
	switch e.u.Language {
	case discovery.LangGo:
		r := []rune(name)
		return len(r) > 0 && unicode.IsUpper(r[0])
	case discovery.LangPython:
		return !strings.HasPrefix(name, "_")
	case discovery.LangRust:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if n.NamedChild(i).Type() == "visibility_modifier" {
				return true
			}
		}
		return false
	case discovery.LangJavaScript, discovery.LangTypeScript:
		for p := n; p != nil; p = p.Parent() {
			switch p.Type() {
			case "export_statement":
				return true
			case "program":
				return false
			}
		}
	}
	return false
}

// goReceiverType turns "(s *Server)" into "Server".
func goReceiverType(recv string) string {
	recv = strings.Trim(recv, "()")
	fields := strings.Fields(recv)
	if len(fields) == 0 {
		return ""
	}
	t := strings.TrimLeft(fields[len(fields)-1], "*")
	if i := strings.Index(t, "["); i >= 0 {
		t = t[:i]
	}
	return t
}

// baseName strips qualifiers and generic arguments: "pkg::Foo<T>" -> "Foo".
func baseName(s string) string {
	if i := strings.IndexAny(s, "<(["); i >= 0 {
		s = s[:i]
	}
	for _, sep := range []string{"::", "."} {
		if i := strings.LastIndex(s, sep); i >= 0 {
			s = s[i+len(sep):]
		}
	}
	return strings.TrimSpace(s)
}
