// Package lang parses source files with tree-sitter and extracts the
// declarations, imports and references the analyzers build on.
package lang

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"pmat/internal/discovery"
	"pmat/internal/logging"
)

// ErrUnsupported is returned for languages without a grammar.
var ErrUnsupported = errors.New("unsupported language")

// Function is a named function or method.
type Function struct {
	Name          string       `json:"name"`
	QualifiedName string       `json:"qualified_name"`
	StartLine     int          `json:"start_line"`
	EndLine       int          `json:"end_line"`
	Exported      bool         `json:"exported"`
	Node          *sitter.Node `json:"-"`
}

// Lines is the inclusive line span of the function.
func (f Function) Lines() int {
	return f.EndLine - f.StartLine + 1
}

// TypeDecl is a class, struct, interface, trait or enum.
type TypeDecl struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Exported  bool   `json:"exported"`
}

// Import is an import/use statement target.
type Import struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

// Reference is a use of a name. From is the enclosing function's qualified
// name, empty for top-level code.
type Reference struct {
	Name string `json:"name"`
	From string `json:"from,omitempty"`
	Line int    `json:"line"`
	Call bool   `json:"call"`
}

// Relation links two types (inherits or implements).
type Relation struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

// Unit is one parsed file. Close releases the syntax tree.
type Unit struct {
	Path      string
	Language  string
	Source    []byte
	Tree      *sitter.Tree
	Functions []Function
	Types     []TypeDecl
	Imports   []Import
	Refs      []Reference
	Relations []Relation
}

// Root returns the root syntax node.
func (u *Unit) Root() *sitter.Node {
	return u.Tree.RootNode()
}

// Text returns the source text of n.
func (u *Unit) Text(n *sitter.Node) string {
	return n.Content(u.Source)
}

// Close releases the tree.
func (u *Unit) Close() {
	if u.Tree != nil {
		u.Tree.Close()
		u.Tree = nil
	}
}

// Supported reports whether lang has a grammar.
func Supported(lang string) bool {
	switch lang {
	case discovery.LangGo, discovery.LangPython, discovery.LangRust,
		discovery.LangJavaScript, discovery.LangTypeScript:
		return true
	}
	return false
}

func grammarFor(lang, path string) *sitter.Language {
	switch lang {
	case discovery.LangGo:
		return golang.GetLanguage()
	case discovery.LangPython:
		return python.GetLanguage()
	case discovery.LangRust:
		return rust.GetLanguage()
	case discovery.LangJavaScript:
		return javascript.GetLanguage()
	case discovery.LangTypeScript:
		if strings.EqualFold(filepath.Ext(path), ".tsx") {
			return tsx.GetLanguage()
		}
		return typescript.GetLanguage()
	}
	return nil
}

// Parse parses src and extracts symbols. The caller must Close the unit.
func Parse(ctx context.Context, path, lang string, src []byte) (*Unit, error) {
	grammar := grammarFor(lang, path)
	if grammar == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, lang)
	}

	start := time.Now()
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		logging.Get(logging.CategoryParse).Error("parse failed: %s - %v", path, err)
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	u := &Unit{Path: path, Language: lang, Source: src, Tree: tree}
	newExtractor(u).run()

	logging.ParseDebug("parsed %s: %d functions, %d types, %d imports in %v",
		filepath.Base(path), len(u.Functions), len(u.Types), len(u.Imports), time.Since(start))
	return u, nil
}

// ParseFile parses a discovered file.
func ParseFile(ctx context.Context, f discovery.File, src []byte) (*Unit, error) {
	return Parse(ctx, f.RelPath, f.Language, src)
}

// ParseFiles parses every supported file concurrently and returns the units
// sorted by path. Files that fail to parse are logged and skipped. The caller
// must CloseAll the result.
func ParseFiles(ctx context.Context, files []discovery.File, workers int) ([]*Unit, error) {
	var mu sync.Mutex
	var units []*Unit

	supported := discovery.Filter(files, func(f discovery.File) bool { return Supported(f.Language) })
	err := discovery.ReadAll(ctx, supported, workers, func(ctx context.Context, f discovery.File, content []byte) error {
		u, err := ParseFile(ctx, f, content)
		if err != nil {
			logging.Get(logging.CategoryParse).Warn("skipping %s: %v", f.RelPath, err)
			return nil
		}
		mu.Lock()
		units = append(units, u)
		mu.Unlock()
		return nil
	})
	if err != nil {
		CloseAll(units)
		return nil, err
	}

	sort.Slice(units, func(i, j int) bool { return units[i].Path < units[j].Path })
	return units, nil
}

// CloseAll releases every unit.
func CloseAll(units []*Unit) {
	for _, u := range units {
		u.Close()
	}
}

// LineOf returns the 1-based start line of n.
func LineOf(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// EndLineOf returns the 1-based end line of n.
func EndLineOf(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}
