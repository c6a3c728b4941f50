// Package templates serves the embedded project scaffolding templates.
package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"pmat/internal/logging"
)

//go:embed library
var library embed.FS

// URIScheme prefixes every template URI.
const URIScheme = "template://"

var (
	// ErrNotFound is returned for a well-formed URI with no template.
	ErrNotFound = errors.New("template not found")
	// ErrInvalidURI is returned for URIs not of the form
	// template://category/toolchain/variant.
	ErrInvalidURI = errors.New("invalid template uri")
	// ErrValidation is returned when parameters fail validation.
	ErrValidation = errors.New("invalid template parameters")
)

// Categories and toolchains in display order.
var (
	Categories = []string{"makefile", "readme", "gitignore"}
	Toolchains = []string{"rust", "deno", "python-uv"}
)

// ToolchainPriority orders toolchains for listing; unknown ones sort last.
func ToolchainPriority(tc string) int {
	for i, t := range Toolchains {
		if t == tc {
			return i + 1
		}
	}
	return len(Toolchains) + 1
}

// Parameter describes one template input.
type Parameter struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Required    bool   `yaml:"required" json:"required"`
	Default     string `yaml:"default" json:"default,omitempty"`
	Pattern     string `yaml:"pattern" json:"validation_pattern,omitempty"`
	Description string `yaml:"description" json:"description"`
}

// Template is one embedded template with its metadata.
type Template struct {
	URI         string      `yaml:"uri" json:"uri"`
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	Parameters  []Parameter `yaml:"parameters" json:"parameters"`

	Category  string `yaml:"-" json:"category"`
	Toolchain string `yaml:"-" json:"toolchain"`
	Variant   string `yaml:"-" json:"variant"`
	Content   string `yaml:"-" json:"-"`
}

// Parameter looks up a parameter spec by name.
func (t *Template) Parameter(name string) (Parameter, bool) {
	for _, p := range t.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// ParseURI splits template://category/toolchain/variant.
func ParseURI(uri string) (category, toolchain, variant string, err error) {
	rest, ok := strings.CutPrefix(uri, URIScheme)
	if !ok {
		return "", "", "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	return parts[0], parts[1], parts[2], nil
}

// URI builds a template URI.
func URI(category, toolchain, variant string) string {
	return URIScheme + category + "/" + toolchain + "/" + variant
}

var (
	loadOnce sync.Once
	loaded   map[string]*Template
	loadErr  error
)

func registry() (map[string]*Template, error) {
	loadOnce.Do(func() {
		loaded, loadErr = load(library)
	})
	return loaded, loadErr
}

// load reads every library/<category>/<toolchain>/<variant>.yaml together
// with its .tmpl body.
func load(fsys fs.FS) (map[string]*Template, error) {
	out := map[string]*Template{}
	err := fs.WalkDir(fsys, "library", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".yaml" {
			return nil
		}
		t, err := loadOne(fsys, p)
		if err != nil {
			return err
		}
		out[t.URI] = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded templates: %w", err)
	}
	logging.TemplatesDebug("loaded %d embedded templates", len(out))
	return out, nil
}

func loadOne(fsys fs.FS, metaPath string) (*Template, error) {
	data, err := fs.ReadFile(fsys, metaPath)
	if err != nil {
		return nil, err
	}
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", metaPath, err)
	}
	body, err := fs.ReadFile(fsys, strings.TrimSuffix(metaPath, ".yaml")+".tmpl")
	if err != nil {
		return nil, err
	}
	t.Content = string(body)

	t.Category, t.Toolchain, t.Variant, err = ParseURI(t.URI)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", metaPath, err)
	}
	if want := path.Join("library", t.Category, t.Toolchain, t.Variant+".yaml"); want != metaPath {
		return nil, fmt.Errorf("%s: uri %s does not match location", metaPath, t.URI)
	}
	for _, p := range t.Parameters {
		if p.Pattern == "" {
			continue
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return nil, fmt.Errorf("%s: parameter %s: %w", metaPath, p.Name, err)
		}
	}
	return &t, nil
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Category  string
	Toolchain string
}

// List returns the templates matching f, by toolchain priority then
// category order.
func List(f Filter) ([]*Template, error) {
	reg, err := registry()
	if err != nil {
		return nil, err
	}
	out := make([]*Template, 0, len(reg))
	for _, t := range reg {
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.Toolchain != "" && t.Toolchain != f.Toolchain {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := ToolchainPriority(out[i].Toolchain), ToolchainPriority(out[j].Toolchain)
		if pi != pj {
			return pi < pj
		}
		ci, cj := categoryRank(out[i].Category), categoryRank(out[j].Category)
		if ci != cj {
			return ci < cj
		}
		return out[i].URI < out[j].URI
	})
	return out, nil
}

func categoryRank(c string) int {
	for i, x := range Categories {
		if x == c {
			return i
		}
	}
	return len(Categories)
}

// Get returns the template at uri.
func Get(uri string) (*Template, error) {
	if _, _, _, err := ParseURI(uri); err != nil {
		return nil, err
	}
	reg, err := registry()
	if err != nil {
		return nil, err
	}
	t, ok := reg[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return t, nil
}

// SearchResult is a template matching a query with its relevance.
type SearchResult struct {
	Template  *Template `json:"template"`
	Relevance float64   `json:"relevance"`
	Matches   []string  `json:"matches"`
}

// Search scores templates by case-insensitive substring matches: an exact
// name match scores 10, a partial name match 5, the description 3 and each
// parameter name 1.
func Search(query, toolchain string) ([]SearchResult, error) {
	ts, err := List(Filter{Toolchain: toolchain})
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	out := []SearchResult{}
	for _, t := range ts {
		var r SearchResult
		name := strings.ToLower(t.Name)
		if strings.Contains(name, q) {
			r.Matches = append(r.Matches, "name: "+t.Name)
			if name == q {
				r.Relevance += 10
			} else {
				r.Relevance += 5
			}
		}
		if strings.Contains(strings.ToLower(t.Description), q) {
			r.Matches = append(r.Matches, "description")
			r.Relevance += 3
		}
		for _, p := range t.Parameters {
			if strings.Contains(strings.ToLower(p.Name), q) {
				r.Matches = append(r.Matches, "parameter: "+p.Name)
				r.Relevance++
			}
		}
		if len(r.Matches) > 0 {
			r.Template = t
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	return out, nil
}
