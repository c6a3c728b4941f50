package templates

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode"

	"pmat/internal/logging"
)

// Generated is a rendered template.
type Generated struct {
	Content   string `json:"content"`
	Filename  string `json:"filename"`
	Checksum  string `json:"checksum"`
	Toolchain string `json:"toolchain"`
}

// FieldError is one failed parameter check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult reports every parameter problem at once.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

// Validate checks params against the template: required parameters present,
// no unknown names, string values matching their pattern.
func Validate(uri string, params map[string]any) (*ValidationResult, error) {
	t, err := Get(uri)
	if err != nil {
		return nil, err
	}
	res := &ValidationResult{Errors: []FieldError{}}
	for _, p := range t.Parameters {
		if _, ok := params[p.Name]; p.Required && !ok {
			res.Errors = append(res.Errors, FieldError{Field: p.Name, Message: "Required parameter missing"})
		}
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p, ok := t.Parameter(k)
		if !ok {
			res.Errors = append(res.Errors, FieldError{Field: k, Message: "Unknown parameter"})
			continue
		}
		if s, isString := params[k].(string); isString && p.Pattern != "" && !regexp.MustCompile(p.Pattern).MatchString(s) {
			res.Errors = append(res.Errors, FieldError{Field: k, Message: "Does not match pattern: " + p.Pattern})
		}
	}
	res.Valid = len(res.Errors) == 0
	return res, nil
}

// Render fills the template at uri. Missing required parameters and pattern
// mismatches fail with ErrValidation; unknown parameters are ignored.
func Render(uri string, params map[string]any) (*Generated, error) {
	t, err := Get(uri)
	if err != nil {
		return nil, err
	}
	data, err := bind(t, params)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(uri).Funcs(funcs).Parse(t.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", uri, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template %s: %w", uri, err)
	}
	sum := sha256.Sum256(buf.Bytes())

	project := "project"
	if s, ok := data["project_name"].(string); ok && s != "" {
		project = s
	}
	logging.TemplatesDebug("rendered %s (%d bytes)", uri, buf.Len())
	return &Generated{
		Content:   buf.String(),
		Filename:  project + "/" + Filename(t.Category),
		Checksum:  hex.EncodeToString(sum[:]),
		Toolchain: t.Toolchain,
	}, nil
}

// bind checks params and returns a value for every declared parameter,
// using defaults, typed as bool for boolean parameters.
func bind(t *Template, params map[string]any) (map[string]any, error) {
	data := make(map[string]any, len(t.Parameters))
	for _, p := range t.Parameters {
		v, ok := params[p.Name]
		if !ok {
			if p.Required {
				return nil, fmt.Errorf("%w: %s: required parameter missing", ErrValidation, p.Name)
			}
			v = p.Default
		}
		if s, isString := v.(string); isString && ok && p.Pattern != "" && !regexp.MustCompile(p.Pattern).MatchString(s) {
			return nil, fmt.Errorf("%w: %s: value does not match pattern: %s", ErrValidation, p.Name, p.Pattern)
		}
		if p.Type == "boolean" {
			b, err := asBool(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrValidation, p.Name, err)
			}
			data[p.Name] = b
			continue
		}
		data[p.Name] = fmt.Sprint(v)
	}
	return data, nil
}

func asBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		if b == "" {
			return false, nil
		}
		return strconv.ParseBool(b)
	case nil:
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %v", v)
}

// Filename is the generated file name for a category.
func Filename(category string) string {
	switch category {
	case "makefile":
		return "Makefile"
	case "readme":
		return "README.md"
	case "gitignore":
		return ".gitignore"
	}
	return category + ".txt"
}

var funcs = template.FuncMap{
	"snake_case":   func(s string) string { return strings.Join(words(s), "_") },
	"kebab_case":   func(s string) string { return strings.Join(words(s), "-") },
	"pascal_case":  pascalCase,
	"current_year": func() int { return time.Now().Year() },
	"current_date": func() string { return time.Now().Format("2006-01-02") },
}

// words lowercases s and splits it on separators and camel-case humps.
func words(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = nil
		}
	}
	rs := []rune(s)
	for i, r := range rs {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(rs[i-1]) || unicode.IsDigit(rs[i-1])) {
				flush()
			}
			cur = append(cur, unicode.ToLower(r))
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return out
}

func pascalCase(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		b.WriteString(string(rs))
	}
	return b.String()
}

// ScaffoldedFile is one file produced by Scaffold.
type ScaffoldedFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Checksum string `json:"checksum"`
}

// ScaffoldError records a template that failed to render.
type ScaffoldError struct {
	Template string `json:"template"`
	Error    string `json:"error"`
}

// ScaffoldResult lists generated files and per-template failures.
type ScaffoldResult struct {
	Files  []ScaffoldedFile `json:"files"`
	Errors []ScaffoldError  `json:"errors"`
}

// Scaffold renders the cli variant of each requested category for
// toolchain. Unknown categories are skipped. When dir is non-empty the
// files are written below it.
func Scaffold(dir, toolchain string, categories []string, params map[string]any) (*ScaffoldResult, error) {
	if ToolchainPriority(toolchain) > len(Toolchains) {
		return nil, fmt.Errorf("%w: unknown toolchain %q", ErrValidation, toolchain)
	}
	res := &ScaffoldResult{Files: []ScaffoldedFile{}, Errors: []ScaffoldError{}}
	for _, c := range categories {
		if categoryRank(c) == len(Categories) {
			continue
		}
		g, err := Render(URI(c, toolchain, "cli"), params)
		if err != nil {
			res.Errors = append(res.Errors, ScaffoldError{Template: c, Error: err.Error()})
			continue
		}
		if dir != "" {
			target := filepath.Join(dir, filepath.FromSlash(g.Filename))
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
			}
			if err := os.WriteFile(target, []byte(g.Content), 0644); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", target, err)
			}
		}
		res.Files = append(res.Files, ScaffoldedFile{Path: g.Filename, Content: g.Content, Checksum: g.Checksum})
	}
	return res, nil
}
