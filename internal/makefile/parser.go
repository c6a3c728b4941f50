// Package makefile parses Makefiles into rules, variables and recipes and
// lints them with checkmake-style rules.
package makefile

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
)

// ErrRecipeWithoutRule is reported for a tab-indented line outside a rule.
var ErrRecipeWithoutRule = errors.New("recipe without rule")

// AssignOp is a variable assignment operator.
type AssignOp string

const (
	OpDeferred    AssignOp = "="
	OpImmediate   AssignOp = ":="
	OpConditional AssignOp = "?="
	OpAppend      AssignOp = "+="
	OpShell       AssignOp = "!="
)

// Variable is one assignment.
type Variable struct {
	Name  string   `json:"name"`
	Op    AssignOp `json:"op"`
	Value string   `json:"value"`
	Line  int      `json:"line"`
}

// RecipeLine is one physical recipe line with its prefixes removed.
type RecipeLine struct {
	Text        string `json:"text"`
	Line        int    `json:"line"`
	Silent      bool   `json:"silent,omitempty"`
	IgnoreError bool   `json:"ignore_error,omitempty"`
	AlwaysExec  bool   `json:"always_exec,omitempty"`
}

// Rule is a target line and its recipe.
type Rule struct {
	Targets       []string     `json:"targets"`
	Prerequisites []string     `json:"prerequisites"`
	Line          int          `json:"line"`
	Pattern       bool         `json:"pattern,omitempty"`
	DoubleColon   bool         `json:"double_colon,omitempty"`
	Recipe        []RecipeLine `json:"recipe,omitempty"`
}

// Include is an include or -include directive.
type Include struct {
	Files    []string `json:"files"`
	Optional bool     `json:"optional,omitempty"`
	Line     int      `json:"line"`
}

// Metadata summarizes a parsed file.
type Metadata struct {
	TargetCount       int  `json:"target_count"`
	VariableCount     int  `json:"variable_count"`
	RecipeCount       int  `json:"recipe_count"`
	HasPhonyRules     bool `json:"has_phony_rules"`
	HasPatternRules   bool `json:"has_pattern_rules"`
	UsesAutomaticVars bool `json:"uses_automatic_variables"`
}

// Makefile is the parsed form.
type Makefile struct {
	Rules     []*Rule    `json:"rules"`
	Variables []Variable `json:"variables"`
	Includes  []Include  `json:"includes"`
	Comments  int        `json:"comments"`
	Metadata  Metadata   `json:"metadata"`
}

// ParseError locates a syntax problem.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PhonyTargets returns the prerequisites of every .PHONY rule.
func (m *Makefile) PhonyTargets() map[string]bool {
	out := map[string]bool{}
	for _, r := range m.Rules {
		for _, t := range r.Targets {
			if t == ".PHONY" {
				for _, p := range r.Prerequisites {
					out[p] = true
				}
			}
		}
	}
	return out
}

var conditionalPrefixes = []string{"ifeq", "ifneq", "ifdef", "ifndef", "else", "endif"}

// Parse reads a Makefile. It always returns what it could parse; the error
// joins every ParseError found.
func Parse(content string) (*Makefile, error) {
	m := &Makefile{}
	var errs []error
	var current *Rule
	inDefine := false

	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := strings.TrimRight(sc.Text(), "\r")
		start := lineNo

		if inDefine {
			if strings.TrimSpace(raw) == "endef" {
				inDefine = false
			}
			continue
		}

		if strings.HasPrefix(raw, "\t") {
			if current == nil {
				if strings.TrimSpace(raw) != "" {
					errs = append(errs, &ParseError{Line: lineNo, Err: ErrRecipeWithoutRule})
				}
				continue
			}
			current.Recipe = append(current.Recipe, recipeLine(raw[1:], lineNo))
			continue
		}

		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			m.Comments++
			continue
		}

		// logical line: join backslash continuations outside recipes
		for strings.HasSuffix(trimmed, "\\") && sc.Scan() {
			lineNo++
			trimmed = strings.TrimRight(strings.TrimSuffix(trimmed, "\\"), " \t") + " " + strings.TrimSpace(sc.Text())
		}
		current = nil

		switch {
		case strings.HasPrefix(trimmed, "define "):
			inDefine = true
			continue
		case strings.HasPrefix(trimmed, "include ") || strings.HasPrefix(trimmed, "-include ") ||
			strings.HasPrefix(trimmed, "sinclude "):
			word, rest, _ := strings.Cut(trimmed, " ")
			m.Includes = append(m.Includes, Include{
				Files:    strings.Fields(rest),
				Optional: word != "include",
				Line:     start,
			})
			continue
		case hasAnyPrefix(trimmed, conditionalPrefixes):
			continue
		}

		body := trimmed
		for _, kw := range []string{"export ", "override "} {
			body = strings.TrimPrefix(body, kw)
		}
		pos, op, isRule := classify(body)
		switch {
		case pos < 0:
			continue
		case isRule:
			current = parseRule(body, pos, op == "::", start)
			m.Rules = append(m.Rules, current)
		default:
			name := strings.TrimSpace(body[:pos])
			if name == "" {
				errs = append(errs, &ParseError{Line: start, Err: errors.New("empty variable name")})
				continue
			}
			m.Variables = append(m.Variables, Variable{
				Name:  name,
				Op:    AssignOp(op),
				Value: strings.TrimSpace(body[pos+len(op):]),
				Line:  start,
			})
		}
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, fmt.Errorf("failed to read makefile: %w", err))
	}

	m.Metadata = metadataOf(m)
	return m, errors.Join(errs...)
}

// classify finds the first rule colon or assignment operator.
func classify(line string) (pos int, op string, isRule bool) {
	for i := 0; i < len(line); i++ {
		next := byte(0)
		if i+1 < len(line) {
			next = line[i+1]
		}
		switch line[i] {
		case ':':
			switch next {
			case '=':
				return i, ":=", false
			case ':':
				return i, "::", true
			}
			return i, ":", true
		case '=':
			return i, "=", false
		case '?', '+', '!':
			if next == '=' {
				return i, line[i : i+2], false
			}
		}
	}
	return -1, "", false
}

func parseRule(line string, pos int, double bool, lineNo int) *Rule {
	rest := line[pos+1:]
	if double {
		rest = line[pos+2:]
	}
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	// inline recipe: "target: deps ; command"
	var inline string
	if i := strings.IndexByte(rest, ';'); i >= 0 {
		inline = strings.TrimSpace(rest[i+1:])
		rest = rest[:i]
	}
	r := &Rule{
		Targets:       strings.Fields(line[:pos]),
		Prerequisites: strings.Fields(rest),
		Line:          lineNo,
		DoubleColon:   double,
	}
	if r.Prerequisites == nil {
		r.Prerequisites = []string{}
	}
	for _, s := range append(append([]string{}, r.Targets...), r.Prerequisites...) {
		if strings.Contains(s, "%") {
			r.Pattern = true
		}
	}
	if inline != "" {
		r.Recipe = append(r.Recipe, recipeLine(inline, lineNo))
	}
	return r
}

func recipeLine(text string, lineNo int) RecipeLine {
	rl := RecipeLine{Line: lineNo}
loop:
	for len(text) > 0 {
		switch text[0] {
		case '@':
			rl.Silent = true
		case '-':
			rl.IgnoreError = true
		case '+':
			rl.AlwaysExec = true
		default:
			break loop
		}
		text = text[1:]
	}
	rl.Text = strings.TrimRight(text, " \t")
	return rl
}

var automaticVars = []string{"$@", "$<", "$^", "$?", "$*"}

func metadataOf(m *Makefile) Metadata {
	md := Metadata{VariableCount: len(m.Variables), HasPhonyRules: len(m.PhonyTargets()) > 0}
	for _, r := range m.Rules {
		md.TargetCount += len(r.Targets)
		if len(r.Recipe) > 0 {
			md.RecipeCount++
		}
		if r.Pattern {
			md.HasPatternRules = true
		}
		for _, l := range r.Recipe {
			if containsAny(l.Text, automaticVars) {
				md.UsesAutomaticVars = true
			}
		}
	}
	for _, v := range m.Variables {
		if containsAny(v.Value, automaticVars) {
			md.UsesAutomaticVars = true
		}
	}
	return md
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if s == p || strings.HasPrefix(s, p+" ") || strings.HasPrefix(s, p+"(") {
			return true
		}
	}
	return false
}
