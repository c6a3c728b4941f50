package makefile

import (
	"fmt"
	"sort"
	"strings"
)

// Severity of a lint violation.
type Severity string

const (
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityPerformance Severity = "performance"
	SeverityInfo        Severity = "info"
)

// Rank orders severities; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityPerformance:
		return 1
	}
	return 0
}

// Violation is one finding. Line 0 means file level.
type Violation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line"`
	Message  string   `json:"message"`
	FixHint  string   `json:"fix_hint,omitempty"`
}

// Checker checks a parsed Makefile.
type Checker interface {
	ID() string
	Check(m *Makefile) []Violation
}

// DefaultRules returns the standard rule set.
func DefaultRules() []Checker {
	return []Checker{
		minPhony{required: []string{"all", "clean", "test"}},
		phonyDeclared{ignoreSuffixes: []string{".o", ".a", ".so", ".exe", ".ko", ".mod"}},
		maxBodyLength{maxLines: 10},
		timestampExpanded{},
		undefinedVariable{},
		recursiveExpansion{},
		portability{},
	}
}

type minPhony struct{ required []string }

func (minPhony) ID() string { return "minphony" }

func (r minPhony) Check(m *Makefile) []Violation {
	phony := m.PhonyTargets()
	defined := map[string]bool{}
	for _, rule := range m.Rules {
		for _, t := range rule.Targets {
			if !strings.HasPrefix(t, ".") {
				defined[t] = true
			}
		}
	}
	var out []Violation
	for _, t := range r.required {
		if defined[t] && !phony[t] {
			out = append(out, Violation{
				Rule:     r.ID(),
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Target '%s' should be declared .PHONY", t),
				FixHint:  fmt.Sprintf("Add '.PHONY: %s' to your Makefile", t),
			})
		}
	}
	return out
}

type phonyDeclared struct{ ignoreSuffixes []string }

func (phonyDeclared) ID() string { return "phonydeclared" }

func (r phonyDeclared) Check(m *Makefile) []Violation {
	phony := m.PhonyTargets()
	var out []Violation
	for _, rule := range m.Rules {
		for _, t := range rule.Targets {
			if strings.HasPrefix(t, ".") || strings.ContainsAny(t, "/%$") || phony[t] {
				continue
			}
			if hasAnySuffix(t, r.ignoreSuffixes) {
				continue
			}
			out = append(out, Violation{
				Rule:     r.ID(),
				Severity: SeverityInfo,
				Line:     rule.Line,
				Message:  fmt.Sprintf("Target '%s' should probably be declared .PHONY", t),
				FixHint:  fmt.Sprintf("Add '%s' to .PHONY declaration", t),
			})
		}
	}
	return out
}

type maxBodyLength struct{ maxLines int }

func (maxBodyLength) ID() string { return "maxbodylength" }

// Check counts logical lines, skipping lines that continue onto the next.
func (r maxBodyLength) Check(m *Makefile) []Violation {
	var out []Violation
	for _, rule := range m.Rules {
		n := 0
		for _, l := range rule.Recipe {
			if !strings.HasSuffix(strings.TrimRight(l.Text, " \t"), "\\") {
				n++
			}
		}
		if n > r.maxLines {
			out = append(out, Violation{
				Rule:     r.ID(),
				Severity: SeverityInfo,
				Line:     rule.Recipe[0].Line,
				Message:  fmt.Sprintf("Recipe has %d lines (max: %d). Consider splitting into smaller targets", n, r.maxLines),
				FixHint:  "Break complex recipes into multiple targets or extract to scripts",
			})
		}
	}
	return out
}

type timestampExpanded struct{}

func (timestampExpanded) ID() string { return "timestampexpanded" }

func (r timestampExpanded) Check(m *Makefile) []Violation {
	var out []Violation
	for _, v := range m.Variables {
		if v.Op == OpImmediate && (strings.Contains(v.Value, "$(shell date") || strings.Contains(v.Value, "$(date")) {
			out = append(out, Violation{
				Rule:     r.ID(),
				Severity: SeverityWarning,
				Line:     v.Line,
				Message: fmt.Sprintf("Variable '%s' uses immediate assignment with date command. "+
					"This will be evaluated once at parse time", v.Name),
				FixHint: "Use deferred assignment (=) instead of immediate (:=)",
			})
		}
	}
	return out
}

var builtinVars = []string{"CC", "CXX", "CFLAGS", "LDFLAGS", "MAKE", "SHELL", "PWD"}

type undefinedVariable struct{}

func (undefinedVariable) ID() string { return "undefinedvariable" }

func (r undefinedVariable) Check(m *Makefile) []Violation {
	defined := map[string]bool{}
	for _, v := range m.Variables {
		defined[v.Name] = true
	}
	for _, b := range builtinVars {
		defined[b] = true
	}

	var out []Violation
	report := func(text string, line int) {
		for _, ref := range scanRefs(text) {
			if ref.checkable() && !defined[ref.name] {
				out = append(out, Violation{
					Rule:     r.ID(),
					Severity: SeverityWarning,
					Line:     line,
					Message:  fmt.Sprintf("Variable '%s' may be undefined", ref.name),
					FixHint:  fmt.Sprintf("Define '%s' before use", ref.name),
				})
			}
		}
	}
	for _, v := range m.Variables {
		report(v.Value, v.Line)
	}
	for _, rule := range m.Rules {
		for _, l := range rule.Recipe {
			report(l.Text, l.Line)
		}
	}
	return out
}

type recursiveExpansion struct{}

var expensiveFuncs = []string{"$(shell", "$(wildcard", "$(foreach", "$(call", "$(eval"}

func (recursiveExpansion) ID() string { return "recursive-expansion" }

// Check flags deferred variables that run expensive functions, directly or
// through other variables, when they expand more than once.
func (r recursiveExpansion) Check(m *Makefile) []Violation {
	expensive := map[string]bool{}
	deps := map[string]map[string]bool{}
	var names []string
	for _, v := range m.Variables {
		if v.Op != OpDeferred {
			continue
		}
		if containsAny(v.Value, expensiveFuncs) {
			expensive[v.Name] = true
		}
		deps[v.Name] = varNames(v.Value)
		names = append(names, v.Name)
	}
	for changed := true; changed; {
		changed = false
		for _, name := range names {
			if expensive[name] {
				continue
			}
			for d := range deps[name] {
				if expensive[d] {
					expensive[name] = true
					changed = true
					break
				}
			}
		}
	}

	var out []Violation
	for _, rule := range m.Rules {
		for _, l := range rule.Recipe {
			counts := countUsage(l.Text)
			vars := make([]string, 0, len(counts))
			for v := range counts {
				vars = append(vars, v)
			}
			sort.Strings(vars)
			for _, v := range vars {
				if counts[v] > 1 && expensive[v] {
					out = append(out, Violation{
						Rule:     r.ID(),
						Severity: SeverityPerformance,
						Line:     l.Line,
						Message: fmt.Sprintf("Expensive variable '%s' expanded %d times in recipe. "+
							"Consider using := for immediate evaluation", v, counts[v]),
						FixHint: fmt.Sprintf("Change '%s =' to '%s :=' if the value doesn't need to change", v, v),
					})
				}
			}
		}
		if len(rule.Targets) < 2 {
			continue
		}
		for _, p := range rule.Prerequisites {
			vars := make([]string, 0)
			for v := range varNames(p) {
				vars = append(vars, v)
			}
			sort.Strings(vars)
			for _, v := range vars {
				if expensive[v] {
					out = append(out, Violation{
						Rule:     r.ID(),
						Severity: SeverityPerformance,
						Line:     rule.Line,
						Message: fmt.Sprintf("Expensive variable '%s' in prerequisites will be "+
							"expanded %d times (once per target)", v, len(rule.Targets)),
						FixHint: "Consider using a pattern rule or immediate assignment",
					})
				}
			}
		}
	}
	return out
}

type portability struct{}

func (portability) ID() string { return "portability" }

func (r portability) Check(m *Makefile) []Violation {
	var out []Violation
	for _, v := range m.Variables {
		switch v.Op {
		case OpConditional:
			out = append(out, Violation{
				Rule:     r.ID(),
				Severity: SeverityInfo,
				Line:     v.Line,
				Message:  "Conditional assignment (?=) is GNU Make specific",
				FixHint:  "Use ifdef/ifndef for portable conditional assignment",
			})
		case OpShell:
			out = append(out, Violation{
				Rule:     r.ID(),
				Severity: SeverityInfo,
				Line:     v.Line,
				Message:  "Shell assignment (!=) is GNU Make specific",
				FixHint:  "Use $(shell ...) for portable shell execution",
			})
		}
	}
	return out
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
