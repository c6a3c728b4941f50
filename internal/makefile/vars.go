package makefile

import "strings"

type refKind int

const (
	refParen refKind = iota
	refBrace
	refSingle
)

type varRef struct {
	name string
	kind refKind
}

var makeFunctions = []string{
	"shell ", "wildcard ", "patsubst ", "subst ", "strip ", "findstring ",
	"filter ", "sort ", "word ", "dir ", "notdir ", "suffix ", "basename ",
	"addprefix ", "addsuffix ", "join ", "foreach ", "if ", "or ", "and ",
	"call ", "eval ", "origin ", "error ", "warning ", "info ",
}

func isFunctionCall(s string) bool {
	for _, f := range makeFunctions {
		if strings.HasPrefix(s, f) {
			return true
		}
	}
	return false
}

func isAutomatic(s string) bool {
	switch s {
	case "@", "<", "^", "?", "*", "%", "+", "|", "$":
		return true
	}
	return false
}

// checkable filters refs that cannot name a user variable.
func (r varRef) checkable() bool {
	switch {
	case r.name == "", isAutomatic(r.name):
		return false
	case r.kind == refParen && isFunctionCall(r.name):
		return false
	case strings.ContainsAny(r.name, " ;&"):
		return false
	case len(r.name) == 1 && r.name[0] >= 'a' && r.name[0] <= 'z':
		// shell loop variables such as $f
		return false
	}
	return true
}

// scanRefs finds $(X), ${X} and $X references; $$ is an escaped dollar.
func scanRefs(text string) []varRef {
	var out []varRef
	for i := 0; i < len(text); i++ {
		if text[i] != '$' || i+1 >= len(text) {
			continue
		}
		switch c := text[i+1]; {
		case c == '$':
			i++
		case c == '(':
			if end := strings.IndexByte(text[i+2:], ')'); end >= 0 {
				out = append(out, varRef{name: refName(text[i+2 : i+2+end]), kind: refParen})
				i += 2 + end
			}
		case c == '{':
			if end := strings.IndexByte(text[i+2:], '}'); end >= 0 {
				out = append(out, varRef{name: text[i+2 : i+2+end], kind: refBrace})
				i += 2 + end
			}
		case isWordByte(c):
			out = append(out, varRef{name: string(c), kind: refSingle})
			i++
		}
	}
	return out
}

// refName strips substitution references and defaults: $(VAR:.c=.o).
func refName(s string) string {
	for _, sep := range []string{":-", ":+"} {
		if i := strings.Index(s, sep); i >= 0 {
			return strings.TrimSpace(s[:i])
		}
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		before := s[:i]
		if !strings.ContainsAny(before, " |{") {
			return strings.TrimSpace(before)
		}
	}
	if strings.ContainsAny(s, "|<>") {
		return ""
	}
	return strings.TrimSpace(s)
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// varNames returns user variable names referenced in text.
func varNames(text string) map[string]bool {
	out := map[string]bool{}
	for _, r := range scanRefs(text) {
		if r.kind == refParen && isFunctionCall(r.name) {
			continue
		}
		if r.name != "" && !isAutomatic(r.name) {
			out[r.name] = true
		}
	}
	return out
}

// countUsage counts occurrences of each referenced variable in text.
func countUsage(text string) map[string]int {
	out := map[string]int{}
	for name := range varNames(text) {
		n := strings.Count(text, "$("+name) + strings.Count(text, "${"+name) + strings.Count(text, "$"+name)
		if n > 0 {
			out[name] = n
		}
	}
	return out
}
