package makefile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func violationsOf(t *testing.T, rule Checker, content string) []Violation {
	t.Helper()
	m, err := Parse(content)
	require.NoError(t, err)
	return rule.Check(m)
}

func TestParseStructure(t *testing.T) {
	content := `# build file
CC := gcc
VERSION ?= 1.0
export FLAGS = -O2 \
	-Wall

.PHONY: all
all: app lib ; @echo done

%.o: %.c
	@$(CC) -c $< -o $@
	-rm -f tmp

define HELP
text
endef

-include local.mk
`
	m, err := Parse(content)
	require.NoError(t, err)

	assert.Equal(t, 1, m.Comments)
	require.Len(t, m.Variables, 3)
	assert.Equal(t, OpImmediate, m.Variables[0].Op)
	assert.Equal(t, OpConditional, m.Variables[1].Op)
	assert.Equal(t, "FLAGS", m.Variables[2].Name)
	assert.Equal(t, "-O2 -Wall", m.Variables[2].Value)

	require.Len(t, m.Rules, 3)
	all := m.Rules[1]
	assert.Equal(t, []string{"all"}, all.Targets)
	assert.Equal(t, []string{"app", "lib"}, all.Prerequisites)
	require.Len(t, all.Recipe, 1)
	assert.True(t, all.Recipe[0].Silent)

	pattern := m.Rules[2]
	assert.True(t, pattern.Pattern)
	require.Len(t, pattern.Recipe, 2)
	assert.Equal(t, "$(CC) -c $< -o $@", pattern.Recipe[0].Text)
	assert.True(t, pattern.Recipe[1].IgnoreError)

	require.Len(t, m.Includes, 1)
	assert.True(t, m.Includes[0].Optional)
	assert.True(t, m.PhonyTargets()["all"])
	assert.True(t, m.Metadata.HasPatternRules)
	assert.True(t, m.Metadata.UsesAutomaticVars)
}

func TestParseRecipeWithoutRule(t *testing.T) {
	m, err := Parse("\techo orphan\nall:\n\techo ok\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecipeWithoutRule))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.Line)
	require.Len(t, m.Rules, 1)
}

func TestMinPhony(t *testing.T) {
	vs := violationsOf(t, minPhony{required: []string{"all", "clean", "test"}}, "all:\n\techo all\nclean:\n\trm -f *.o\n")
	require.Len(t, vs, 2)
	assert.Equal(t, "Target 'all' should be declared .PHONY", vs[0].Message)
	assert.Equal(t, "Add '.PHONY: clean' to your Makefile", vs[1].FixHint)
	assert.Zero(t, vs[0].Line)

	vs = violationsOf(t, minPhony{required: []string{"all", "clean", "test"}}, ".PHONY: all clean\nall:\n\techo\nclean:\n\trm x\n")
	assert.Empty(t, vs)
}

func TestPhonyDeclared(t *testing.T) {
	content := "install:\n\tcp app /usr/bin\nhelp:\n\t@echo help\nmain.o: main.c\n\tcc -c main.c\nbuild/out:\n\ttouch $@\n"
	vs := violationsOf(t, phonyDeclared{ignoreSuffixes: []string{".o"}}, content)
	require.Len(t, vs, 2)
	assert.Equal(t, SeverityInfo, vs[0].Severity)
	assert.Equal(t, "Target 'install' should probably be declared .PHONY", vs[0].Message)
	assert.Equal(t, 3, vs[1].Line)
}

func TestMaxBodyLength(t *testing.T) {
	content := "big:\n"
	for i := 0; i < 11; i++ {
		content += "\techo line\n"
	}
	content += "cont:\n"
	for i := 0; i < 10; i++ {
		content += "\techo a \\\n\t  b\n"
	}
	vs := violationsOf(t, maxBodyLength{maxLines: 10}, content)
	require.Len(t, vs, 1)
	assert.Equal(t, "Recipe has 11 lines (max: 10). Consider splitting into smaller targets", vs[0].Message)
	assert.Equal(t, 2, vs[0].Line)
}

func TestTimestampExpanded(t *testing.T) {
	vs := violationsOf(t, timestampExpanded{}, "BUILD_TIME := $(shell date)\nLATER = $(shell date)\n")
	require.Len(t, vs, 1)
	assert.Equal(t, 1, vs[0].Line)
	assert.Contains(t, vs[0].Message, "Variable 'BUILD_TIME' uses immediate assignment")
}

func TestUndefinedVariable(t *testing.T) {
	content := `SRC = main.c
OBJ = $(SRC:.c=.o)
build:
	$(CC) $(OBJ) -o $(TARGET) $@
	for f in *.c; do echo $$f $f; done
	echo $(shell pwd) ${HOME}
`
	vs := violationsOf(t, undefinedVariable{}, content)
	var names []string
	for _, v := range vs {
		names = append(names, v.Message)
	}
	assert.Equal(t, []string{
		"Variable 'TARGET' may be undefined",
		"Variable 'HOME' may be undefined",
	}, names)
}

func TestRecursiveExpansion(t *testing.T) {
	content := `FILES = $(wildcard src/*.c)
ALL = $(FILES) extra
CHEAP = plain
a b: $(ALL)
	echo $(ALL) $(ALL) $(CHEAP) $(CHEAP)
`
	vs := violationsOf(t, recursiveExpansion{}, content)
	require.Len(t, vs, 2)
	assert.Equal(t, "Expensive variable 'ALL' expanded 2 times in recipe. Consider using := for immediate evaluation", vs[0].Message)
	assert.Equal(t, "Expensive variable 'ALL' in prerequisites will be expanded 2 times (once per target)", vs[1].Message)
	assert.Equal(t, SeverityPerformance, vs[1].Severity)
}

func TestPortability(t *testing.T) {
	vs := violationsOf(t, portability{}, "A ?= 1\nB != ls\nC = 2\n")
	require.Len(t, vs, 2)
	assert.Equal(t, "Conditional assignment (?=) is GNU Make specific", vs[0].Message)
	assert.Equal(t, "Shell assignment (!=) is GNU Make specific", vs[1].Message)
}

func TestQualityScore(t *testing.T) {
	assert.Equal(t, 1.0, QualityScore(nil))
	assert.InDelta(t, 0.7, QualityScore([]Violation{{Severity: SeverityError}}), 1e-9)
	assert.InDelta(t, 0.9, QualityScore([]Violation{{Severity: SeverityWarning}}), 1e-9)
	assert.InDelta(t, 0.96, QualityScore([]Violation{{Severity: SeverityInfo}, {Severity: SeverityPerformance}}), 1e-9)

	many := make([]Violation, 5)
	for i := range many {
		many[i].Severity = SeverityError
	}
	assert.Zero(t, QualityScore(many))
}

func TestLinterOrderingAndDisable(t *testing.T) {
	content := "install:\n\tcp a b\nall:\n\techo\n"
	l := NewLinter()
	r, err := l.LintContent("Makefile", content)
	require.NoError(t, err)
	require.NotEmpty(t, r.Violations)
	for i := 1; i < len(r.Violations); i++ {
		assert.LessOrEqual(t, r.Violations[i-1].Line, r.Violations[i].Line)
	}
	assert.False(t, r.HasErrors())
	assert.Equal(t, SeverityWarning, r.MaxSeverity())

	quiet := NewLinter("minphony", "phonydeclared")
	assert.NotContains(t, quiet.Rules(), "minphony")
	r, err = quiet.LintContent("Makefile", content)
	require.NoError(t, err)
	assert.Empty(t, r.Violations)
	assert.Equal(t, 1.0, r.QualityScore)
	assert.Contains(t, FormatMarkdown(r), "No issues found.")
}

func TestDefaultCheckersCoverParsedRules(t *testing.T) {
	m, err := Parse(".PHONY: all\nall: app\n\techo done\n")
	require.NoError(t, err)
	require.Len(t, m.Rules, 2)
	var rule *Rule = m.Rules[1]
	assert.Equal(t, []string{"all"}, rule.Targets)

	seen := map[string]bool{}
	var checkers []Checker = DefaultRules()
	for _, c := range checkers {
		assert.False(t, seen[c.ID()], c.ID())
		seen[c.ID()] = true
	}
	assert.Len(t, seen, 7)
}

func TestLintFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Makefile")
	require.NoError(t, os.WriteFile(path, []byte("\tbad\n"), 0644))
	_, err := NewLinter().Lint(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecipeWithoutRule)

	_, err = NewLinter().Lint(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
