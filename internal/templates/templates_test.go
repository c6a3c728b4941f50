package templates

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmat/internal/makefile"
)

func TestParseURI(t *testing.T) {
	c, tc, v, err := ParseURI("template://makefile/rust/cli")
	require.NoError(t, err)
	assert.Equal(t, []string{"makefile", "rust", "cli"}, []string{c, tc, v})

	for _, bad := range []string{
		"makefile/rust/cli",
		"template://makefile/rust",
		"template://makefile/rust/cli/extra",
		"template://makefile//cli",
		"http://makefile/rust/cli",
	} {
		_, _, _, err := ParseURI(bad)
		assert.ErrorIs(t, err, ErrInvalidURI, bad)
	}
}

func TestListAllTemplates(t *testing.T) {
	all, err := List(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 9)
	assert.Equal(t, "template://makefile/rust/cli", all[0].URI)
	assert.Equal(t, "template://gitignore/python-uv/cli", all[8].URI)

	for _, tmpl := range all {
		assert.NotEmpty(t, tmpl.Content, tmpl.URI)
		p, ok := tmpl.Parameter("project_name")
		assert.True(t, ok, tmpl.URI)
		assert.True(t, p.Required, tmpl.URI)
	}
}

func TestListFilters(t *testing.T) {
	deno, err := List(Filter{Toolchain: "deno"})
	require.NoError(t, err)
	require.Len(t, deno, 3)
	assert.Equal(t, "makefile", deno[0].Category)

	readmes, err := List(Filter{Category: "readme"})
	require.NoError(t, err)
	require.Len(t, readmes, 3)
	assert.Equal(t, "rust", readmes[0].Toolchain)
	assert.Equal(t, "python-uv", readmes[2].Toolchain)

	none, err := List(Filter{Toolchain: "cobol"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetNotFound(t *testing.T) {
	_, err := Get("template://makefile/go/cli")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = Get("nope")
	assert.ErrorIs(t, err, ErrInvalidURI)
}

func TestRenderRustMakefile(t *testing.T) {
	g, err := Render("template://makefile/rust/cli", map[string]any{
		"project_name":   "my-tool",
		"has_benchmarks": true,
	})
	require.NoError(t, err)
	assert.Equal(t, "my-tool/Makefile", g.Filename)
	assert.Equal(t, "rust", g.Toolchain)
	assert.Len(t, g.Checksum, 64)
	assert.Contains(t, g.Content, "# Makefile for my-tool")
	assert.Contains(t, g.Content, "BINARY := my_tool")
	assert.Contains(t, g.Content, "\ntest:\n")
	assert.Contains(t, g.Content, "\nbench:\n")

	res, err := makefile.NewLinter().LintContent(g.Filename, g.Content)
	require.NoError(t, err)
	assert.False(t, res.HasErrors())
	for _, v := range res.Violations {
		assert.NotEqual(t, "minphony", v.Rule, v.Message)
		assert.NotEqual(t, "phonydeclared", v.Rule, v.Message)
	}
}

func TestRenderBooleanStrings(t *testing.T) {
	g, err := Render("template://makefile/python-uv/cli", map[string]any{
		"project_name": "svc",
		"has_tests":    "false",
	})
	require.NoError(t, err)
	assert.NotContains(t, g.Content, "run pytest")
	assert.Contains(t, g.Content, "--python 3.12")

	_, err = Render("template://makefile/python-uv/cli", map[string]any{
		"project_name": "svc",
		"has_tests":    "maybe",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRenderReadme(t *testing.T) {
	g, err := Render("template://readme/deno/cli", map[string]any{
		"project_name":    "fast_lint",
		"github_username": "octo",
	})
	require.NoError(t, err)
	assert.Equal(t, "fast_lint/README.md", g.Filename)
	assert.True(t, strings.HasPrefix(g.Content, "# FastLint\n"))
	assert.Contains(t, g.Content, "https://github.com/octo/fast_lint")
	assert.Contains(t, g.Content, "fast-lint --help")
	assert.Contains(t, g.Content, "MIT ©")
}

func TestRenderValidation(t *testing.T) {
	_, err := Render("template://gitignore/rust/cli", map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "project_name")

	_, err = Render("template://gitignore/rust/cli", map[string]any{"project_name": "1bad"})
	assert.ErrorIs(t, err, ErrValidation)

	a, err := Render("template://gitignore/rust/cli", map[string]any{"project_name": "x", "extra": 1})
	require.NoError(t, err)
	b, err := Render("template://gitignore/rust/cli", map[string]any{"project_name": "x"})
	require.NoError(t, err)
	assert.Equal(t, a.Checksum, b.Checksum)
	assert.Contains(t, a.Content, "/target/")
	assert.Contains(t, a.Content, ".vscode/")
}

func TestValidate(t *testing.T) {
	res, err := Validate("template://readme/rust/cli", map[string]any{"project_name": "ok"})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)

	res, err = Validate("template://readme/rust/cli", map[string]any{"colour": "blue", "project_name": "9lives"})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []FieldError{
		{Field: "colour", Message: "Unknown parameter"},
		{Field: "project_name", Message: "Does not match pattern: ^[a-zA-Z][a-zA-Z0-9_-]*$"},
	}, res.Errors)

	res, err = Validate("template://readme/rust/cli", nil)
	require.NoError(t, err)
	assert.Equal(t, []FieldError{{Field: "project_name", Message: "Required parameter missing"}}, res.Errors)

	_, err = Validate("template://readme/zig/cli", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearch(t *testing.T) {
	res, err := Search("makefile", "")
	require.NoError(t, err)
	require.Len(t, res, 3)
	for _, r := range res {
		assert.Equal(t, "makefile", r.Template.Category)
		assert.GreaterOrEqual(t, r.Relevance, 5.0)
	}

	res, err = Search("has_benchmarks", "")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, []string{"parameter: has_benchmarks"}, res[0].Matches)
	assert.Equal(t, 1.0, res[0].Relevance)

	res, err = Search("README", "python-uv")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "template://readme/python-uv/cli", res[0].Template.URI)

	res, err = Search("zzz", "")
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestScaffold(t *testing.T) {
	dir := t.TempDir()
	res, err := Scaffold(dir, "deno", []string{"makefile", "readme", "license", "gitignore"}, map[string]any{"project_name": "demo"})
	require.NoError(t, err)
	require.Len(t, res.Files, 3)
	assert.Empty(t, res.Errors)

	data, err := os.ReadFile(filepath.Join(dir, "demo", "Makefile"))
	require.NoError(t, err)
	assert.Equal(t, res.Files[0].Content, string(data))
	assert.FileExists(t, filepath.Join(dir, "demo", ".gitignore"))

	res, err = Scaffold("", "rust", []string{"makefile"}, map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "makefile", res.Errors[0].Template)

	_, err = Scaffold("", "cobol", []string{"makefile"}, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCaseHelpers(t *testing.T) {
	assert.Equal(t, []string{"my", "http", "server"}, words("my-HTTP_server"))
	assert.Equal(t, []string{"fast", "lint"}, words("fastLint"))
	assert.Equal(t, "MyTool", pascalCase("my_tool"))
}
