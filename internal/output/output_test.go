package output

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var testContext = map[string]any{
	"project": map[string]any{
		"name":        "wara9a",
		"description": "Docs <generator>",
		"author":      "Jane",
	},
	"template": map[string]any{"name": "readme"},
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"html", "markdown"}, r.Names())

	testCases := []struct {
		name    string
		format  string
		wantExt string
		wantErr bool
	}{
		{name: "markdown", format: "markdown", wantExt: ".md"},
		{name: "html", format: "html", wantExt: ".html"},
		{name: "case insensitive", format: " HTML ", wantExt: ".html"},
		{name: "unknown", format: "pdf", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := r.Get(tc.format)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrGeneratorNotFound))
				assert.False(t, r.Has(tc.format))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantExt, g.Extension())
		})
	}
}

func TestMarkdownGenerate(t *testing.T) {
	dir := t.TempDir()
	g := NewMarkdown()
	g.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	path, err := g.Generate("# Title\n\nBody\n", filepath.Join(dir, "nested", "README.txt"), testContext)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "README.md"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	require.True(t, strings.HasPrefix(content, "---\n"))
	assert.True(t, strings.HasSuffix(content, "---\n\n# Title\n\nBody\n"))

	parts := strings.SplitN(content, "---\n", 3)
	require.Len(t, parts, 3)
	var meta frontMatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &meta))
	assert.Equal(t, frontMatter{
		Title:       "wara9a",
		Description: "Docs <generator>",
		Author:      "Jane",
		Template:    "readme",
		GeneratedAt: "2024-05-01T12:00:00Z",
		Generator:   "wara9a",
	}, meta)
}

func TestMarkdownKeepsExistingFrontMatter(t *testing.T) {
	dir := t.TempDir()
	content := "---\ntitle: custom\n---\n\n# Doc\n"

	path, err := NewMarkdown().Generate(content, filepath.Join(dir, "doc.md"), nil)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(raw))
}

func TestHasFrontMatter(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		expected bool
	}{
		{name: "front matter", content: "---\ntitle: custom\n---\n\n# Doc\n", expected: true},
		{name: "leading blank lines", content: "\n\n---\ntitle: custom\n---\n", expected: true},
		{name: "crlf", content: "---\r\ntitle: custom\r\n---\r\n", expected: true},
		{name: "horizontal rule only", content: "---\n\n# Doc\n", expected: false},
		{name: "long rule", content: "----------\n# Doc\n---\n", expected: false},
		{name: "rule glued to text", content: "---title\n---\n", expected: false},
		{name: "plain body", content: "# Doc\n", expected: false},
		{name: "empty", content: "", expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, hasFrontMatter(tc.content))
		})
	}
}

func TestMarkdownHorizontalRuleGetsFrontMatter(t *testing.T) {
	dir := t.TempDir()
	content := "---\n\n# Doc\n"

	path, err := NewMarkdown().Generate(content, filepath.Join(dir, "doc.md"), map[string]any{
		"project": map[string]any{"name": "demo"},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "---\ntitle: demo\n"))
	assert.True(t, strings.HasSuffix(string(raw), "---\n\n"+content))
}

func TestMarkdownDefaultTitle(t *testing.T) {
	dir := t.TempDir()

	path, err := NewMarkdown().Generate("body", filepath.Join(dir, "doc.md"), map[string]any{"project": "not a map"})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "title: Documentation\n")
	assert.NotContains(t, string(raw), "template:")
}

func TestHTMLGenerate(t *testing.T) {
	dir := t.TempDir()
	markdown := strings.Join([]string{
		"# Project",
		"",
		"| Language | Files |",
		"|----------|------:|",
		"| Go | 3 |",
		"",
		"- [ ] pending",
		"- `code`",
	}, "\n")

	path, err := NewHTML().Generate(markdown, filepath.Join(dir, "README.md"), testContext)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "README.html"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(raw)

	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "<title>wara9a</title>")
	assert.Contains(t, page, `content="Docs &lt;generator&gt;"`)
	assert.Contains(t, page, `<h1 id="project">Project</h1>`)
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, `<input disabled="" type="checkbox"`)
	assert.Contains(t, page, "<code>code</code>")
}

func TestPreparePath(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name string
		in   string
		ext  string
		want string
	}{
		{name: "same extension", in: "a/README.md", ext: ".md", want: "a/README.md"},
		{name: "swapped extension", in: "b/README.md", ext: ".html", want: "b/README.html"},
		{name: "no extension", in: "c/CHANGELOG", ext: ".md", want: "c/CHANGELOG.md"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := preparePath(filepath.Join(dir, tc.in), tc.ext)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tc.want), got)
			assert.DirExists(t, filepath.Dir(got))
		})
	}
}
