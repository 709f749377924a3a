package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elhajjaji/wara9a/internal/logging"
)

// frontMatter is the YAML header prepended to Markdown documents.
type frontMatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Author      string `yaml:"author,omitempty"`
	Template    string `yaml:"template,omitempty"`
	GeneratedAt string `yaml:"generated_at"`
	Generator   string `yaml:"generator"`
}

// Markdown writes rendered content as-is to .md files, adding a YAML
// front matter header unless the content already has one.
type Markdown struct {
	now func() time.Time
}

// NewMarkdown returns the markdown generator.
func NewMarkdown() *Markdown {
	return &Markdown{now: time.Now}
}

func (m *Markdown) Name() string      { return "markdown" }
func (m *Markdown) Extension() string { return ".md" }

func (m *Markdown) Generate(content, outputPath string, ctx map[string]any) (string, error) {
	path, err := preparePath(outputPath, m.Extension())
	if err != nil {
		return "", err
	}

	final, err := m.withFrontMatter(content, ctx)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(final), 0o644); err != nil {
		return "", fmt.Errorf("failed to write markdown file %s: %w", path, err)
	}

	logging.Info("markdown file generated", "path", path)
	return path, nil
}

func (m *Markdown) withFrontMatter(content string, ctx map[string]any) (string, error) {
	if hasFrontMatter(content) {
		return content, nil
	}

	meta := frontMatter{
		Title:       lookup(ctx, "project", "name"),
		Description: lookup(ctx, "project", "description"),
		Author:      lookup(ctx, "project", "author"),
		Template:    lookup(ctx, "template", "name"),
		GeneratedAt: m.now().Format(time.RFC3339),
		Generator:   "wara9a",
	}
	if meta.Title == "" {
		meta.Title = "Documentation"
	}

	header, err := yaml.Marshal(&meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode front matter: %w", err)
	}
	return "---\n" + string(header) + "---\n\n" + content, nil
}

// hasFrontMatter reports whether content opens with a "---" line and a
// matching closing "---" line. A lone horizontal rule does not count.
func hasFrontMatter(content string) bool {
	lines := strings.Split(strings.TrimLeft(content, " \t\r\n"), "\n")
	if len(lines) < 2 || strings.TrimRight(lines[0], "\r") != "---" {
		return false
	}
	for _, line := range lines[1:] {
		if strings.TrimRight(line, " \t\r") == "---" {
			return true
		}
	}
	return false
}
