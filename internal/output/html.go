package output

import (
	"bytes"
	"fmt"
	"html/template"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/elhajjaji/wara9a/internal/logging"
)

var pageLayout = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{ .Title }}</title>
{{- with .Description }}
    <meta name="description" content="{{ . }}">
{{- end }}
    <meta name="generator" content="wara9a">
    <style>
        * { box-sizing: border-box; }
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; line-height: 1.6; color: #333; margin: 0; background-color: #f6f8fa; }
        .container { max-width: 1024px; margin: 0 auto; padding: 2rem; background-color: #fff; box-shadow: 0 0 10px rgba(0,0,0,0.1); }
        h1, h2, h3 { color: #24292e; border-bottom: 1px solid #eaecef; padding-bottom: 0.3rem; }
        h1 { border-bottom: 2px solid #0366d6; }
        h3 { border-bottom: none; }
        a { color: #0366d6; text-decoration: none; }
        code { background-color: #f6f8fa; border-radius: 3px; font-size: 85%; padding: 0.2em 0.4em; }
        table { border-collapse: collapse; }
        th, td { border: 1px solid #dfe2e5; padding: 6px 13px; }
        .footer { margin-top: 3rem; padding-top: 2rem; border-top: 1px solid #eaecef; text-align: center; color: #586069; font-size: 0.9rem; }
    </style>
</head>
<body>
    <div class="container">
        <main class="content">
{{ .Body }}
        </main>
        <footer class="footer">
            <p>Generated with wara9a</p>
        </footer>
    </div>
</body>
</html>
`))

// HTML converts rendered Markdown into a standalone HTML page.
type HTML struct {
	md goldmark.Markdown
}

// NewHTML returns the html generator. Conversion follows GitHub Flavored
// Markdown, so the tables and task lists of the built-in templates render.
func NewHTML() *HTML {
	return &HTML{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

func (h *HTML) Name() string      { return "html" }
func (h *HTML) Extension() string { return ".html" }

func (h *HTML) Generate(content, outputPath string, ctx map[string]any) (string, error) {
	path, err := preparePath(outputPath, h.Extension())
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	if err := h.md.Convert([]byte(content), &body); err != nil {
		return "", fmt.Errorf("failed to convert markdown to html: %w", err)
	}

	title := lookup(ctx, "project", "name")
	if title == "" {
		title = "Documentation"
	}

	var page bytes.Buffer
	err = pageLayout.Execute(&page, struct {
		Title       string
		Description string
		Body        template.HTML
	}{
		Title:       title,
		Description: lookup(ctx, "project", "description"),
		Body:        template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to build html page: %w", err)
	}

	if err := os.WriteFile(path, page.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write html file %s: %w", path, err)
	}

	logging.Info("html file generated", "path", path)
	return path, nil
}
