// Package render turns a template context into document text using
// text/template. Built-in templates are embedded in the binary and can be
// replaced per template name by a file on disk.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates/*.md.tmpl
var builtinFS embed.FS

const templateSuffix = ".md.tmpl"

// ErrTemplateNotFound is returned when no built-in template or override
// file exists for a name.
var ErrTemplateNotFound = errors.New("template not found")

// RenderError reports a template that failed to parse or execute.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render template %s: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Engine renders named templates.
type Engine struct {
	mu       sync.RWMutex
	builtins map[string]string
	files    map[string]string
}

// NewEngine returns an engine holding the built-in templates.
func NewEngine() (*Engine, error) {
	entries, err := fs.ReadDir(builtinFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read built-in templates: %w", err)
	}

	builtins := make(map[string]string, len(entries))
	for _, entry := range entries {
		content, err := builtinFS.ReadFile(path.Join("templates", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read built-in template %s: %w", entry.Name(), err)
		}
		builtins[strings.TrimSuffix(entry.Name(), templateSuffix)] = string(content)
	}

	return &Engine{
		builtins: builtins,
		files:    make(map[string]string),
	}, nil
}

// SetTemplateFile makes name render from the template file at path instead
// of the built-in template. The file is read on every render.
func (e *Engine) SetTemplateFile(name, path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = path
}

// HasTemplate reports whether name can be rendered.
func (e *Engine) HasTemplate(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if p, ok := e.files[name]; ok {
		_, err := os.Stat(p)
		return err == nil
	}
	_, ok := e.builtins[name]
	return ok
}

// Names lists the built-in template names.
func (e *Engine) Names() []string {
	names := make([]string, 0, len(e.builtins))
	for name := range e.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render executes the template name against data.
func (e *Engine) Render(name string, data map[string]any) (string, error) {
	text, err := e.source(name)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(name).Funcs(funcMap()).Parse(text)
	if err != nil {
		return "", &RenderError{Template: name, Err: err}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", &RenderError{Template: name, Err: err}
	}
	return buf.String(), nil
}

func (e *Engine) source(name string) (string, error) {
	e.mu.RLock()
	p, isFile := e.files[name]
	builtin, isBuiltin := e.builtins[name]
	e.mu.RUnlock()

	if isFile {
		content, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s (file %s)", ErrTemplateNotFound, name, p)
		}
		if err != nil {
			return "", fmt.Errorf("failed to read template file %s: %w", p, err)
		}
		return string(content), nil
	}
	if !isBuiltin {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return builtin, nil
}
