// Package output writes rendered documents to disk in a given format.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrGeneratorNotFound is returned when no generator handles a format.
var ErrGeneratorNotFound = errors.New("output generator not found")

// Generator turns rendered template content into a file of one format.
// Implementations hold no per-call state and may be used concurrently.
type Generator interface {
	// Name is the format name used in the output.formats setting.
	Name() string
	// Extension is the file extension, including the leading dot.
	Extension() string
	// Generate writes content to outputPath, adjusted to the generator's
	// extension, and returns the path actually written.
	Generate(content, outputPath string, ctx map[string]any) (string, error)
}

// Registry maps format names onto generators.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
}

// NewRegistry returns a registry holding gens.
func NewRegistry(gens ...Generator) *Registry {
	r := &Registry{generators: make(map[string]Generator)}
	for _, g := range gens {
		r.Register(g)
	}
	return r
}

// DefaultRegistry returns a registry with the markdown and html generators.
func DefaultRegistry() *Registry {
	return NewRegistry(NewMarkdown(), NewHTML())
}

// Register adds g, replacing any generator with the same name.
func (r *Registry) Register(g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[strings.ToLower(g.Name())] = g
}

// Get returns the generator for format.
func (r *Registry) Get(format string) (Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.generators[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGeneratorNotFound, format)
	}
	return g, nil
}

// Has reports whether a generator handles format.
func (r *Registry) Has(format string) bool {
	_, err := r.Get(format)
	return err == nil
}

// Names lists the registered format names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// preparePath swaps the extension of path for ext and creates its parent
// directory.
func preparePath(path, ext string) (string, error) {
	if filepath.Ext(path) != ext {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ext
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return path, nil
}

// lookup reads a string nested in the template context, e.g.
// lookup(ctx, "project", "name").
func lookup(ctx map[string]any, keys ...string) string {
	var cur any = ctx
	for _, key := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[key]
	}
	s, _ := cur.(string)
	return s
}
