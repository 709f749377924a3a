package connector

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/elhajjaji/wara9a/internal/logging"
)

// Factory builds a connector discovered at resolve time.
type Factory func() (Connector, error)

// Registry maps source types onto connectors.
//
// Connectors come from two places: the static table filled by Register, and
// plugin factories added with RegisterFactory. A factory is only invoked the
// first time its type is resolved. Concurrent resolutions of the same type
// wait for the running factory and share its result. A failed attempt is
// remembered once the factory has returned and never retried for the
// lifetime of the registry.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
	factories  map[string]Factory
	attempted  map[string]bool
	inflight   singleflight.Group
	logger     *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses the default one.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.With("connector-registry")
	}
	return &Registry{
		connectors: make(map[string]Connector),
		factories:  make(map[string]Factory),
		attempted:  make(map[string]bool),
		logger:     logger,
	}
}

// Register adds c to the static table. Registering a type twice keeps the
// last connector and logs a warning.
func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()

	typ := c.Type()
	if _, exists := r.connectors[typ]; exists {
		r.logger.Warn("overwriting registered connector", "type", typ)
	}
	r.connectors[typ] = c
	r.logger.Debug("registered connector", "type", typ, "category", c.Category())
}

// RegisterFactory adds a plugin connector under a fully-qualified
// identifier such as "example.com/connectors/gitlab". It is resolvable
// by the full identifier or by its last path element ("gitlab").
func (r *Registry) RegisterFactory(identifier string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[identifier]; exists {
		r.logger.Warn("overwriting connector factory", "identifier", identifier)
	}
	r.factories[identifier] = f
}

// Resolve returns the connector for a source type, discovering it through
// the registered factories if needed.
func (r *Registry) Resolve(typ string) (Connector, error) {
	r.mu.RLock()
	c, ok := r.connectors[typ]
	attempted := r.attempted[typ]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}
	if attempted {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, typ)
	}
	return r.discover(typ)
}

// discover invokes the factory matching typ at most once per type.
func (r *Registry) discover(typ string) (Connector, error) {
	v, err, _ := r.inflight.Do(typ, func() (any, error) {
		return r.load(typ)
	})
	if err != nil {
		return nil, err
	}
	return v.(Connector), nil
}

// load runs the factory for typ outside the lock. Only one load per type
// runs at a time; see discover.
func (r *Registry) load(typ string) (Connector, error) {
	r.mu.RLock()
	c, ok := r.connectors[typ]
	attempted := r.attempted[typ]
	factory, identifier := r.factoryFor(typ)
	r.mu.RUnlock()

	switch {
	case ok:
		return c, nil
	case attempted:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, typ)
	case factory == nil:
		r.markAttempted(typ)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, typ)
	}

	c, err := factory()
	if err != nil {
		r.markAttempted(typ)
		r.logger.Warn("connector discovery failed", "type", typ, "identifier", identifier, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, typ, err)
	}
	if c == nil {
		r.markAttempted(typ)
		r.logger.Warn("connector factory returned nothing", "type", typ, "identifier", identifier)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, typ)
	}

	r.mu.Lock()
	r.connectors[typ] = c
	r.mu.Unlock()

	r.logger.Info("discovered connector", "type", typ, "identifier", identifier)
	return c, nil
}

func (r *Registry) markAttempted(typ string) {
	r.mu.Lock()
	r.attempted[typ] = true
	r.mu.Unlock()
}

// factoryFor must be called with r.mu held.
func (r *Registry) factoryFor(typ string) (Factory, string) {
	if f, ok := r.factories[typ]; ok {
		return f, typ
	}
	identifiers := make([]string, 0, len(r.factories))
	for id := range r.factories {
		identifiers = append(identifiers, id)
	}
	sort.Strings(identifiers)
	for _, id := range identifiers {
		if path.Base(id) == typ {
			return r.factories[id], id
		}
	}
	return nil, ""
}

// Has reports whether typ can be resolved. It may trigger discovery.
func (r *Registry) Has(typ string) bool {
	_, err := r.Resolve(typ)
	return err == nil
}

// List returns the connectors in the static table (including already
// discovered ones) sorted by type.
func (r *Registry) List() []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Connector, 0, len(r.connectors))
	for _, c := range r.connectors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Type() < out[j].Type()
	})
	return out
}

// Types returns the registered connector types sorted alphabetically.
func (r *Registry) Types() []string {
	list := r.List()
	types := make([]string, len(list))
	for i, c := range list {
		types[i] = c.Type()
	}
	return types
}

// ByCategory groups the registered connectors by category.
func (r *Registry) ByCategory() map[Category][]Connector {
	grouped := make(map[Category][]Connector)
	for _, c := range r.List() {
		grouped[c.Category()] = append(grouped[c.Category()], c)
	}
	return grouped
}
