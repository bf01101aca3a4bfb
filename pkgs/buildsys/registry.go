package buildsys

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/goplus/partcraft/pkgs/schema"
)

// Generation identifies the plugin contract a schema version promises.
type Generation int

const (
	// ClassHierarchy plugins (schema v1) run their own commands.
	ClassHierarchy Generation = iota + 1
	// Declarative plugins (schema v2) return their commands.
	Declarative
)

func (g Generation) String() string {
	switch g {
	case ClassHierarchy:
		return "v1"
	case Declarative:
		return "v2"
	}
	return fmt.Sprintf("Generation(%d)", int(g))
}

// GenerationOf maps a schema's major version to a plugin generation.
func GenerationOf(s *schema.Schema) (Generation, error) {
	switch s.Major() {
	case "v1":
		return ClassHierarchy, nil
	case "v2":
		return Declarative, nil
	}
	return 0, fmt.Errorf("unsupported plugin schema version %q", s.Version())
}

// Factory creates plugins of one kind. Declarative plugins ignore the
// runner.
type Factory struct {
	Name   string
	Schema *schema.Schema
	New    func(cfg *schema.Config, part Part, run Runner) (Plugin, error)
}

// Instance is a plugin created from a validated part configuration.
type Instance struct {
	Name       string
	Generation Generation
	Config     *schema.Config
	Plugin     Plugin
}

// Registry maps plugin names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds f to the registry.
func (r *Registry) Register(f Factory) error {
	if f.Name == "" || f.Schema == nil || f.New == nil {
		return errors.New("buildsys: incomplete plugin factory")
	}
	if _, err := GenerationOf(f.Schema); err != nil {
		return fmt.Errorf("buildsys: plugin %q: %w", f.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[f.Name]; ok {
		return fmt.Errorf("buildsys: plugin %q already registered", f.Name)
	}
	r.factories[f.Name] = f
	return nil
}

// Lookup returns the factory registered as name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New validates raw against the schema of plugin name and creates the
// plugin. Configuration problems are reported before anything runs, as a
// *ConfigError or, for retired properties, a *schema.OutdatedError.
func (r *Registry) New(name string, raw map[string]any, part Part, run Runner) (*Instance, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, &ConfigError{Plugin: name, Err: errors.New("unknown plugin")}
	}
	cfg, err := schema.Validate(raw, f.Schema)
	if err != nil {
		var oerr *schema.OutdatedError
		if errors.As(err, &oerr) {
			return nil, err
		}
		return nil, &ConfigError{Plugin: name, Err: err}
	}
	p, err := f.New(cfg, part, run)
	if err != nil {
		var cerr *ConfigError
		if errors.As(err, &cerr) && cerr.Plugin == "" {
			cerr.Plugin = name
		}
		return nil, err
	}
	gen, _ := GenerationOf(f.Schema)
	switch gen {
	case ClassHierarchy:
		if _, ok := p.(CommandExecutor); !ok {
			return nil, fmt.Errorf("buildsys: plugin %q: %s plugins must implement CommandExecutor", name, gen)
		}
	case Declarative:
		if _, ok := p.(CommandProducer); !ok {
			return nil, fmt.Errorf("buildsys: plugin %q: %s plugins must implement CommandProducer", name, gen)
		}
	}
	return &Instance{Name: name, Generation: gen, Config: cfg, Plugin: p}, nil
}
