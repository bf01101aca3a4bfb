// Package project loads parts files.
//
// A parts file maps part names to their configuration:
//
//	parts:
//	  hello:
//	    plugin: autotools
//	    source: .
//	    configure-flags: [--disable-tests]
//
// Plugin properties are kept raw; they are validated when the plugin is
// created. Files ending in .toml are read as TOML, anything else as YAML.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goplus/partcraft/pkgs/buildsys"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are looked up, in order, when no parts file is given.
var DefaultFiles = []string{"parts.yaml", "parts.yml", "parts.toml"}

// Part is one entry of a parts file.
type Part struct {
	Name   string
	Plugin string
	Source string // absolute

	BuildPackages    []string
	BuildSnaps       []string
	BuildEnvironment []buildsys.EnvVar

	// Properties is the raw configuration, plugin properties and common
	// keys alike.
	Properties map[string]any
}

// Project is a loaded parts file.
type Project struct {
	Dir   string
	Parts []*Part // sorted by name
}

type file struct {
	Parts map[string]map[string]any `yaml:"parts" toml:"parts"`
}

// Find returns the first of DefaultFiles present in dir.
func Find(dir string) (string, error) {
	for _, name := range DefaultFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no parts file found in %s (looked for %s)", dir, strings.Join(DefaultFiles, ", "))
}

// Load reads the parts file at path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	proj, err := Parse(data, filepath.Ext(path) == ".toml", filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return proj, nil
}

// Parse decodes a parts file. Relative sources are resolved against dir.
func Parse(data []byte, isTOML bool, dir string) (*Project, error) {
	var f file
	if isTOML {
		dec := toml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("parse parts file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse parts file: %w", err)
	}
	if len(f.Parts) == 0 {
		return nil, errors.New("no parts defined")
	}

	proj := &Project{Dir: dir}
	for name, raw := range f.Parts {
		p, err := newPart(name, raw, dir)
		if err != nil {
			return nil, fmt.Errorf("part %q: %w", name, err)
		}
		proj.Parts = append(proj.Parts, p)
	}
	slices.SortFunc(proj.Parts, func(a, b *Part) int { return strings.Compare(a.Name, b.Name) })
	return proj, nil
}

// Part returns the part called name, or nil.
func (p *Project) Part(name string) *Part {
	i, ok := slices.BinarySearchFunc(p.Parts, name, func(part *Part, name string) int {
		return strings.Compare(part.Name, name)
	})
	if !ok {
		return nil
	}
	return p.Parts[i]
}

// Select returns the named parts, in the order given. No names means every
// part.
func (p *Project) Select(names []string) ([]*Part, error) {
	if len(names) == 0 {
		return slices.Clone(p.Parts), nil
	}
	out := make([]*Part, 0, len(names))
	for _, name := range names {
		part := p.Part(name)
		if part == nil {
			return nil, fmt.Errorf("unknown part %q", name)
		}
		if !slices.Contains(out, part) {
			out = append(out, part)
		}
	}
	return out, nil
}

func newPart(name string, raw map[string]any, dir string) (*Part, error) {
	if name == "" {
		return nil, errors.New("empty part name")
	}
	p := &Part{Name: name, Properties: raw}
	if p.Properties == nil {
		p.Properties = map[string]any{}
	}

	plugin, err := stringKey(raw, "plugin")
	if err != nil {
		return nil, err
	}
	if plugin == "" {
		return nil, errors.New("plugin is required")
	}
	p.Plugin = plugin

	source, err := stringKey(raw, "source")
	if err != nil {
		return nil, err
	}
	if source == "" {
		source = "."
	}
	if !filepath.IsAbs(source) {
		source = filepath.Join(dir, source)
	}
	p.Source = filepath.Clean(source)

	if p.BuildPackages, err = stringsKey(raw, "build-packages"); err != nil {
		return nil, err
	}
	if p.BuildSnaps, err = stringsKey(raw, "build-snaps"); err != nil {
		return nil, err
	}
	if p.BuildEnvironment, err = environmentKey(raw, "build-environment"); err != nil {
		return nil, err
	}
	return p, nil
}

func stringKey(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected a string, got %T", key, v)
	}
	return s, nil
}

func stringsKey(raw map[string]any, key string) ([]string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a list, got %T", key, v)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected strings, got %T", key, item)
		}
		out = append(out, s)
	}
	return out, nil
}

// environmentKey reads a list of single-entry maps, keeping list order:
//
//	build-environment:
//	  - PATH: /opt/bin:$PATH
//	  - CFLAGS: -O2
func environmentKey(raw map[string]any, key string) ([]buildsys.EnvVar, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a list, got %T", key, v)
	}
	var env []buildsys.EnvVar
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok || len(m) != 1 {
			return nil, fmt.Errorf("%s: each entry must be a single NAME: value mapping", key)
		}
		for name, value := range m {
			env = append(env, buildsys.EnvVar{Name: name, Value: fmt.Sprint(value)})
		}
	}
	return env, nil
}
