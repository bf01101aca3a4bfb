// Package makefile implements the make plugin: parts built with "make" and
// installed with "make install".
package makefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/goplus/partcraft/pkgs/buildsys"
	"github.com/goplus/partcraft/pkgs/schema"
)

// Name is the plugin name used in parts files.
const Name = "make"

// Schema is the property schema of the make plugin.
var Schema = schema.Must(schema.New("v1",
	schema.Field{Name: "source", Kind: schema.String},
	schema.Field{Name: "makefile", Kind: schema.String, BuildAffecting: true},
	schema.Field{Name: "make-parameters", Kind: schema.Strings, Default: []string{}, BuildAffecting: true},
	schema.Field{Name: "make-install-var", Kind: schema.String, Default: "DESTDIR", BuildAffecting: true},
	schema.Field{Name: "artifacts", Kind: schema.Strings, Default: []string{}, BuildAffecting: true},
))

// Factory registers the make plugin.
var Factory = buildsys.Factory{
	Name:   Name,
	Schema: Schema,
	New: func(cfg *schema.Config, part buildsys.Part, run buildsys.Runner) (buildsys.Plugin, error) {
		return New(cfg, part, run), nil
	},
}

// Options is the derived configuration of a make build.
type Options struct {
	Makefile   string
	Parameters []string

	// InstallVar names the variable receiving the install directory on
	// "make install", e.g. DESTDIR. Empty means no such variable is passed.
	InstallVar string

	// Artifacts, when set, are copied into the install directory in
	// place of running "make install".
	Artifacts []string
}

// OptionsFrom derives Options from a configuration validated against
// Schema or a schema extending it.
func OptionsFrom(cfg *schema.Config) Options {
	return Options{
		Makefile:   cfg.String("makefile"),
		Parameters: cfg.Strings("make-parameters"),
		InstallVar: cfg.String("make-install-var"),
		Artifacts:  cfg.Strings("artifacts"),
	}
}

// Plugin builds a part with make.
type Plugin struct {
	opts     Options
	part     buildsys.Part
	run      buildsys.Runner
	packages []string
}

var (
	_ buildsys.CommandExecutor = (*Plugin)(nil)
	_ buildsys.CrossCompiler   = (*Plugin)(nil)
	_ buildsys.Filesetter      = (*Plugin)(nil)
)

// New creates a make plugin from a validated configuration.
func New(cfg *schema.Config, part buildsys.Part, run buildsys.Runner) *Plugin {
	return NewWithOptions(OptionsFrom(cfg), part, run)
}

// NewWithOptions creates a make plugin from already derived options.
// Plugins extending make use it after deriving their own options.
func NewWithOptions(opts Options, part buildsys.Part, run buildsys.Runner) *Plugin {
	opts.Parameters = slices.Clone(opts.Parameters)
	opts.Artifacts = slices.Clone(opts.Artifacts)
	return &Plugin{
		opts:     opts,
		part:     part,
		run:      run,
		packages: []string{"make"},
	}
}

// WithBuildPackages returns a copy of p requiring pkgs in addition to its
// own build packages.
func (p *Plugin) WithBuildPackages(pkgs ...string) *Plugin {
	q := *p
	q.packages = buildsys.SortedSet(p.packages, pkgs)
	return &q
}

// Options returns a copy of the plugin options.
func (p *Plugin) Options() Options {
	o := p.opts
	o.Parameters = slices.Clone(o.Parameters)
	o.Artifacts = slices.Clone(o.Artifacts)
	return o
}

// Part returns the part being built.
func (p *Plugin) Part() buildsys.Part { return p.part }

func (p *Plugin) BuildPackages() []string { return slices.Clone(p.packages) }

func (p *Plugin) BuildSnaps() []string { return nil }

func (p *Plugin) BuildEnvironment() []buildsys.EnvVar { return nil }

// EnableCrossCompilation does nothing: the toolchain comes from the
// environment.
func (p *Plugin) EnableCrossCompilation() error { return nil }

// Fileset returns base unchanged.
func (p *Plugin) Fileset(base []string) []string { return slices.Clone(base) }

// Build runs the make build and install.
func (p *Plugin) Build(ctx context.Context) error {
	return p.Make(ctx)
}

// Make runs "make" then installs the result, either with "make install" or
// by copying the configured artifacts.
func (p *Plugin) Make(ctx context.Context) error {
	if err := p.Run(ctx, p.MakeCommand()); err != nil {
		return err
	}
	if len(p.opts.Artifacts) > 0 {
		return p.copyArtifacts()
	}
	return p.Run(ctx, p.InstallCommand())
}

// MakeCommand returns the build invocation.
func (p *Plugin) MakeCommand() []string {
	args := []string{"make", "-j" + strconv.Itoa(p.part.Target.Jobs())}
	args = append(args, p.makefileArgs()...)
	return append(args, p.opts.Parameters...)
}

// InstallCommand returns the install invocation.
func (p *Plugin) InstallCommand() []string {
	args := append([]string{"make"}, p.makefileArgs()...)
	args = append(args, "install")
	if p.opts.InstallVar != "" {
		args = append(args, p.opts.InstallVar+"="+p.part.InstallDir)
	}
	return append(args, p.opts.Parameters...)
}

// Run runs args in the build directory.
func (p *Plugin) Run(ctx context.Context, args []string, env ...buildsys.EnvVar) error {
	return p.run.Run(ctx, buildsys.Command{Args: args, Dir: p.part.BuildDir, Env: env})
}

func (p *Plugin) makefileArgs() []string {
	if p.opts.Makefile == "" {
		return nil
	}
	return []string{"-f", p.opts.Makefile}
}

func (p *Plugin) copyArtifacts() error {
	for _, artifact := range p.opts.Artifacts {
		src := filepath.Join(p.part.BuildDir, artifact)
		dst := filepath.Join(p.part.InstallDir, artifact)
		if err := copyPath(src, dst); err != nil {
			return &buildsys.BuildError{ExitCode: -1, Err: fmt.Errorf("copy artifact %s: %w", artifact, err)}
		}
	}
	return nil
}

func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return err
		}
		return os.CopyFS(dst, os.DirFS(src))
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}
