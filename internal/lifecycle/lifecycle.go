// Package lifecycle builds the parts of a project with their plugins.
//
// A Builder creates every plugin up front, so configuration errors are
// reported before any command runs. It then builds parts in their own
// directories under the work directory, skipping parts whose
// build-affecting properties did not change since their last build.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goplus/partcraft/internal/par"
	"github.com/goplus/partcraft/internal/project"
	"github.com/goplus/partcraft/internal/shell"
	"github.com/goplus/partcraft/pkgs/buildsys"
	"github.com/qiniu/x/log"
)

// Options configures a Builder.
type Options struct {
	WorkDir string
	Target  buildsys.Target

	// Jobs is the number of parts built at once; zero means one.
	Jobs int

	// Force rebuilds parts that are up to date.
	Force bool

	// Runner runs build commands; nil means a shell.Runner writing to the
	// process's stdout and stderr.
	Runner buildsys.Runner
}

// Step is a part ready to build.
type Step struct {
	Part     *project.Part
	Layout   buildsys.Part
	Instance *buildsys.Instance
}

// Environment returns the environment overlay of the part's commands: the
// part variables, then the plugin's build environment, then the part's own
// build-environment.
func (s *Step) Environment() []buildsys.EnvVar {
	env := buildsys.PartEnvironment(s.Layout)
	env = append(env, s.Instance.Plugin.BuildEnvironment()...)
	return append(env, s.Part.BuildEnvironment...)
}

// Builder builds the parts of a project.
type Builder struct {
	opts  Options
	run   buildsys.Runner
	steps []*Step
}

// New creates the plugin of every part. All configuration errors are
// reported together.
func New(reg *buildsys.Registry, parts []*project.Part, opts Options) (*Builder, error) {
	if opts.WorkDir == "" {
		return nil, errors.New("lifecycle: no work directory")
	}
	work, err := filepath.Abs(opts.WorkDir)
	if err != nil {
		return nil, err
	}
	opts.WorkDir = work

	b := &Builder{opts: opts, run: opts.Runner}
	if b.run == nil {
		b.run = &shell.Runner{}
	}

	var errs []error
	for _, part := range parts {
		step, err := b.prepare(reg, part)
		if err != nil {
			errs = append(errs, fmt.Errorf("part %q: %w", part.Name, err))
			continue
		}
		b.steps = append(b.steps, step)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return b, nil
}

func (b *Builder) prepare(reg *buildsys.Registry, part *project.Part) (*Step, error) {
	dir := filepath.Join(b.opts.WorkDir, "parts", part.Name)
	s := &Step{
		Part: part,
		Layout: buildsys.Part{
			Name:       part.Name,
			SourceDir:  part.Source,
			BuildDir:   filepath.Join(dir, "build"),
			InstallDir: filepath.Join(dir, "install"),
			Target:     b.opts.Target,
		},
	}
	inst, err := reg.New(part.Plugin, part.Properties, s.Layout, &stepRunner{step: s, run: b.run})
	if err != nil {
		return nil, err
	}
	s.Instance = inst
	return s, nil
}

// stepRunner runs the commands of a class-hierarchy plugin with the
// environment of its step.
type stepRunner struct {
	step *Step
	run  buildsys.Runner
}

func (r *stepRunner) Run(ctx context.Context, cmd buildsys.Command) error {
	cmd.Env = append(r.step.Environment(), cmd.Env...)
	return r.run.Run(ctx, cmd)
}

// Steps returns the prepared parts, in order.
func (b *Builder) Steps() []*Step { return slices.Clone(b.steps) }

// Step returns the prepared part called name, or nil.
func (b *Builder) Step(name string) *Step {
	for _, s := range b.steps {
		if s.Part.Name == name {
			return s
		}
	}
	return nil
}

// Requirements returns the host packages and snaps needed to build every
// part, declared by the plugins and by the parts themselves.
func (b *Builder) Requirements() (packages, snaps []string) {
	for _, s := range b.steps {
		packages = buildsys.SortedSet(packages, s.Instance.Plugin.BuildPackages(), s.Part.BuildPackages)
		snaps = buildsys.SortedSet(snaps, s.Instance.Plugin.BuildSnaps(), s.Part.BuildSnaps)
	}
	return packages, snaps
}

// Plan returns the commands a declarative plugin would run for s. ok is
// false for plugins that decide their commands while building.
func (b *Builder) Plan(s *Step) (cmds []string, ok bool, err error) {
	p, ok := s.Instance.Plugin.(buildsys.CommandProducer)
	if !ok {
		return nil, false, nil
	}
	cmds, err = p.BuildCommands()
	return cmds, true, err
}

// Fileset returns the staging fileset of s: the part's "stage" list, or
// everything, filtered by the plugin.
func (b *Builder) Fileset(s *Step) []string {
	base := []string{"*"}
	if raw, ok := s.Part.Properties["stage"].([]any); ok {
		base = base[:0]
		for _, v := range raw {
			if str, ok := v.(string); ok {
				base = append(base, str)
			}
		}
	}
	if f, ok := s.Instance.Plugin.(buildsys.Filesetter); ok {
		return f.Fileset(base)
	}
	return base
}

// Dirty returns what changed in s since its last successful build, and
// whether s needs building at all. Changes are build-affecting property
// names, or "plugin", "target" and "build-environment".
func (b *Builder) Dirty(s *Step) ([]string, bool) {
	state, err := loadState(b.statePath(s.Part.Name))
	if err != nil {
		return nil, true
	}
	if state.Plugin != s.Instance.Name {
		return []string{"plugin"}, true
	}
	dirty := s.Instance.Config.DirtyProperties(state.Properties)
	dirty = append(dirty, state.changes(s.Layout.Target, s.Part.BuildEnvironment)...)
	slices.Sort(dirty)
	return dirty, len(dirty) > 0
}

// Build builds s.
func (b *Builder) Build(ctx context.Context, s *Step) error {
	name := s.Part.Name
	if s.Layout.Target.Cross {
		cc, ok := s.Instance.Plugin.(buildsys.CrossCompiler)
		if !ok {
			return &buildsys.ConfigError{Plugin: s.Instance.Name, Err: errors.New("cross-compilation is not supported")}
		}
		if err := cc.EnableCrossCompilation(); err != nil {
			return err
		}
	}
	if !b.opts.Force {
		dirty, needed := b.Dirty(s)
		if !needed {
			log.Infof("%s: up to date", name)
			return nil
		}
		if len(dirty) > 0 {
			log.Infof("%s: changed %s", name, strings.Join(dirty, ", "))
		}
	}
	log.Infof("%s: building with the %s plugin", name, s.Instance.Name)

	// setup wipes the previous output, so the part stays dirty until this
	// build succeeds
	if err := removeState(b.statePath(name)); err != nil {
		return &buildsys.BuildError{ExitCode: -1, Err: fmt.Errorf("remove build state: %w", err)}
	}
	if err := b.setup(s); err != nil {
		return err
	}

	switch p := s.Instance.Plugin.(type) {
	case buildsys.CommandExecutor:
		if err := p.Build(ctx); err != nil {
			return err
		}
	case buildsys.CommandProducer:
		cmds, err := p.BuildCommands()
		if err != nil {
			return err
		}
		env := s.Environment()
		for _, line := range cmds {
			if err := b.run.Run(ctx, shell.Script(line, s.Layout.BuildDir, env)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("lifecycle: plugin %q can neither run nor describe its build", s.Instance.Name)
	}

	state := &buildState{
		Plugin:      s.Instance.Name,
		Properties:  s.Instance.Config.BuildState(),
		Target:      newStateTarget(s.Layout.Target),
		Environment: newStateEnv(s.Part.BuildEnvironment),
		BuildTime:   time.Now(),
	}
	if err := saveState(b.statePath(name), state); err != nil {
		return fmt.Errorf("save build state: %w", err)
	}
	log.Infof("%s: built", name)
	return nil
}

// setup recreates the build directory from the source and empties the
// install directory.
func (b *Builder) setup(s *Step) error {
	for _, dir := range []string{s.Layout.BuildDir, s.Layout.InstallDir} {
		if err := os.RemoveAll(dir); err != nil {
			return &buildsys.BuildError{ExitCode: -1, Err: err}
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &buildsys.BuildError{ExitCode: -1, Err: err}
		}
	}
	if err := copyTree(s.Layout.SourceDir, s.Layout.BuildDir, b.opts.WorkDir); err != nil {
		return &buildsys.BuildError{ExitCode: -1, Err: fmt.Errorf("copy source: %w", err)}
	}
	return nil
}

// BuildAll builds the given steps, at most Options.Jobs at a time. Parts
// not yet started when one fails are skipped. Failures are returned
// together, sorted by part name.
func (b *Builder) BuildAll(ctx context.Context, steps []*Step) error {
	if len(steps) == 0 {
		return nil
	}
	jobs := max(b.opts.Jobs, 1)

	type failure struct {
		part string
		err  error
	}
	var (
		mu     sync.Mutex
		failed []failure
	)
	var work par.Work[*Step]
	for _, s := range steps {
		work.Add(s)
	}
	work.Do(jobs, func(s *Step) {
		mu.Lock()
		stop := len(failed) > 0
		mu.Unlock()
		if stop {
			log.Infof("%s: skipped", s.Part.Name)
			return
		}
		if err := b.Build(ctx, s); err != nil {
			mu.Lock()
			failed = append(failed, failure{s.Part.Name, err})
			mu.Unlock()
		}
	})

	slices.SortFunc(failed, func(a, b failure) int { return strings.Compare(a.part, b.part) })
	errs := make([]error, len(failed))
	for i, f := range failed {
		errs[i] = fmt.Errorf("part %q: %w", f.part, f.err)
	}
	return errors.Join(errs...)
}
