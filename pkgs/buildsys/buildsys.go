// Package buildsys defines the contract between the parts lifecycle and
// build-system plugins (make, autotools, flutter, etc).
//
// Two generations of plugins coexist. Class-hierarchy plugins (schema
// version v1) run their commands themselves through an injected Runner and
// implement CommandExecutor. Declarative plugins (schema version v2) only
// describe their commands and implement CommandProducer. Callers dispatch
// on the capability, not on the generation.
package buildsys

import (
	"context"
	"runtime"
	"slices"
	"strings"
)

// Plugin is implemented by every build-system plugin.
type Plugin interface {
	// BuildPackages returns the host packages needed to build, sorted.
	BuildPackages() []string

	// BuildSnaps returns the host snaps needed to build, sorted.
	BuildSnaps() []string

	// BuildEnvironment returns the environment overlay of the build.
	BuildEnvironment() []EnvVar
}

// CommandProducer is a plugin that describes its build as shell commands
// and never runs anything itself.
type CommandProducer interface {
	Plugin
	BuildCommands() ([]string, error)
}

// CommandExecutor is a plugin that decides and runs its build commands
// through the Runner it was created with.
type CommandExecutor interface {
	Plugin
	Build(ctx context.Context) error
}

// CrossCompiler is implemented by plugins able to build for a foreign
// architecture.
type CrossCompiler interface {
	EnableCrossCompilation() error
}

// Filesetter is implemented by plugins that filter the files staged after
// the build. Patterns with a leading "-" exclude.
type Filesetter interface {
	Fileset(base []string) []string
}

// Target describes the architecture a part is built for.
type Target struct {
	Arch    string // target architecture, e.g. "arm64"
	Triplet string // host triplet passed to cross toolchains, e.g. "aarch64-linux-gnu"
	Cross   bool

	// ParallelBuildCount is the number of parallel jobs; zero means one per CPU.
	ParallelBuildCount int
}

// Jobs returns the effective parallel build count.
func (t Target) Jobs() int {
	if t.ParallelBuildCount > 0 {
		return t.ParallelBuildCount
	}
	return runtime.NumCPU()
}

// Part is the directory layout and target of the part being built.
type Part struct {
	Name       string
	SourceDir  string
	BuildDir   string
	InstallDir string
	Target     Target
}

// Command is one process invocation.
type Command struct {
	Args []string
	Dir  string
	Env  []EnvVar // overlay on top of the runner's environment
}

func (c Command) String() string {
	var b strings.Builder
	for _, e := range c.Env {
		b.WriteString(e.String())
		b.WriteByte(' ')
	}
	b.WriteString(strings.Join(c.Args, " "))
	return b.String()
}

// Runner runs commands on behalf of CommandExecutor plugins. Run returns a
// *BuildError when the command fails.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// SortedSet returns the sorted, deduplicated union of the given lists.
func SortedSet(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
