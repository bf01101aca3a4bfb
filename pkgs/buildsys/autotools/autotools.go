// Package autotools implements the autotools plugin for parts following the
// usual "./configure && make && make install" procedure.
//
// When the source ships no configure script, the plugin generates one
// with autogen.sh or bootstrap if present, or with "autoreconf -i".
package autotools

import (
	"context"
	"fmt"
	"slices"

	"github.com/goplus/partcraft/pkgs/buildsys"
	"github.com/goplus/partcraft/pkgs/buildsys/makefile"
	"github.com/goplus/partcraft/pkgs/schema"
)

// Name is the plugin name used in parts files.
const Name = "autotools"

// Install modes of the install-via property.
const (
	InstallViaDestdir = "destdir"
	InstallViaPrefix  = "prefix"
)

// Schema extends the make schema with configure flags and the install mode.
var Schema = schema.Must(makefile.Schema.Extend(
	schema.Field{Name: "source", Kind: schema.String, Required: true},
	schema.Field{Name: "configure-flags", Kind: schema.Strings, Default: []string{}, MinItems: 1, BuildAffecting: true},
	schema.Field{
		Name:           "install-via",
		Kind:           schema.Enum,
		Values:         []string{InstallViaDestdir, InstallViaPrefix},
		Default:        InstallViaDestdir,
		BuildAffecting: true,
	},
	schema.Field{Name: "configflags", Kind: schema.Strings, Replacement: "configure-flags"},
))

// Factory registers the autotools plugin.
var Factory = buildsys.Factory{
	Name:   Name,
	Schema: Schema,
	New: func(cfg *schema.Config, part buildsys.Part, run buildsys.Runner) (buildsys.Plugin, error) {
		return New(cfg, part, run)
	},
}

// Plugin builds an autotools part. It embeds the make plugin, which runs
// once configure succeeded.
type Plugin struct {
	*makefile.Plugin
	configureFlags []string
}

var (
	_ buildsys.CommandExecutor = (*Plugin)(nil)
	_ buildsys.CrossCompiler   = (*Plugin)(nil)
	_ buildsys.Filesetter      = (*Plugin)(nil)
)

// New creates an autotools plugin. An install-via value other than
// "destdir" or "prefix" is a *buildsys.ConfigError.
func New(cfg *schema.Config, part buildsys.Part, run buildsys.Runner) (*Plugin, error) {
	opts := makefile.OptionsFrom(cfg)
	switch via := cfg.String("install-via"); via {
	case InstallViaDestdir:
		opts.InstallVar = "DESTDIR"
	case InstallViaPrefix:
		opts.InstallVar = ""
	default:
		return nil, &buildsys.ConfigError{Plugin: Name, Err: fmt.Errorf("unsupported installation method: %q", via)}
	}
	base := makefile.NewWithOptions(opts, part, run).
		WithBuildPackages("autoconf", "automake", "autopoint", "libtool")
	return &Plugin{
		Plugin:         base,
		configureFlags: cfg.Strings("configure-flags"),
	}, nil
}

// EnableCrossCompilation does nothing: configure receives --host instead.
func (p *Plugin) EnableCrossCompilation() error { return nil }

// Build generates configure if needed, runs it, then runs the make build.
// The first failing step aborts the build.
func (p *Plugin) Build(ctx context.Context) error {
	if err := p.bootstrap(ctx); err != nil {
		return err
	}
	if err := p.Run(ctx, p.ConfigureCommand()); err != nil {
		return err
	}
	return p.Make(ctx)
}

// ConfigureCommand returns the configure invocation: prefix first, then
// the host triplet when cross-compiling, then the configure-flags in the
// given order.
func (p *Plugin) ConfigureCommand() []string {
	part := p.Part()
	args := []string{"./configure"}
	if p.Options().InstallVar != "" {
		// installed through DESTDIR later
		args = append(args, "--prefix=")
	} else {
		args = append(args, "--prefix="+part.InstallDir)
	}
	if part.Target.Cross {
		args = append(args, "--host="+part.Target.Triplet)
	}
	return append(args, p.configureFlags...)
}

// Fileset excludes libtool archives, which embed absolute build paths and
// break once relocated.
func (p *Plugin) Fileset(base []string) []string {
	fs := p.Plugin.Fileset(base)
	if !slices.Contains(fs, laExclude) {
		fs = append(fs, laExclude)
	}
	return fs
}

const laExclude = "-**/*.la"
