// Package flutter implements the flutter plugin. It builds Linux desktop
// applications with a Flutter toolchain cloned into the build directory.
package flutter

import (
	"fmt"

	"github.com/goplus/partcraft/pkgs/buildsys"
	"github.com/goplus/partcraft/pkgs/schema"
)

// Name is the plugin name used in parts files.
const Name = "flutter"

// Repo is the toolchain repository cloned on first build.
const Repo = "https://github.com/flutter/flutter.git"

// DistroDir is the toolchain directory, relative to the build directory.
const DistroDir = "flutter-distro"

// Schema is the property schema of the flutter plugin.
var Schema = schema.Must(schema.New("v2",
	schema.Field{
		Name:           "flutter-branch",
		Kind:           schema.Enum,
		Values:         []string{"stable", "master", "dev"},
		Default:        "stable",
		BuildAffecting: true,
	},
	schema.Field{Name: "flutter-target", Kind: schema.String, Default: "lib/main.dart", BuildAffecting: true},
))

// Factory registers the flutter plugin.
var Factory = buildsys.Factory{
	Name:   Name,
	Schema: Schema,
	New: func(cfg *schema.Config, _ buildsys.Part, _ buildsys.Runner) (buildsys.Plugin, error) {
		return New(cfg), nil
	},
}

// Plugin describes a flutter build. It never runs anything.
type Plugin struct {
	branch string
	target string
}

var _ buildsys.CommandProducer = (*Plugin)(nil)

// New creates a flutter plugin from a validated configuration.
func New(cfg *schema.Config) *Plugin {
	return &Plugin{
		branch: cfg.String("flutter-branch"),
		target: cfg.String("flutter-target"),
	}
}

func (p *Plugin) BuildPackages() []string {
	return []string{"clang", "cmake", "git", "ninja-build", "unzip"}
}

func (p *Plugin) BuildSnaps() []string { return nil }

func (p *Plugin) BuildEnvironment() []buildsys.EnvVar {
	return []buildsys.EnvVar{
		{Name: "PATH", Value: "${CRAFT_PART_BUILD}/" + DistroDir + "/bin:${PATH}"},
	}
}

// BuildCommands returns the build steps, to be run in order from the build
// directory. The clone is skipped when the toolchain is already present.
func (p *Plugin) BuildCommands() ([]string, error) {
	return []string{
		fmt.Sprintf("[ -d %s ] || git clone -b %s %s %s", DistroDir, p.branch, Repo, DistroDir),
		"flutter doctor",
		"flutter pub get",
		"flutter build linux --release -v -t " + p.target,
		"mkdir -p $CRAFT_PART_INSTALL/bin/",
		"cp -r build/linux/*/release/bundle/* $CRAFT_PART_INSTALL/bin/",
	}, nil
}
