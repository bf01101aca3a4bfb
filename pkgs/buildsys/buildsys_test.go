package buildsys

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/goplus/partcraft/pkgs/schema"
)

func TestComposeEnvironment(t *testing.T) {
	ambient := []string{"HOME=/root", "PATH=/usr/bin:/bin", "BROKEN"}
	overlay := []EnvVar{
		{"CRAFT_PART_BUILD", "/parts/foo/build"},
		{"PATH", "${CRAFT_PART_BUILD}/flutter-distro/bin:$PATH"},
		{"CFLAGS", "-O2 $EXTRA_CFLAGS"},
		{"HOME", "/home/builder"},
	}
	got := ComposeEnvironment(ambient, overlay)
	want := []string{
		"HOME=/home/builder",
		"PATH=/parts/foo/build/flutter-distro/bin:/usr/bin:/bin",
		"CRAFT_PART_BUILD=/parts/foo/build",
		"CFLAGS=-O2 ${EXTRA_CFLAGS}",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("ComposeEnvironment() = %q, want %q", got, want)
	}
	if ambient[1] != "PATH=/usr/bin:/bin" {
		t.Fatalf("ambient modified: %q", ambient)
	}
}

func TestComposeEnvironmentOrderMatters(t *testing.T) {
	a := ComposeEnvironment([]string{"PATH=/bin"}, []EnvVar{{"PATH", "/a:$PATH"}, {"PATH", "/b:$PATH"}})
	b := ComposeEnvironment([]string{"PATH=/bin"}, []EnvVar{{"PATH", "/b:$PATH"}, {"PATH", "/a:$PATH"}})
	if a[0] != "PATH=/b:/a:/bin" || b[0] != "PATH=/a:/b:/bin" {
		t.Fatalf("got %q and %q", a, b)
	}
}

func TestPartEnvironment(t *testing.T) {
	p := Part{
		Name:       "hello",
		SourceDir:  "/w/parts/hello/src",
		BuildDir:   "/w/parts/hello/build",
		InstallDir: "/w/parts/hello/install",
		Target:     Target{Arch: "arm64", Triplet: "aarch64-linux-gnu", Cross: true, ParallelBuildCount: 3},
	}
	env := map[string]string{}
	for _, e := range PartEnvironment(p) {
		env[e.Name] = e.Value
	}
	want := map[string]string{
		"CRAFT_PART_NAME":            "hello",
		"CRAFT_PART_SRC":             "/w/parts/hello/src",
		"CRAFT_PART_BUILD":           "/w/parts/hello/build",
		"CRAFT_PART_INSTALL":         "/w/parts/hello/install",
		"CRAFT_PARALLEL_BUILD_COUNT": "3",
		"CRAFT_TARGET_ARCH":          "arm64",
		"CRAFT_ARCH_TRIPLET":         "aarch64-linux-gnu",
	}
	for k, v := range want {
		if env[k] != v {
			t.Errorf("%s = %q, want %q", k, env[k], v)
		}
	}
}

func TestTargetJobs(t *testing.T) {
	if got := (Target{ParallelBuildCount: 7}).Jobs(); got != 7 {
		t.Fatalf("Jobs() = %d, want 7", got)
	}
	if got := (Target{}).Jobs(); got < 1 {
		t.Fatalf("default Jobs() = %d", got)
	}
}

func TestSortedSet(t *testing.T) {
	got := SortedSet([]string{"make", "libtool"}, []string{"autoconf", "make"})
	if want := []string{"autoconf", "libtool", "make"}; !slices.Equal(got, want) {
		t.Fatalf("SortedSet() = %q, want %q", got, want)
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Args: []string{"./autogen.sh"}, Env: []EnvVar{{"NOCONFIGURE", "1"}}}
	if got := c.String(); got != "NOCONFIGURE=1 ./autogen.sh" {
		t.Fatalf("String() = %q", got)
	}
}

func TestErrorKinds(t *testing.T) {
	cfgErr := &ConfigError{Plugin: "autotools", Err: errors.New(`unsupported installation method: "staging"`)}
	if got := cfgErr.Error(); got != `plugin "autotools": unsupported installation method: "staging"` {
		t.Fatalf("ConfigError = %q", got)
	}
	buildErr := &BuildError{Args: []string{"make", "-j2"}, ExitCode: 2, Err: errors.New("exit status 2")}
	if got := buildErr.Error(); got != "build failed: make -j2: exit status 2" {
		t.Fatalf("BuildError = %q", got)
	}

	tests := []struct {
		err           error
		config, build bool
	}{
		{cfgErr, true, false},
		{&schema.ValidationError{}, true, false},
		{&schema.OutdatedError{Replacement: "x"}, true, false},
		{buildErr, false, true},
		{errors.Join(errors.New("ctx"), buildErr), false, true},
		{errors.New("other"), false, false},
	}
	for _, tt := range tests {
		if got := IsConfigError(tt.err); got != tt.config {
			t.Errorf("IsConfigError(%v) = %v", tt.err, got)
		}
		if got := IsBuildError(tt.err); got != tt.build {
			t.Errorf("IsBuildError(%v) = %v", tt.err, got)
		}
	}
}

func TestMigratedHelpers(t *testing.T) {
	if _, err := ParallelBuildCount(); err == nil || err.Error() != "This plugin is outdated: use 'parallel_build_count'" {
		t.Errorf("ParallelBuildCount() error = %v", err)
	}
	if _, err := DebArch(); err == nil || err.Error() != "This plugin is outdated: use 'project.deb_arch'" {
		t.Errorf("DebArch() error = %v", err)
	}
	if _, err := ArchTriplet(); err == nil || err.Error() != "This plugin is outdated: use 'project.arch_triplet'" {
		t.Errorf("ArchTriplet() error = %v", err)
	}
}

// fakes for the registry tests

type fakeProducer struct{}

func (fakeProducer) BuildPackages() []string          { return nil }
func (fakeProducer) BuildSnaps() []string             { return nil }
func (fakeProducer) BuildEnvironment() []EnvVar       { return nil }
func (fakeProducer) BuildCommands() ([]string, error) { return []string{"true"}, nil }

type fakeExecutor struct{}

func (fakeExecutor) BuildPackages() []string     { return nil }
func (fakeExecutor) BuildSnaps() []string        { return nil }
func (fakeExecutor) BuildEnvironment() []EnvVar  { return nil }
func (fakeExecutor) Build(context.Context) error { return nil }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	v1 := schema.Must(schema.New("v1",
		schema.Field{Name: "mode", Kind: schema.Enum, Values: []string{"a", "b"}, Default: "a"},
		schema.Field{Name: "old", Kind: schema.String, Replacement: "mode"},
	))
	v2 := schema.Must(schema.New("v2"))
	factories := []Factory{
		{Name: "exec", Schema: v1, New: func(cfg *schema.Config, _ Part, _ Runner) (Plugin, error) {
			if cfg.String("mode") == "b" {
				return nil, &ConfigError{Err: errors.New("mode b is not buildable")}
			}
			return fakeExecutor{}, nil
		}},
		{Name: "produce", Schema: v2, New: func(*schema.Config, Part, Runner) (Plugin, error) {
			return fakeProducer{}, nil
		}},
		{Name: "mismatch", Schema: v2, New: func(*schema.Config, Part, Runner) (Plugin, error) {
			return fakeExecutor{}, nil
		}},
	}
	for _, f := range factories {
		if err := r.Register(f); err != nil {
			t.Fatalf("Register(%s): %v", f.Name, err)
		}
	}
	return r
}

func TestRegistryRegister(t *testing.T) {
	r := newTestRegistry(t)
	if got := r.Names(); !slices.Equal(got, []string{"exec", "mismatch", "produce"}) {
		t.Fatalf("Names() = %q", got)
	}
	f, _ := r.Lookup("exec")
	if err := r.Register(f); err == nil {
		t.Fatal("duplicate Register should fail")
	}
	if err := r.Register(Factory{Name: "x"}); err == nil {
		t.Fatal("incomplete factory should fail")
	}
	v3 := schema.Must(schema.New("v3"))
	if err := r.Register(Factory{Name: "v3", Schema: v3, New: f.New}); err == nil {
		t.Fatal("unsupported generation should fail")
	}
}

func TestRegistryNew(t *testing.T) {
	r := newTestRegistry(t)

	inst, err := r.New("exec", map[string]any{"plugin": "exec"}, Part{}, nil)
	if err != nil {
		t.Fatalf("New(exec): %v", err)
	}
	if inst.Generation != ClassHierarchy || inst.Config.String("mode") != "a" {
		t.Fatalf("instance = %+v", inst)
	}
	if _, ok := inst.Plugin.(CommandExecutor); !ok {
		t.Fatal("exec plugin is not a CommandExecutor")
	}

	inst, err = r.New("produce", nil, Part{}, nil)
	if err != nil || inst.Generation != Declarative {
		t.Fatalf("New(produce) = %+v, %v", inst, err)
	}

	_, err = r.New("nope", nil, Part{}, nil)
	if !IsConfigError(err) {
		t.Errorf("unknown plugin: %v", err)
	}

	_, err = r.New("exec", map[string]any{"mode": "c"}, Part{}, nil)
	if !IsConfigError(err) || !strings.Contains(err.Error(), `plugin "exec"`) {
		t.Errorf("bad enum: %v", err)
	}

	_, err = r.New("exec", map[string]any{"mode": "b"}, Part{}, nil)
	if !IsConfigError(err) || err.Error() != `plugin "exec": mode b is not buildable` {
		t.Errorf("constructor error: %v", err)
	}

	_, err = r.New("exec", map[string]any{"old": "x"}, Part{}, nil)
	if err == nil || err.Error() != "This plugin is outdated: use 'mode'" {
		t.Errorf("outdated: %v", err)
	}

	_, err = r.New("mismatch", nil, Part{}, nil)
	if err == nil || IsConfigError(err) {
		t.Errorf("capability mismatch: %v", err)
	}
}
