package lifecycle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/goplus/partcraft/pkgs/buildsys"
)

// Work directory layout:
//
//	workDir/
//	  parts/<name>/build/     # copy of the source, where commands run
//	  parts/<name>/install/   # install output
//	  state/<name>.json       # build state of the last successful build

// buildState records what a part was last built with.
type buildState struct {
	Plugin      string         `json:"plugin"`
	Properties  map[string]any `json:"properties"`
	Target      stateTarget    `json:"target"`
	Environment []stateEnvVar  `json:"build_environment,omitempty"`
	BuildTime   time.Time      `json:"build_time"`
}

// stateTarget is the part of a buildsys.Target that changes build output.
// The parallel build count does not.
type stateTarget struct {
	Arch    string `json:"arch,omitempty"`
	Triplet string `json:"triplet,omitempty"`
	Cross   bool   `json:"cross,omitempty"`
}

type stateEnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func newStateTarget(t buildsys.Target) stateTarget {
	return stateTarget{Arch: t.Arch, Triplet: t.Triplet, Cross: t.Cross}
}

func newStateEnv(env []buildsys.EnvVar) []stateEnvVar {
	if len(env) == 0 {
		return nil
	}
	out := make([]stateEnvVar, len(env))
	for i, e := range env {
		out[i] = stateEnvVar{Name: e.Name, Value: e.Value}
	}
	return out
}

// changes returns what differs between the recorded state and a part about
// to build with target and env: "target" and "build-environment".
func (st *buildState) changes(target buildsys.Target, env []buildsys.EnvVar) []string {
	var out []string
	if st.Target != newStateTarget(target) {
		out = append(out, "target")
	}
	if !slices.Equal(st.Environment, newStateEnv(env)) {
		out = append(out, "build-environment")
	}
	return out
}

func (b *Builder) statePath(part string) string {
	return filepath.Join(b.opts.WorkDir, "state", part+".json")
}

func loadState(path string) (*buildState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state buildState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// removeState forgets the last build of a part. A missing state is not an
// error.
func removeState(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func saveState(path string, state *buildState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
