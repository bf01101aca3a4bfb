package buildsys

import (
	"os"
	"strconv"
	"strings"
)

// EnvVar is one entry of an environment overlay. Value may reference other
// variables as $NAME or ${NAME}.
type EnvVar struct {
	Name  string
	Value string
}

func (e EnvVar) String() string { return e.Name + "=" + e.Value }

// ComposeEnvironment applies overlay on top of ambient, a list of
// "KEY=value" entries as returned by os.Environ, and returns the result.
// Overlay entries are applied in order; references in a value are expanded
// against the environment composed so far, so "PATH=/x/bin:$PATH" prepends
// to the ambient PATH. References to unset variables are kept as ${NAME}.
// ambient is not modified.
func ComposeEnvironment(ambient []string, overlay []EnvVar) []string {
	out := make([]string, 0, len(ambient)+len(overlay))
	idx := make(map[string]int, len(ambient)+len(overlay))
	values := make(map[string]string, len(ambient)+len(overlay))
	for _, kv := range ambient {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if i, dup := idx[k]; dup {
			out[i] = kv
		} else {
			idx[k] = len(out)
			out = append(out, kv)
		}
		values[k] = v
	}
	for _, e := range overlay {
		v := os.Expand(e.Value, func(name string) string {
			if cur, ok := values[name]; ok {
				return cur
			}
			return "${" + name + "}"
		})
		values[e.Name] = v
		if i, ok := idx[e.Name]; ok {
			out[i] = e.Name + "=" + v
		} else {
			idx[e.Name] = len(out)
			out = append(out, e.Name+"="+v)
		}
	}
	return out
}

// PartEnvironment returns the variables describing p to build commands.
func PartEnvironment(p Part) []EnvVar {
	env := []EnvVar{
		{"CRAFT_PART_NAME", p.Name},
		{"CRAFT_PART_SRC", p.SourceDir},
		{"CRAFT_PART_BUILD", p.BuildDir},
		{"CRAFT_PART_INSTALL", p.InstallDir},
		{"CRAFT_PARALLEL_BUILD_COUNT", strconv.Itoa(p.Target.Jobs())},
	}
	if p.Target.Arch != "" {
		env = append(env, EnvVar{"CRAFT_TARGET_ARCH", p.Target.Arch})
	}
	if p.Target.Triplet != "" {
		env = append(env, EnvVar{"CRAFT_ARCH_TRIPLET", p.Target.Triplet})
	}
	return env
}
