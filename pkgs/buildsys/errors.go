package buildsys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goplus/partcraft/pkgs/schema"
)

// ConfigError reports a plugin configuration that cannot be built. It is
// raised before any command runs; retrying without editing the part is
// pointless.
type ConfigError struct {
	Plugin string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Plugin == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("plugin %q: %v", e.Plugin, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// BuildError reports a failed build step: a command exiting non-zero or a
// filesystem precondition that could not be met.
type BuildError struct {
	Args     []string // empty for filesystem failures
	ExitCode int      // -1 when the command did not run to completion
	Err      error
}

func (e *BuildError) Error() string {
	if len(e.Args) == 0 {
		return "build failed: " + e.Err.Error()
	}
	return fmt.Sprintf("build failed: %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is a configuration error: a schema
// violation, a retired property or a *ConfigError.
func IsConfigError(err error) bool {
	var (
		cerr *ConfigError
		verr *schema.ValidationError
		oerr *schema.OutdatedError
	)
	return errors.As(err, &cerr) || errors.As(err, &verr) || errors.As(err, &oerr)
}

// IsBuildError reports whether err is a build step failure.
func IsBuildError(err error) bool {
	var berr *BuildError
	return errors.As(err, &berr)
}

// The helpers below moved to the part and project handed to plugins. They
// are kept so old callers fail with a message naming the replacement.

// ParallelBuildCount always fails; use Target.ParallelBuildCount.
func ParallelBuildCount() (int, error) {
	return 0, &schema.OutdatedError{Key: "parallel-build-count", Replacement: "parallel_build_count"}
}

// DebArch always fails; use Target.Arch.
func DebArch() (string, error) {
	return "", &schema.OutdatedError{Key: "deb-arch", Replacement: "project.deb_arch"}
}

// ArchTriplet always fails; use Target.Triplet.
func ArchTriplet() (string, error) {
	return "", &schema.OutdatedError{Key: "arch-triplet", Replacement: "project.arch_triplet"}
}
