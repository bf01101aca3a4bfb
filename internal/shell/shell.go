// Package shell runs build commands on the host.
package shell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"slices"
	"sync"

	"github.com/goplus/partcraft/pkgs/buildsys"
	"github.com/qiniu/x/log"
)

// Runner runs commands as child processes. The zero value writes to the
// process's stdout and stderr and starts from os.Environ.
type Runner struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Environ func() []string
}

var _ buildsys.Runner = (*Runner)(nil)

// Run runs cmd and waits for it. A non-zero exit or a failure to start is
// returned as a *buildsys.BuildError.
func (r *Runner) Run(ctx context.Context, cmd buildsys.Command) error {
	if len(cmd.Args) == 0 {
		return &buildsys.BuildError{ExitCode: -1, Err: errors.New("empty command")}
	}
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Stdout = r.Stdout
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	c.Stderr = r.Stderr
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	environ := os.Environ
	if r.Environ != nil {
		environ = r.Environ
	}
	c.Env = buildsys.ComposeEnvironment(environ(), cmd.Env)

	log.Debugf("run %s (in %s)", cmd, cmd.Dir)
	if err := c.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &buildsys.BuildError{Args: slices.Clone(cmd.Args), ExitCode: code, Err: err}
	}
	return nil
}

// Script returns the command running line through sh, exiting on the first
// failing statement.
func Script(line, dir string, env []buildsys.EnvVar) buildsys.Command {
	return buildsys.Command{
		Args: []string{"/bin/sh", "-e", "-c", line},
		Dir:  dir,
		Env:  env,
	}
}

// Recorder is a buildsys.Runner that records commands instead of running
// them. Fail, when set, decides the result of each command.
type Recorder struct {
	Fail func(cmd buildsys.Command) error

	mu   sync.Mutex
	cmds []buildsys.Command
}

var _ buildsys.Runner = (*Recorder)(nil)

// Run records cmd.
func (r *Recorder) Run(_ context.Context, cmd buildsys.Command) error {
	cmd.Args = slices.Clone(cmd.Args)
	cmd.Env = slices.Clone(cmd.Env)
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail(cmd)
	}
	return nil
}

// Commands returns the recorded commands in order.
func (r *Recorder) Commands() []buildsys.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.cmds)
}

// Lines returns the recorded commands formatted as shell lines.
func (r *Recorder) Lines() []string {
	cmds := r.Commands()
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = c.String()
	}
	return lines
}
