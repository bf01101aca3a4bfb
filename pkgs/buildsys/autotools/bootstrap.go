package autotools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goplus/partcraft/pkgs/buildsys"
)

// Bootstrap is how a build obtains its configure script.
type Bootstrap int

const (
	// UseConfigure runs the configure script shipped with the source.
	UseConfigure Bootstrap = iota
	// UseScript generates configure with autogen.sh or bootstrap.
	UseScript
	// UseAutoreconf generates configure with "autoreconf -i".
	UseAutoreconf
)

func (b Bootstrap) String() string {
	switch b {
	case UseConfigure:
		return "configure"
	case UseScript:
		return "script"
	case UseAutoreconf:
		return "autoreconf"
	}
	return fmt.Sprintf("Bootstrap(%d)", int(b))
}

// bootstrapScripts are tried in order.
var bootstrapScripts = []string{"autogen.sh", "bootstrap"}

// DetectBootstrap inspects dir and reports how configure is obtained. For
// UseScript it also returns the path of the script.
func DetectBootstrap(dir string) (Bootstrap, string, error) {
	if _, err := os.Stat(filepath.Join(dir, "configure")); err == nil {
		return UseConfigure, "", nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, "", err
	}
	for _, name := range bootstrapScripts {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return 0, "", err
		}
		if info.Mode().IsRegular() {
			return UseScript, path, nil
		}
	}
	return UseAutoreconf, "", nil
}

func (p *Plugin) bootstrap(ctx context.Context) error {
	decision, script, err := DetectBootstrap(p.Part().BuildDir)
	if err != nil {
		return &buildsys.BuildError{ExitCode: -1, Err: err}
	}
	switch decision {
	case UseScript:
		if err := ensureExecutable(script); err != nil {
			return &buildsys.BuildError{ExitCode: -1, Err: fmt.Errorf("make %s executable: %w", filepath.Base(script), err)}
		}
		return p.Run(ctx, []string{"env", "NOCONFIGURE=1", script})
	case UseAutoreconf:
		return p.Run(ctx, []string{"autoreconf", "-i"})
	}
	return nil
}
