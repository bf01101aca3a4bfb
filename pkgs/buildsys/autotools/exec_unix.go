//go:build unix

package autotools

import (
	"os"

	"golang.org/x/sys/unix"
)

func ensureExecutable(path string) error {
	if unix.Access(path, unix.X_OK) == nil {
		return nil
	}
	return os.Chmod(path, 0o755)
}
