//go:build !unix

package autotools

import "os"

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm()&0o111 != 0 {
		return nil
	}
	return os.Chmod(path, 0o755)
}
