package env

import (
	"os"
	"path/filepath"
)

// WorkDirEnv overrides the default work directory.
const WorkDirEnv = "PARTCRAFT_WORK_DIR"

// WorkDir returns the directory holding part build trees and build state.
func WorkDir() (string, error) {
	if dir := os.Getenv(WorkDirEnv); dir != "" {
		return filepath.Abs(dir)
	}
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".partcraft"), nil
}
