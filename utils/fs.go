package utils

import (
	"fmt"
	"io/fs"
	"os"
	"runtime"
)

// EnsureDirectory creates the directory at path, including missing parents,
// with the given permissions. An existing directory gets its permissions
// corrected. A file in the place of the directory is an error.
func EnsureDirectory(path string, perm fs.FileMode) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, perm); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", path, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to access %s: %w", path, err)
	case !info.IsDir():
		return fmt.Errorf("%s is not a directory", path)
	}

	// permissions are not enforced on windows
	if info.Mode().Perm() == perm || runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, perm); err != nil {
		return fmt.Errorf("failed to set permissions of %s: %w", path, err)
	}
	return nil
}
