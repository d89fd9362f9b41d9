// Package buildarea manages the host directory bind-mounted into the
// buildbot container.
package buildarea

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DirName is the directory created beneath the configured parent.
const DirName = "buildarea"

// MountPath is where the buildarea appears inside the container.
const MountPath = "/buildarea"

// Path returns the absolute buildarea path beneath parent.
func Path(parent string) (string, error) {
	abs, err := filepath.Abs(parent)
	if err != nil {
		return "", fmt.Errorf("resolving buildarea parent: %w", err)
	}
	return filepath.Join(abs, DirName), nil
}

// Prepare deletes any existing buildarea beneath parent and creates it again,
// empty. A non-zero mode is applied to the new directory as-is, bypassing the
// umask. Everything previously stored in the buildarea is lost.
func Prepare(parent string, mode fs.FileMode) (string, error) {
	dir, err := Path(parent)
	if err != nil {
		return "", err
	}

	if _, err := os.Lstat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return "", fmt.Errorf("removing old buildarea: %w", err)
		}
	}

	if err := os.Mkdir(dir, 0o777); err != nil {
		return "", fmt.Errorf("creating buildarea: %w", err)
	}

	if mode != 0 {
		if err := os.Chmod(dir, mode); err != nil {
			return "", fmt.Errorf("chmod buildarea: %w", err)
		}
	}

	return dir, nil
}
