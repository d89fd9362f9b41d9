// Package credentials checks the buildbot credentials file before it is
// handed to the container runtime. The file content is never read.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joshrwolf/wasi-buildbot/internal/config"
)

var (
	// ErrNotFound is wrapped by the *config.Error returned for a missing file.
	ErrNotFound = errors.New("file not found")

	// ErrInsecurePermissions is wrapped by PermissionError.
	ErrInsecurePermissions = errors.New("credentials file must NOT be readable/writable by group or others")
)

// groupOtherBits are the permission bits that must be clear.
const groupOtherBits fs.FileMode = 0o077

// PermissionError reports a credentials file that grants access beyond its owner.
type PermissionError struct {
	Path string
	Mode fs.FileMode
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("credentials file %s (mode %04o) must NOT be readable/writable by group or others", e.Path, e.Mode.Perm())
}

func (e *PermissionError) Unwrap() error {
	return ErrInsecurePermissions
}

// Validate checks that path exists and is accessible by its owner only, and
// returns its absolute path.
func Validate(path string) (string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &config.Error{Key: "credentials", Value: path, Err: ErrNotFound}
	}
	if err != nil {
		return "", fmt.Errorf("checking credentials file: %w", err)
	}

	if info.Mode().Perm()&groupOtherBits != 0 {
		return "", &PermissionError{Path: path, Mode: info.Mode()}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving credentials path: %w", err)
	}
	return abs, nil
}
