//go:build !unix

package cli

import (
	"errors"
	"os"
	"os/exec"

	"github.com/joshrwolf/wasi-buildbot/internal/runtime"
)

// handoff runs the engine as a child and reports its exit code, since this
// platform cannot replace the running process.
func handoff(argv0 string, argv []string, env []string) error {
	cmd := exec.Command(argv0, argv[1:]...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &runtime.ExitError{Code: exitErr.ExitCode()}
	}
	return err
}
