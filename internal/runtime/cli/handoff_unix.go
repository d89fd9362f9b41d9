//go:build unix

package cli

import "golang.org/x/sys/unix"

func handoff(argv0 string, argv []string, env []string) error {
	return unix.Exec(argv0, argv, env)
}
