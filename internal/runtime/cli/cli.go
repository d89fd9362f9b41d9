// Package cli implements runtime.Runtime on top of the podman and docker
// command line clients, which accept the same arguments for everything the
// launcher needs apart from user namespace mapping.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/joshrwolf/wasi-buildbot/internal/runtime"
	"mvdan.cc/sh/v3/syntax"
)

// HandoffFunc replaces the current process with argv0, execve style.
type HandoffFunc func(argv0 string, argv []string, env []string) error

// Engine drives a container engine binary
type Engine struct {
	name runtime.Name
	path string

	stdout io.Writer
	stderr io.Writer

	// When set, commands are printed here instead of run
	dryRun io.Writer

	handoff HandoffFunc
}

// Option configures an Engine
type Option func(*Engine)

// WithOutput sets where streamed build output goes
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Engine) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithDryRun prints every command to w instead of executing it
func WithDryRun(w io.Writer) Option {
	return func(e *Engine) {
		e.dryRun = w
	}
}

// WithHandoff overrides the process replacement used by Exec
func WithHandoff(fn HandoffFunc) Option {
	return func(e *Engine) {
		e.handoff = fn
	}
}

// New creates an Engine for a located runtime binary
func New(loc runtime.Located, opts ...Option) *Engine {
	e := &Engine{
		name:    loc.Name,
		path:    loc.Path,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		handoff: handoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements runtime.Runtime
func (e *Engine) Name() runtime.Name {
	return e.name
}

// Path returns the engine binary path
func (e *Engine) Path() string {
	return e.path
}

// RemoveImage implements runtime.Runtime
func (e *Engine) RemoveImage(ctx context.Context, image string) error {
	return e.runQuiet(ctx, "rmi", "-f", image)
}

// PruneImages implements runtime.Runtime
func (e *Engine) PruneImages(ctx context.Context) error {
	return e.runQuiet(ctx, "image", "prune", "-f")
}

// Build implements runtime.Runtime. Output is streamed so the operator can
// follow the build.
func (e *Engine) Build(ctx context.Context, opts runtime.BuildOptions) error {
	args := BuildArgs(opts)
	if e.printDryRun(args) {
		return nil
	}

	cmd := e.command(ctx, args...)
	cmd.Stdout = e.stdout
	if opts.Stdout != nil {
		cmd.Stdout = opts.Stdout
	}
	cmd.Stderr = e.stderr
	if opts.Stderr != nil {
		cmd.Stderr = opts.Stderr
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s build: %w", e.name, err)
	}
	return nil
}

// Exec implements runtime.Runtime. On success it does not return: the engine
// takes over this process and its exit code becomes ours.
func (e *Engine) Exec(ctx context.Context, opts runtime.RunOptions) error {
	args := e.RunArgs(opts)
	if e.printDryRun(args) {
		return nil
	}

	argv := append([]string{e.path}, args...)
	clog.FromContext(ctx).Debug("handing off to container runtime", "command", render(argv))

	if err := e.handoff(e.path, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", e.path, err)
	}
	return nil
}

// BuildArgs builds the arguments for an image build
func BuildArgs(opts runtime.BuildOptions) []string {
	args := []string{"build"}

	if opts.Pull {
		args = append(args, "--pull")
	}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	if opts.Tag != "" {
		args = append(args, "-t", opts.Tag)
	}

	return append(args, opts.ContextDir)
}

// RunArgs builds the arguments for the interactive container run
func (e *Engine) RunArgs(opts runtime.RunOptions) []string {
	args := []string{"run", "--rm", "-it"}

	// Map the container user back to the invoking host user so files written
	// to the mount are not owned by a subordinate UID.
	if e.name == runtime.Podman {
		args = append(args, "--userns=keep-id")
	}

	return append(args,
		"-v", opts.HostDir+":"+opts.MountPath,
		"--env-file", opts.EnvFile,
		opts.Image,
	)
}

// runQuiet runs a command with its output captured, returning the output as
// part of the error on failure.
func (e *Engine) runQuiet(ctx context.Context, args ...string) error {
	if e.printDryRun(args) {
		return nil
	}

	var out bytes.Buffer
	cmd := e.command(ctx, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w, output: %s", e.name, strings.Join(args, " "), err, strings.TrimSpace(out.String()))
	}
	return nil
}

func (e *Engine) command(ctx context.Context, args ...string) *exec.Cmd {
	clog.FromContext(ctx).Debug("running", "command", render(append([]string{e.path}, args...)))
	return exec.CommandContext(ctx, e.path, args...)
}

func (e *Engine) printDryRun(args []string) bool {
	if e.dryRun == nil {
		return false
	}
	fmt.Fprintln(e.dryRun, "+ "+render(append([]string{e.path}, args...)))
	return true
}

// render joins argv into a line that can be pasted into a shell
func render(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			q = strconv.Quote(arg)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " ")
}
