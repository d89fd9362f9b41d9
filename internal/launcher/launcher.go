// Package launcher runs the buildbot launch sequence: validate credentials,
// reset the buildarea, locate a container runtime, rebuild the image, and
// hand the process over to the runtime. Each phase only runs once the
// previous one has succeeded, and nothing is rolled back on failure.
package launcher

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/joshrwolf/wasi-buildbot/internal/buildarea"
	"github.com/joshrwolf/wasi-buildbot/internal/builder"
	"github.com/joshrwolf/wasi-buildbot/internal/config"
	"github.com/joshrwolf/wasi-buildbot/internal/credentials"
	"github.com/joshrwolf/wasi-buildbot/internal/runtime"
	"github.com/joshrwolf/wasi-buildbot/internal/runtime/cli"
	"github.com/mattn/go-isatty"
)

// EngineFactory creates the runtime for a located engine binary.
type EngineFactory func(loc runtime.Located) runtime.Runtime

// Launcher holds everything a run needs. The zero value is not usable; use New.
type Launcher struct {
	cfg *config.Config

	lookPath   runtime.LookPathFunc
	newEngine  EngineFactory
	isTerminal func() bool
	dryRunOut  io.Writer
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithLookPath overrides how engine executables are found.
func WithLookPath(fn runtime.LookPathFunc) Option {
	return func(l *Launcher) { l.lookPath = fn }
}

// WithEngineFactory overrides how the runtime is constructed.
func WithEngineFactory(fn EngineFactory) Option {
	return func(l *Launcher) { l.newEngine = fn }
}

// WithTerminalCheck overrides the check that stdin is a terminal.
func WithTerminalCheck(fn func() bool) Option {
	return func(l *Launcher) { l.isTerminal = fn }
}

// WithDryRunOutput sets where dry-run commands are printed.
func WithDryRunOutput(w io.Writer) Option {
	return func(l *Launcher) { l.dryRunOut = w }
}

// New creates a Launcher for a validated configuration.
func New(cfg *config.Config, opts ...Option) *Launcher {
	l := &Launcher{
		cfg:        cfg,
		isTerminal: stdinIsTerminal,
		dryRunOut:  os.Stderr,
	}
	l.newEngine = l.defaultEngine
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Launcher) defaultEngine(loc runtime.Located) runtime.Runtime {
	var opts []cli.Option
	if l.cfg.DryRun {
		opts = append(opts, cli.WithDryRun(l.dryRunOut))
	}
	return cli.New(loc, opts...)
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Run executes the launch sequence. When the handoff succeeds Run does not
// return; the container's exit code becomes the process exit code.
func (l *Launcher) Run(ctx context.Context) error {
	log := clog.FromContext(ctx)

	envFile, err := credentials.Validate(l.cfg.Credentials)
	if err != nil {
		return err
	}
	log.Debug("credentials file ok", "path", envFile)

	dir, err := l.prepareBuildarea(ctx)
	if err != nil {
		return err
	}

	loc, err := runtime.Locate(runtime.Name(l.cfg.ContainerRuntime), l.lookPath)
	if err != nil {
		return err
	}
	log.Info("using container runtime", "runtime", loc.Name, "path", loc.Path)

	engine := l.newEngine(loc)
	if err := builder.New(engine).Build(ctx, l.cfg.ContextDir, l.cfg.Image); err != nil {
		return err
	}

	if !l.cfg.DryRun && !l.isTerminal() {
		log.Warn("stdin is not a terminal, the container runtime may refuse to allocate a tty")
	}

	log.Info("starting container", "image", l.cfg.Image, "buildarea", dir)
	return engine.Exec(ctx, runtime.RunOptions{
		Image:     l.cfg.Image,
		HostDir:   dir,
		MountPath: buildarea.MountPath,
		EnvFile:   envFile,
	})
}

func (l *Launcher) prepareBuildarea(ctx context.Context) (string, error) {
	log := clog.FromContext(ctx)

	if l.cfg.DryRun {
		dir, err := buildarea.Path(l.cfg.BuildareaParent)
		if err != nil {
			return "", err
		}
		log.Info("dry run, leaving buildarea untouched", "path", dir)
		return dir, nil
	}

	dir, err := buildarea.Prepare(l.cfg.BuildareaParent, l.cfg.Mode())
	if err != nil {
		return "", fmt.Errorf("preparing buildarea: %w", err)
	}
	log.Info("reset buildarea", "path", dir)
	return dir, nil
}
