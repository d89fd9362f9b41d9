package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/clog/slag"
	charmlog "github.com/charmbracelet/log"
	"github.com/joshrwolf/wasi-buildbot/internal/config"
	"github.com/joshrwolf/wasi-buildbot/internal/launcher"
	"github.com/joshrwolf/wasi-buildbot/internal/runtime"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// version is set via -ldflags
var version = "dev"

const longHelp = `Run the WASI buildbot container with Podman or Docker.

The credentials file should be in KEY=VALUE format:

    BUILDBOT_USERNAME=your_username
    BUILDBOT_PASSWORD=your_password

Create it with:

    touch wasi-buildbot.env
    chmod 600 wasi-buildbot.env
    # Then edit to add your credentials.

Every run deletes and recreates buildarea/ under the buildarea parent, rebuilds
the image without cache, then replaces this process with the container.`

type options struct {
	logLevel   slag.Level
	configFile string
}

// setupLogging configures logging for the command
func (o *options) setupLogging(ctx context.Context) context.Context {
	l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:           charmlog.Level(o.logLevel),
		ReportTimestamp: true,
	})
	ctx = clog.WithLogger(ctx, clog.New(l))
	slog.SetDefault(slog.New(l))
	return ctx
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		var exitErr *runtime.ExitError
		if errors.As(err, &exitErr) {
			cancel()
			os.Exit(exitErr.Code)
		}
		clog.FatalContextf(ctx, "error: %v", err)
	}
}

func run(ctx context.Context) error {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "wasi-buildbot [credentials]",
		Short:         "Run the WASI buildbot container with Podman or Docker",
		Long:          longHelp,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx = opts.setupLogging(ctx)
			cmd.SetContext(ctx)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}

	defaults := config.Default()

	// Define flags
	pf := rootCmd.PersistentFlags()
	pf.Var(&opts.logLevel, "log-level", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/"+config.AppName+"/"+config.FileName+" if present)")
	pf.String("credentials", defaults.Credentials, "Path to credentials file")
	pf.String("buildarea-parent", defaults.BuildareaParent, "Parent directory for buildarea/ (default: current working directory)")
	pf.String("container-runtime", "", "Container runtime to use: podman or docker (default: auto-detect, preferring podman)")
	pf.String("image", defaults.Image, "Image tag to build and run")
	pf.String("context", defaults.ContextDir, "Build context directory containing the Dockerfile")
	pf.String("buildarea-mode", "", "Octal permissions for buildarea/, e.g. 0777 for rootless UID mappings (default: keep umask default)")
	pf.Bool("dry-run", false, "Print the container runtime commands instead of running them")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags(), opts.configFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			return enc.Close()
		},
	})

	return rootCmd.ExecuteContext(ctx)
}

func (o *options) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := clog.FromContext(ctx)

	// A positional credentials path is an alias for --credentials
	if len(args) == 1 {
		if cmd.Flags().Changed("credentials") {
			return errors.New("credentials given both as an argument and with --credentials")
		}
		if err := cmd.Flags().Set("credentials", args[0]); err != nil {
			return err
		}
	}

	cfg, err := config.Load(cmd.Flags(), o.configFile)
	if err != nil {
		return err
	}
	log.Debug("loaded configuration", "config", cfg)

	return launcher.New(cfg).Run(ctx)
}
