package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/adrg/xdg"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// AppName names the config directory under the XDG config home.
	AppName = "wasi-buildbot"

	// FileName is the config file looked up under AppName.
	FileName = "config.yaml"

	// DefaultCredentials is the credentials file used when none is given.
	DefaultCredentials = "wasi-buildbot.env"

	// DefaultImage is the tag the buildbot image is built and run as.
	DefaultImage = "wasi-buildbot"
)

// Runtime names accepted by ContainerRuntime.
const (
	RuntimePodman = "podman"
	RuntimeDocker = "docker"
)

// Config is the invocation configuration. It is populated once by Load.
type Config struct {
	// Path to the KEY=VALUE credentials file handed to --env-file
	Credentials string `mapstructure:"credentials" yaml:"credentials"`

	// Directory under which buildarea/ is created
	BuildareaParent string `mapstructure:"buildarea_parent" yaml:"buildarea_parent"`

	// Permission mode applied to buildarea/ in octal, empty keeps the default
	BuildareaMode string `mapstructure:"buildarea_mode" yaml:"buildarea_mode,omitempty"`

	// Forced engine (podman or docker), empty auto-detects
	ContainerRuntime string `mapstructure:"container_runtime" yaml:"container_runtime,omitempty"`

	// Image tag to build and run
	Image string `mapstructure:"image" yaml:"image"`

	// Build context holding the Dockerfile
	ContextDir string `mapstructure:"context" yaml:"context"`

	// Print runtime commands instead of running them
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
}

// Error reports an invalid or missing configuration value.
type Error struct {
	Key   string
	Value string
	Err   error
}

func (e *Error) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Key, e.Value, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// flagKeys maps config keys to the flag names bound to them.
var flagKeys = map[string]string{
	"credentials":       "credentials",
	"buildarea_parent":  "buildarea-parent",
	"buildarea_mode":    "buildarea-mode",
	"container_runtime": "container-runtime",
	"image":             "image",
	"context":           "context",
	"dry_run":           "dry-run",
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Credentials:     DefaultCredentials,
		BuildareaParent: ".",
		Image:           DefaultImage,
		ContextDir:      executableDir(),
	}
}

// executableDir returns the directory holding the running binary, which is
// where the Dockerfile ships alongside the launcher.
func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// Load layers defaults, the config file, and changed flags, in that order of
// precedence. An empty configFile searches the XDG config directories and
// silently uses defaults when nothing is found.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("credentials", defaults.Credentials)
	v.SetDefault("buildarea_parent", defaults.BuildareaParent)
	v.SetDefault("buildarea_mode", defaults.BuildareaMode)
	v.SetDefault("container_runtime", defaults.ContainerRuntime)
	v.SetDefault("image", defaults.Image)
	v.SetDefault("context", defaults.ContextDir)
	v.SetDefault("dry_run", defaults.DryRun)

	path := configFile
	if path == "" {
		if found, err := xdg.SearchConfigFile(filepath.Join(AppName, FileName)); err == nil {
			path = found
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, &Error{Key: "config", Value: path, Err: err}
		}
	}

	if flags != nil {
		for key, flagName := range flagKeys {
			f := flags.Lookup(flagName)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", flagName, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that can be checked without touching the
// filesystem.
func (c *Config) Validate() error {
	if c.Credentials == "" {
		return &Error{Key: "credentials", Err: errors.New("path must not be empty")}
	}
	if c.BuildareaParent == "" {
		return &Error{Key: "buildarea_parent", Err: errors.New("path must not be empty")}
	}

	switch c.ContainerRuntime {
	case "", RuntimePodman, RuntimeDocker:
	default:
		return &Error{
			Key:   "container_runtime",
			Value: c.ContainerRuntime,
			Err:   fmt.Errorf("must be %s or %s", RuntimePodman, RuntimeDocker),
		}
	}

	if _, err := name.NewTag(c.Image); err != nil {
		return &Error{Key: "image", Value: c.Image, Err: err}
	}

	if _, err := parseMode(c.BuildareaMode); err != nil {
		return &Error{Key: "buildarea_mode", Value: c.BuildareaMode, Err: err}
	}
	return nil
}

// Mode returns the buildarea permission mode, or zero when the default
// permissions are kept. Only meaningful after Validate.
func (c *Config) Mode() fs.FileMode {
	m, _ := parseMode(c.BuildareaMode)
	return m
}

func parseMode(s string) (fs.FileMode, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("not an octal mode: %w", err)
	}
	if n > 0o777 {
		return 0, errors.New("mode must be at most 0777")
	}
	return fs.FileMode(n), nil
}
