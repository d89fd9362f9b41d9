package runtime

import (
	"context"
	"fmt"
	"io"
)

// Name identifies a container engine
type Name string

const (
	// Podman is rootless-capable and preferred when auto-detecting
	Podman Name = "podman"
	Docker Name = "docker"
)

// Runtime drives a container engine through its CLI
type Runtime interface {
	// Name returns the engine name used to toggle engine-specific flags
	Name() Name

	// RemoveImage removes the image with the given tag
	RemoveImage(ctx context.Context, image string) error

	// Build builds an image from a Dockerfile context
	Build(ctx context.Context, opts BuildOptions) error

	// PruneImages removes dangling images
	PruneImages(ctx context.Context) error

	// Exec replaces the current process with the engine running the
	// container. It only returns on failure.
	Exec(ctx context.Context, opts RunOptions) error
}

// BuildOptions configures an image build
type BuildOptions struct {
	// Directory holding the Dockerfile
	ContextDir string

	// Tag applied to the built image
	Tag string

	// Pull the base image even if present locally
	Pull bool

	// Disable reuse of cached layers
	NoCache bool

	// Build output (optional, defaults to os.Std*)
	Stdout io.Writer
	Stderr io.Writer
}

// RunOptions configures the final container run
type RunOptions struct {
	// Image to run
	Image string

	// Host directory bind mounted at MountPath
	HostDir string

	// Path inside the container
	MountPath string

	// KEY=VALUE file passed to --env-file
	EnvFile string
}

// ExitError carries the exit code of a container that ran as a child
// process instead of replacing this one.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("container exited with status %d", e.Code)
}
