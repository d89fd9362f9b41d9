package builder

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/chainguard-dev/clog"
	"github.com/joshrwolf/wasi-buildbot/internal/runtime"
)

// Engine is the part of a container runtime the builder needs
type Engine interface {
	RemoveImage(ctx context.Context, image string) error
	Build(ctx context.Context, opts runtime.BuildOptions) error
	PruneImages(ctx context.Context) error
}

// BuildError reports a failed image build
type BuildError struct {
	Image    string
	// Exit status of the build command, -1 if it did not exit normally
	ExitCode int
	Err      error
}

func (e *BuildError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("building image %s failed with exit status %d", e.Image, e.ExitCode)
	}
	return fmt.Sprintf("building image %s: %v", e.Image, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Builder rebuilds the buildbot image from scratch
type Builder struct {
	engine Engine
}

// New creates a new Builder
func New(engine Engine) *Builder {
	return &Builder{
		engine: engine,
	}
}

// Build removes any previous image with the same tag, builds a fresh one
// without cache against a freshly pulled base, then prunes dangling layers.
// Only the build itself can fail the call.
func (b *Builder) Build(ctx context.Context, contextDir, tag string) error {
	log := clog.FromContext(ctx)

	// Remove any existing image to avoid cached layers
	if err := b.engine.RemoveImage(ctx, tag); err != nil {
		log.Debug("ignoring image removal failure", "image", tag, "error", err)
	}

	log.Info("building image", "image", tag, "context", contextDir)
	err := b.engine.Build(ctx, runtime.BuildOptions{
		ContextDir: contextDir,
		Tag:        tag,
		Pull:       true,
		NoCache:    true,
	})
	if err != nil {
		return newBuildError(tag, err)
	}

	// Prune dangling images and old base images
	if err := b.engine.PruneImages(ctx); err != nil {
		log.Debug("ignoring image prune failure", "error", err)
	}

	return nil
}

func newBuildError(tag string, err error) *BuildError {
	be := &BuildError{Image: tag, ExitCode: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		be.ExitCode = exitErr.ExitCode()
	}
	return be
}
