package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/joshrwolf/wasi-buildbot/internal/runtime"
)

func TestRunArgs(t *testing.T) {
	opts := runtime.RunOptions{
		Image:     "wasi-buildbot",
		HostDir:   "/home/bot/buildarea",
		MountPath: "/buildarea",
		EnvFile:   "/home/bot/creds.env",
	}

	tests := []struct {
		name runtime.Name
		want []string
	}{
		{
			name: runtime.Podman,
			want: []string{
				"run", "--rm", "-it", "--userns=keep-id",
				"-v", "/home/bot/buildarea:/buildarea",
				"--env-file", "/home/bot/creds.env",
				"wasi-buildbot",
			},
		},
		{
			name: runtime.Docker,
			want: []string{
				"run", "--rm", "-it",
				"-v", "/home/bot/buildarea:/buildarea",
				"--env-file", "/home/bot/creds.env",
				"wasi-buildbot",
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			e := New(runtime.Located{Name: tt.name, Path: "/usr/bin/" + string(tt.name)})
			if diff := cmp.Diff(tt.want, e.RunArgs(opts)); diff != "" {
				t.Errorf("RunArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildArgs(t *testing.T) {
	got := BuildArgs(runtime.BuildOptions{
		ContextDir: "/src/wasi-buildbot",
		Tag:        "wasi-buildbot",
		Pull:       true,
		NoCache:    true,
	})
	want := []string{"build", "--pull", "--no-cache", "-t", "wasi-buildbot", "/src/wasi-buildbot"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildArgs() mismatch (-want +got):\n%s", diff)
	}

	got = BuildArgs(runtime.BuildOptions{ContextDir: "."})
	if diff := cmp.Diff([]string{"build", "."}, got); diff != "" {
		t.Errorf("BuildArgs() mismatch (-want +got):\n%s", diff)
	}
}

func TestExecHandsOffArgv(t *testing.T) {
	var gotArgv0 string
	var gotArgv []string
	e := New(
		runtime.Located{Name: runtime.Podman, Path: "/usr/bin/podman"},
		WithHandoff(func(argv0 string, argv []string, env []string) error {
			gotArgv0 = argv0
			gotArgv = argv
			return nil
		}),
	)

	err := e.Exec(context.Background(), runtime.RunOptions{
		Image:     "wasi-buildbot",
		HostDir:   "/work/buildarea",
		MountPath: "/buildarea",
		EnvFile:   "/work/creds.env",
	})
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	if gotArgv0 != "/usr/bin/podman" {
		t.Errorf("argv0 = %q, want /usr/bin/podman", gotArgv0)
	}
	want := []string{
		"/usr/bin/podman", "run", "--rm", "-it", "--userns=keep-id",
		"-v", "/work/buildarea:/buildarea",
		"--env-file", "/work/creds.env",
		"wasi-buildbot",
	}
	if diff := cmp.Diff(want, gotArgv); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
}

func TestExecHandoffFailure(t *testing.T) {
	boom := errors.New("exec format error")
	e := New(
		runtime.Located{Name: runtime.Docker, Path: "/usr/bin/docker"},
		WithHandoff(func(string, []string, []string) error { return boom }),
	)

	err := e.Exec(context.Background(), runtime.RunOptions{Image: "wasi-buildbot"})
	if !errors.Is(err, boom) {
		t.Fatalf("Exec() error = %v, want %v", err, boom)
	}
}

func TestDryRunPrintsInsteadOfRunning(t *testing.T) {
	var out bytes.Buffer
	called := false
	e := New(
		// A path that cannot run proves nothing is executed.
		runtime.Located{Name: runtime.Docker, Path: "/nonexistent/docker"},
		WithDryRun(&out),
		WithHandoff(func(string, []string, []string) error {
			called = true
			return nil
		}),
	)
	ctx := context.Background()

	if err := e.RemoveImage(ctx, "wasi-buildbot"); err != nil {
		t.Fatalf("RemoveImage() error = %v", err)
	}
	if err := e.Build(ctx, runtime.BuildOptions{ContextDir: "ctx", Tag: "wasi-buildbot", Pull: true, NoCache: true}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := e.PruneImages(ctx); err != nil {
		t.Fatalf("PruneImages() error = %v", err)
	}
	if err := e.Exec(ctx, runtime.RunOptions{Image: "wasi-buildbot", HostDir: "/b", MountPath: "/buildarea", EnvFile: "/c"}); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	if called {
		t.Error("handoff called during dry run")
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), out.String())
	}
	wantContains := []string{
		"/nonexistent/docker rmi -f wasi-buildbot",
		"/nonexistent/docker build --pull --no-cache -t wasi-buildbot ctx",
		"/nonexistent/docker image prune -f",
		"/nonexistent/docker run --rm -it",
	}
	for i, want := range wantContains {
		if !strings.HasPrefix(lines[i], "+ ") || !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want it to contain %q", i, lines[i], want)
		}
	}
}

func TestRenderQuotes(t *testing.T) {
	got := render([]string{"docker", "run", "it's here"})
	if !strings.HasPrefix(got, "docker run ") {
		t.Errorf("render() = %q", got)
	}
	if strings.HasSuffix(got, " it's here") {
		t.Errorf("render() = %q, want the last argument quoted", got)
	}
}
