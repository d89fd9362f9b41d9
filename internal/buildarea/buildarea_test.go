package buildarea

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPrepareCreates(t *testing.T) {
	parent := t.TempDir()

	dir, err := Prepare(parent, 0)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if want := filepath.Join(parent, DirName); dir != want {
		t.Errorf("Prepare() = %q, want %q", dir, want)
	}
	assertEmptyDir(t, dir)
}

func TestPrepareResetsExisting(t *testing.T) {
	parent := t.TempDir()
	old := filepath.Join(parent, DirName)
	if err := os.MkdirAll(filepath.Join(old, "build", "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(old, "build", "nested", "artifact.o"), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(old, "twistd.log"), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	dir, err := Prepare(parent, 0)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	assertEmptyDir(t, dir)

	// A second run must leave the same result.
	if _, err := Prepare(parent, 0); err != nil {
		t.Fatalf("second Prepare() error = %v", err)
	}
	assertEmptyDir(t, dir)
}

func TestPrepareMissingParent(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "does", "not", "exist")

	if _, err := Prepare(parent, 0); err == nil {
		t.Fatal("Prepare() error = nil, want an error for a missing parent")
	}
}

func TestPathRelative(t *testing.T) {
	parent := t.TempDir()
	t.Chdir(parent)

	dir, err := Path(".")
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if !filepath.IsAbs(dir) || filepath.Base(dir) != DirName {
		t.Errorf("Path() = %q, want an absolute path ending in %s", dir, DirName)
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading buildarea: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("buildarea has %d entries, want none", len(entries))
	}
}
