package runtime

import (
	"fmt"
	"os/exec"
)

// Preference is the auto-detection order.
var Preference = []Name{Podman, Docker}

// Located is a resolved engine executable.
type Located struct {
	Name Name
	Path string
}

// LookPathFunc resolves an executable name against the search path.
type LookPathFunc func(file string) (string, error)

// NotFoundError is returned when no usable engine executable exists.
type NotFoundError struct {
	// Requested is the engine forced by the caller, empty when auto-detecting
	Requested Name
}

func (e *NotFoundError) Error() string {
	if e.Requested != "" {
		return fmt.Sprintf("%s not found in PATH", e.Requested)
	}
	return fmt.Sprintf("neither %s nor %s found in PATH", Podman, Docker)
}

// Locate resolves the requested engine, or the first engine in Preference
// when requested is empty. A requested engine never falls back to another.
func Locate(requested Name, lookPath LookPathFunc) (Located, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	candidates := Preference
	if requested != "" {
		candidates = []Name{requested}
	}

	for _, name := range candidates {
		if path, err := lookPath(string(name)); err == nil {
			return Located{Name: name, Path: path}, nil
		}
	}

	return Located{}, &NotFoundError{Requested: requested}
}
