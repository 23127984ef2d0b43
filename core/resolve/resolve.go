// Package resolve finds the executable a bare command name refers to.
package resolve

import (
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotFound is the error resulting if a path search failed to find a file.
var ErrNotFound = exec.ErrNotFound

// PathResolver searches the directories of a PATH value for a command.
type PathResolver struct {
	fs   afero.Fs
	path func() string
}

// New creates a resolver that lists directories on fs and reads the search
// path from path on every lookup.
func New(fs afero.Fs, path func() string) *PathResolver {
	return &PathResolver{fs: fs, path: path}
}

// NewOS creates a resolver over the host filesystem. If override is empty
// the PATH environment variable is used.
func NewOS(override string) *PathResolver {
	path := func() string { return os.Getenv("PATH") }
	if override != "" {
		path = func() string { return override }
	}
	return New(afero.NewOsFs(), path)
}

// Resolve returns the path of the executable named name. If name contains a
// slash it is returned unchanged and PATH is not consulted. Otherwise the
// first directory holding an entry named exactly name wins; the executable
// bit is not checked, exec reports that.
func (r *PathResolver) Resolve(name string) (string, error) {
	if name == "" {
		return "", ErrNotFound
	}
	if strings.Contains(name, "/") {
		return name, nil
	}

	// strings.Split allocates new headers over an immutable string, the
	// environment is never modified by the search.
	for _, dir := range strings.Split(r.path(), ":") {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		if r.contains(dir, name) {
			return strings.TrimSuffix(dir, "/") + "/" + name, nil
		}
	}
	return "", ErrNotFound
}

func (r *PathResolver) contains(dir, name string) bool {
	fd, err := r.fs.Open(dir)
	if err != nil {
		return false
	}
	defer fd.Close()

	names, err := fd.Readdirnames(-1)
	if err != nil {
		return false
	}
	for _, entry := range names {
		if entry == name {
			return true
		}
	}
	return false
}
