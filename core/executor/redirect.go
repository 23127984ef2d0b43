package executor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/josephlewis42/forksh/core/shell"
)

// CreateMode is the permission of files created by output redirection.
const CreateMode os.FileMode = 0600

var openFlags = map[shell.Mode]int{
	shell.ModeRead:     os.O_RDONLY,
	shell.ModeTruncate: os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
	shell.ModeAppend:   os.O_WRONLY | os.O_CREATE | os.O_APPEND,
}

// fileSet is the set of files opened for one segment.
type fileSet []*os.File

// Close closes every file in the set.
func (fs fileSet) Close() error {
	var first error
	for _, fd := range fs {
		if err := fd.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Redirect opens the redirection targets of seg left to right and returns
// std with the redirected streams replaced. A later redirection of a stream
// overrides an earlier one, but the earlier target is still opened, and so
// created. The returned closer releases every opened file; the children
// hold their own copies once started.
//
// On error no file stays open.
func (e *Executor) Redirect(seg shell.Segment, std [3]*os.File) ([3]*os.File, io.Closer, error) {
	var opened fileSet
	for _, redirect := range seg.Redirects {
		flags, ok := openFlags[redirect.Mode]
		if !ok || redirect.Stream < shell.Stdin || redirect.Stream > shell.Stderr {
			opened.Close()
			return std, nil, fmt.Errorf("invalid redirection of %v", redirect.Stream)
		}

		fd, err := os.OpenFile(e.path(redirect.Path), flags, CreateMode)
		if err != nil {
			opened.Close()
			return std, nil, err
		}
		opened = append(opened, fd)
		std[redirect.Stream] = fd
	}
	return std, opened, nil
}

func (e *Executor) path(name string) string {
	if e.Dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(e.Dir, name)
}
