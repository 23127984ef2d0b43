package executor

import (
	"github.com/josephlewis42/forksh/core/shell"
)

// RunSimple runs one segment as one child process in a new process group.
// Unless the segment is marked background the group gets the terminal for as
// long as the shell waits on it. Background segments are still waited for.
func (e *Executor) RunSimple(seg shell.Segment) Status {
	if len(seg.Argv) == 0 {
		return Status{}
	}
	e.Jobs.Reap()

	files, closer, err := e.Redirect(seg, e.stdio())
	if err != nil {
		st := Failure(RedirectFailed, CodeRedirectFailed, err)
		e.warn(st)
		return st
	}

	foreground := !seg.Background
	proc, st := e.start(seg, files, 0, foreground)
	closer.Close()
	if proc == nil {
		e.warn(st)
		return st
	}

	if foreground {
		e.Jobs.HandToForeground(proc.Pid)
	}
	st = e.wait(proc)
	if foreground {
		e.Jobs.ReclaimForeground()
	}

	if st.Kind == Stopped {
		e.Jobs.Remember(proc.Pid)
	}
	e.warn(st)
	return st
}
