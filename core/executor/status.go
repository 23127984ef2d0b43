package executor

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// Kind tells how a command ended, or why it never started.
type Kind int

const (
	// Exited means the process called exit.
	Exited Kind = iota
	// Signaled means the process was killed by a signal.
	Signaled
	// Stopped means the process was suspended and is still alive.
	Stopped
	// NotFound means no executable matched the command name.
	NotFound
	// SpawnFailed means the kernel could not create a process.
	SpawnFailed
	// ExecFailed means the process was created but could not run the file.
	ExecFailed
	// RedirectFailed means a redirection target could not be opened.
	RedirectFailed
	// SyntaxError means the line could not be classified.
	SyntaxError
	// Builtin means the command ran inside the shell.
	Builtin
)

var kindNames = map[Kind]string{
	Exited:         "exited",
	Signaled:       "signaled",
	Stopped:        "stopped",
	NotFound:       "not-found",
	SpawnFailed:    "spawn-failed",
	ExecFailed:     "exec-failed",
	RedirectFailed: "redirect-failed",
	SyntaxError:    "syntax-error",
	Builtin:        "builtin",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Exit codes for commands that never ran.
const (
	CodeNotFound       = 127
	CodeNotExecutable  = 126
	CodeSpawnFailed    = 1
	CodeRedirectFailed = 1
	CodeSyntaxError    = 2
)

// ErrCommandNotFound is wrapped by the error of a NotFound status.
var ErrCommandNotFound = errors.New("command not found")

// Status is the outcome of running a command. Code is always a POSIX exit
// status in [0, 255]; Kind keeps a missing command apart from a command that
// exited 127 on its own.
type Status struct {
	Kind Kind
	Code int
	Err  error
}

// Success reports whether the status counts as true for && and ||.
func (s Status) Success() bool {
	return s.Code == 0
}

// Started reports whether a process ran.
func (s Status) Started() bool {
	switch s.Kind {
	case Exited, Signaled, Stopped:
		return true
	}
	return false
}

func (s Status) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%v %d: %v", s.Kind, s.Code, s.Err)
	}
	return fmt.Sprintf("%v %d", s.Kind, s.Code)
}

// Failure builds a status for a command that did not run.
func Failure(kind Kind, code int, err error) Status {
	return Status{Kind: kind, Code: code & 0xff, Err: err}
}

func fromWaitStatus(ws unix.WaitStatus) Status {
	switch {
	case ws.Exited():
		return Status{Kind: Exited, Code: ws.ExitStatus()}
	case ws.Signaled():
		return Status{Kind: Signaled, Code: 128 + int(ws.Signal())}
	case ws.Stopped():
		return Status{Kind: Stopped, Code: 128 + int(ws.StopSignal())}
	}
	return Status{Kind: Exited, Code: 1, Err: fmt.Errorf("unexpected wait status %#x", uint32(ws))}
}

// fromStartError tells a fork that failed in the parent apart from a child
// that could not exec. Go's fork/exec reports both the same way, so the
// errno decides.
func fromStartError(name string, err error) Status {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return Failure(SpawnFailed, CodeSpawnFailed, fmt.Errorf("%s: %w", name, err))
	}

	wrapped := fmt.Errorf("%s: %w", name, errno)
	switch errno {
	case unix.EAGAIN, unix.ENOMEM, unix.ENOSYS:
		return Failure(SpawnFailed, CodeSpawnFailed, wrapped)
	case unix.ENOENT, unix.ENOTDIR:
		return Failure(ExecFailed, CodeNotFound, wrapped)
	default:
		return Failure(ExecFailed, CodeNotExecutable, wrapped)
	}
}

// notFound builds the status of a command name PATH search could not match.
func notFound(name string) Status {
	return Failure(NotFound, CodeNotFound, fmt.Errorf("%s: %w", name, ErrCommandNotFound))
}

