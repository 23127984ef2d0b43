// Package executor runs classified command lines as operating system
// processes.
package executor

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"syscall"

	"github.com/josephlewis42/forksh/core/shell"
	"golang.org/x/sys/unix"
)

// Resolver maps a command name to the file to execute.
type Resolver interface {
	Resolve(name string) (string, error)
}

// JobController owns the terminal and process groups. It is satisfied by
// *jobctl.Manager.
type JobController interface {
	SysProcAttr(pgid int, foreground bool) *syscall.SysProcAttr
	Adopt(pid, pgid int)
	HandToForeground(pgid int)
	ReclaimForeground()
	Remember(pgid int)
	Reap()
}

// Policy decides the status of a pipeline from the status of its stages.
type Policy int

const (
	// PolicyLast uses the status of the last stage.
	PolicyLast Policy = iota
	// PolicyPipefail uses the rightmost failing stage, or success.
	PolicyPipefail
)

var policyNames = map[string]Policy{
	"last":     PolicyLast,
	"pipefail": PolicyPipefail,
}

// ParsePolicy converts a configuration value to a Policy.
func ParsePolicy(name string) (Policy, error) {
	if policy, ok := policyNames[name]; ok {
		return policy, nil
	}
	return PolicyLast, fmt.Errorf("unknown pipeline status policy %q", name)
}

func (p Policy) String() string {
	for name, policy := range policyNames {
		if policy == p {
			return name
		}
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// combine reduces stage statuses. A stopped stage suspends the whole job, so
// it wins over either policy.
func (p Policy) combine(statuses []Status) Status {
	for _, st := range statuses {
		if st.Kind == Stopped {
			return st
		}
	}
	last := statuses[len(statuses)-1]
	if p == PolicyPipefail {
		for i := len(statuses) - 1; i >= 0; i-- {
			if !statuses[i].Success() {
				return statuses[i]
			}
		}
	}
	return last
}

// Executor starts processes for segments and pipelines.
type Executor struct {
	Resolver Resolver
	Jobs     JobController

	// Standard streams handed to children that are not redirected.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Env is the child environment, nil meaning the shell's own.
	Env []string
	// Dir is the child working directory and the base of relative
	// redirection targets, empty meaning the shell's own.
	Dir string

	Policy Policy

	// Log receives debug messages about spawned processes.
	Log *log.Logger
	// Warn receives the error of every command that failed to run. It is
	// called after the shell owns the terminal again.
	Warn func(error)
}

// New creates an executor wired to the shell's standard streams.
func New(resolver Resolver, jobs JobController) *Executor {
	return &Executor{
		Resolver: resolver,
		Jobs:     jobs,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Log:      log.New(io.Discard, "", 0),
		Warn:     func(error) {},
	}
}

// Run executes one pipeline, as a simple command if it has one stage. It
// makes *Executor a Runner for RunChain.
func (e *Executor) Run(p shell.Pipeline) Status {
	return e.RunPipeline(p)
}

// RunChain evaluates a boolean chain with the executor as the runner.
func (e *Executor) RunChain(links []shell.Link) Status {
	return RunChain(links, e)
}

// RunLine executes a classified line of any kind.
func (e *Executor) RunLine(line *shell.Line) Status {
	if line.Empty() {
		return Status{}
	}
	return e.RunChain(line.Links)
}

func (e *Executor) stdio() [3]*os.File {
	return [3]*os.File{e.Stdin, e.Stdout, e.Stderr}
}

// start resolves and spawns one segment joining process group pgid, zero
// starting a new group. It returns a nil process and the failure status if
// nothing was started.
func (e *Executor) start(seg shell.Segment, files [3]*os.File, pgid int, foreground bool) (*os.Process, Status) {
	name := seg.Argv[0]
	path, err := e.Resolver.Resolve(name)
	if err != nil {
		return nil, notFound(name)
	}

	proc, err := os.StartProcess(path, seg.Argv, &os.ProcAttr{
		Dir:   e.Dir,
		Env:   e.Env,
		Files: files[:],
		Sys:   e.Jobs.SysProcAttr(pgid, foreground),
	})
	if err != nil {
		return nil, fromStartError(name, err)
	}
	e.Jobs.Adopt(proc.Pid, pgid)

	if pgid == 0 {
		pgid = proc.Pid
	}
	e.Log.Printf("started %d %q in group %d (foreground: %t)", proc.Pid, seg.Argv, pgid, foreground)
	return proc, Status{}
}

// wait blocks until proc exits, is killed or stops.
func (e *Executor) wait(proc *os.Process) Status {
	defer proc.Release()

	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(proc.Pid, &ws, unix.WUNTRACED, nil)
		if err == nil {
			break
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return Failure(Exited, 1, fmt.Errorf("waiting for %d: %w", proc.Pid, err))
	}

	st := fromWaitStatus(ws)
	e.Log.Printf("process %d %v", proc.Pid, st)
	return st
}

func (e *Executor) warn(statuses ...Status) {
	for _, st := range statuses {
		if st.Err != nil && e.Warn != nil {
			e.Warn(st.Err)
		}
	}
}
