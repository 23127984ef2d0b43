package executor

import (
	"fmt"
	"os"

	"github.com/josephlewis42/forksh/core/shell"
)

// pipe is one OS pipe between two adjacent stages.
type pipe struct {
	r, w *os.File
}

type pipeSet []pipe

// makePipes creates n pipes or none.
func makePipes(n int) (pipeSet, error) {
	pipes := make(pipeSet, 0, n)
	for i := 0; i < n; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			pipes.Close()
			return nil, fmt.Errorf("pipe: %w", err)
		}
		pipes = append(pipes, pipe{r: r, w: w})
	}
	return pipes, nil
}

// Close closes both ends of every pipe.
func (ps pipeSet) Close() {
	for _, p := range ps {
		p.r.Close()
		p.w.Close()
	}
}

// RunPipeline runs the stages of p concurrently, each stage's standard output
// feeding the next stage's standard input. All stages share one process
// group, led by the first stage that starts, and get the terminal as a unit
// unless p is marked background.
//
// A stage that cannot start gets its failure status and the others still
// run: its neighbours see end of file or a broken pipe. The status of the
// pipeline follows the executor's Policy.
func (e *Executor) RunPipeline(p shell.Pipeline) Status {
	switch len(p.Stages) {
	case 0:
		return Status{}
	case 1:
		return e.RunSimple(p.Stages[0])
	}
	e.Jobs.Reap()

	k := len(p.Stages)
	pipes, err := makePipes(k - 1)
	if err != nil {
		st := Failure(SpawnFailed, CodeSpawnFailed, err)
		e.warn(st)
		return st
	}

	foreground := !p.Background()
	statuses := make([]Status, k)
	procs := make([]*os.Process, k)
	pgid := 0

	for i, seg := range p.Stages {
		std := e.stdio()
		if i > 0 {
			std[shell.Stdin] = pipes[i-1].r
		}
		if i < k-1 {
			std[shell.Stdout] = pipes[i].w
		}

		files, closer, err := e.Redirect(seg, std)
		if err != nil {
			statuses[i] = Failure(RedirectFailed, CodeRedirectFailed, err)
			continue
		}
		proc, st := e.start(seg, files, pgid, foreground)
		closer.Close()
		if proc == nil {
			statuses[i] = st
			continue
		}
		procs[i] = proc

		if pgid == 0 {
			pgid = proc.Pid
			if foreground {
				e.Jobs.HandToForeground(pgid)
			}
		}
	}

	// Children hold their own copies. The parent's write ends must go before
	// waiting or readers never see end of file.
	pipes.Close()

	for i, proc := range procs {
		if proc != nil {
			statuses[i] = e.wait(proc)
		}
	}
	if pgid != 0 && foreground {
		e.Jobs.ReclaimForeground()
	}

	st := e.Policy.combine(statuses)
	if st.Kind == Stopped {
		e.Jobs.Remember(pgid)
	}
	e.warn(statuses...)
	return st
}
