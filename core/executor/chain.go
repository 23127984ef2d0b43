package executor

import (
	"github.com/josephlewis42/forksh/core/shell"
)

// Runner executes one pipeline of a chain.
type Runner interface {
	Run(p shell.Pipeline) Status
}

// RunnerFunc adapts a function to a Runner.
type RunnerFunc func(p shell.Pipeline) Status

// Run calls f(p).
func (f RunnerFunc) Run(p shell.Pipeline) Status {
	return f(p)
}

// RunChain evaluates links left to right. The first link always runs; every
// later link runs only if the connector before it is && and the last executed
// status succeeded, or || and it failed. Skipped links leave the last
// executed status in place for the next connector. The result is the status
// of the last link that ran.
func RunChain(links []shell.Link, runner Runner) Status {
	var last Status
	for i, link := range links {
		if i > 0 {
			switch links[i-1].Next {
			case shell.ConnAnd:
				if !last.Success() {
					continue
				}
			case shell.ConnOr:
				if last.Success() {
					continue
				}
			}
		}
		last = runner.Run(link.Pipeline)
	}
	return last
}
