package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/josephlewis42/forksh/core/config"
	"github.com/josephlewis42/forksh/core/executor"
	"github.com/josephlewis42/forksh/core/jobctl"
	"github.com/josephlewis42/forksh/core/logger"
	"github.com/josephlewis42/forksh/core/resolve"
	"github.com/josephlewis42/forksh/core/shell"
	"golang.org/x/term"
)

const (
	EnvHome = "HOME"
	EnvPWD  = "PWD"

	// ShellName prefixes diagnostics.
	ShellName = "forksh"
)

// Options configures a Shell. Zero values select the process's own streams,
// the built-in configuration and no logging.
type Options struct {
	Config *config.Configuration

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Log receives debug messages.
	Log *log.Logger
	// Events records sessions and executed lines.
	Events *logger.SessionLogger
}

// Shell routes classified lines to builtins and executors and keeps the state
// that lives across lines.
type Shell struct {
	Jobs   *jobctl.Manager
	Exec   *executor.Executor
	Config *config.Configuration

	stdin  *os.File
	stdout io.Writer
	stderr io.Writer

	diag   *Diagnostics
	events *logger.SessionLogger
	log    *log.Logger

	lineNo     int
	lastStatus executor.Status
	exitCode   int

	// Quit is set by the exit builtin.
	Quit bool
}

// NewShell takes the terminal, if stdin is one, and prepares the executors.
func NewShell(opts Options) (*Shell, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Log == nil {
		opts.Log = log.New(io.Discard, "", 0)
	}
	if opts.Events == nil {
		opts.Events = logger.NewDiscardLogger().Sessionless()
	}

	policy, err := executor.ParsePolicy(opts.Config.PipelineStatus)
	if err != nil {
		return nil, err
	}

	s := &Shell{
		Config: opts.Config,
		stdin:  opts.Stdin,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		events: opts.Events,
		log:    opts.Log,
		diag:   NewDiagnostics(opts.Stderr, ShellName, opts.Config.Color, term.IsTerminal(int(opts.Stderr.Fd()))),
	}

	s.Jobs = jobctl.New(int(opts.Stdin.Fd()), opts.Log)
	s.Exec = executor.New(resolve.NewOS(opts.Config.Path), s.Jobs)
	s.Exec.Stdin = opts.Stdin
	s.Exec.Stdout = opts.Stdout
	s.Exec.Stderr = opts.Stderr
	s.Exec.Policy = policy
	s.Exec.Log = opts.Log
	s.Exec.Warn = s.diag.Error

	if err := s.events.Record(logger.SessionStart{SessionEvent: s.sessionEvent()}); err != nil {
		s.log.Printf("recording session start: %v", err)
	}
	return s, nil
}

func (s *Shell) sessionEvent() *logger.SessionEvent {
	return &logger.SessionEvent{
		Pid:            os.Getpid(),
		Interactive:    s.Jobs.Interactive(),
		PipelineStatus: s.Exec.Policy.String(),
		ExitCode:       s.ExitCode(),
	}
}

// Stdout is where builtins write their output.
func (s *Shell) Stdout() io.Writer {
	return s.stdout
}

// Stderr is where builtins write their errors.
func (s *Shell) Stderr() io.Writer {
	return s.stderr
}

// LastStatus is the status of the most recent non-empty line.
func (s *Shell) LastStatus() executor.Status {
	return s.lastStatus
}

// ExitCode is the code the shell process should exit with.
func (s *Shell) ExitCode() int {
	if s.Quit {
		return s.exitCode
	}
	return s.lastStatus.Code
}

// RunLine tokenizes, classifies and executes one input line.
func (s *Shell) RunLine(raw string) executor.Status {
	start := time.Now()

	line, err := shell.ClassifyLine(raw)
	if err != nil {
		s.diag.Error(err)
		s.lastStatus = executor.Failure(executor.SyntaxError, executor.CodeSyntaxError, err)
		s.record(raw, nil, s.lastStatus, time.Since(start))
		return s.lastStatus
	}
	if line.Empty() {
		return s.lastStatus
	}

	s.lastStatus = s.Route(line)
	s.record(raw, line, s.lastStatus, time.Since(start))
	return s.lastStatus
}

func (s *Shell) record(raw string, line *shell.Line, st executor.Status, elapsed time.Duration) {
	event := &logger.CommandEvent{
		Line:     raw,
		Kind:     "invalid",
		Commands: []string{},
		Status:   st.Kind.String(),
		Code:     st.Code,
	}
	// Only lines that ended in a process get a duration, builtins and
	// failures to start take no measurable time.
	if st.Started() {
		event.DurationMicros = elapsed.Microseconds()
	}
	if line != nil {
		event.Kind = line.Kind.String()
		for _, link := range line.Links {
			for _, stage := range link.Pipeline.Stages {
				event.Commands = append(event.Commands, stage.Argv[0])
			}
		}
	}

	if err := s.events.Record(event); err != nil {
		s.log.Printf("recording command: %v", err)
	}
}

// Route dispatches a classified line by its kind.
func (s *Shell) Route(line *shell.Line) executor.Status {
	switch line.Kind {
	case shell.KindBoolean:
		return executor.RunChain(line.Links, s)
	case shell.KindPipe:
		return s.Exec.RunPipeline(line.Links[0].Pipeline)
	}

	seg, ok := line.Simple()
	if !ok {
		return s.Run(line.Links[0].Pipeline)
	}
	return s.runSegment(seg)
}

// Run executes one pipeline, running a single stage builtin in process. It
// makes *Shell a Runner so builtins can take part in boolean chains. Once
// exit ran nothing else does.
func (s *Shell) Run(p shell.Pipeline) executor.Status {
	if s.Quit {
		return executor.Failure(executor.Builtin, s.exitCode, nil)
	}
	if len(p.Stages) == 1 {
		return s.runSegment(p.Stages[0])
	}
	return s.Exec.RunPipeline(p)
}

func (s *Shell) runSegment(seg shell.Segment) executor.Status {
	if builtin, ok := AllBuiltins[seg.Argv[0]]; ok {
		return s.runBuiltin(builtin, seg)
	}
	return s.Exec.RunSimple(seg)
}

func (s *Shell) runBuiltin(builtin ShellBuiltin, seg shell.Segment) executor.Status {
	files, closer, err := s.Exec.Redirect(seg, [3]*os.File{s.stdin, nil, nil})
	if err != nil {
		st := executor.Failure(executor.RedirectFailed, executor.CodeRedirectFailed, err)
		s.diag.Error(err)
		return st
	}
	defer closer.Close()

	stdout, stderr := s.stdout, s.stderr
	if files[1] != nil {
		s.stdout = files[1]
	}
	if files[2] != nil {
		s.stderr = files[2]
	}
	defer func() {
		s.stdout, s.stderr = stdout, stderr
	}()

	code := builtin.Main(s, seg.Argv)
	s.log.Printf("builtin %q exited %d", seg.Argv, code)
	return executor.Failure(executor.Builtin, code, nil)
}

// Interact reads and executes lines from stdin until end of input or exit.
func (s *Shell) Interact() error {
	reader := NewLineReader(s.stdin, s.stdout, s.Jobs.Interactive())

	for !s.Quit {
		raw, err := reader.ReadLine(s.Config.FormatPrompt(s.lineNo))
		switch {
		case err == io.EOF:
			if s.Jobs.Interactive() {
				fmt.Fprintln(s.stdout)
			}
			return nil
		case err != nil:
			return fmt.Errorf("reading input: %w", err)
		}
		s.lineNo++

		s.RunLine(raw)
	}
	return nil
}

// Close hangs up stopped jobs, gives the terminal back in its original state
// and records the end of the session.
func (s *Shell) Close() error {
	if stopped := len(s.Jobs.Stopped()); stopped > 0 {
		s.diag.Warnf("hanging up %d stopped job(s)", stopped)
	}
	err := s.Jobs.Close()
	if recErr := s.events.Record(logger.SessionEnd{SessionEvent: s.sessionEvent()}); recErr != nil {
		s.log.Printf("recording session end: %v", recErr)
	}
	return err
}
