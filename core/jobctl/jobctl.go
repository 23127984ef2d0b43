// Package jobctl owns the controlling terminal and the process groups that
// take turns in its foreground.
package jobctl

import (
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Manager holds the terminal and process-group state of one shell. It is not
// safe for concurrent use; the shell drives it from a single goroutine.
type Manager struct {
	fd          int
	interactive bool
	pgid        int
	saved       *term.State
	stopped     []int
	log         *log.Logger
	sigs        chan os.Signal
}

// New takes ownership of the terminal on fd. If fd is not a terminal the
// manager is inert: children still get their own process groups but the
// terminal is never touched.
//
// A shell started in the background waits here, stopped by SIGTTIN, until
// its parent moves it to the foreground.
func New(fd int, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	m := &Manager{
		fd:   fd,
		pgid: unix.Getpgrp(),
		log:  logger,
	}
	if !term.IsTerminal(fd) {
		return m
	}
	m.interactive = true

	for {
		fg, err := m.Foreground()
		if err != nil {
			m.log.Printf("reading foreground group: %v", err)
			break
		}
		if fg == m.pgid {
			break
		}
		if err := unix.Kill(-m.pgid, unix.SIGTTIN); err != nil {
			m.log.Printf("stopping for foreground: %v", err)
			break
		}
		m.pgid = unix.Getpgrp()
	}

	// Keyboard signals are caught rather than ignored so they reset to the
	// default action in every child.
	m.sigs = make(chan os.Signal, 1)
	signal.Notify(m.sigs, unix.SIGINT, unix.SIGQUIT, unix.SIGTSTP)
	go func(sigs <-chan os.Signal) {
		for sig := range sigs {
			m.log.Printf("shell caught %v", sig)
		}
	}(m.sigs)

	if err := unix.Setpgid(0, 0); err != nil {
		// A session leader already leads its own group.
		m.log.Printf("creating shell process group: %v", err)
	}
	m.pgid = unix.Getpgrp()
	m.setForeground(m.pgid)

	state, err := term.GetState(fd)
	if err != nil {
		m.log.Printf("saving terminal modes: %v", err)
	}
	m.saved = state
	return m
}

// Interactive reports whether the manager controls a terminal.
func (m *Manager) Interactive() bool {
	return m.interactive
}

// Pgid returns the shell's own process group.
func (m *Manager) Pgid() int {
	return m.pgid
}

// Foreground returns the process group currently owning the terminal.
func (m *Manager) Foreground() (int, error) {
	return unix.IoctlGetInt(m.fd, unix.TIOCGPGRP)
}

// SysProcAttr builds the attributes for a child joining process group pgid,
// zero meaning a new group led by the child. A child that starts a
// foreground group claims the terminal itself before exec.
func (m *Manager) SysProcAttr(pgid int, foreground bool) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    pgid,
	}
	if foreground && m.interactive && pgid == 0 {
		attr.Foreground = true
		// Foreground uses the descriptor number in the parent.
		attr.Ctty = m.fd
	}
	return attr
}

// Adopt sets the process group of a freshly started child from the parent
// side as well, so the group exists no matter which process runs first.
func (m *Manager) Adopt(pid, pgid int) {
	if pgid == 0 {
		pgid = pid
	}
	err := unix.Setpgid(pid, pgid)
	switch {
	case err == nil:
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.ESRCH):
		// The child already called exec or exited, its own setpgid won.
	default:
		m.log.Printf("setting group of %d to %d: %v", pid, pgid, err)
	}
}

// HandToForeground gives the terminal to process group pgid.
func (m *Manager) HandToForeground(pgid int) {
	if !m.interactive {
		return
	}
	m.setForeground(pgid)
}

// ReclaimForeground returns the terminal to the shell's group and restores
// the terminal modes saved at startup, undoing whatever the job changed.
func (m *Manager) ReclaimForeground() {
	if !m.interactive {
		return
	}
	m.setForeground(m.pgid)
	if m.saved != nil {
		if err := term.Restore(m.fd, m.saved); err != nil {
			m.log.Printf("restoring terminal modes: %v", err)
		}
	}
}

// Remember records a stopped process group so it can be reaped once it
// finally exits.
func (m *Manager) Remember(pgid int) {
	for _, known := range m.stopped {
		if known == pgid {
			return
		}
	}
	m.stopped = append(m.stopped, pgid)
}

// Stopped returns the remembered process groups.
func (m *Manager) Stopped() []int {
	return append([]int(nil), m.stopped...)
}

// Reap collects every remembered group member that exited since the last
// sweep without blocking. Groups with no children left are forgotten.
func (m *Manager) Reap() {
	kept := m.stopped[:0]
	for _, pgid := range m.stopped {
		if m.reapGroup(pgid) {
			kept = append(kept, pgid)
		}
	}
	m.stopped = kept
}

// reapGroup reports whether members of pgid remain.
func (m *Manager) reapGroup(pgid int) bool {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-pgid, &ws, unix.WNOHANG, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			return false
		case pid == 0:
			return true
		}
		m.log.Printf("reaped %d from stopped group %d: %v", pid, pgid, exitString(ws))
	}
}

// Close hangs up stopped groups and restores the terminal. Members that do
// not exit right away are left to init.
func (m *Manager) Close() error {
	for _, pgid := range m.stopped {
		// A stopped process only acts on SIGHUP after SIGCONT.
		_ = unix.Kill(-pgid, unix.SIGHUP)
		_ = unix.Kill(-pgid, unix.SIGCONT)
	}
	m.Reap()
	m.stopped = nil

	if m.sigs != nil {
		signal.Stop(m.sigs)
		close(m.sigs)
		m.sigs = nil
	}
	if m.interactive && m.saved != nil {
		return term.Restore(m.fd, m.saved)
	}
	return nil
}

func (m *Manager) setForeground(pgid int) {
	withTTOUIgnored(func() {
		if err := unix.IoctlSetPointerInt(m.fd, unix.TIOCSPGRP, pgid); err != nil {
			m.log.Printf("giving terminal to group %d: %v", pgid, err)
		}
	})
}

// withTTOUIgnored runs fn with SIGTTOU ignored. tcsetpgrp from a background
// group raises SIGTTOU; the disposition is reset afterwards so children
// never inherit it ignored.
func withTTOUIgnored(fn func()) {
	signal.Ignore(unix.SIGTTOU)
	defer signal.Reset(unix.SIGTTOU)
	fn()
}

func exitString(ws unix.WaitStatus) string {
	switch {
	case ws.Exited():
		return "exit status " + strconv.Itoa(ws.ExitStatus())
	case ws.Signaled():
		return ws.Signal().String()
	default:
		return "state changed"
	}
}
