package jobctl

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNew_notTerminal(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	m := New(int(r.Fd()), nil)
	defer m.Close()

	assert.False(t, m.Interactive())
	assert.Equal(t, unix.Getpgrp(), m.Pgid())

	attr := m.SysProcAttr(0, true)
	assert.True(t, attr.Setpgid)
	assert.False(t, attr.Foreground)
	assert.Equal(t, 0, attr.Pgid)

	attr = m.SysProcAttr(42, true)
	assert.Equal(t, 42, attr.Pgid)

	// No terminal, so these must be no-ops rather than errors.
	m.HandToForeground(1)
	m.ReclaimForeground()
}

func TestManager_Remember(t *testing.T) {
	m := New(-1, nil)

	m.Remember(10)
	m.Remember(11)
	m.Remember(10)
	assert.Equal(t, []int{10, 11}, m.Stopped())

	// Neither group has children of this process, so both are forgotten.
	m.Reap()
	assert.Empty(t, m.Stopped())
}

func TestManager_ReapStopped(t *testing.T) {
	m := New(-1, nil)

	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	proc, err := os.StartProcess(sleep, []string{"sleep", "30"}, &os.ProcAttr{
		Sys: m.SysProcAttr(0, false),
	})
	require.NoError(t, err)
	m.Adopt(proc.Pid, 0)

	require.NoError(t, unix.Kill(-proc.Pid, unix.SIGSTOP))
	var ws unix.WaitStatus
	_, err = unix.Wait4(proc.Pid, &ws, unix.WUNTRACED, nil)
	require.NoError(t, err)
	require.True(t, ws.Stopped())

	m.Remember(proc.Pid)
	m.Reap()
	assert.Equal(t, []int{proc.Pid}, m.Stopped(), "a stopped group is kept")

	require.NoError(t, m.Close())
	assert.Empty(t, m.Stopped())

	// The hangup reaches the group even though the shell stops tracking it.
	_, err = unix.Wait4(proc.Pid, &ws, 0, nil)
	if err == nil {
		assert.True(t, ws.Signaled())
		assert.Equal(t, unix.SIGHUP, ws.Signal())
	}
}

// TestForegroundHandoff runs the helper below as a session leader on a fresh
// pseudo-terminal so the manager has a real terminal to hand around.
func TestForegroundHandoff(t *testing.T) {
	cmd := exec.Command(os.Args[0], "-test.run=^TestHelperProcess$")
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")

	ptmx, err := pty.Start(cmd)
	if err != nil {
		t.Skipf("no pseudo-terminal: %v", err)
	}
	defer ptmx.Close()

	var out bytes.Buffer
	done := make(chan struct{})
	go func() {
		// Reading the master fails with EIO once the helper exits.
		_, _ = io.Copy(&out, ptmx)
		close(done)
	}()

	waitErr := cmd.Wait()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("helper output never closed")
	}

	require.NoError(t, waitErr, out.String())
	assert.Contains(t, out.String(), "handoff ok")
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Exit(helperMain())
}

func helperMain() int {
	m := New(0, log.New(os.Stderr, "[jobctl] ", 0))
	defer m.Close()

	if !m.Interactive() {
		fmt.Println("not interactive")
		return 1
	}
	if fg, err := m.Foreground(); err != nil || fg != m.Pgid() {
		fmt.Println("shell does not own the terminal:", fg, err)
		return 1
	}

	cut, err := exec.LookPath("cut")
	if err != nil {
		// Nothing to hand the terminal to, but the setup itself worked.
		fmt.Println("handoff ok")
		return 0
	}

	r, w, err := os.Pipe()
	if err != nil {
		fmt.Println(err)
		return 1
	}
	// Fields 5 and 8 of stat are the process group and the terminal's
	// foreground group.
	proc, err := os.StartProcess(cut, []string{"cut", "-d", " ", "-f", "5,8", "/proc/self/stat"}, &os.ProcAttr{
		Files: []*os.File{os.Stdin, w, os.Stderr},
		Sys:   m.SysProcAttr(0, true),
	})
	w.Close()
	if err != nil {
		fmt.Println(err)
		return 1
	}
	m.Adopt(proc.Pid, 0)
	m.HandToForeground(proc.Pid)

	stat, _ := io.ReadAll(r)
	r.Close()
	if _, err := proc.Wait(); err != nil {
		fmt.Println(err)
		return 1
	}
	m.ReclaimForeground()

	fields := strings.Fields(string(stat))
	want := strconv.Itoa(proc.Pid)
	if len(fields) != 2 || fields[0] != want || fields[1] != want {
		fmt.Printf("child saw %q, want group and foreground %s\n", stat, want)
		return 1
	}
	if fg, err := m.Foreground(); err != nil || fg != m.Pgid() {
		fmt.Println("terminal not reclaimed:", fg, err)
		return 1
	}

	fmt.Println("handoff ok")
	return 0
}
