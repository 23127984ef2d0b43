package executor

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/josephlewis42/forksh/core/jobctl"
	"github.com/josephlewis42/forksh/core/resolve"
	"github.com/josephlewis42/forksh/core/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type harness struct {
	t        *testing.T
	e        *Executor
	dir      string
	out      *os.File
	warnings []error
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	streams := t.TempDir()
	stdin, err := os.Open(os.DevNull)
	require.NoError(t, err)
	stdout, err := os.Create(filepath.Join(streams, "stdout"))
	require.NoError(t, err)
	stderr, err := os.Create(filepath.Join(streams, "stderr"))
	require.NoError(t, err)
	t.Cleanup(func() {
		stdin.Close()
		stdout.Close()
		stderr.Close()
	})

	h := &harness{t: t, dir: t.TempDir(), out: stdout}
	h.e = New(resolve.NewOS(""), jobctl.New(-1, nil))
	h.e.Stdin = stdin
	h.e.Stdout = stdout
	h.e.Stderr = stderr
	h.e.Dir = h.dir
	h.e.Warn = func(err error) {
		h.warnings = append(h.warnings, err)
	}
	return h
}

func (h *harness) run(line string) Status {
	h.t.Helper()

	classified, err := shell.ClassifyLine(line)
	require.NoError(h.t, err, line)
	return h.e.RunLine(classified)
}

func (h *harness) stdout() string {
	h.t.Helper()

	out, err := os.ReadFile(h.out.Name())
	require.NoError(h.t, err)
	return string(out)
}

func (h *harness) file(name string) string {
	h.t.Helper()

	out, err := os.ReadFile(filepath.Join(h.dir, name))
	require.NoError(h.t, err)
	return string(out)
}

func openFds(t *testing.T) int {
	t.Helper()

	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("cannot list descriptors: %v", err)
	}
	return len(entries)
}

func TestRunSimple_trueFalse(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, Status{Kind: Exited, Code: 0}, h.run("true"))

	st := h.run("false")
	assert.Equal(t, Exited, st.Kind)
	assert.NotZero(t, st.Code)
	assert.Empty(t, h.warnings)
}

func TestRunSimple_redirectRoundTrip(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.run("echo hello > f.txt").Success())
	assert.Equal(t, "hello\n", h.file("f.txt"))

	info, err := os.Stat(filepath.Join(h.dir, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, CreateMode, info.Mode().Perm())

	require.True(t, h.run("cat < f.txt").Success())
	assert.Equal(t, "hello\n", h.stdout())
}

func TestRunSimple_append(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.run("echo a >> f").Success())
	require.True(t, h.run("echo a >> f").Success())
	assert.Equal(t, "a\na\n", h.file("f"))

	require.True(t, h.run("echo b > f").Success())
	assert.Equal(t, "b\n", h.file("f"), "truncate replaces")
}

func TestRunSimple_laterRedirectWins(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.run("echo a > one > two").Success())
	assert.Equal(t, "", h.file("one"))
	assert.Equal(t, "a\n", h.file("two"))
}

func TestRunSimple_stderr(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.run(`sh -c "echo oops >&2" 2> err.txt`).Success())
	require.True(t, h.run(`sh -c "echo again >&2" 2>> err.txt`).Success())
	assert.Equal(t, "oops\nagain\n", h.file("err.txt"))
	assert.Empty(t, h.stdout())
}

func TestRunSimple_background(t *testing.T) {
	h := newHarness(t)

	st := h.run("echo done &")
	assert.Equal(t, Status{Kind: Exited}, st)
	assert.Equal(t, "done\n", h.stdout(), "the marker is not an argument")
}

func TestRunSimple_notFound(t *testing.T) {
	h := newHarness(t)

	st := h.run("forksh-no-such-command --flag")
	assert.Equal(t, NotFound, st.Kind)
	assert.Equal(t, CodeNotFound, st.Code)
	assert.True(t, errors.Is(st.Err, ErrCommandNotFound))
	require.Len(t, h.warnings, 1)
	assert.Equal(t, "forksh-no-such-command: command not found", h.warnings[0].Error())

	// A command exiting 127 by itself is not a missing command.
	st = h.run(`sh -c "exit 127"`)
	assert.Equal(t, Status{Kind: Exited, Code: 127}, st)
}

func TestRunSimple_execFailed(t *testing.T) {
	h := newHarness(t)

	notExecutable := filepath.Join(h.dir, "script")
	require.NoError(t, os.WriteFile(notExecutable, []byte("#!/bin/sh\necho hi\n"), 0644))

	st := h.run(notExecutable)
	assert.Equal(t, ExecFailed, st.Kind)
	assert.Equal(t, CodeNotExecutable, st.Code)
	assert.True(t, errors.Is(st.Err, unix.EACCES), "got %v", st.Err)

	st = h.run(filepath.Join(h.dir, "missing"))
	assert.Equal(t, ExecFailed, st.Kind)
	assert.Equal(t, CodeNotFound, st.Code)
	assert.True(t, errors.Is(st.Err, unix.ENOENT), "got %v", st.Err)

	assert.Len(t, h.warnings, 2)
	assert.Empty(t, h.stdout())
}

func TestRunSimple_redirectFailed(t *testing.T) {
	h := newHarness(t)

	st := h.run("echo hi > missing/dir/f")
	assert.Equal(t, RedirectFailed, st.Kind)
	assert.Equal(t, CodeRedirectFailed, st.Code)

	st = h.run("cat < nope.txt")
	assert.Equal(t, RedirectFailed, st.Kind)
	assert.True(t, errors.Is(st.Err, os.ErrNotExist))

	assert.Len(t, h.warnings, 2)
	assert.Empty(t, h.stdout(), "nothing ran")
}

func TestRunPipeline(t *testing.T) {
	cases := map[string]struct {
		line string
		want string
	}{
		"sort":      {`printf 'b\na\nc\n' | sort`, "a\nb\nc\n"},
		"sort-uniq": {`printf 'b\na\nc\n' | sort | uniq`, "a\nb\nc\n"},
		"redirect":  {`cat < in.txt | sort -r`, "z\ny\nx\n"},
		"long":      {`echo hi | cat | cat | cat | cat | tr a-z A-Z`, "HI\n"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			h := newHarness(t)
			require.NoError(t, os.WriteFile(filepath.Join(h.dir, "in.txt"), []byte("x\nz\ny\n"), 0644))

			st := h.run(tc.line)
			assert.Equal(t, Status{Kind: Exited}, st)
			assert.Equal(t, tc.want, h.stdout())
			assert.Empty(t, h.warnings)
		})
	}
}

func TestRunPipeline_redirectLastStage(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.run(`printf 'b\na\n' | sort > sorted &`).Success())
	assert.Equal(t, "a\nb\n", h.file("sorted"))
	assert.Empty(t, h.stdout())
}

func TestRunPipeline_policy(t *testing.T) {
	h := newHarness(t)

	assert.True(t, h.run("false | true").Success())
	assert.False(t, h.run("true | false").Success())

	h.e.Policy = PolicyPipefail
	st := h.run("false | true")
	assert.Equal(t, Exited, st.Kind)
	assert.Equal(t, 1, st.Code)
	assert.True(t, h.run("true | true").Success())

	st = h.run(`sh -c "exit 3" | sh -c "exit 4" | true`)
	assert.Equal(t, 4, st.Code, "rightmost failure")
}

func TestRunPipeline_stageNotFound(t *testing.T) {
	h := newHarness(t)

	st := h.run("echo hi | forksh-no-such-command | cat")
	assert.Equal(t, Status{Kind: Exited}, st, "the last stage still ran")
	require.Len(t, h.warnings, 1)
	assert.True(t, errors.Is(h.warnings[0], ErrCommandNotFound))

	h.e.Policy = PolicyPipefail
	st = h.run("echo hi | forksh-no-such-command | cat")
	assert.Equal(t, NotFound, st.Kind)
	assert.Equal(t, CodeNotFound, st.Code)

	st = h.run("forksh-no-such-command | wc -c")
	assert.Equal(t, NotFound, st.Kind)
	assert.Equal(t, "0\n", strings.TrimLeft(h.stdout(), " "), "downstream sees end of file")
}

func TestRunPipeline_closesDescriptors(t *testing.T) {
	h := newHarness(t)

	// Warm up anything the runtime opens lazily on the first spawn.
	h.run("true | true")

	before := openFds(t)
	h.run(`printf 'b\na\n' | sort | uniq | cat > out`)
	h.run("echo x | forksh-no-such-command | cat")
	h.run("cat < missing | cat")
	after := openFds(t)

	assert.Equal(t, before, after)
}

func TestRunPipeline_sharedProcessGroup(t *testing.T) {
	h := newHarness(t)

	st := h.run(`sh -c 'cut -d " " -f 5 /proc/$$/stat > a' | sh -c 'cut -d " " -f 5 /proc/$$/stat > b'`)
	require.True(t, st.Success())

	a := strings.TrimSpace(h.file("a"))
	b := strings.TrimSpace(h.file("b"))
	require.NotEmpty(t, a)
	assert.Equal(t, a, b, "stages share a group")
	assert.NotEqual(t, strconv.Itoa(unix.Getpgrp()), a, "the group is not the shell's")
}

func TestRunLine_boolean(t *testing.T) {
	cases := map[string]struct {
		line string
		want string
		ok   bool
	}{
		"and-short-circuit": {"false && echo X", "", false},
		"or-runs":           {"false || echo Y", "Y\n", true},
		"and-chain":         {"true && echo A && echo B", "A\nB\n", true},
		"or-skip":           {"true || echo X", "", true},
		"skip-carries":      {"false && echo X || echo Y", "Y\n", true},
		"pipes-in-links":    {`false || printf 'b\na\n' | sort && echo done`, "a\nb\ndone\n", true},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			h := newHarness(t)

			st := h.run(tc.line)
			assert.Equal(t, tc.ok, st.Success())
			assert.Equal(t, tc.want, h.stdout())
		})
	}
}

func TestParsePolicy(t *testing.T) {
	policy, err := ParsePolicy("pipefail")
	assert.NoError(t, err)
	assert.Equal(t, PolicyPipefail, policy)
	assert.Equal(t, "pipefail", policy.String())

	policy, err = ParsePolicy("last")
	assert.NoError(t, err)
	assert.Equal(t, PolicyLast, policy)

	_, err = ParsePolicy("first")
	assert.Error(t, err)
}

