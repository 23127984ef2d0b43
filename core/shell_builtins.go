package core

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/pborman/getopt/v2"
	"golang.org/x/sys/unix"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

// BuiltinDocs holds the one line description of every builtin.
var BuiltinDocs = make(map[string]string)

type ShellBuiltin interface {
	Main(s *Shell, args []string) int
}

type ShellBuiltinFunc func(s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(s *Shell, args []string) int {
	return f(s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

func addBuiltin(name, doc string, fn ShellBuiltinFunc) {
	AllBuiltins[name] = fn
	BuiltinDocs[name] = doc
}

// BuiltinNames returns the names of the builtins in sorted order.
func BuiltinNames() []string {
	var names []string
	for name := range AllBuiltins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// parseBuiltinFlags parses args against opts, printing usage on error or
// --help. It returns false if the builtin should stop with code.
func parseBuiltinFlags(s *Shell, opts *getopt.Set, usage string, args []string) (ok bool, code int) {
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	err := opts.Getopt(args, nil)
	if err == nil && !*helpOpt {
		return true, 0
	}

	w := s.Stdout()
	code = 0
	if err != nil {
		w = s.Stderr()
		fmt.Fprintf(w, "%s: %v\n", args[0], err)
		code = 2
	}
	fmt.Fprintln(w, "usage:", usage)
	fmt.Fprintln(w, BuiltinDocs[args[0]])
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	opts.PrintOptions(w)
	return false, code
}

// Help lists the builtins.
func Help(s *Shell, args []string) int {
	opts := getopt.New()
	if ok, code := parseBuiltinFlags(s, opts, args[0], args); !ok {
		return code
	}

	w := s.Stdout()
	for _, name := range BuiltinNames() {
		fmt.Fprintf(w, "%s - %s\n", name, BuiltinDocs[name])
	}
	return 0
}

// Exit quits the shell
func Exit(s *Shell, args []string) int {
	opts := getopt.New()
	if ok, code := parseBuiltinFlags(s, opts, "exit [N]", args); !ok {
		return code
	}

	code := s.LastStatus().Code
	switch operands := opts.Args(); len(operands) {
	case 0:
	case 1:
		n, err := strconv.Atoi(operands[0])
		if err != nil {
			fmt.Fprintf(s.Stderr(), "%s: %s: numeric argument required\n", args[0], operands[0])
			code = 2
			break
		}
		code = n & 0xff
	default:
		fmt.Fprintf(s.Stderr(), "%s: too many arguments\n", args[0])
		return 1
	}

	s.Quit = true
	s.exitCode = code
	return code
}

// Pwd prints the working directory.
func Pwd(s *Shell, args []string) int {
	opts := getopt.New()
	if ok, code := parseBuiltinFlags(s, opts, "pwd", args); !ok {
		return code
	}

	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
		return 1
	}
	fmt.Fprintln(s.Stdout(), wd)
	return 0
}

// Cd is the cd shell builtin
func Cd(s *Shell, args []string) int {
	opts := getopt.New()
	if ok, code := parseBuiltinFlags(s, opts, "cd [DIR]", args); !ok {
		return code
	}

	var dir string
	switch operands := opts.Args(); len(operands) {
	case 0:
		dir = os.Getenv(EnvHome)
		if dir == "" {
			fmt.Fprintf(s.Stderr(), "%s: HOME not set\n", args[0])
			return 1
		}
	case 1:
		dir = operands[0]
	default:
		fmt.Fprintf(s.Stderr(), "%s: too many arguments\n", args[0])
		return 1
	}

	if err := os.Chdir(dir); err != nil {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
		return 1
	}
	if wd, err := os.Getwd(); err == nil {
		os.Setenv(EnvPWD, wd)
	}
	return 0
}

type resourceLimit struct {
	flag     rune
	name     string
	unit     string
	resource int
	// divisor converts bytes to unit, 1 for counts and seconds.
	divisor uint64
}

var resourceLimits = []resourceLimit{
	{'c', "core file size", "blocks", unix.RLIMIT_CORE, 512},
	{'f', "file size", "blocks", unix.RLIMIT_FSIZE, 512},
	{'n', "open files", "", unix.RLIMIT_NOFILE, 1},
	{'s', "stack size", "kbytes", unix.RLIMIT_STACK, 1024},
	{'t', "cpu time", "seconds", unix.RLIMIT_CPU, 1},
	{'u', "max user processes", "", unix.RLIMIT_NPROC, 1},
	{'v', "virtual memory", "kbytes", unix.RLIMIT_AS, 1024},
}

// rlimInfinity is RLIM_INFINITY as the kernel reports it.
const rlimInfinity = ^uint64(0)

// Ulimit prints resource limits of the shell, which children inherit.
func Ulimit(s *Shell, args []string) int {
	opts := getopt.New()
	all := opts.Bool('a', "show all limits")
	hard := opts.Bool('H', "show hard limits instead of soft limits")
	selected := make(map[rune]*bool)
	for _, limit := range resourceLimits {
		selected[limit.flag] = opts.Bool(limit.flag, "show the "+limit.name+" limit")
	}
	if ok, code := parseBuiltinFlags(s, opts, "ulimit [-aH] [-cfnstuv]", args); !ok {
		return code
	}
	if opts.NArgs() > 0 {
		fmt.Fprintf(s.Stderr(), "%s: setting limits is not supported\n", args[0])
		return 2
	}

	var show []resourceLimit
	for _, limit := range resourceLimits {
		if *all || *selected[limit.flag] {
			show = append(show, limit)
		}
	}
	if len(show) == 0 {
		show = []resourceLimit{resourceLimits[1]}
	}

	w := s.Stdout()
	for _, limit := range show {
		var rlim unix.Rlimit
		if err := unix.Getrlimit(limit.resource, &rlim); err != nil {
			fmt.Fprintf(s.Stderr(), "%s: %s: %v\n", args[0], limit.name, err)
			return 1
		}
		value := rlim.Cur
		if *hard {
			value = rlim.Max
		}
		writeLimit(w, limit, value, len(show) > 1)
	}
	return 0
}

func writeLimit(w io.Writer, limit resourceLimit, value uint64, labelled bool) {
	formatted := "unlimited"
	if value != rlimInfinity {
		formatted = strconv.FormatUint(value/limit.divisor, 10)
	}
	if !labelled {
		fmt.Fprintln(w, formatted)
		return
	}

	label := limit.name
	if limit.unit != "" {
		label += " (" + limit.unit + ", -" + string(limit.flag) + ")"
	} else {
		label += " (-" + string(limit.flag) + ")"
	}
	fmt.Fprintf(w, "%-32s %s\n", label, formatted)
}

// Priority prints the scheduling priority (nice value) of a process,
// the shell itself by default.
func Priority(s *Shell, args []string) int {
	opts := getopt.New()
	if ok, code := parseBuiltinFlags(s, opts, "priority [PID]", args); !ok {
		return code
	}

	pid := 0
	switch operands := opts.Args(); len(operands) {
	case 0:
	case 1:
		n, err := strconv.Atoi(operands[0])
		if err != nil || n < 0 {
			fmt.Fprintf(s.Stderr(), "%s: %s: invalid process id\n", args[0], operands[0])
			return 2
		}
		pid = n
	default:
		fmt.Fprintf(s.Stderr(), "%s: too many arguments\n", args[0])
		return 1
	}

	raw, err := unix.Getpriority(unix.PRIO_PROCESS, pid)
	if err != nil {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
		return 1
	}
	if pid == 0 {
		pid = os.Getpid()
	}
	// The raw system call reports 20 - nice so the value is never negative.
	fmt.Fprintf(s.Stdout(), "%d: nice %d\n", pid, 20-raw)
	return 0
}

func init() {
	addBuiltin("?", "show this help menu", Help)
	addBuiltin("help", "show this help menu", Help)
	addBuiltin("exit", "exit the command shell", Exit)
	addBuiltin("pwd", "print the working directory", Pwd)
	addBuiltin("cd", "change the working directory", Cd)
	addBuiltin("ulimit", "show resource limits", Ulimit)
	addBuiltin("priority", "show the scheduling priority of a process", Priority)
}
