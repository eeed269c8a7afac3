package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"jobshell/internal/jobs"

	"github.com/pborman/getopt/v2"
	"golang.org/x/sys/unix"
)

// AllBuiltins holds every command the shell runs in-process.
var AllBuiltins = make(map[string]*Builtin)

// Builtin is a command run inside the shell process.
type Builtin struct {
	// Use holds a one line usage string.
	Use string
	// Short holds a one line description of the builtin.
	Short string
	// Main runs the builtin. stdout is where its normal output goes.
	Main func(s *Shell, args []string, stdout io.Writer) int
}

// flags parses args with opts, adding the usual --help flag. It returns
// false with the status to exit with when the builtin should not run.
func (b *Builtin) flags(s *Shell, opts *getopt.Set, args []string, stdout io.Writer) (int, bool) {
	showHelp := opts.BoolLong("help", 'h', "show this help and exit")

	if err := opts.Getopt(args, nil); err != nil {
		fmt.Fprintf(s.stderr, "%s: %s\n", args[0], err)
		b.PrintHelp(s.stderr, opts)
		return 1, false
	}
	if *showHelp {
		b.PrintHelp(stdout, opts)
		return 0, false
	}
	return 0, true
}

// PrintHelp writes help for the builtin to the given writer.
func (b *Builtin) PrintHelp(w io.Writer, opts *getopt.Set) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, b.Use)
	fmt.Fprintln(w, b.Short)
	if opts != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Flags:")
		opts.PrintOptions(w)
	}
}

// fail prints err prefixed with the builtin name, one line per joined
// error, and returns status 1.
func fail(s *Shell, name string, err error) int {
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(s.stderr, "%s: %s\n", name, line)
	}
	return 1
}

// Cd is the cd shell builtin.
func Cd(s *Shell, args []string, _ io.Writer) int {
	switch len(args) {
	case 1:
		args = append(args, os.Getenv("HOME"))
		fallthrough
	case 2:
		if err := os.Chdir(args[1]); err != nil {
			var pe *os.PathError
			if errors.As(err, &pe) {
				err = pe.Err
			}
			fmt.Fprintf(s.stderr, "%s: %s: %v\n", args[0], args[1], err)
			return 1
		}
	default:
		fmt.Fprintf(s.stderr, "%s: too many arguments\n", args[0])
		return 1
	}
	return 0
}

func Pwd(s *Shell, args []string, stdout io.Writer) int {
	wd, err := os.Getwd()
	if err != nil {
		return fail(s, args[0], err)
	}
	fmt.Fprintln(stdout, wd)
	return 0
}

var (
	unescapeOctal   = regexp.MustCompile(`\\0[0-7]{1,3}`)
	unescapeReplace = strings.NewReplacer(
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
		`\\`, `\`,
		`\a`, "\a",
		`\b`, "\b",
		`\f`, "\f",
		`\v`, "\v",
	)
)

func unescape(s string) string {
	s = unescapeReplace.Replace(s)
	return unescapeOctal.ReplaceAllStringFunc(s, func(arg string) string {
		out, err := strconv.ParseUint(arg[2:], 8, 8)
		if err != nil {
			return arg
		}
		return string(rune(out))
	})
}

// Echo writes its arguments separated by spaces.
func Echo(s *Shell, args []string, stdout io.Writer) int {
	opts := getopt.New()
	escaped := opts.Bool('e', "interpret backslash escapes")
	noNewline := opts.Bool('n', "do not output the trailing newline")
	if status, ok := AllBuiltins["echo"].flags(s, opts, args, stdout); !ok {
		return status
	}

	words := opts.Args()
	if *escaped {
		for i, w := range words {
			words[i] = unescape(w)
		}
	}

	fmt.Fprint(stdout, strings.Join(words, " "))
	if !*noNewline {
		fmt.Fprintln(stdout)
	}
	return 0
}

func Help(s *Shell, args []string, stdout io.Writer) int {
	if len(args) > 1 {
		status := 0
		for _, name := range args[1:] {
			b, ok := AllBuiltins[name]
			if !ok {
				fmt.Fprintf(s.stderr, "%s: no help topics match `%s'\n", args[0], name)
				status = 1
				continue
			}
			b.PrintHelp(stdout, nil)
		}
		return status
	}

	fmt.Fprintln(stdout, "These shell commands are defined internally.")
	fmt.Fprintln(stdout, "Type `help name' to find out more about the function `name'.")
	fmt.Fprintln(stdout)

	var names []string
	for k := range AllBuiltins {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(stdout, " %-44s %s\n", AllBuiltins[name].Use, AllBuiltins[name].Short)
	}
	return 0
}

func HistoryBuiltin(s *Shell, args []string, stdout io.Writer) int {
	opts := getopt.New()
	clear := opts.Bool('c', "clear the history by deleting all entries")
	if status, ok := AllBuiltins["history"].flags(s, opts, args, stdout); !ok {
		return status
	}

	if *clear {
		s.history.Clear()
		return 0
	}
	s.history.Print(stdout)
	return 0
}

// Exit quits the shell once the current line is done.
func Exit(s *Shell, args []string, _ io.Writer) int {
	s.exiting = true
	return 0
}

func Jobs(s *Shell, args []string, stdout io.Writer) int {
	opts := getopt.New()
	opts.Bool('l', "list process group ids and pids (the default)")
	pidsOnly := opts.Bool('p', "list only the process id of each job")
	if status, ok := AllBuiltins["jobs"].flags(s, opts, args, stdout); !ok {
		return status
	}

	s.table.List(stdout, *pidsOnly)
	return 0
}

func Fg(s *Shell, args []string, _ io.Writer) int {
	var id string
	if len(args) > 1 {
		id = args[1]
	}
	if err := s.table.Foreground(id); err != nil {
		return fail(s, args[0], err)
	}
	return 0
}

func Bg(s *Shell, args []string, _ io.Writer) int {
	ids := args[1:]
	if len(ids) == 0 {
		ids = []string{""}
	}

	status := 0
	for _, id := range ids {
		if err := s.table.Background(id); err != nil {
			status = fail(s, args[0], err)
		}
	}
	return status
}

// Kill sends a signal to jobs. The signal may be given bash style as the
// first argument ("-TERM", "-9") as well as with -s.
func Kill(s *Shell, args []string, stdout io.Writer) int {
	sig := syscall.Signal(unix.SIGKILL)
	if len(args) > 1 && signalFlag(args[1]) {
		sig, _ = jobs.ParseSignal(args[1])
		args = append([]string{args[0]}, args[2:]...)
	}

	opts := getopt.New()
	name := opts.String('s', "", "signal to send, by name or number", "SIG")
	group := opts.Bool('g', "treat ids as process group ids")
	list := opts.Bool('l', "list signal names")
	if status, ok := AllBuiltins["kill"].flags(s, opts, args, stdout); !ok {
		return status
	}

	if *list {
		return listSignals(s, args[0], opts.Args(), stdout)
	}

	if *name != "" {
		parsed, err := jobs.ParseSignal(*name)
		if err != nil {
			return fail(s, args[0], err)
		}
		sig = parsed
	}

	if opts.NArgs() == 0 {
		fmt.Fprintf(s.stderr, "usage: %s\n", AllBuiltins["kill"].Use)
		return 1
	}

	if err := s.table.Kill(sig, opts.Args(), *group); err != nil {
		return fail(s, args[0], err)
	}
	return 0
}

// signalFlag reports whether arg is a "-SIG" style signal rather than one
// of kill's own flags.
func signalFlag(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' || arg == "--" {
		return false
	}
	switch arg {
	case "-g", "-l", "-s", "-h":
		return false
	}
	_, err := jobs.ParseSignal(arg)
	return err == nil
}

func listSignals(s *Shell, name string, specs []string, stdout io.Writer) int {
	if len(specs) == 0 {
		fmt.Fprintln(stdout, strings.Join(jobs.SignalNames(), " "))
		return 0
	}

	status := 0
	for _, spec := range specs {
		sig, err := jobs.ParseSignal(spec)
		if err != nil {
			status = fail(s, name, err)
			continue
		}
		if n, err := strconv.Atoi(spec); err == nil && n > 0 {
			fmt.Fprintln(stdout, strings.TrimPrefix(unix.SignalName(sig), "SIG"))
		} else {
			fmt.Fprintln(stdout, int(sig))
		}
	}
	return status
}

// Wait waits for the given jobs, or for every running job.
func Wait(s *Shell, args []string, _ io.Writer) int {
	if len(args) == 1 {
		if err := s.table.WaitAll(); err != nil {
			return fail(s, args[0], err)
		}
		return 0
	}

	status := 0
	for _, id := range args[1:] {
		pid, err := strconv.Atoi(id)
		if err != nil {
			j, rerr := s.table.Resolve(id)
			if rerr != nil || !strings.HasPrefix(id, "%") {
				fmt.Fprintf(s.stderr, "%s: `%s': not a pid or valid job spec\n", args[0], id)
				status = 1
				continue
			}
			pid = j.Pid
		}

		if err := s.table.Wait(pid); err != nil {
			status = fail(s, args[0], err)
		}
	}
	return status
}

func init() {
	AllBuiltins["cd"] = &Builtin{Use: "cd [dir]", Short: "Change the shell working directory.", Main: Cd}
	AllBuiltins["pwd"] = &Builtin{Use: "pwd", Short: "Print the name of the current working directory.", Main: Pwd}
	AllBuiltins["echo"] = &Builtin{Use: "echo [-en] [ARG] ...", Short: "Display a line of text.", Main: Echo}
	AllBuiltins["help"] = &Builtin{Use: "help [name ...]", Short: "Display information about builtin commands.", Main: Help}
	AllBuiltins["history"] = &Builtin{Use: "history [-c]", Short: "Display or clear the history list.", Main: HistoryBuiltin}
	AllBuiltins["exit"] = &Builtin{Use: "exit", Short: "Exit the shell.", Main: Exit}
	AllBuiltins["jobs"] = &Builtin{Use: "jobs [-lp]", Short: "Display status of jobs.", Main: Jobs}
	AllBuiltins["fg"] = &Builtin{Use: "fg [job_spec]", Short: "Move job to the foreground.", Main: Fg}
	AllBuiltins["bg"] = &Builtin{Use: "bg [job_spec ...]", Short: "Move jobs to the background.", Main: Bg}
	AllBuiltins["kill"] = &Builtin{
		Use:   "kill [-s sigspec | -sigspec] [-g] pid | jobspec ... or kill -l [sigspec]",
		Short: "Send a signal to a job.",
		Main:  Kill,
	}
	AllBuiltins["wait"] = &Builtin{Use: "wait [pid | %job ...]", Short: "Wait for job completion and report its status.", Main: Wait}
}
