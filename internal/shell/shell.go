// Package shell is the interactive front end: it reads lines, runs
// builtins and hands everything else to the execution engine.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"jobshell/internal/config"
	"jobshell/internal/execute"
	"jobshell/internal/jobs"
	"jobshell/internal/parser"
	"jobshell/internal/prompt"
)

type Options struct {
	Config *config.Configuration

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// TTY is the controlling terminal. Nil or disabled means the shell
	// runs non-interactively: no prompt and no terminal hand-over.
	TTY    *jobs.TTY
	Logger *log.Logger
}

type Shell struct {
	cfg     *config.Configuration
	tty     *jobs.TTY
	table   *jobs.Table
	engine  *execute.Engine
	history *History
	logger  *log.Logger

	in     *bufio.Scanner
	stdout io.Writer
	stderr io.Writer

	exiting bool
}

func New(opts Options) *Shell {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	table := jobs.NewTable(jobs.System{}, opts.TTY, opts.Stdout, opts.Stderr)
	table.SetLogger(logger)

	engine := execute.New(table, opts.TTY)
	engine.Stdin, engine.Stdout, engine.Stderr = opts.Stdin, opts.Stdout, opts.Stderr
	engine.BufferSize = cfg.RedirectBuffer
	engine.SetLogger(logger)

	s := &Shell{
		cfg:     cfg,
		tty:     opts.TTY,
		table:   table,
		engine:  engine,
		history: NewHistory(cfg.HistorySize),
		logger:  logger,
		in:      bufio.NewScanner(opts.Stdin),
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
	}
	engine.Builtins = s
	engine.Stop = func() bool { return s.exiting }
	return s
}

// Interactive reports whether the shell owns a terminal.
func (s *Shell) Interactive() bool {
	return s.tty.Enabled()
}

// Lookup resolves a builtin for the engine.
func (s *Shell) Lookup(name string) (execute.Builtin, bool) {
	b, ok := AllBuiltins[name]
	if !ok {
		return nil, false
	}
	return func(argv []string, stdout io.Writer) int {
		s.logger.Printf("builtin %q", argv)
		return b.Main(s, argv, stdout)
	}, true
}

func (s *Shell) Prompt() string {
	return prompt.Render(s.cfg.Prompt, prompt.Current())
}

// Status is the exit status of the last command.
func (s *Shell) Status() int {
	return s.engine.Status()
}

// Run reads and executes lines until end of input or exit. Job changes
// are reported before each prompt. The returned error is fatal.
func (s *Shell) Run() error {
	stop := s.handleSignals()
	defer stop()

	echo := io.Discard
	if s.Interactive() {
		echo = s.stdout
	}

	for !s.exiting {
		s.reconcile()
		fmt.Fprint(echo, s.Prompt())

		line := parser.Read(s.in, echo)
		if line == nil {
			fmt.Fprintln(echo, "\nexit")
			break
		}

		if err := s.RunLine(string(line)); err != nil {
			return err
		}
	}

	s.Close()
	return nil
}

// RunLine parses and executes one logical line.
func (s *Shell) RunLine(line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	s.history.Add(line)

	chain, first, second, err := parser.ParseLine(line)
	if err != nil {
		fmt.Fprintf(s.stderr, "jobshell: %v\n", err)
		return nil
	}

	return s.engine.Execute(chain, first, second)
}

// Close hangs up stopped jobs so none outlives the shell suspended.
func (s *Shell) Close() {
	s.table.Hangup()
}

func (s *Shell) reconcile() {
	if err := s.table.Update(); err != nil {
		s.logger.Printf("reconcile: %v", err)
	}
}
