// Package execute turns parsed command chains into running processes.
package execute

import (
	"fmt"
	"io"
	"log"
	"os"

	"jobshell/internal/command"
	"jobshell/internal/jobs"
)

// DefaultBufferSize is the relay buffer used for redirections when none is
// configured.
const DefaultBufferSize = 4096

// Builtin runs a command inside the shell process and returns its status.
type Builtin func(argv []string, stdout io.Writer) int

// Builtins resolves command names the shell handles itself.
type Builtins interface {
	Lookup(name string) (Builtin, bool)
}

// Engine runs command chains for the shell. It is not safe for concurrent
// use; the shell goroutine owns it.
type Engine struct {
	Jobs *jobs.Table
	TTY  *jobs.TTY

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	Builtins   Builtins
	BufferSize int

	// Stop is checked before each unit of a chain; once it reports true
	// the rest of the chain is dropped.
	Stop func() bool

	proc   jobs.Process
	logger *log.Logger
	status int
}

func New(table *jobs.Table, tty *jobs.TTY) *Engine {
	return &Engine{
		Jobs:       table,
		TTY:        tty,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		BufferSize: DefaultBufferSize,
		proc:       jobs.System{},
		logger:     log.New(io.Discard, "", 0),
	}
}

func (e *Engine) SetLogger(l *log.Logger) {
	e.logger = l
}

// Status is the exit status of the last command run.
func (e *Engine) Status() int {
	return e.status
}

// Execute runs chain. first and second are the operator flags reported by
// the parser. Command failures only change Status; the returned error is
// fatal to the shell.
func (e *Engine) Execute(chain command.Chain, first, second command.Operator) error {
	if len(chain) == 0 {
		return nil
	}

	units, err := chain.Units()
	if err != nil {
		fmt.Fprintf(e.Stderr, "jobshell: %v\n", err)
		e.status = 2
		return nil
	}

	e.logger.Printf("execute %q strategy=%s units=%d", chain.Display(), Strategy(first, second), len(units))
	return e.sequence(units)
}

// run dispatches one unit to the executor that handles its shape.
func (e *Engine) run(u command.Unit) error {
	cmd := u.Segments[0]

	switch {
	case u.IsPipeline():
		return e.pipeline(u, u.Background())

	case len(cmd.Redirects) > 0:
		if fn, ok := e.builtin(cmd); ok {
			return e.builtinRedirect(fn, cmd)
		}
		if u.Background() {
			e.logger.Printf("%q: redirection runs in the foreground", u.Display())
		}
		return e.redirect(cmd)

	case u.Background():
		return e.background(cmd)
	}

	if fn, ok := e.builtin(cmd); ok {
		e.status = fn(cmd.Argv(), e.Stdout)
		return nil
	}
	return e.foreground(cmd)
}

func (e *Engine) builtin(cmd *command.Command) (Builtin, bool) {
	if e.Builtins == nil {
		return nil, false
	}
	return e.Builtins.Lookup(cmd.Name())
}

// foreground runs a single command in its own process group and waits for
// it. A command that stops becomes a Stopped job.
func (e *Engine) foreground(cmd *command.Command) error {
	pid, err := e.start(cmd, e.Stdin, e.Stdout, 0, true)
	if err != nil {
		return e.failed(err)
	}
	defer e.reclaim()

	e.settle(cmd, pid)
	return nil
}

// settle waits for a foreground pid and records the outcome. It reports
// whether the command stopped and became a job.
func (e *Engine) settle(cmd *command.Command, pid int) bool {
	ws, err := e.wait(pid)
	if err != nil {
		fmt.Fprintf(e.Stderr, "%s: wait: %v\n", cmd.Name(), err)
		e.status = 1
		return false
	}

	e.status = exitCode(ws)
	if ws.Stopped() {
		j := jobs.New(pid, pid, cmd.String(), jobs.Stopped)
		e.Jobs.Notify(e.Jobs.Add(j), jobs.Stopped.String())
		return true
	}

	e.reportSignal(cmd.Name(), ws)
	return false
}

// background starts cmd in a new process group and returns without
// waiting. The terminal stays with the shell.
func (e *Engine) background(cmd *command.Command) error {
	pid, err := e.start(cmd, e.Stdin, e.Stdout, 0, false)
	if err != nil {
		return e.failed(err)
	}

	j := jobs.New(pid, pid, cmd.String(), jobs.Running)
	e.Jobs.Announce(e.Jobs.Add(j))
	e.status = 0
	return nil
}
