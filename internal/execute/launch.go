package execute

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"syscall"

	"jobshell/internal/command"

	"golang.org/x/sys/unix"
)

// ErrResourceExhausted means the shell could not fork or create a pipe. The
// shell cannot keep running commands once this happens.
var ErrResourceExhausted = errors.New("resource exhausted")

// LaunchError is a command that could not be started. It fails only that
// command.
type LaunchError struct {
	Name   string
	Status int
	Err    error
}

func (e *LaunchError) Error() string {
	var pe *fs.PathError
	if errors.As(e.Err, &pe) {
		return fmt.Sprintf("%s: %s: %v", e.Name, pe.Path, pe.Err)
	}

	switch {
	case errors.Is(e.Err, exec.ErrNotFound):
		return e.Name + ": command not found"
	case errors.Is(e.Err, fs.ErrNotExist):
		return e.Name + ": no such file or directory"
	case errors.Is(e.Err, fs.ErrPermission):
		return e.Name + ": permission denied"
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// start forks and execs cmd with the given standard streams. With pgid 0
// the child leads a new process group; otherwise it joins pgid. A
// foreground child on an interactive terminal is made the terminal's
// foreground group before it execs.
func (e *Engine) start(cmd *command.Command, stdin, stdout *os.File, pgid int, foreground bool) (int, error) {
	argv := cmd.Argv()

	path, err := exec.LookPath(argv[0])
	if errors.Is(err, exec.ErrDot) {
		err = nil
	}
	if err != nil {
		status := 127
		if errors.Is(err, fs.ErrPermission) {
			status = 126
		}
		return 0, &LaunchError{Name: argv[0], Status: status, Err: err}
	}

	attr := &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: []uintptr{stdin.Fd(), stdout.Fd(), e.Stderr.Fd()},
		Sys: &syscall.SysProcAttr{
			Setpgid: true,
			Pgid:    pgid,
		},
	}
	if foreground && pgid == 0 && e.TTY.Enabled() {
		attr.Sys.Foreground = true
		attr.Sys.Ctty = e.TTY.Fd()
	}

	pid, err := syscall.ForkExec(path, argv, attr)
	if err != nil {
		return 0, forkError(argv[0], err)
	}

	cmd.Pid = pid
	e.logger.Printf("started pid=%d pgid=%d fg=%t argv=%q", pid, pgidOf(pid, pgid), foreground, argv)
	return pid, nil
}

func forkError(name string, err error) error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return &LaunchError{Name: name, Status: 126, Err: err}
	}

	switch errno {
	case unix.EAGAIN, unix.ENOMEM, unix.EMFILE, unix.ENFILE:
		return fmt.Errorf("%w: fork %s: %v", ErrResourceExhausted, name, err)
	case unix.ENOENT:
		return &LaunchError{Name: name, Status: 127, Err: fs.ErrNotExist}
	case unix.EACCES:
		return &LaunchError{Name: name, Status: 126, Err: fs.ErrPermission}
	}
	return &LaunchError{Name: name, Status: 126, Err: err}
}

func pipeError(err error) error {
	return fmt.Errorf("%w: pipe: %v", ErrResourceExhausted, err)
}

func pgidOf(pid, pgid int) int {
	if pgid == 0 {
		return pid
	}
	return pgid
}

// failed reports a launch error. Per-command failures set the status and
// are swallowed; anything else is returned to stop the shell.
func (e *Engine) failed(err error) error {
	var le *LaunchError
	if errors.As(err, &le) {
		fmt.Fprintln(e.Stderr, le)
		e.status = le.Status
		return nil
	}
	e.status = 1
	return err
}

// wait blocks until pid exits or stops.
func (e *Engine) wait(pid int) (unix.WaitStatus, error) {
	_, ws, err := e.proc.Wait(pid, unix.WUNTRACED)
	return ws, err
}

// exitCode is the status a shell reports for ws: the exit status, or 128
// plus the signal that killed or stopped the process.
func exitCode(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	case ws.Stopped():
		return 128 + int(ws.StopSignal())
	}
	return 0
}

// reportSignal prints how a foreground process died. Interrupts and broken
// pipes are expected and stay quiet.
func (e *Engine) reportSignal(name string, ws unix.WaitStatus) {
	if !ws.Signaled() {
		return
	}
	switch ws.Signal() {
	case unix.SIGINT:
		fmt.Fprintln(e.Stderr)
	case unix.SIGPIPE:
	default:
		fmt.Fprintf(e.Stderr, "%s: %s\n", name, ws.Signal())
	}
}

func (e *Engine) reclaim() {
	if err := e.TTY.Reclaim(); err != nil {
		e.logger.Printf("reclaim terminal: %v", err)
	}
}
