package execute

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"jobshell/internal/command"
)

func openTarget(r command.Redirect) (*os.File, error) {
	switch r.Op {
	case command.RedirectOut:
		return os.OpenFile(r.Filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	case command.RedirectAppend:
		return os.OpenFile(r.Filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	case command.RedirectIn:
		return os.Open(r.Filename)
	}
	return nil, fmt.Errorf("%s is not a redirection", r.Op)
}

// streams opens every redirection of cmd and returns the descriptors the
// command should run with. The last redirection in each direction wins.
// The caller closes the returned files.
func streams(cmd *command.Command, stdin, stdout *os.File) (in, out *os.File, opened []*os.File, err error) {
	in, out = stdin, stdout
	for _, r := range cmd.Redirects {
		f, err := openTarget(r)
		if err != nil {
			closeAll(opened)
			return nil, nil, nil, err
		}
		opened = append(opened, f)

		if r.Op == command.RedirectIn {
			in = f
		} else {
			out = f
		}
	}
	return in, out, opened, nil
}

func closeAll(files []*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// redirectFailed reports a target that could not be opened. It fails the
// command, not the shell.
func (e *Engine) redirectFailed(err error) error {
	fmt.Fprintf(e.Stderr, "jobshell: %v\n", err)
	e.status = 1
	return nil
}

// redirect runs a command with its redirections. A single redirection is
// relayed through a pipe by the shell; several are handed to the child as
// plain descriptors.
func (e *Engine) redirect(cmd *command.Command) error {
	if len(cmd.Redirects) > 1 {
		return e.direct(cmd)
	}

	r := cmd.Redirects[0]
	file, err := openTarget(r)
	if err != nil {
		return e.redirectFailed(err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		_ = file.Close()
		return e.failed(pipeError(err))
	}

	stdin, stdout := e.Stdin, pw
	child, relay := pw, func() error { return e.relay(file, pr) }
	if r.Op == command.RedirectIn {
		stdin, stdout = pr, e.Stdout
		child, relay = pr, func() error { return e.relay(pw, file) }
	}

	pid, err := e.start(cmd, stdin, stdout, 0, true)
	_ = child.Close()
	if err != nil {
		other := pr
		if child == pr {
			other = pw
		}
		_ = other.Close()
		_ = file.Close()
		return e.failed(err)
	}
	defer e.reclaim()

	done := make(chan error, 1)
	go func() {
		err := relay()
		_ = pr.Close()
		_ = pw.Close()
		_ = file.Close()
		done <- err
	}()

	// A stopped command keeps its relay running until it exits.
	if e.settle(cmd, pid) {
		return nil
	}
	if err := <-done; err != nil {
		e.logger.Printf("%s: relay %s: %v", cmd.Name(), r.Filename, err)
	}
	return nil
}

// relay copies src to dst through a buffer of the configured size. A reader
// that goes away early is not an error.
func (e *Engine) relay(dst io.Writer, src io.Reader) error {
	size := e.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}

	// The wrappers hide ReadFrom and WriteTo so the copy goes through buf.
	buf := make([]byte, size)
	_, err := io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{src}, buf)
	if errors.Is(err, syscall.EPIPE) {
		return nil
	}
	return err
}

// direct runs a command whose redirections are opened as its own
// descriptors.
func (e *Engine) direct(cmd *command.Command) error {
	stdin, stdout, opened, err := streams(cmd, e.Stdin, e.Stdout)
	if err != nil {
		return e.redirectFailed(err)
	}

	pid, err := e.start(cmd, stdin, stdout, 0, true)
	closeAll(opened)
	if err != nil {
		return e.failed(err)
	}
	defer e.reclaim()

	e.settle(cmd, pid)
	return nil
}

// builtinRedirect runs a builtin with its output sent to the redirection
// target. Builtins do not read standard input.
func (e *Engine) builtinRedirect(fn Builtin, cmd *command.Command) error {
	_, stdout, opened, err := streams(cmd, e.Stdin, e.Stdout)
	if err != nil {
		return e.redirectFailed(err)
	}
	defer closeAll(opened)

	e.status = fn(cmd.Argv(), stdout)
	return nil
}
