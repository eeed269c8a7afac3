package jobs

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Process is the part of the operating system the job table talks to.
type Process interface {
	Wait(pid int, options int) (int, unix.WaitStatus, error)
	Signal(pid int, sig syscall.Signal) error
}

// Terminal hands the controlling terminal to a process group and back.
type Terminal interface {
	Grant(pgid int) error
	Reclaim() error
}

// System implements Process with wait4(2) and kill(2).
type System struct{}

func (System) Wait(pid int, options int) (int, unix.WaitStatus, error) {
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, options, nil)
		if err == unix.EINTR {
			continue
		}
		return wpid, ws, err
	}
}

func (System) Signal(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}

// TTY is the shell's controlling terminal. Every method is a no-op when the
// shell does not run on a terminal.
type TTY struct {
	fd      int
	pgid    int
	enabled bool
}

func NewTTY(f *os.File) *TTY {
	fd := int(f.Fd())
	return &TTY{
		fd:      fd,
		pgid:    unix.Getpgrp(),
		enabled: term.IsTerminal(fd),
	}
}

func (t *TTY) Enabled() bool {
	return t != nil && t.enabled
}

func (t *TTY) Fd() int {
	return t.fd
}

// Pgid is the shell's own process group.
func (t *TTY) Pgid() int {
	return t.pgid
}

// Acquire moves the shell into its own process group and makes that group
// the foreground group of the terminal.
func (t *TTY) Acquire() error {
	if !t.Enabled() {
		return nil
	}

	if pid := os.Getpid(); unix.Getpgrp() != pid {
		if err := unix.Setpgid(0, 0); err != nil {
			return err
		}
	}
	t.pgid = unix.Getpgrp()

	return t.Grant(t.pgid)
}

func (t *TTY) Grant(pgid int) error {
	if !t.Enabled() {
		return nil
	}

	signal.Ignore(syscall.SIGTTOU)
	defer signal.Reset(syscall.SIGTTOU)

	return unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid)
}

func (t *TTY) Reclaim() error {
	if !t.Enabled() {
		return nil
	}
	return t.Grant(t.pgid)
}
