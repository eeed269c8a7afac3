package jobs

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// List prints every job as "[id]± pgid pid state command", or only the
// pids when pidsOnly is set.
func (t *Table) List(w io.Writer, pidsOnly bool) {
	if len(t.jobs) == 0 {
		if !pidsOnly {
			fmt.Fprintln(w, "No jobs")
		}
		return
	}

	for _, j := range t.jobs {
		if pidsOnly {
			fmt.Fprintln(w, j.Pid)
			continue
		}
		fmt.Fprintf(w, "[%d]%s  %-7d %-7d %-12s%s\n", j.ID, t.marker(j), j.Pgid, j.Pid, j.State, j.Command)
	}
}

// Foreground gives the terminal to the job, continues it if it is stopped
// and blocks until it exits or stops again. The terminal always returns to
// the shell before Foreground does.
func (t *Table) Foreground(identifier string) error {
	j, err := t.Resolve(identifier)
	if err != nil {
		return err
	}
	if j.State.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminated, j.Command)
	}

	fmt.Fprintln(t.out, j.Command)

	if err := t.term.Grant(j.Pgid); err != nil {
		t.logger.Printf("fg: grant terminal to %d: %v", j.Pgid, err)
	}
	defer func() {
		if err := t.term.Reclaim(); err != nil {
			t.logger.Printf("fg: reclaim terminal: %v", err)
		}
	}()

	if j.State == Stopped {
		if err := t.proc.Signal(-j.Pgid, unix.SIGCONT); err != nil {
			return fmt.Errorf("continue job %d: %w", j.ID, err)
		}
	}
	j.State = Running

	return t.block(j)
}

// Background continues a stopped job without giving it the terminal.
func (t *Table) Background(identifier string) error {
	j, err := t.Resolve(identifier)
	if err != nil {
		return err
	}

	switch {
	case j.State.Terminal():
		return fmt.Errorf("%w: %s", ErrTerminated, j.Command)
	case j.State != Stopped:
		return fmt.Errorf("job %d %w", j.ID, ErrAlreadyRunning)
	}

	if err := t.proc.Signal(-j.Pgid, unix.SIGCONT); err != nil {
		return fmt.Errorf("continue job %d: %w", j.ID, err)
	}
	j.State = Running

	fmt.Fprintf(t.out, "[%d]%s %s &\n", j.ID, t.marker(j), j.Command)
	return nil
}

// Kill sends sig to each identified job and records the state the signal
// implies. With group set the identifiers are process group ids and every
// job in the group is affected.
func (t *Table) Kill(sig syscall.Signal, identifiers []string, group bool) error {
	var errs []error

	for _, id := range identifiers {
		targets, err := t.killOne(sig, id, group)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		continued := make(map[int]bool)
		for _, j := range targets {
			wasStopped := j.State == Stopped
			if st, ok := StateForSignal(sig); ok {
				j.State = st
			}
			if !wasStopped || !needsContinue(sig) {
				continue
			}

			// A stopped process only acts on the signal once it runs again.
			if !continued[j.Pgid] {
				if err := t.proc.Signal(-j.Pgid, unix.SIGCONT); err != nil {
					errs = append(errs, fmt.Errorf("continue job %d: %w", j.ID, err))
					continue
				}
				continued[j.Pgid] = true
			}
			if j.State == Stopped {
				j.State = Running
			}
		}
	}

	return errors.Join(errs...)
}

// needsContinue reports whether a stopped job must be continued for sig to
// take effect.
func needsContinue(sig syscall.Signal) bool {
	if sig == unix.SIGKILL || sig == unix.SIGCONT {
		return false
	}
	st, ok := StateForSignal(sig)
	return !ok || st != Stopped
}

func (t *Table) killOne(sig syscall.Signal, id string, group bool) ([]*Job, error) {
	if group {
		pgid, err := strconv.Atoi(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchJob, id)
		}
		targets := t.ByPgid(pgid)
		if len(targets) == 0 {
			return nil, fmt.Errorf("%w: group %d", ErrNoSuchJob, pgid)
		}
		if err := t.proc.Signal(-pgid, sig); err != nil {
			return nil, fmt.Errorf("(%d) - %w", pgid, err)
		}
		return targets, nil
	}

	j, err := t.Resolve(id)
	if err != nil {
		return nil, err
	}
	for _, pid := range j.Members() {
		if err := t.proc.Signal(pid, sig); err != nil {
			return nil, fmt.Errorf("(%d) - %w", pid, err)
		}
	}
	return []*Job{j}, nil
}

// Wait blocks on the job whose representative is pid, prints its outcome
// and removes it.
func (t *Table) Wait(pid int) error {
	j := t.ByPid(pid)
	if j == nil {
		return fmt.Errorf("%w: pid %d is not a child of this shell", ErrNoSuchJob, pid)
	}
	if j.State == Stopped {
		return fmt.Errorf("job %d is stopped", j.ID)
	}
	return t.block(j)
}

// WaitAll waits for every job that is not stopped.
func (t *Table) WaitAll() error {
	var errs []error
	for _, j := range t.Jobs() {
		if j.State == Stopped {
			continue
		}
		if err := t.block(j); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Hangup sends SIGHUP followed by SIGCONT to every stopped job so none is
// left suspended once the shell exits.
func (t *Table) Hangup() {
	for _, j := range t.jobs {
		if j.State != Stopped {
			continue
		}
		_ = t.proc.Signal(-j.Pgid, unix.SIGHUP)
		_ = t.proc.Signal(-j.Pgid, unix.SIGCONT)
	}
}

// block waits for every member of j. A stop leaves the job in the table
// as Stopped; otherwise the job is reported and removed.
func (t *Table) block(j *Job) error {
	for _, pid := range j.Members() {
		_, ws, err := t.proc.Wait(pid, unix.WUNTRACED)
		if err != nil {
			t.Remove(j)
			return fmt.Errorf("wait for job %d (pid %d): %w", j.ID, pid, err)
		}

		if ws.Stopped() {
			j.State = Stopped
			t.Notify(j, Stopped.String())
			return nil
		}
		j.reap(pid, ws)
	}

	t.finish(j)
	return nil
}
