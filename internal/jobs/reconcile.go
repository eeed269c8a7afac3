package jobs

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Update polls every tracked process without blocking and brings the table
// in line with what the kernel reports. It prints one notice per state
// change, so a second call with nothing new to report prints nothing.
//
// A process that can no longer be polled means the table and the kernel
// disagree. Rather than guess which group is which, Update kills every
// tracked process and empties the table.
func (t *Table) Update() error {
	for _, j := range t.Jobs() {
		if err := t.poll(j); err != nil {
			t.teardown(err)
			return err
		}
	}
	return nil
}

func (t *Table) poll(j *Job) error {
	for _, pid := range j.Members() {
		wpid, ws, err := t.proc.Wait(pid, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED)
		if err != nil {
			return fmt.Errorf("poll job %d (pid %d): %w", j.ID, pid, err)
		}
		if wpid == 0 {
			continue
		}

		switch {
		case ws.Stopped():
			if j.State != Stopped {
				j.State = Stopped
				t.Notify(j, Stopped.String())
			}
		case ws.Continued():
			// A job continued so that a kill can land stays in its killed state.
			if j.State != Running && !j.State.Terminal() {
				j.State = Running
				t.Notify(j, Running.String())
			}
		case ws.Exited(), ws.Signaled():
			t.logger.Printf("job %d: pid %d reaped, status %#x", j.ID, pid, uint32(ws))
			j.reap(pid, ws)
		}
	}

	if j.done() {
		t.finish(j)
	}
	return nil
}

func (t *Table) teardown(cause error) {
	fmt.Fprintf(t.errOut, "jobs: %v; killing all jobs\n", cause)
	t.logger.Printf("teardown: %v", cause)

	for _, j := range t.jobs {
		if err := t.proc.Signal(-j.Pgid, unix.SIGKILL); err != nil {
			t.logger.Printf("teardown: kill group %d: %v", j.Pgid, err)
		}
		for _, pid := range j.members {
			_, _, _ = t.proc.Wait(pid, 0)
		}
	}
	t.jobs = nil
}
