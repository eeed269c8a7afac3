package execute

import (
	"os"

	"jobshell/internal/command"
	"jobshell/internal/jobs"

	"golang.org/x/sys/unix"
)

// pipeline starts every segment of u with stdout chained to the next
// segment's stdin. All stages share one process group led by the first
// stage that starts. In the background the pipeline becomes a single
// Running job; in the foreground the shell waits for every stage.
func (e *Engine) pipeline(u command.Unit, background bool) error {
	var (
		pids   []int
		pgid   int
		prev   *os.File
		status int
	)

	for i, cmd := range u.Segments {
		stdin := e.Stdin
		if prev != nil {
			stdin = prev
		}

		stdout, next := e.Stdout, (*os.File)(nil)
		if i < len(u.Segments)-1 {
			r, w, err := os.Pipe()
			if err != nil {
				closeFile(prev)
				e.abandon(pgid, pids)
				return e.failed(pipeError(err))
			}
			stdout, next = w, r
		}

		pid, err := e.stage(cmd, stdin, stdout, pgid, !background)
		if stdout != e.Stdout {
			closeFile(stdout)
		}
		closeFile(prev)
		prev = next

		if err != nil {
			if fatal := e.failed(err); fatal != nil {
				closeFile(prev)
				e.abandon(pgid, pids)
				return fatal
			}
			status = e.status
			continue
		}

		if pgid == 0 {
			pgid = pid
		}
		pids = append(pids, pid)
		status = 0
	}

	if len(pids) == 0 {
		e.status = status
		return nil
	}

	if background {
		j := jobs.NewGroup(pgid, pids, u.Display(), jobs.Running)
		e.Jobs.Announce(e.Jobs.Add(j))
		e.status = 0
		return nil
	}

	defer e.reclaim()
	return e.waitPipeline(u, pgid, pids, status)
}

// stage starts one pipeline segment with its own redirections applied on
// top of the pipe ends.
func (e *Engine) stage(cmd *command.Command, stdin, stdout *os.File, pgid int, foreground bool) (int, error) {
	in, out, opened, err := streams(cmd, stdin, stdout)
	if err != nil {
		return 0, &LaunchError{Name: cmd.Name(), Status: 1, Err: err}
	}
	defer closeAll(opened)

	return e.start(cmd, in, out, pgid, foreground)
}

// waitPipeline waits for each stage in order. The status is the last
// stage's. If a stage stops, the stages not yet reaped become one Stopped
// job and the wait ends.
func (e *Engine) waitPipeline(u command.Unit, pgid int, pids []int, status int) error {
	last := u.Segments[len(u.Segments)-1]

	for i, pid := range pids {
		ws, err := e.wait(pid)
		if err != nil {
			e.logger.Printf("pipeline %q: wait %d: %v", u.Display(), pid, err)
			status = 1
			continue
		}

		if ws.Stopped() {
			j := jobs.NewGroup(pgid, pids[i:], u.Display(), jobs.Stopped)
			j.Pid = pids[0]
			e.Jobs.Notify(e.Jobs.Add(j), jobs.Stopped.String())
			e.status = exitCode(ws)
			return nil
		}

		if last.Pid == pid {
			status = exitCode(ws)
			e.reportSignal(last.Name(), ws)
		}
	}

	e.status = status
	return nil
}

// abandon kills and reaps the stages of a pipeline that could not be
// completed.
func (e *Engine) abandon(pgid int, pids []int) {
	if pgid == 0 {
		return
	}
	_ = e.proc.Signal(-pgid, unix.SIGKILL)
	for _, pid := range pids {
		_, _, _ = e.proc.Wait(pid, 0)
	}
	e.logger.Printf("abandoned pipeline group %d", pgid)
}

func closeFile(f *os.File) {
	if f != nil {
		_ = f.Close()
	}
}
