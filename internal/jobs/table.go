package jobs

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"jobshell/internal/slice"

	"github.com/fatih/color"
)

var (
	ErrNoSuchJob      = errors.New("no such job")
	ErrAlreadyRunning = errors.New("already running")
	ErrTerminated     = errors.New("job has terminated")
)

var (
	colorDone    = color.New(color.FgGreen)
	colorStopped = color.New(color.FgYellow, color.Bold)
	colorFailed  = color.New(color.FgRed)
)

// Table is the shell's registry of background and stopped jobs, kept in the
// order the jobs were added. Only the shell goroutine touches it.
type Table struct {
	proc   Process
	term   Terminal
	out    io.Writer
	errOut io.Writer
	logger *log.Logger

	jobs []*Job
}

func NewTable(proc Process, term Terminal, out, errOut io.Writer) *Table {
	return &Table{
		proc:   proc,
		term:   term,
		out:    out,
		errOut: errOut,
		logger: log.New(io.Discard, "", 0),
	}
}

func (t *Table) SetLogger(l *log.Logger) {
	t.logger = l
}

func (t *Table) Len() int {
	return len(t.jobs)
}

// Jobs returns a snapshot of the tracked jobs.
func (t *Table) Jobs() []*Job {
	return append([]*Job(nil), t.jobs...)
}

// Add registers j under the next free job number. A job whose pid is
// already tracked updates the existing entry instead.
func (t *Table) Add(j *Job) *Job {
	if existing := t.ByPid(j.Pid); existing != nil {
		existing.State = j.State
		return existing
	}

	j.ID = 1
	for _, other := range t.jobs {
		if other.ID >= j.ID {
			j.ID = other.ID + 1
		}
	}

	t.jobs = append(t.jobs, j)
	t.logger.Printf("job %d added: pid=%d pgid=%d state=%s cmd=%q", j.ID, j.Pid, j.Pgid, j.State, j.Command)
	return j
}

func (t *Table) Remove(j *Job) {
	if i := slice.IndexFunc(t.jobs, func(o *Job) bool { return o == j }); i >= 0 {
		t.jobs = slice.Remove(t.jobs, i, i+1)
		t.logger.Printf("job %d removed", j.ID)
	}
}

func (t *Table) ByPid(pid int) *Job {
	if i := slice.IndexFunc(t.jobs, func(j *Job) bool { return j.Pid == pid }); i >= 0 {
		return t.jobs[i]
	}
	return nil
}

func (t *Table) ByPgid(pgid int) []*Job {
	var out []*Job
	for _, j := range t.jobs {
		if j.Pgid == pgid {
			out = append(out, j)
		}
	}
	return out
}

// Last is the most recently added job, or nil.
func (t *Table) Last() *Job {
	if len(t.jobs) == 0 {
		return nil
	}
	return t.jobs[len(t.jobs)-1]
}

// Resolve finds a job by identifier: empty or "%+" for the most recent job,
// "%N" for job number N, a pid, or a substring of the command.
func (t *Table) Resolve(identifier string) (*Job, error) {
	switch {
	case identifier == "" || identifier == "%+" || identifier == "%%":
		if j := t.Last(); j != nil {
			return j, nil
		}
		return nil, fmt.Errorf("%w: current", ErrNoSuchJob)

	case strings.HasPrefix(identifier, "%"):
		if id, err := strconv.Atoi(identifier[1:]); err == nil {
			for _, j := range t.jobs {
				if j.ID == id {
					return j, nil
				}
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrNoSuchJob, identifier)
	}

	if pid, err := strconv.Atoi(identifier); err == nil {
		if j := t.ByPid(pid); j != nil {
			return j, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNoSuchJob, identifier)
	}

	for _, j := range t.jobs {
		if strings.Contains(j.Command, identifier) {
			return j, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchJob, identifier)
}

func (t *Table) marker(j *Job) string {
	n := len(t.jobs)
	switch {
	case n > 0 && t.jobs[n-1] == j:
		return "+"
	case n > 1 && t.jobs[n-2] == j:
		return "-"
	}
	return " "
}

// Announce prints the "[id] pgid" line for a job started in the background.
func (t *Table) Announce(j *Job) {
	fmt.Fprintf(t.out, "[%d] %d\n", j.ID, j.Pgid)
}

// Notify prints a status change for j.
func (t *Table) Notify(j *Job, label string) {
	c := colorFailed
	switch label {
	case "Done", Running.String():
		c = colorDone
	case Stopped.String():
		c = colorStopped
	}
	fmt.Fprintf(t.out, "[%d]%s  %s %s\n", j.ID, t.marker(j), c.Sprintf("%-11s", label), j.Command)
}

// finish reports the outcome of a job whose members are all reaped and
// drops it from the table.
func (t *Table) finish(j *Job) {
	t.Notify(j, j.outcome())
	t.Remove(j)
}
