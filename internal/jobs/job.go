package jobs

import (
	"syscall"

	"golang.org/x/sys/unix"
)

type State int

const (
	Running State = iota
	Stopped
	Terminated
	Killed
	Interrupted
	HangUp
	Quit
)

var stateNames = [...]string{
	Running:     "Running",
	Stopped:     "Stopped",
	Terminated:  "Terminated",
	Killed:      "Killed",
	Interrupted: "Interrupted",
	HangUp:      "Hangup",
	Quit:        "Quit",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the state can only be followed by removal.
func (s State) Terminal() bool {
	return s >= Terminated
}

// StateForSignal maps a delivered signal to the state it leaves a job in.
func StateForSignal(sig syscall.Signal) (State, bool) {
	switch sig {
	case unix.SIGSTOP, unix.SIGTSTP, unix.SIGTTIN, unix.SIGTTOU:
		return Stopped, true
	case unix.SIGCONT:
		return Running, true
	case unix.SIGTERM:
		return Terminated, true
	case unix.SIGKILL:
		return Killed, true
	case unix.SIGINT:
		return Interrupted, true
	case unix.SIGHUP:
		return HangUp, true
	case unix.SIGQUIT:
		return Quit, true
	}
	return Running, false
}

// Job is a process group the shell tracks after it leaves the foreground.
type Job struct {
	ID      int
	Pid     int
	Pgid    int
	Command string
	State   State

	members []int
	signal  syscall.Signal
}

// New creates a job for a single process.
func New(pid, pgid int, display string, state State) *Job {
	return &Job{
		Pid:     pid,
		Pgid:    pgid,
		Command: display,
		State:   state,
		members: []int{pid},
	}
}

// NewGroup creates a job for a pipeline; the first pid represents the job.
func NewGroup(pgid int, pids []int, display string, state State) *Job {
	j := &Job{
		Pgid:    pgid,
		Command: display,
		State:   state,
		members: append([]int(nil), pids...),
	}
	if len(pids) > 0 {
		j.Pid = pids[0]
	}
	return j
}

// Members returns the pids of the job that have not been reaped yet.
func (j *Job) Members() []int {
	return append([]int(nil), j.members...)
}

func (j *Job) reap(pid int, ws unix.WaitStatus) {
	for i, m := range j.members {
		if m == pid {
			j.members = append(j.members[:i], j.members[i+1:]...)
			break
		}
	}
	if ws.Signaled() && (j.signal == 0 || pid == j.Pid) {
		j.signal = ws.Signal()
	}
}

func (j *Job) done() bool {
	return len(j.members) == 0
}

// outcome is the label printed when the last member of the job is reaped.
func (j *Job) outcome() string {
	if j.signal == 0 {
		return "Done"
	}
	if st, ok := StateForSignal(j.signal); ok && st.Terminal() {
		return st.String()
	}
	return j.signal.String()
}
