//go:build linux

package jobs

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func init() {
	color.NoColor = true
}

func exited(code int) unix.WaitStatus {
	return unix.WaitStatus(code << 8)
}

func signaled(sig syscall.Signal) unix.WaitStatus {
	return unix.WaitStatus(sig)
}

func stopped(sig syscall.Signal) unix.WaitStatus {
	return unix.WaitStatus(int(sig)<<8 | 0x7f)
}

const continued = unix.WaitStatus(0xffff)

type event struct {
	ws  unix.WaitStatus
	err error
}

type sent struct {
	pid int
	sig syscall.Signal
}

type fakeProc struct {
	events  map[int][]event
	signals []sent
}

func newFakeProc() *fakeProc {
	return &fakeProc{events: make(map[int][]event)}
}

func (f *fakeProc) push(pid int, ws unix.WaitStatus) {
	f.events[pid] = append(f.events[pid], event{ws: ws})
}

func (f *fakeProc) fail(pid int, err error) {
	f.events[pid] = append(f.events[pid], event{err: err})
}

func (f *fakeProc) Wait(pid int, options int) (int, unix.WaitStatus, error) {
	q := f.events[pid]
	if len(q) == 0 {
		if options&unix.WNOHANG != 0 {
			return 0, 0, nil
		}
		return -1, 0, unix.ECHILD
	}
	ev := q[0]
	f.events[pid] = q[1:]
	if ev.err != nil {
		return -1, 0, ev.err
	}
	return pid, ev.ws, nil
}

func (f *fakeProc) Signal(pid int, sig syscall.Signal) error {
	f.signals = append(f.signals, sent{pid, sig})
	return nil
}

type fakeTerm struct {
	grants   []int
	reclaims int
}

func (f *fakeTerm) Grant(pgid int) error {
	f.grants = append(f.grants, pgid)
	return nil
}

func (f *fakeTerm) Reclaim() error {
	f.reclaims++
	return nil
}

type fixture struct {
	table  *Table
	proc   *fakeProc
	term   *fakeTerm
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newFixture() *fixture {
	f := &fixture{proc: newFakeProc(), term: &fakeTerm{}, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	f.table = NewTable(f.proc, f.term, f.out, f.errOut)
	return f
}

func (f *fixture) lines() []string {
	s := strings.TrimRight(f.out.String(), "\n")
	f.out.Reset()
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestAddNumbersJobs(t *testing.T) {
	f := newFixture()

	a := f.table.Add(New(10, 10, "sleep 1", Running))
	b := f.table.Add(New(20, 20, "sleep 2", Running))
	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)

	f.table.Remove(a)
	c := f.table.Add(New(30, 30, "sleep 3", Running))
	assert.Equal(t, 3, c.ID)

	dup := f.table.Add(New(20, 20, "sleep 2", Stopped))
	assert.Same(t, b, dup)
	assert.Equal(t, Stopped, b.State)
	assert.Equal(t, 2, f.table.Len())
}

func TestResolve(t *testing.T) {
	f := newFixture()
	_, err := f.table.Resolve("")
	assert.ErrorIs(t, err, ErrNoSuchJob)

	sleep := f.table.Add(New(10, 10, "sleep 100", Running))
	vim := f.table.Add(New(20, 20, "vim notes.txt", Stopped))

	cases := map[string]*Job{
		"":      vim,
		"%+":    vim,
		"%1":    sleep,
		"20":    vim,
		"sleep": sleep,
		"notes": vim,
	}
	for id, want := range cases {
		got, err := f.table.Resolve(id)
		require.NoError(t, err, id)
		assert.Same(t, want, got, id)
	}

	for _, id := range []string{"%9", "99", "emacs"} {
		_, err := f.table.Resolve(id)
		assert.ErrorIs(t, err, ErrNoSuchJob, id)
	}
}

func TestUpdateDoneOnce(t *testing.T) {
	f := newFixture()
	f.table.Add(New(10, 10, "sleep 5", Running))

	require.NoError(t, f.table.Update())
	assert.Empty(t, f.lines())
	assert.Equal(t, 1, f.table.Len())

	f.proc.push(10, exited(0))
	require.NoError(t, f.table.Update())
	assert.Equal(t, []string{"[1]+  Done        sleep 5"}, f.lines())
	assert.Zero(t, f.table.Len())

	require.NoError(t, f.table.Update())
	assert.Empty(t, f.lines())
}

func TestUpdateIsIdempotent(t *testing.T) {
	f := newFixture()
	j := f.table.Add(New(10, 10, "top", Running))

	f.proc.push(10, stopped(unix.SIGTSTP))
	require.NoError(t, f.table.Update())
	assert.Equal(t, []string{"[1]+  Stopped     top"}, f.lines())
	assert.Equal(t, Stopped, j.State)

	require.NoError(t, f.table.Update())
	assert.Empty(t, f.lines())

	f.proc.push(10, stopped(unix.SIGSTOP))
	require.NoError(t, f.table.Update())
	assert.Empty(t, f.lines(), "stop of an already stopped job is not reported")

	f.proc.push(10, continued)
	require.NoError(t, f.table.Update())
	assert.Equal(t, []string{"[1]+  Running     top"}, f.lines())
	assert.Equal(t, Running, j.State)
	assert.Equal(t, 1, f.table.Len())
}

func TestUpdateSignaled(t *testing.T) {
	f := newFixture()
	f.table.Add(New(10, 10, "sleep 100", Running))
	f.table.Add(New(20, 20, "sleep 200", Running))

	require.NoError(t, f.table.Kill(unix.SIGTERM, []string{"10"}, false))
	f.proc.push(10, signaled(unix.SIGTERM))
	f.proc.push(20, signaled(unix.SIGSEGV))

	require.NoError(t, f.table.Update())
	assert.Equal(t, []string{
		"[1]-  Terminated  sleep 100",
		"[2]+  segmentation fault sleep 200",
	}, f.lines())
	assert.Zero(t, f.table.Len())
}

func TestUpdatePipelineWaitsForAllMembers(t *testing.T) {
	f := newFixture()
	f.table.Add(NewGroup(10, []int{10, 11, 12}, "a | b | c", Running))

	f.proc.push(10, exited(0))
	f.proc.push(11, exited(0))
	require.NoError(t, f.table.Update())
	assert.Empty(t, f.lines())
	assert.Equal(t, 1, f.table.Len())

	f.proc.push(12, exited(1))
	require.NoError(t, f.table.Update())
	assert.Equal(t, []string{"[1]+  Done        a | b | c"}, f.lines())
}

func TestUpdateTeardown(t *testing.T) {
	f := newFixture()
	f.table.Add(New(10, 10, "sleep 1", Running))
	f.table.Add(NewGroup(20, []int{20, 21}, "yes | head", Running))

	f.proc.fail(10, unix.ECHILD)
	err := f.table.Update()
	require.ErrorIs(t, err, unix.ECHILD)

	assert.Zero(t, f.table.Len())
	assert.Equal(t, []sent{{-10, unix.SIGKILL}, {-20, unix.SIGKILL}}, f.proc.signals)
	assert.Contains(t, f.errOut.String(), "killing all jobs")
}

func TestBackgroundNeverTakesTerminal(t *testing.T) {
	f := newFixture()
	j := f.table.Add(New(10, 10, "make", Stopped))

	require.NoError(t, f.table.Background(""))
	assert.Equal(t, Running, j.State)
	assert.Equal(t, []sent{{-10, unix.SIGCONT}}, f.proc.signals)
	assert.Equal(t, []string{"[1]+ make &"}, f.lines())

	err := f.table.Background("make")
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Len(t, f.proc.signals, 1)

	assert.Empty(t, f.term.grants)
	assert.Zero(t, f.term.reclaims)
}

func TestForegroundRunsToCompletion(t *testing.T) {
	f := newFixture()
	f.table.Add(NewGroup(10, []int{10, 11}, "cat | wc", Stopped))
	f.proc.push(10, exited(0))
	f.proc.push(11, exited(0))

	require.NoError(t, f.table.Foreground("%1"))

	assert.Equal(t, []int{10}, f.term.grants)
	assert.Equal(t, 1, f.term.reclaims)
	assert.Equal(t, []sent{{-10, unix.SIGCONT}}, f.proc.signals)
	assert.Equal(t, []string{"cat | wc", "[1]+  Done        cat | wc"}, f.lines())
	assert.Zero(t, f.table.Len())
}

func TestForegroundStopsAgain(t *testing.T) {
	f := newFixture()
	j := f.table.Add(New(10, 10, "vim", Running))
	f.proc.push(10, stopped(unix.SIGTSTP))

	require.NoError(t, f.table.Foreground("vim"))

	assert.Equal(t, Stopped, j.State)
	assert.Equal(t, 1, f.table.Len())
	assert.Empty(t, f.proc.signals, "running job is not sent SIGCONT")
	assert.Equal(t, 1, f.term.reclaims)
	assert.Equal(t, []string{"vim", "[1]+  Stopped     vim"}, f.lines())
}

func TestForegroundStaleJob(t *testing.T) {
	f := newFixture()
	f.table.Add(New(10, 10, "sleep 1", Running))

	err := f.table.Foreground("")
	assert.ErrorIs(t, err, unix.ECHILD)
	assert.Zero(t, f.table.Len())
	assert.Equal(t, 1, f.term.reclaims)

	err = f.table.Foreground("")
	assert.ErrorIs(t, err, ErrNoSuchJob)
}

func TestKillStateMapping(t *testing.T) {
	cases := []struct {
		sig     syscall.Signal
		want    State
		resumes bool
	}{
		{unix.SIGSTOP, Stopped, false},
		{unix.SIGTSTP, Stopped, false},
		{unix.SIGCONT, Running, false},
		{unix.SIGTERM, Terminated, true},
		{unix.SIGKILL, Killed, false},
		{unix.SIGINT, Interrupted, true},
		{unix.SIGHUP, HangUp, true},
		{unix.SIGQUIT, Quit, true},
		{unix.SIGUSR1, Running, true},
	}

	for _, tc := range cases {
		t.Run(tc.sig.String(), func(t *testing.T) {
			f := newFixture()
			j := f.table.Add(New(10, 10, "sleep 100", Stopped))

			require.NoError(t, f.table.Kill(tc.sig, []string{"10"}, false))
			assert.Equal(t, tc.want, j.State)
			assert.Equal(t, 1, f.table.Len(), "kill never removes a job by itself")

			want := []sent{{10, tc.sig}}
			if tc.resumes {
				want = append(want, sent{-10, unix.SIGCONT})
			}
			assert.Equal(t, want, f.proc.signals)
		})
	}
}

func TestKillRunningJobIsNotContinued(t *testing.T) {
	f := newFixture()
	j := f.table.Add(New(10, 10, "sleep 100", Running))

	require.NoError(t, f.table.Kill(unix.SIGTERM, []string{"10"}, false))
	assert.Equal(t, Terminated, j.State)
	assert.Equal(t, []sent{{10, unix.SIGTERM}}, f.proc.signals)
}

func TestKillStoppedGroupContinuesOnce(t *testing.T) {
	f := newFixture()
	a := f.table.Add(New(10, 10, "a", Stopped))
	b := f.table.Add(New(11, 10, "b", Stopped))

	require.NoError(t, f.table.Kill(unix.SIGTERM, []string{"10"}, true))
	assert.Equal(t, []sent{{-10, unix.SIGTERM}, {-10, unix.SIGCONT}}, f.proc.signals)
	assert.Equal(t, Terminated, a.State)
	assert.Equal(t, Terminated, b.State)
}

func TestUpdateKeepsKilledStateWhenContinued(t *testing.T) {
	f := newFixture()
	j := f.table.Add(New(10, 10, "sleep 100", Stopped))
	require.NoError(t, f.table.Kill(unix.SIGTERM, []string{"10"}, false))

	f.proc.push(10, continued)
	require.NoError(t, f.table.Update())
	assert.Equal(t, Terminated, j.State)
	assert.Empty(t, f.out.String())

	f.proc.push(10, signaled(unix.SIGTERM))
	require.NoError(t, f.table.Update())
	assert.Equal(t, 0, f.table.Len())
	assert.Equal(t, "[1]+  Terminated  sleep 100\n", f.out.String())
}

func TestKillGroup(t *testing.T) {
	f := newFixture()
	a := f.table.Add(New(10, 10, "a", Running))
	b := f.table.Add(New(11, 10, "b", Running))
	c := f.table.Add(New(20, 20, "c", Running))

	require.NoError(t, f.table.Kill(unix.SIGINT, []string{"10"}, true))
	assert.Equal(t, []sent{{-10, unix.SIGINT}}, f.proc.signals)
	assert.Equal(t, Interrupted, a.State)
	assert.Equal(t, Interrupted, b.State)
	assert.Equal(t, Running, c.State)
}

func TestKillUnknown(t *testing.T) {
	f := newFixture()
	f.table.Add(New(10, 10, "sleep", Running))

	err := f.table.Kill(unix.SIGKILL, []string{"99", "sleep"}, false)
	assert.ErrorIs(t, err, ErrNoSuchJob)
	assert.Equal(t, []sent{{10, unix.SIGKILL}}, f.proc.signals)

	err = f.table.Kill(unix.SIGKILL, []string{"77"}, true)
	assert.ErrorIs(t, err, ErrNoSuchJob)
}

func TestWait(t *testing.T) {
	f := newFixture()
	f.table.Add(New(10, 10, "sleep 1", Running))
	f.table.Add(New(20, 20, "sleep 2", Running))
	f.proc.push(10, exited(0))
	f.proc.push(20, signaled(unix.SIGTERM))

	require.NoError(t, f.table.Wait(10))
	require.NoError(t, f.table.Wait(20))
	assert.Equal(t, []string{"[1]-  Done        sleep 1", "[2]+  Terminated  sleep 2"}, f.lines())
	assert.Zero(t, f.table.Len())

	assert.ErrorIs(t, f.table.Wait(10), ErrNoSuchJob)
}

func TestWaitAllSkipsStopped(t *testing.T) {
	f := newFixture()
	f.table.Add(New(10, 10, "sleep 1", Running))
	f.table.Add(New(20, 20, "vim", Stopped))
	f.proc.push(10, exited(0))

	require.NoError(t, f.table.WaitAll())
	assert.Equal(t, 1, f.table.Len())
	assert.Error(t, f.table.Wait(20))
}

func TestHangup(t *testing.T) {
	f := newFixture()
	f.table.Add(New(10, 10, "sleep", Running))
	f.table.Add(New(20, 20, "vim", Stopped))

	f.table.Hangup()
	assert.Equal(t, []sent{{-20, unix.SIGHUP}, {-20, unix.SIGCONT}}, f.proc.signals)
}

func TestList(t *testing.T) {
	f := newFixture()
	var out bytes.Buffer

	f.table.List(&out, false)
	assert.Equal(t, "No jobs\n", out.String())
	out.Reset()

	f.table.Add(New(101, 101, "sleep 100", Running))
	f.table.Add(NewGroup(200, []int{200, 201}, "yes | head", Stopped))
	f.table.Add(New(300, 300, "vim notes.txt", Stopped))

	f.table.List(&out, false)

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)
	g.Assert(t, "listing", out.Bytes())

	out.Reset()
	f.table.List(&out, true)
	assert.Equal(t, "101\n200\n300\n", out.String())
}

func TestParseSignal(t *testing.T) {
	cases := map[string]syscall.Signal{
		"-9":       unix.SIGKILL,
		"15":       unix.SIGTERM,
		"-SIGTERM": unix.SIGTERM,
		"TERM":     unix.SIGTERM,
		"-stop":    unix.SIGSTOP,
		"sigcont":  unix.SIGCONT,
		"0":        0,
	}
	for spec, want := range cases {
		got, err := ParseSignal(spec)
		require.NoError(t, err, spec)
		assert.Equal(t, want, got, spec)
	}

	for _, spec := range []string{"-NOPE", "999", "-1x"} {
		_, err := ParseSignal(spec)
		assert.ErrorIs(t, err, ErrUnknownSignal, spec)
	}
}

func TestSignalNames(t *testing.T) {
	names := SignalNames()
	assert.Contains(t, names, "KILL")
	assert.Contains(t, names, "TSTP")
	assert.Equal(t, "HUP", names[0])
}

func TestSystemReapsRealProcess(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	var out bytes.Buffer
	table := NewTable(System{}, &TTY{}, &out, &out)
	table.Add(New(pid, pid, "true", Running))

	require.Eventually(t, func() bool {
		return assert.NoError(t, table.Update()) && table.Len() == 0
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "[1]+  Done        true\n", out.String())
}

func TestKillStoppedRealProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	t.Cleanup(func() { _ = unix.Kill(-pid, unix.SIGKILL) })

	var out bytes.Buffer
	table := NewTable(System{}, &TTY{}, &out, &out)
	j := table.Add(New(pid, pid, "sleep 30", Running))

	require.NoError(t, unix.Kill(pid, unix.SIGSTOP))
	require.Eventually(t, func() bool {
		return assert.NoError(t, table.Update()) && j.State == Stopped
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, table.Kill(unix.SIGTERM, []string{"sleep"}, false))
	require.Eventually(t, func() bool {
		return assert.NoError(t, table.Update()) && table.Len() == 0
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "[1]+  Stopped     sleep 30\n[1]+  Terminated  sleep 30\n", out.String())
}
