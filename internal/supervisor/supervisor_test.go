package supervisor

import (
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arashiyama/supervisr/internal/history"
	"github.com/arashiyama/supervisr/internal/program"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a unix shell")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// drive runs n manual iterations of the loop body (without the sleep or
// the blocking channel select) so scenario tests can observe the
// lifecycle without invoking Run's infinite loop or os.Exit path.
func drive(t *testing.T, s *Supervisor, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		for {
			instr, ok := s.queue.Pop()
			if !ok {
				break
			}
			s.Dispatch(instr)
		}
		emitted, err := s.Tick()
		if err != nil {
			t.Fatalf("Tick: %v", err)
		}
		for _, instr := range emitted {
			s.queue.PushBack(instr)
		}
		s.PublishSnapshot()
		time.Sleep(20 * time.Millisecond)
	}
}

func newTestSupervisor(t *testing.T, cfgs map[string]program.Config, load ConfigLoader) *Supervisor {
	t.Helper()
	ext := make(chan Instruction, 16)
	var reload atomic.Bool
	if load == nil {
		load = func() (map[string]program.Config, error) { return cfgs, nil }
	}
	s, err := New(cfgs, ext, ext, &reload, load, testLogger(), history.NopSink{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func statusOf(t *testing.T, s *Supervisor, name string) Status {
	t.Helper()
	cs := s.childrenOf(name)
	if len(cs) == 0 {
		t.Fatalf("no children for program %q", name)
	}
	return cs[0].Status
}

// Scenario: autostart happy path (spec.md §8).
func TestAutostartHappyPath(t *testing.T) {
	requireUnix(t)
	cfgs := map[string]program.Config{
		"web": {
			Cmd: []string{"sleep", "5"}, NumProcs: 1, AutoStart: true,
			AutoRestart: program.AutoRestartNever, StartTime: 0,
		},
	}
	s := newTestSupervisor(t, cfgs, nil)
	s.Autostart()

	drive(t, s, 3)

	if got := statusOf(t, s, "web"); got != Active {
		t.Fatalf("status = %s, want Active", got)
	}
}

// Scenario: unexpected exit restarts under the "unexpected" policy.
func TestUnexpectedExitAutorestart(t *testing.T) {
	requireUnix(t)
	cfgs := map[string]program.Config{
		"flaky": {
			Cmd: []string{"sh", "-c", "exit 1"}, NumProcs: 1, AutoStart: true,
			AutoRestart: program.AutoRestartUnexpected, ExitCodes: []int{0},
			StartRetries: 3, StartTime: 1,
		},
	}
	s := newTestSupervisor(t, cfgs, nil)
	s.Autostart()

	cs := s.childrenOf("flaky")
	id := cs[0].ID

	drive(t, s, 1) // autostart already spawned; child stays Starting (StartTime=1)
	drive(t, s, 1) // process exits quickly; tick observes exit while Starting, emits retry

	for i := 0; i < 10 && s.children[id].Retries == 3; i++ {
		drive(t, s, 1)
	}
	if s.children[id].Retries >= 3 {
		t.Fatalf("expected retries to be decremented from the initial budget, got %d", s.children[id].Retries)
	}
}

// Scenario: graceful stop within the stoptime window.
func TestGracefulStopWithinWindow(t *testing.T) {
	requireUnix(t)
	cfgs := map[string]program.Config{
		"svc": {
			Cmd: []string{"sh", "-c", "trap 'exit 0' TERM; sleep 30"}, NumProcs: 1,
			AutoRestart: program.AutoRestartNever, StartTime: 0, StopTime: 5, StopSignal: "TERM",
		},
	}
	s := newTestSupervisor(t, cfgs, nil)
	s.handleStart([]string{"svc"}, false)
	drive(t, s, 2) // tick emits SetStatus(Active); the next drain applies it

	if got := statusOf(t, s, "svc"); got != Active {
		t.Fatalf("precondition: status = %s, want Active", got)
	}

	s.handleStop([]string{"svc"})
	drive(t, s, 5)

	if got := statusOf(t, s, "svc"); got != Inactive {
		t.Fatalf("status after graceful stop = %s, want Inactive", got)
	}
}

// Scenario: forced kill when a child ignores stopsignal past stoptime.
func TestForcedKillOnStopTimeout(t *testing.T) {
	requireUnix(t)
	cfgs := map[string]program.Config{
		"stubborn": {
			Cmd: []string{"sh", "-c", "trap '' TERM; sleep 30"}, NumProcs: 1,
			AutoRestart: program.AutoRestartNever, StartTime: 0, StopTime: 0, StopSignal: "TERM",
		},
	}
	s := newTestSupervisor(t, cfgs, nil)
	s.handleStart([]string{"stubborn"}, false)
	drive(t, s, 2) // let SetStatus(Active) drain before stopping

	s.handleStop([]string{"stubborn"})
	drive(t, s, 5)

	if got := statusOf(t, s, "stubborn"); got != Inactive {
		t.Fatalf("status after forced kill = %s, want Inactive", got)
	}
}

// Scenario: reload with a changed cmd drains the old generation via its
// inactive alias while the new generation runs under the canonical name.
func TestReloadChangedCmd(t *testing.T) {
	requireUnix(t)
	oldCfg := program.Config{
		Cmd: []string{"sleep", "30"}, NumProcs: 1, AutoStart: true,
		AutoRestart: program.AutoRestartNever, StartTime: 0, StopTime: 5, StopSignal: "TERM",
	}
	newCfg := oldCfg
	newCfg.Cmd = []string{"sleep", "31"}

	var current atomic.Value
	current.Store(map[string]program.Config{"app": oldCfg})
	load := func() (map[string]program.Config, error) {
		return current.Load().(map[string]program.Config), nil
	}

	s := newTestSupervisor(t, map[string]program.Config{"app": oldCfg}, load)
	s.Autostart()
	drive(t, s, 2) // let SetStatus(Active) drain before reloading

	current.Store(map[string]program.Config{"app": newCfg})
	s.handleReload()

	_, hasCanonical := s.programs["app"]
	_, hasAlias := s.programs[program.InactivePrefix+"app"]
	require.Truef(t, hasCanonical, "expected canonical %q entry to exist immediately after reload", "app")
	require.Truef(t, hasAlias, "expected old generation aliased as %q", program.InactivePrefix+"app")
	for _, c := range s.childrenOf(program.InactivePrefix + "app") {
		require.Equal(t, Reloading, c.Status, "old generation child status")
	}

	drive(t, s, 5)

	_, stillHasAlias := s.programs[program.InactivePrefix+"app"]
	require.False(t, stillHasAlias, "expected old generation alias to be removed once drained")
	require.Equal(t, Active, statusOf(t, s, "app"), "new generation status")
}

// Scenario: restart preserves program identity (same canonical name, same
// config) across a stop+delayed-start cycle.
func TestRestartPreservesProgramIdentity(t *testing.T) {
	requireUnix(t)
	cfgs := map[string]program.Config{
		"job": {
			Cmd: []string{"sleep", "30"}, NumProcs: 1,
			AutoRestart: program.AutoRestartNever, StartTime: 0, StopTime: 0, StopSignal: "TERM",
		},
	}
	s := newTestSupervisor(t, cfgs, nil)
	s.handleStart([]string{"job"}, false)
	drive(t, s, 1)

	before := s.programs["job"]
	s.handleRestart([]string{"job"})
	drive(t, s, 3)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for {
			i, ok := s.queue.Pop()
			if !ok {
				break
			}
			s.Dispatch(i)
		}
		select {
		case i := <-s.ext:
			s.Dispatch(i)
		default:
		}
		emitted, err := s.Tick()
		if err != nil {
			t.Fatalf("Tick: %v", err)
		}
		for _, i := range emitted {
			s.queue.PushBack(i)
		}
		if statusOf(t, s, "job") == Active {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	after := s.programs["job"]
	require.Same(t, before, after, "expected restart to preserve the same *program.Program identity")
	require.Equal(t, Active, statusOf(t, s, "job"), "status after restart")
}
