package supervisor

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/arashiyama/supervisr/internal/metrics"
	"github.com/arashiyama/supervisr/internal/procexec"
	"github.com/arashiyama/supervisr/internal/program"
)

// Dispatch executes a single instruction, the entry point the supervision
// loop calls once per queue drain (spec.md §4.3 step 3, §4.4).
func (s *Supervisor) Dispatch(i Instruction) {
	switch i.Kind {
	case KStatus:
		s.handleStatus()
	case KStart:
		s.handleStart(i.Names, false)
	case KStop:
		s.handleStop(i.Names)
	case KRestart:
		s.handleRestart(i.Names)
	case KReload:
		s.handleReload()
	case KExit:
		s.handleExit()
	case KStartProcessus:
		s.handleStartProcessus(i.ChildID, false)
	case KRetryStartProcessus:
		s.handleStartProcessus(i.ChildID, true)
	case KResetProcessus:
		s.handleResetProcessus(i.ChildID)
	case KSetStatus:
		s.handleSetStatus(i.ChildID, i.NewStatus)
	case KKillProcessus:
		s.handleKillProcessus(i.ChildID)
	case KRemoveProcessus:
		s.handleRemoveProcessus(i.ChildID)
	default:
		s.log.Warn("unknown instruction kind dispatched", "kind", int(i.Kind))
	}
}

// handleStatus prints a fixed-width table of (id, name, status), one row
// per child record, in table order (spec.md §4.4).
func (s *Supervisor) handleStatus() {
	for _, id := range s.order {
		c := s.children[id]
		fmt.Printf("%-6d %-24s %s\n", c.ID, c.ProgramName, c.Status)
	}
	s.log.Info("status displayed", "children", len(s.order))
}

// handleStart starts every Inactive child of each named program. restart
// is always false from the CLI path; retries are not decremented here
// (spec.md §4.4).
func (s *Supervisor) handleStart(names []string, restart bool) {
	for _, name := range names {
		p, ok := s.programs[name]
		if !ok || !p.Active {
			s.log.Warn("start: unknown program", "program", name)
			continue
		}
		for _, c := range s.childrenOf(name) {
			if c.Status == Inactive {
				s.startChild(c, p, restart)
			}
		}
	}
}

// handleStop sends stopsignal to every live child of each named program,
// resets retries, resets the timer, and transitions to Stopping — unless
// already Reloading, which is left alone (spec.md §4.4).
func (s *Supervisor) handleStop(names []string) {
	for _, name := range names {
		p, ok := s.programs[name]
		if !ok {
			s.log.Warn("stop: unknown program", "program", name)
			continue
		}
		for _, c := range s.childrenOf(name) {
			if !c.Alive() {
				continue
			}
			sig, err := program.ParseSignal(p.Config.StopSignal)
			if err != nil {
				s.log.Error("stop: bad stopsignal, defaulting to SIGTERM", "program", name, "error", err)
				sig = syscall.SIGTERM
			}
			if err := procexec.Signal(c.Cmd, sig); err != nil {
				s.log.Error("stop: signal failed", "child", c.ID, "error", err)
			}
			c.Retries = p.Config.StartRetries
			c.ResetTimer()
			metrics.IncStop(name)
			if c.Status != Reloading {
				s.setStatus(c, Stopping)
			}
		}
	}
}

// handleRestart validates names, stops them immediately, then schedules a
// delayed Start per name after stoptime seconds via a transient worker
// that posts back onto the external instruction channel (spec.md §4.4).
func (s *Supervisor) handleRestart(names []string) {
	var valid []string
	for _, name := range names {
		if _, ok := s.programs[name]; !ok {
			s.log.Warn("restart: unknown program", "program", name)
			continue
		}
		valid = append(valid, name)
	}
	if len(valid) == 0 {
		return
	}
	s.handleStop(valid)
	for _, name := range valid {
		p := s.programs[name]
		delay := p.Config.StopDuration()
		out := s.delayedStart
		go func(name string) {
			if delay > 0 {
				time.Sleep(delay)
			}
			out <- Start([]string{name})
		}(name)
	}
}

// handleExit stops every known program, then drives the monitor tick
// (servicing only Reset/Kill internally) until every child handle clears,
// then terminates the process (spec.md §4.4).
func (s *Supervisor) handleExit() {
	var names []string
	for name, p := range s.programs {
		if p.Active {
			names = append(names, name)
		}
	}
	s.handleStop(names)

	for s.anyAlive() {
		instrs, err := s.Tick()
		if err != nil {
			s.log.Error("exit: fatal poll error, terminating anyway", "error", err)
			break
		}
		for _, i := range instrs {
			switch i.Kind {
			case KResetProcessus, KKillProcessus:
				s.Dispatch(i)
			}
		}
		time.Sleep(300 * time.Millisecond)
	}
	s.log.Info("exit: all children quiesced, terminating")
	os.Exit(0)
}

func (s *Supervisor) anyAlive() bool {
	for _, id := range s.order {
		if c := s.children[id]; c != nil && c.Alive() {
			return true
		}
	}
	return false
}

// startChild spawns c under p's template. If restart and retries are
// exhausted, it transitions to Inactive instead of spawning (spec.md
// §4.4 "StartProcessus/RetryStartProcessus").
func (s *Supervisor) startChild(c *Child, p *program.Program, restart bool) {
	if restart && c.Retries == 0 {
		s.log.Info("no attempt left", "child", c.ID, "program", p.Name)
		s.setStatus(c, Inactive)
		return
	}
	if !restart {
		// Every non-retry spawn (CLI start, autostart, Active-exit
		// restart) gets the full startretries budget (spec.md §4.1
		// "respawn with full startretries budget"), not whatever was
		// left over from a prior Starting-exit retry sequence.
		c.Retries = p.Config.StartRetries
	}
	cmd, err := procexec.Spawn(p.Template)
	if err != nil {
		s.log.Error("spawn failed", "child", c.ID, "program", p.Name, "error", err)
		c.Cmd = nil
		c.Retries = p.Config.StartRetries
		s.setStatus(c, Inactive)
		return
	}
	c.Cmd = cmd
	c.ResetTimer()
	if restart {
		c.Retries--
		metrics.IncRetry(p.Name)
	} else {
		metrics.IncStart(p.Name)
	}
	s.setStatus(c, Starting)
}

func (s *Supervisor) handleStartProcessus(id int64, restart bool) {
	c := s.children[id]
	if c == nil {
		return
	}
	p := s.programs[c.ProgramName]
	if p == nil {
		s.log.Warn("start: program vanished under child", "child", id)
		return
	}
	s.startChild(c, p, restart)
}

func (s *Supervisor) handleResetProcessus(id int64) {
	c := s.children[id]
	if c == nil {
		return
	}
	p := s.programs[c.ProgramName]
	c.Cmd = nil
	if p != nil {
		c.Retries = p.Config.StartRetries
	}
	s.setStatus(c, Inactive)
}

func (s *Supervisor) handleSetStatus(id int64, status Status) {
	c := s.children[id]
	if c == nil {
		return
	}
	s.setStatus(c, status)
}

func (s *Supervisor) handleKillProcessus(id int64) {
	c := s.children[id]
	if c == nil {
		return
	}
	if err := procexec.Kill(c.Cmd); err != nil {
		s.log.Error("force-kill failed", "child", id, "error", err)
	}
	if err := procexec.Reap(c.Cmd); err != nil {
		s.log.Error("force-kill: reap failed, zombie may remain", "child", id, "error", err)
	}
	metrics.IncKill(c.ProgramName)
	c.Cmd = nil
	if c.Status != Reloading {
		s.setStatus(c, Inactive)
	}
}

func (s *Supervisor) handleRemoveProcessus(id int64) {
	c := s.children[id]
	if c == nil {
		return
	}
	programName := c.ProgramName
	s.removeChild(id)
	s.checkOrphanProgram(programName)
}
