package supervisor

import (
	"fmt"

	"github.com/arashiyama/supervisr/internal/procexec"
	"github.com/arashiyama/supervisr/internal/program"
)

// Tick runs one monitor pass over every child record, in table order,
// deriving instructions from observed exits and timer expiry (spec.md
// §4.2). It never mutates a Child directly — every effect is expressed as
// an emitted Instruction for the next drain, preserving the one-tick
// delay the single-writer discipline depends on (spec.md §5).
//
// A non-nil error is fatal: either a poll failure or a violation of
// invariant (1) ("status==Inactive iff child_handle absent").
func (s *Supervisor) Tick() ([]Instruction, error) {
	var out []Instruction
	for _, id := range s.order {
		c := s.children[id]
		if c == nil {
			continue
		}
		p := s.programs[c.ProgramName]

		if !c.Alive() {
			switch c.Status {
			case Reloading:
				out = append(out, RemoveProcessus(c.ID))
			case Inactive:
				// nothing to do
			default:
				return nil, fmt.Errorf("invariant violation: child %d status=%s has no handle", c.ID, c.Status)
			}
			continue
		}

		exited, code, signaled, err := procexec.TryWait(c.Cmd)
		if err != nil {
			return nil, fmt.Errorf("poll child %d (program %s): %w", c.ID, c.ProgramName, err)
		}

		if !exited {
			if i, ok := s.tickTimer(c, p); ok {
				out = append(out, i)
			}
			continue
		}

		out = append(out, s.tickExit(c, p, code, signaled))
	}
	return out, nil
}

// tickTimer handles the "still running" branch: timer-driven transitions
// for Starting/Stopping/Reloading. Active yields nothing (spec.md §4.2).
func (s *Supervisor) tickTimer(c *Child, p *program.Program) (Instruction, bool) {
	if p == nil {
		return Instruction{}, false
	}
	switch c.Status {
	case Starting:
		if c.ElapsedAtLeast(p.Config.StartDuration()) {
			return SetStatus(c.ID, Active), true
		}
	case Stopping, Reloading:
		if c.ElapsedAtLeast(p.Config.StopDuration()) {
			return KillProcessus(c.ID), true
		}
	}
	return Instruction{}, false
}

// tickExit handles the "exited with code" branch, deriving exactly one
// instruction from the child's status, the autorestart policy, and
// whether the exit was signal-caused (spec.md §4.1).
func (s *Supervisor) tickExit(c *Child, p *program.Program, code int, signaled bool) Instruction {
	if c.Status == Reloading {
		return RemoveProcessus(c.ID)
	}
	if c.Status == Stopping {
		return ResetProcessus(c.ID)
	}
	if signaled {
		return ResetProcessus(c.ID)
	}
	if p == nil {
		return ResetProcessus(c.ID)
	}

	switch c.Status {
	case Starting:
		if c.Retries > 0 && p.Config.ShouldRestart(code) {
			return RetryStartProcessus(c.ID)
		}
		return ResetProcessus(c.ID)
	case Active:
		if p.Config.ShouldRestart(code) {
			return StartProcessus(c.ID)
		}
		return ResetProcessus(c.ID)
	default:
		return ResetProcessus(c.ID)
	}
}
