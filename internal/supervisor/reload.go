package supervisor

import (
	"strings"
	"syscall"

	"github.com/arashiyama/supervisr/internal/metrics"
	"github.com/arashiyama/supervisr/internal/procexec"
	"github.com/arashiyama/supervisr/internal/program"
)

// handleReload re-reads configuration and reconciles the program table
// against it (spec.md §4.5). Open question, decided in DESIGN.md: the new
// generation's program entry and child records are created immediately
// (matching concrete scenario 5, "new a children created ... and (if
// autostart) started"), rather than deferred until the old generation's
// alias fully drains — the orphan-promotion check in checkOrphanProgram
// is kept as the generic fallback the design notes permit, but in this
// implementation it rarely fires because the replacement already exists.
func (s *Supervisor) handleReload() {
	newCfgs, err := s.load()
	if err != nil {
		s.log.Error("reload: config load failed, keeping running state", "error", err)
		metrics.IncReload("error")
		return
	}

	oldNames := make(map[string]bool, len(s.programs))
	for name, p := range s.programs {
		if p.Active {
			oldNames[name] = true
		}
	}

	// 1. Removed programs: stop and mark Reloading; left in the table
	// under their canonical name until drained (checkOrphanProgram).
	for name := range oldNames {
		if _, stillWanted := newCfgs[name]; stillWanted {
			continue
		}
		s.markReloading(s.programs[name])
	}

	// 2. Walk the new config map: unchanged / changed / new.
	for name, newCfg := range newCfgs {
		old, existed := s.programs[name]
		switch {
		case existed && old.Config.Equal(newCfg):
			// Unchanged: skip entirely (no timer/retry/status change).
		case existed:
			s.reloadChanged(name, old, newCfg)
		default:
			s.reloadNew(name, newCfg)
		}
	}

	s.log.Info("reload complete")
	metrics.IncReload("ok")
}

// markReloading sends stopsignal to every live child of p and transitions
// all of its children to Reloading (spec.md §4.1, §4.5 step 1).
func (s *Supervisor) markReloading(p *program.Program) {
	for _, c := range s.childrenOf(p.Name) {
		if c.Alive() {
			sig, err := program.ParseSignal(p.Config.StopSignal)
			if err != nil {
				sig = syscall.SIGTERM
			}
			if err := procexec.Signal(c.Cmd, sig); err != nil {
				s.log.Error("reload: signal failed", "child", c.ID, "error", err)
			}
			c.ResetTimer()
		}
		s.setStatus(c, Reloading)
	}
}

// reloadChanged implements the "Changed" branch of §4.5 step 2: the old
// generation is aliased and drained; the new generation is installed
// under the canonical name immediately.
func (s *Supervisor) reloadChanged(name string, old *program.Program, newCfg program.Config) {
	alias := program.InactivePrefix + name
	s.markReloading(old)
	for _, c := range s.childrenOf(name) {
		c.ProgramName = alias
	}
	old.Active = false
	old.Name = alias
	delete(s.programs, name)
	s.programs[alias] = old

	s.reloadNew(name, newCfg)
}

// reloadNew installs a brand-new program entry with numprocs fresh
// Inactive child records, starting them immediately if autostart is set
// (spec.md §4.5 step 2 "New").
func (s *Supervisor) reloadNew(name string, cfg program.Config) {
	p, err := program.New(name, cfg)
	if err != nil {
		s.log.Error("reload: build program failed, skipping", "program", name, "error", err)
		return
	}
	s.installProgram(p)
	if p.Config.AutoStart {
		s.handleStart([]string{name}, false)
	}
}

// checkOrphanProgram runs after RemoveProcessus: if name's program now has
// zero child records, the entry is deleted. If that entry was an
// inactive-alias twin with no canonical replacement present, it is
// promoted back to canonical (spec.md §4.5 step 4).
func (s *Supervisor) checkOrphanProgram(name string) {
	if len(s.childrenOf(name)) > 0 {
		return
	}
	p, ok := s.programs[name]
	if !ok {
		return
	}
	delete(s.programs, name)
	if p.Active {
		return
	}

	base := strings.TrimPrefix(name, program.InactivePrefix)
	if _, exists := s.programs[base]; exists {
		return
	}

	p.Name = base
	p.Active = true
	s.programs[base] = p
	for i := 0; i < p.Config.NumProcs; i++ {
		s.newChild(base)
	}
	if p.Config.AutoStart {
		s.handleStart([]string{base}, false)
	}
}
