package supervisor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/arashiyama/supervisr/internal/history"
	"github.com/arashiyama/supervisr/internal/metrics"
	"github.com/arashiyama/supervisr/internal/program"
)

// ConfigLoader re-reads and parses the configuration file, producing a
// fresh name→Config map for §4.5's reload algorithm. It is supplied by
// cmd/supervisrd so this package stays ignorant of the config file format.
type ConfigLoader func() (map[string]program.Config, error)

// Supervisor owns every piece of mutable state the supervision loop
// touches: the child table, the program table, and the instruction
// queue (spec.md §3, §5). Every method on Supervisor must be called only
// from the supervision loop goroutine — it is not safe for concurrent use
// from any other goroutine except via the external instruction channel.
type Supervisor struct {
	children map[int64]*Child
	order    []int64
	programs map[string]*program.Program

	queue Queue
	ext   <-chan Instruction

	ids    idGen
	reload *atomic.Bool
	load   ConfigLoader

	log     *slog.Logger
	history history.Sink

	// delayedStart lets a Restart's delayed-start worker post back onto
	// the same channel the interactive reader uses (spec.md §4.4, §5).
	delayedStart chan<- Instruction

	// snapshot is published by the loop goroutine after each drain so the
	// read-only HTTP status API (SPEC_FULL.md DOMAIN STACK item 2) can read
	// it lock-free from a different goroutine without touching the live
	// tables.
	snapshot atomic.Pointer[[]ChildView]

	// lastCounts is the per-(program,status) tally PublishSnapshot last
	// pushed to metrics.SetChildCount, so a status that drops to zero
	// children gets its gauge reset instead of left stuck at its last
	// nonzero value.
	lastCounts map[[2]string]int
}

// ChildView is an immutable, read-only projection of a Child record, safe
// to hand to any goroutine (spec.md §4.4 "Status").
type ChildView struct {
	ID          int64  `json:"id"`
	ProgramName string `json:"program_name"`
	Status      string `json:"status"`
	PID         int    `json:"pid"`
}

// PublishSnapshot recomputes the read-only view of the child table, and
// along with it the "current child count per program by status" gauge
// SPEC_FULL.md's DOMAIN STACK item 1 requires (metrics.SetChildCount).
// Call once per loop iteration; safe to call from no goroutine but the
// supervision loop.
func (s *Supervisor) PublishSnapshot() {
	views := make([]ChildView, 0, len(s.order))
	counts := make(map[[2]string]int)
	for _, id := range s.order {
		c := s.children[id]
		if c == nil {
			continue
		}
		views = append(views, ChildView{ID: c.ID, ProgramName: c.ProgramName, Status: c.Status.String(), PID: pidOf(c)})
		counts[[2]string{c.ProgramName, c.Status.String()}]++
	}
	s.snapshot.Store(&views)

	for key, n := range counts {
		metrics.SetChildCount(key[0], key[1], n)
	}
	for key, n := range s.lastCounts {
		if _, ok := counts[key]; !ok && n > 0 {
			metrics.SetChildCount(key[0], key[1], 0)
		}
	}
	s.lastCounts = counts
}

// Snapshot returns the most recently published read-only child view. Safe
// for concurrent use from any goroutine.
func (s *Supervisor) Snapshot() []ChildView {
	p := s.snapshot.Load()
	if p == nil {
		return nil
	}
	return *p
}

// New builds a Supervisor from an initial configuration, installing one
// program entry and numprocs child records per entry (spec.md §3).
// ext is the channel the interactive reader and delayed-start workers
// post to; reload is the atomic flag the hang-up signal handler sets.
func New(cfgs map[string]program.Config, ext <-chan Instruction, extOut chan<- Instruction, reload *atomic.Bool, load ConfigLoader, log *slog.Logger, hist history.Sink) (*Supervisor, error) {
	if hist == nil {
		hist = history.NopSink{}
	}
	s := &Supervisor{
		children:     make(map[int64]*Child),
		programs:     make(map[string]*program.Program),
		ext:          ext,
		reload:       reload,
		load:         load,
		log:          log,
		history:      hist,
		delayedStart: extOut,
	}
	for name, cfg := range cfgs {
		p, err := program.New(name, cfg)
		if err != nil {
			log.Error("build program failed, skipping", "program", name, "error", err)
			continue
		}
		s.installProgram(p)
	}
	s.PublishSnapshot()
	return s, nil
}

// installProgram registers p and creates its numprocs child records.
func (s *Supervisor) installProgram(p *program.Program) {
	s.programs[p.Name] = p
	for i := 0; i < p.Config.NumProcs; i++ {
		s.newChild(p.Name)
	}
}

func (s *Supervisor) newChild(programName string) *Child {
	id := s.ids.Next()
	c := &Child{
		ID:          id,
		ProgramName: programName,
		Status:      Inactive,
	}
	if p, ok := s.programs[programName]; ok {
		c.Retries = p.Config.StartRetries
	}
	s.children[id] = c
	s.order = append(s.order, id)
	return c
}

func (s *Supervisor) removeChild(id int64) {
	delete(s.children, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// childrenOf returns, in table order, the children belonging to program name.
func (s *Supervisor) childrenOf(name string) []*Child {
	var out []*Child
	for _, id := range s.order {
		if c := s.children[id]; c != nil && c.ProgramName == name {
			out = append(out, c)
		}
	}
	return out
}

func (s *Supervisor) setStatus(c *Child, to Status) {
	from := c.Status
	c.Status = to
	metrics.RecordTransition(c.ProgramName, from.String(), to.String())
	if err := s.history.Send(context.Background(), history.Record{
		ChildID:     c.ID,
		ProgramName: c.ProgramName,
		From:        from.String(),
		To:          to.String(),
		PID:         pidOf(c),
		OccurredAt:  time.Now(),
	}); err != nil {
		s.log.Warn("history sink send failed", "error", err)
	}
}

func pidOf(c *Child) int {
	if c.Cmd != nil && c.Cmd.Process != nil {
		return c.Cmd.Process.Pid
	}
	return 0
}
