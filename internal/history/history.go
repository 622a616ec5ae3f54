// Package history is an append-only audit trail of child status
// transitions (SPEC_FULL.md DOMAIN STACK item 4). It is fed by the
// supervisor's command handlers and never read back for reconciliation —
// reload and monitor decisions depend only on in-memory state.
package history

import (
	"context"
	"time"
)

// Record describes one child status transition.
type Record struct {
	ChildID     int64     `json:"child_id"`
	ProgramName string    `json:"program_name"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	PID         int       `json:"pid"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Sink is a destination for history records. Implementations must be safe
// for concurrent use, though in practice only the supervision loop calls
// Send.
type Sink interface {
	Send(ctx context.Context, r Record) error
	Close() error
}

// NopSink discards every record; the default when no history backend is
// configured.
type NopSink struct{}

func (NopSink) Send(context.Context, Record) error { return nil }
func (NopSink) Close() error                        { return nil }
