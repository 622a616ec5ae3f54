package supervisor

import (
	"log"
	"time"
)

// tickInterval is the supervisor's resolution for timer expiry and
// child-exit detection (spec.md §4.3).
const tickInterval = 300 * time.Millisecond

// Run drives the supervision loop forever (spec.md §4.3). It never
// returns under normal operation: the Exit instruction's handler calls
// os.Exit directly. A fatal monitor error (poll failure, invariant
// violation) is logged and terminates the process, matching spec.md §7's
// "fatal" recovery policy for those error kinds.
func (s *Supervisor) Run() {
	for {
		if s.reload.CompareAndSwap(true, false) {
			s.queue.PushFront(Reload())
		}

		select {
		case i := <-s.ext:
			s.queue.PushBack(i)
		default:
		}

		for {
			i, ok := s.queue.Pop()
			if !ok {
				break
			}
			s.Dispatch(i)
		}

		emitted, err := s.Tick()
		if err != nil {
			log.Fatalf("supervisor: fatal monitor error: %v", err)
		}
		for _, i := range emitted {
			s.queue.PushBack(i)
		}

		s.PublishSnapshot()
		time.Sleep(tickInterval)
	}
}
