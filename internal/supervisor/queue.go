package supervisor

// Queue is the ordered FIFO of pending instructions (spec.md §4.3). It is
// touched only by the supervision loop goroutine, so unlike most shared
// collections in this codebase it needs no internal locking — the
// single-writer discipline is enforced by construction (only loop.go
// holds a *Queue).
type Queue struct {
	items []Instruction
}

// PushBack appends an instruction to the end of the queue: the normal
// entry point for both CLI-drained and monitor-emitted instructions.
func (q *Queue) PushBack(i Instruction) {
	q.items = append(q.items, i)
}

// PushFront prepends an instruction, used exclusively to let a pending
// reload preempt unstarted work at the top of each loop iteration
// (spec.md §4.3 step 1, §5 "Ordering").
func (q *Queue) PushFront(i Instruction) {
	q.items = append(q.items, Instruction{})
	copy(q.items[1:], q.items)
	q.items[0] = i
}

// Pop removes and returns the front instruction, if any.
func (q *Queue) Pop() (Instruction, bool) {
	if len(q.items) == 0 {
		return Instruction{}, false
	}
	i := q.items[0]
	q.items = q.items[1:]
	return i, true
}

// Len reports the number of pending instructions.
func (q *Queue) Len() int { return len(q.items) }
