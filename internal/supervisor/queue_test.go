package supervisor

import "testing"

func TestQueueFIFOOrder(t *testing.T) {
	var q Queue
	q.PushBack(Start([]string{"a"}))
	q.PushBack(Start([]string{"b"}))
	q.PushBack(Start([]string{"c"}))

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}
	i, ok := q.Pop()
	if !ok || i.Names[0] != "a" {
		t.Fatalf("expected a first, got %#v", i)
	}
	i, ok = q.Pop()
	if !ok || i.Names[0] != "b" {
		t.Fatalf("expected b second, got %#v", i)
	}
}

func TestQueuePushFrontPreempts(t *testing.T) {
	var q Queue
	q.PushBack(Start([]string{"a"}))
	q.PushFront(Reload())

	i, ok := q.Pop()
	if !ok || i.Kind != KReload {
		t.Fatalf("expected reload to preempt, got %#v", i)
	}
	i, ok = q.Pop()
	if !ok || i.Names[0] != "a" {
		t.Fatalf("expected a after reload, got %#v", i)
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected queue empty")
	}
}

func TestQueuePopEmpty(t *testing.T) {
	var q Queue
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected ok=false on empty queue")
	}
}
