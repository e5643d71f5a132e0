package scheduler

import (
	"fmt"
	"sync"
	"testing"

	"github.com/danpasecinic/harvester/internal/types"
)

func TestPriorityQueue_Order(t *testing.T) {
	pq := NewPriorityQueue()

	pq.Push(Item{ID: "low-1", Priority: types.PriorityLow})
	pq.Push(Item{ID: "high-1", Priority: types.PriorityHigh})
	pq.Push(Item{ID: "medium-1", Priority: types.PriorityMedium})
	pq.Push(Item{ID: "high-2", Priority: types.PriorityHigh})
	pq.Push(Item{ID: "urgent-1", Priority: types.PriorityUrgent})

	want := []string{"urgent-1", "high-1", "high-2", "medium-1", "low-1"}
	for i, id := range want {
		item, ok := pq.Pop()
		if !ok {
			t.Fatalf("Pop() %d returned empty backlog", i)
		}
		if item.ID != id {
			t.Errorf("Pop() %d = %s, want %s", i, item.ID, id)
		}
	}

	if _, ok := pq.Pop(); ok {
		t.Error("expected empty backlog")
	}
}

func TestFIFO_Order(t *testing.T) {
	f := NewFIFO()

	f.Push(Item{ID: "a", Priority: types.PriorityLow})
	f.Push(Item{ID: "b", Priority: types.PriorityUrgent})
	f.Push(Item{ID: "c", Priority: types.PriorityMedium})

	for _, id := range []string{"a", "b", "c"} {
		item, ok := f.Pop()
		if !ok || item.ID != id {
			t.Errorf("Pop() = %s (%v), want %s", item.ID, ok, id)
		}
	}
}

func TestScheduler_Remove(t *testing.T) {
	for _, name := range []string{"priority", "fifo"} {
		t.Run(
			name, func(t *testing.T) {
				s, err := New(name)
				if err != nil {
					t.Fatalf("New(%q) failed: %v", name, err)
				}

				s.Push(Item{ID: "a", Priority: types.PriorityMedium})
				s.Push(Item{ID: "b", Priority: types.PriorityMedium})
				s.Push(Item{ID: "c", Priority: types.PriorityMedium})

				if !s.Remove("b") {
					t.Error("expected Remove(b) to succeed")
				}
				if s.Remove("b") {
					t.Error("expected second Remove(b) to fail")
				}
				if s.Len() != 2 {
					t.Errorf("Len() = %d, want 2", s.Len())
				}

				first, _ := s.Pop()
				second, _ := s.Pop()
				if first.ID != "a" || second.ID != "c" {
					t.Errorf("unexpected order after remove: %s, %s", first.ID, second.ID)
				}
			},
		)
	}
}

func TestNew_Unknown(t *testing.T) {
	if _, err := New("lottery"); err == nil {
		t.Error("expected error for unknown scheduler")
	}
}

func TestPriorityQueue_Concurrent(t *testing.T) {
	pq := NewPriorityQueue()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			pq.Push(Item{ID: fmt.Sprintf("item-%d", n), Priority: types.Priority(n%4 + 1)})
		}(i)
	}
	wg.Wait()

	if pq.Len() != 50 {
		t.Fatalf("Len() = %d, want 50", pq.Len())
	}

	last := types.PriorityUrgent + 1
	for pq.Len() > 0 {
		item, _ := pq.Pop()
		if item.Priority > last {
			t.Fatalf("priority increased from %v to %v", last, item.Priority)
		}
		last = item.Priority
	}
}
