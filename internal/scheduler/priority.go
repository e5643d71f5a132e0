package scheduler

import (
	"container/heap"
	"sync"
)

// PriorityQueue orders items by priority, highest first, and by push order
// within a priority. Running work is never preempted.
// PriorityQueue is safe for concurrent use.
type PriorityQueue struct {
	mu    sync.Mutex
	items itemHeap
	seq   uint64
}

// NewPriorityQueue creates an empty priority backlog.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{}
}

// Push adds an item to the backlog.
func (pq *PriorityQueue) Push(item Item) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	pq.seq++
	item.Seq = pq.seq
	heap.Push(&pq.items, item)
}

// Pop removes the highest-priority, oldest item.
func (pq *PriorityQueue) Pop() (Item, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.items.Len() == 0 {
		return Item{}, false
	}
	return heap.Pop(&pq.items).(Item), true
}

// Remove drops a queued item by ID.
func (pq *PriorityQueue) Remove(id string) bool {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	for i := range pq.items {
		if pq.items[i].ID == id {
			heap.Remove(&pq.items, i)
			return true
		}
	}
	return false
}

// Len returns the number of queued items.
func (pq *PriorityQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.items.Len()
}

type itemHeap []Item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].Seq < h[j].Seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(Item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = Item{}
	*h = old[:n-1]
	return item
}
