package scheduler

import "sync"

// FIFO runs items in push order and ignores priority.
// FIFO is safe for concurrent use.
type FIFO struct {
	mu    sync.Mutex
	items []Item
	seq   uint64
}

// NewFIFO creates an empty first-in first-out backlog.
func NewFIFO() *FIFO {
	return &FIFO{}
}

// Push appends an item.
func (f *FIFO) Push(item Item) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	item.Seq = f.seq
	f.items = append(f.items, item)
}

// Pop removes the oldest item.
func (f *FIFO) Pop() (Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.items) == 0 {
		return Item{}, false
	}
	item := f.items[0]
	f.items[0] = Item{}
	f.items = f.items[1:]
	return item, true
}

// Remove drops a queued item by ID.
func (f *FIFO) Remove(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of queued items.
func (f *FIFO) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
