package scheduler

import (
	"fmt"

	"github.com/danpasecinic/harvester/internal/types"
)

// Item is a unit of work waiting in a backlog.
type Item struct {
	ID       string
	Priority types.Priority
	// Seq is assigned by the backlog on Push and breaks priority ties.
	Seq uint64
}

// Scheduler orders the backlog of work waiting for a free worker.
// Implementations must be safe for concurrent use.
type Scheduler interface {
	// Push adds an item to the backlog.
	Push(item Item)

	// Pop removes and returns the next item to run.
	// Returns false if the backlog is empty.
	Pop() (Item, bool)

	// Remove drops the item with the given ID. Returns false if it is not queued.
	Remove(id string) bool

	// Len returns the number of queued items.
	Len() int
}

// New returns the scheduler registered under name ("priority" or "fifo").
func New(name string) (Scheduler, error) {
	switch name {
	case "", "priority":
		return NewPriorityQueue(), nil
	case "fifo":
		return NewFIFO(), nil
	default:
		return nil, fmt.Errorf("unknown scheduler: %s (valid options: priority, fifo)", name)
	}
}
