package types

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskRetrying  TaskStatus = "retrying"
	TaskCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible from s.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Priority is an ordering hint for the pending backlog.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

var priorityNames = map[Priority]string{
	PriorityLow:    "low",
	PriorityMedium: "medium",
	PriorityHigh:   "high",
	PriorityUrgent: "urgent",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority parses a priority name. An empty string yields PriorityMedium.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityMedium, nil
	}
	for p, name := range priorityNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("invalid priority: %q", s)
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a priority name.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// JobResult is the structured payload a job body returns on success.
// Only the three counters are interpreted by the engine.
type JobResult struct {
	ItemsFound     int            `json:"items_found"`
	ItemsProcessed int            `json:"items_processed"`
	PagesProcessed int            `json:"pages_processed"`
	Data           map[string]any `json:"data,omitempty"`
}

// JobFunc is an opaque job body. It receives the merged job configuration and
// must honour ctx cancellation where it can.
type JobFunc func(ctx context.Context, config map[string]any) (*JobResult, error)

// Task is a point-in-time snapshot of a schedulable unit of work.
type Task struct {
	TaskID       string            `json:"taskId"`
	Name         string            `json:"name"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Config       map[string]any    `json:"config,omitempty"`
	Priority     Priority          `json:"priority"`
	Dependencies []string          `json:"dependencies,omitempty"`
	MaxRetries   int               `json:"maxRetries"`
	RetryDelay   time.Duration     `json:"retryDelay"`
	Timeout      time.Duration     `json:"timeout,omitempty"`
	Status       TaskStatus        `json:"status"`
	RetryCount   int               `json:"retryCount"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastAttempt  *time.Time        `json:"lastAttempt,omitempty"`
	NextRetry    *time.Time        `json:"nextRetry,omitempty"`
	FinishedAt   *time.Time        `json:"finishedAt,omitempty"`
	LastError    string            `json:"lastError,omitempty"`
	Progress     *Progress         `json:"progress,omitempty"`
	Result       *TaskResult       `json:"result,omitempty"`
}

// TaskResult records the outcome of the attempt that ended a task.
type TaskResult struct {
	TaskID        string            `json:"taskId"`
	Status        TaskStatus        `json:"status"`
	Value         *JobResult        `json:"value,omitempty"`
	Error         string            `json:"error,omitempty"`
	StartedAt     time.Time         `json:"startedAt"`
	FinishedAt    time.Time         `json:"finishedAt"`
	ExecutionTime time.Duration     `json:"executionTime"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
