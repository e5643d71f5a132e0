package types

import "time"

// Metrics is a snapshot of the task counters. Counters are process-wide and
// only reset on restart; the gauges reflect the current task map.
type Metrics struct {
	TasksCreated   int64 `json:"tasksCreated"`
	TasksCompleted int64 `json:"tasksCompleted"`
	TasksFailed    int64 `json:"tasksFailed"`
	TasksRetried   int64 `json:"tasksRetried"`
	TasksCancelled int64 `json:"tasksCancelled"`

	ActiveTasks   int `json:"activeTasks"`
	PendingTasks  int `json:"pendingTasks"`
	RetryingTasks int `json:"retryingTasks"`

	// AverageExecutionTime is the mean wall-clock time of successful attempts.
	AverageExecutionTime time.Duration `json:"averageExecutionTime"`
}

// Finished returns the number of tasks that reached COMPLETED or FAILED.
func (m Metrics) Finished() int64 {
	return m.TasksCompleted + m.TasksFailed
}

// SuccessRate returns completed / (completed + failed), or 0 with no samples.
func (m Metrics) SuccessRate() float64 {
	total := m.Finished()
	if total == 0 {
		return 0
	}
	return float64(m.TasksCompleted) / float64(total)
}

// FailureRate returns 1 - SuccessRate, or 0 with no samples.
func (m Metrics) FailureRate() float64 {
	if m.Finished() == 0 {
		return 0
	}
	return 1 - m.SuccessRate()
}

// SessionMetrics aggregates the session map.
type SessionMetrics struct {
	TotalSessions       int                `json:"totalSessions"`
	ByStatus            map[TaskStatus]int `json:"byStatus"`
	ByJobType           map[string]int     `json:"byJobType"`
	TotalItemsFound     int                `json:"totalItemsFound"`
	TotalItemsProcessed int                `json:"totalItemsProcessed"`
	// OverallSuccessRate is items processed / items found.
	OverallSuccessRate float64 `json:"overallSuccessRate"`
}

// CompletionRate returns completed / (completed + failed) sessions.
func (m SessionMetrics) CompletionRate() float64 {
	done := m.ByStatus[TaskCompleted]
	total := done + m.ByStatus[TaskFailed]
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

// FinishedSessions returns the number of COMPLETED or FAILED sessions.
func (m SessionMetrics) FinishedSessions() int {
	return m.ByStatus[TaskCompleted] + m.ByStatus[TaskFailed]
}

// PoolStats describes the worker pool at a point in time.
type PoolStats struct {
	Workers int  `json:"workers"`
	Queued  int  `json:"queued"`
	Active  int  `json:"active"`
	Closed  bool `json:"closed"`
}

// JobInfo describes a registered job type.
type JobInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Tier        string `json:"tier,omitempty"`
	Available   bool   `json:"available"`
}

// MetricsReport merges task, session and pool metrics.
type MetricsReport struct {
	Tasks     Metrics        `json:"tasks"`
	Sessions  SessionMetrics `json:"sessions"`
	Pool      PoolStats      `json:"pool"`
	Jobs      []JobInfo      `json:"jobs"`
	Timestamp time.Time      `json:"timestamp"`
}
