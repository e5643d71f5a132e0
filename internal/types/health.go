package types

import "time"

// Verdict is the aggregate judgment of a health check
type Verdict string

const (
	// VerdictHealthy indicates no check failed and work has been observed
	VerdictHealthy Verdict = "healthy"
	// VerdictDegraded indicates one or two checks failed
	VerdictDegraded Verdict = "degraded"
	// VerdictUnhealthy indicates more than two checks failed
	VerdictUnhealthy Verdict = "unhealthy"
	// VerdictIdle indicates nothing has run yet and nothing failed
	VerdictIdle Verdict = "idle"
)

// HealthStatus is a snapshot produced by one health evaluation
type HealthStatus struct {
	Status    Verdict         `json:"status"`
	Checks    map[string]bool `json:"checks"`
	Issues    []string        `json:"issues"`
	Metrics   Metrics         `json:"metrics"`
	Sessions  SessionMetrics  `json:"sessions"`
	Timestamp time.Time       `json:"timestamp"`
}

// FailedChecks returns the number of checks that did not pass
func (h *HealthStatus) FailedChecks() int {
	failed := 0
	for _, ok := range h.Checks {
		if !ok {
			failed++
		}
	}
	return failed
}

// DeriveVerdict maps a failed-check count and activity to a verdict
func DeriveVerdict(failed int, tasksCreated int64, totalSessions int) Verdict {
	switch {
	case failed > 2:
		return VerdictUnhealthy
	case failed > 0:
		return VerdictDegraded
	case tasksCreated == 0 && totalSessions == 0:
		return VerdictIdle
	default:
		return VerdictHealthy
	}
}

// TaskPerformance summarizes task execution for reports
type TaskPerformance struct {
	TotalTasks           int64         `json:"totalTasks"`
	Completed            int64         `json:"completed"`
	Failed               int64         `json:"failed"`
	Retried              int64         `json:"retried"`
	Active               int           `json:"active"`
	Retrying             int           `json:"retrying"`
	SuccessRate          float64       `json:"successRate"`
	FailureRate          float64       `json:"failureRate"`
	AverageExecutionTime time.Duration `json:"averageExecutionTime"`
}

// SessionPerformance summarizes sessions for reports
type SessionPerformance struct {
	TotalSessions       int     `json:"totalSessions"`
	Completed           int     `json:"completed"`
	Failed              int     `json:"failed"`
	CompletionRate      float64 `json:"completionRate"`
	TotalItemsFound     int     `json:"totalItemsFound"`
	TotalItemsProcessed int     `json:"totalItemsProcessed"`
	ItemSuccessRate     float64 `json:"itemSuccessRate"`
}

// HealthReport is the detailed form of a health evaluation
type HealthReport struct {
	Health             HealthStatus       `json:"health"`
	TaskPerformance    TaskPerformance    `json:"taskPerformance"`
	SessionPerformance SessionPerformance `json:"sessionPerformance"`
	Recommendations    []string           `json:"recommendations"`
}

// ResourceUsage is a best-effort sample of process resources
type ResourceUsage struct {
	MemoryBytes int64 `json:"memoryBytes"`
	Goroutines  int   `json:"goroutines"`
}
