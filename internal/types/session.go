package types

import "time"

// Session is a business-level wrapper around exactly one task.
// Status mirrors the task and is refreshed when the session is read.
type Session struct {
	SessionID      string         `json:"sessionId"`
	TaskID         string         `json:"taskId"`
	JobType        string         `json:"jobType"`
	RequesterID    string         `json:"requesterId"`
	Config         map[string]any `json:"config,omitempty"`
	Priority       Priority       `json:"priority"`
	Status         TaskStatus     `json:"status"`
	ItemsFound     int            `json:"itemsFound"`
	ItemsProcessed int            `json:"itemsProcessed"`
	PagesProcessed int            `json:"pagesProcessed"`
	CreatedAt      time.Time      `json:"createdAt"`
	StartTime      *time.Time     `json:"startTime,omitempty"`
	EndTime        *time.Time     `json:"endTime,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
}

// Duration returns the elapsed run time, measured to now when the session has
// not ended. Zero if the session never started.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.StartTime == nil {
		return 0
	}
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return end.Sub(*s.StartTime)
}

// SuccessRate returns processed/found, or 0 when nothing was found.
func (s *Session) SuccessRate() float64 {
	if s.ItemsFound == 0 {
		return 0
	}
	return float64(s.ItemsProcessed) / float64(s.ItemsFound)
}

// SessionView merges a session with the live state of its task.
type SessionView struct {
	Session
	Progress      float64       `json:"progress"`
	Duration      time.Duration `json:"duration"`
	SuccessRate   float64       `json:"successRate"`
	TaskStatus    TaskStatus    `json:"taskStatus,omitempty"`
	RetryCount    int           `json:"retryCount"`
	MaxRetries    int           `json:"maxRetries"`
	NextRetry     *time.Time    `json:"nextRetry,omitempty"`
	ExecutionTime time.Duration `json:"executionTime,omitempty"`
}

// SessionSummary is the list form of a session.
type SessionSummary struct {
	SessionID      string     `json:"sessionId"`
	JobType        string     `json:"jobType"`
	RequesterID    string     `json:"requesterId"`
	Status         TaskStatus `json:"status"`
	ItemsFound     int        `json:"itemsFound"`
	ItemsProcessed int        `json:"itemsProcessed"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartTime      *time.Time `json:"startTime,omitempty"`
	EndTime        *time.Time `json:"endTime,omitempty"`
}

// SessionFilter selects sessions for listing. Empty fields match everything.
type SessionFilter struct {
	RequesterID string
	JobType     string
	Status      TaskStatus
}

// Matches reports whether s passes the filter.
func (f SessionFilter) Matches(s *Session) bool {
	if f.RequesterID != "" && s.RequesterID != f.RequesterID {
		return false
	}
	if f.JobType != "" && s.JobType != f.JobType {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

// ArchivedSession is a session snapshot kept after eviction from memory.
type ArchivedSession struct {
	Session
	ArchivedAt time.Time `json:"archivedAt"`
}
