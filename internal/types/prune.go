package types

// CleanupResult represents the result of a cleanup (prune) pass.
type CleanupResult struct {
	TasksRemoved    int `json:"tasksRemoved"`
	SessionsRemoved int `json:"sessionsRemoved"`
	Archived        int `json:"archived"`
}
