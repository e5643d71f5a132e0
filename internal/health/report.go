package health

import "github.com/danpasecinic/harvester/internal/types"

// GetReport runs a health check and adds performance summaries and
// recommendations.
func (s *Service) GetReport() types.HealthReport {
	status := s.CheckHealth()
	m := status.Metrics
	sm := status.Sessions

	report := types.HealthReport{
		Health: status,
		TaskPerformance: types.TaskPerformance{
			TotalTasks:           m.TasksCreated,
			Completed:            m.TasksCompleted,
			Failed:               m.TasksFailed,
			Retried:              m.TasksRetried,
			Active:               m.ActiveTasks,
			Retrying:             m.RetryingTasks,
			SuccessRate:          m.SuccessRate(),
			FailureRate:          m.FailureRate(),
			AverageExecutionTime: m.AverageExecutionTime,
		},
		SessionPerformance: types.SessionPerformance{
			TotalSessions:       sm.TotalSessions,
			Completed:           sm.ByStatus[types.TaskCompleted],
			Failed:              sm.ByStatus[types.TaskFailed],
			CompletionRate:      sm.CompletionRate(),
			TotalItemsFound:     sm.TotalItemsFound,
			TotalItemsProcessed: sm.TotalItemsProcessed,
			ItemSuccessRate:     sm.OverallSuccessRate,
		},
	}
	report.Recommendations = recommend(report.TaskPerformance, report.SessionPerformance)
	return report
}

func recommend(tp types.TaskPerformance, sp types.SessionPerformance) []string {
	recs := []string{}

	if tp.Completed+tp.Failed > 0 && tp.FailureRate > 0.3 {
		recs = append(recs, "High failure rate detected. Review error handling and job configurations.")
	}
	if tp.AverageExecutionTime.Seconds() > 180 {
		recs = append(recs, "Long average execution time. Consider optimizing job execution or splitting work into smaller pages.")
	}
	if tp.Active > 8 {
		recs = append(recs, "High number of active tasks. Consider increasing the worker pool size.")
	}
	if tp.Retrying > 3 {
		recs = append(recs, "Many tasks are waiting to retry. Check the availability of upstream sources.")
	}
	if sp.TotalItemsFound > 0 && sp.ItemSuccessRate < 0.8 {
		recs = append(recs, "Many found items were not processed. Review item parsing and validation.")
	}
	if len(recs) == 0 {
		recs = append(recs, "System is operating normally.")
	}
	return recs
}
