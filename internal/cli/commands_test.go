package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danpasecinic/harvester/internal/types"
)

func runCLI(t *testing.T, handler http.HandlerFunc, args ...string) (string, error) {
	t.Helper()

	server := httptest.NewServer(handler)
	defer server.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--server", server.URL}, args...))
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestStartCommand(t *testing.T) {
	var got map[string]any
	out, err := runCLI(
		t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"sessionId": "sess-42"})
		},
		"start", "tenders", "--set", "pages=5", "--set", "item_marker=row", "-p", "urgent",
	)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if !strings.Contains(out, "sess-42") {
		t.Errorf("output missing session ID: %s", out)
	}

	config, _ := got["config"].(map[string]any)
	if config["pages"] != float64(5) || config["item_marker"] != "row" {
		t.Errorf("unexpected config sent: %v", got["config"])
	}
	if got["priority"] != "urgent" || got["requesterId"] != "cli" {
		t.Errorf("unexpected request: %v", got)
	}
}

func TestStartCommand_InvalidConfig(t *testing.T) {
	_, err := runCLI(
		t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		},
		"start-all", "--set", "novalue",
	)
	if err == nil || !strings.Contains(err.Error(), "KEY=VALUE") {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	out, err := runCLI(
		t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/sessions/sess-1" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			_ = json.NewEncoder(w).Encode(
				types.SessionView{
					Session: types.Session{
						SessionID:    "sess-1",
						JobType:      "tenders",
						Status:       types.TaskRetrying,
						Priority:     types.PriorityHigh,
						ItemsFound:   12,
						CreatedAt:    start,
						StartTime:    &start,
						ErrorMessage: "upstream timeout",
					},
					Progress:   40,
					RetryCount: 1,
					MaxRetries: 3,
				},
			)
		},
		"status", "sess-1",
	)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}

	for _, want := range []string{"sess-1", "retrying", "high", "40%", "1/3", "upstream timeout"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLsCommand(t *testing.T) {
	tests := []struct {
		name      string
		summaries []types.SessionSummary
		want      []string
	}{
		{
			name: "lists sessions",
			summaries: []types.SessionSummary{
				{SessionID: "s1", JobType: "tenders", RequesterID: "u1", Status: types.TaskCompleted, CreatedAt: time.Now()},
				{SessionID: "s2", JobType: "awards", Status: types.TaskRunning, CreatedAt: time.Now()},
			},
			want: []string{"ID", "s1", "tenders", "completed", "s2", "awards", "running"},
		},
		{
			name:      "empty",
			summaries: []types.SessionSummary{},
			want:      []string{"No sessions found."},
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				out, err := runCLI(
					t, func(w http.ResponseWriter, r *http.Request) {
						_ = json.NewEncoder(w).Encode(tt.summaries)
					},
					"ls",
				)
				if err != nil {
					t.Fatalf("ls failed: %v", err)
				}
				for _, want := range tt.want {
					if !strings.Contains(out, want) {
						t.Errorf("output missing %q:\n%s", want, out)
					}
				}
			},
		)
	}
}

func TestCancelCommand_Conflict(t *testing.T) {
	_, err := runCLI(
		t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "session not found or already finished"})
		},
		"cancel", "sess-1",
	)
	if err == nil || !strings.Contains(err.Error(), "already finished") {
		t.Errorf("expected conflict error, got %v", err)
	}
}

func TestJobsCommand(t *testing.T) {
	out, err := runCLI(
		t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(
				[]types.JobInfo{
					{Name: "tenders", Tier: "basic", Available: true, Description: "Public tenders"},
					{Name: "awards", Available: false},
				},
			)
		},
		"jobs",
	)
	if err != nil {
		t.Fatalf("jobs failed: %v", err)
	}
	for _, want := range []string{"tenders", "basic", "true", "awards", "false"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHealthCommand(t *testing.T) {
	out, err := runCLI(
		t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(
				types.HealthStatus{
					Status: types.VerdictUnhealthy,
					Checks: map[string]bool{"failure_rate": false, "active_tasks": true},
					Issues: []string{"High failure rate: 80.0%"},
				},
			)
		},
		"health",
	)
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	for _, want := range []string{"unhealthy", "failure_rate", "FAIL", "High failure rate"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPruneCommand(t *testing.T) {
	out, err := runCLI(
		t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/v1/prune" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			_ = json.NewEncoder(w).Encode(types.CleanupResult{TasksRemoved: 3, SessionsRemoved: 2, Archived: 2})
		},
		"prune",
	)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if !strings.Contains(out, "Tasks:    3") || !strings.Contains(out, "Sessions: 2") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
