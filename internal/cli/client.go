package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/danpasecinic/harvester/internal/types"
)

// Client calls the harvester REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) StartJob(
	jobType, requesterID string, config map[string]any, priority string,
) (string, error) {
	payload := map[string]any{
		"jobType":     jobType,
		"requesterId": requesterID,
		"config":      config,
		"priority":    priority,
	}

	var resp struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.post("/api/v1/sessions", payload, &resp); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

func (c *Client) StartAll(requesterID string, config map[string]any, priority string) ([]string, error) {
	payload := map[string]any{
		"requesterId": requesterID,
		"config":      config,
		"priority":    priority,
	}

	var resp struct {
		SessionIDs []string `json:"sessionIds"`
	}
	if err := c.post("/api/v1/jobs/start-all", payload, &resp); err != nil {
		return nil, err
	}
	return resp.SessionIDs, nil
}

func (c *Client) GetSession(sessionID string) (*types.SessionView, error) {
	var view types.SessionView
	if err := c.get("/api/v1/sessions/"+url.PathEscape(sessionID), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) ListSessions(filter types.SessionFilter) ([]types.SessionSummary, error) {
	q := url.Values{}
	if filter.RequesterID != "" {
		q.Set("requester", filter.RequesterID)
	}
	if filter.JobType != "" {
		q.Set("job_type", filter.JobType)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}

	var summaries []types.SessionSummary
	if err := c.get(withQuery("/api/v1/sessions", q), &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (c *Client) CancelSession(sessionID string) (*types.SessionView, error) {
	var view types.SessionView
	if err := c.post("/api/v1/sessions/"+url.PathEscape(sessionID)+"/cancel", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) ListJobs() ([]types.JobInfo, error) {
	var jobs []types.JobInfo
	if err := c.get("/api/v1/jobs", &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) ReloadJobs() ([]types.JobInfo, error) {
	var jobs []types.JobInfo
	if err := c.post("/api/v1/jobs/reload", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Health returns the health summary. An unhealthy verdict is served with 503
// and still decoded.
func (c *Client) Health() (*types.HealthStatus, error) {
	var status types.HealthStatus
	err := c.do(http.MethodGet, "/api/v1/health", nil, &status, http.StatusOK, http.StatusServiceUnavailable)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) HealthReport() (*types.HealthReport, error) {
	var report types.HealthReport
	if err := c.get("/api/v1/health/report", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) Metrics() (*types.MetricsReport, error) {
	var report types.MetricsReport
	if err := c.get("/api/v1/metrics", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) History(requesterID, jobType string, limit int) ([]types.ArchivedSession, error) {
	q := url.Values{}
	if requesterID != "" {
		q.Set("requester", requesterID)
	}
	if jobType != "" {
		q.Set("job_type", jobType)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var history []types.ArchivedSession
	if err := c.get(withQuery("/api/v1/history", q), &history); err != nil {
		return nil, err
	}
	return history, nil
}

// Prune removes finished tasks and sessions past retention, or all of them.
func (c *Client) Prune(all bool) (*types.CleanupResult, error) {
	path := "/api/v1/prune"
	if all {
		path += "?all=true"
	}

	var result types.CleanupResult
	if err := c.post(path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(path string, out any) error {
	return c.do(http.MethodGet, path, nil, out, http.StatusOK)
}

func (c *Client) post(path string, payload, out any) error {
	return c.do(http.MethodPost, path, payload, out, http.StatusOK, http.StatusCreated)
}

func (c *Client) do(method, path string, payload, out any, accept ...int) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !acceptable(resp.StatusCode, accept) {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, apiError(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func acceptable(code int, accept []int) bool {
	for _, a := range accept {
		if code == a {
			return true
		}
	}
	return false
}

// apiError extracts the "error" field of an API error body, falling back to
// the raw body.
func apiError(body []byte) string {
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	return string(bytes.TrimSpace(body))
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
