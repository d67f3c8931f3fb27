package tasklenssdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal TaskLens analytics API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BasePath:    "/v1",
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// PriorityBreakdown counts records per priority.
type PriorityBreakdown struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// TaskStatusBreakdown counts tasks per status.
type TaskStatusBreakdown struct {
	NotStarted int `json:"not_started"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Blocked    int `json:"blocked"`
}

// IssueStatusBreakdown counts issues per status.
type IssueStatusBreakdown struct {
	PendingAssignment int `json:"pending_assignment"`
	Assigned          int `json:"assigned"`
	InProgress        int `json:"in_progress"`
	Resolved          int `json:"resolved"`
	Closed            int `json:"closed"`
}

// Dashboard mirrors the dashboard payload. Rates are whole percents.
type Dashboard struct {
	TotalTasks       int                  `json:"total_tasks"`
	CompletedTasks   int                  `json:"completed_tasks"`
	InProgressTasks  int                  `json:"in_progress_tasks"`
	OverdueTasks     int                  `json:"overdue_tasks"`
	CompletionRate   int                  `json:"completion_rate"`
	TasksByPriority  PriorityBreakdown    `json:"tasks_by_priority"`
	TasksByStatus    TaskStatusBreakdown  `json:"tasks_by_status"`
	TotalIssues      int                  `json:"total_issues"`
	IssuesByPriority PriorityBreakdown    `json:"issues_by_priority"`
	IssuesByStatus   IssueStatusBreakdown `json:"issues_by_status"`
}

// TrendBucket is one day of the completion trend.
type TrendBucket struct {
	Date      string `json:"date"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
}

// Workload is the per-user workload row.
type Workload struct {
	UserID         string `json:"user_id"`
	FullName       string `json:"full_name"`
	TotalTasks     int    `json:"total_tasks"`
	Completed      int    `json:"completed"`
	InProgress     int    `json:"in_progress"`
	CompletionRate int    `json:"completion_rate"`
}

// EmployeeSummary is the full per-profile summary row.
type EmployeeSummary struct {
	UserID            string `json:"user_id"`
	FullName          string `json:"full_name"`
	Email             string `json:"email"`
	JobDescription    string `json:"job_description,omitempty"`
	Score             int    `json:"score"`
	WeeklyHours       *int   `json:"weekly_hours,omitempty"`
	TotalTasks        int    `json:"total_tasks"`
	Completed         int    `json:"completed"`
	InProgress        int    `json:"in_progress"`
	ActiveTasks       int    `json:"active_tasks"`
	CompletedThisWeek int    `json:"completed_this_week"`
	LateCompletions   int    `json:"late_completions"`
	OverdueTasks      int    `json:"overdue_tasks"`
	CompletionRate    int    `json:"completion_rate"`
}

// ResolutionMetrics summarizes issue resolution.
type ResolutionMetrics struct {
	TotalIssues        int               `json:"total_issues"`
	ResolvedIssues     int               `json:"resolved_issues"`
	PendingIssues      int               `json:"pending_issues"`
	ResolutionRate     int               `json:"resolution_rate"`
	AvgResolutionHours float64           `json:"avg_resolution_hours"`
	ByPriority         PriorityBreakdown `json:"by_priority"`
}

// RecommendationUser identifies one affected profile.
type RecommendationUser struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	OverdueTasks *int   `json:"overdue_tasks,omitempty"`
}

// Recommendation is one advisory entry.
type Recommendation struct {
	Type        string               `json:"type"`
	Severity    string               `json:"severity"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Users       []RecommendationUser `json:"users"`
}

// LateTask is one overdue or late-completed task row.
type LateTask struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	Priority     string  `json:"priority"`
	AssignedTo   *string `json:"assigned_to,omitempty"`
	AssigneeName string  `json:"assignee_name,omitempty"`
	DueDate      *string `json:"due_date,omitempty"`
}

// LateTaskReport groups overdue and late-completed tasks.
type LateTaskReport struct {
	Overdue         []LateTask `json:"overdue"`
	LateCompletions []LateTask `json:"late_completions"`
}

// CacheStats reports response cache counters.
type CacheStats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var out Dashboard
	err := c.get(ctx, "analytics/dashboard", &out)
	return out, err
}

// CompletionTrend fetches the daily trend; days <= 0 uses the server
// default window.
func (c *Client) CompletionTrend(ctx context.Context, days int) ([]TrendBucket, error) {
	endpoint := "analytics/task-completion-trend"
	if days > 0 {
		endpoint += "?days=" + strconv.Itoa(days)
	}
	var out []TrendBucket
	err := c.get(ctx, endpoint, &out)
	return out, err
}

func (c *Client) UserWorkload(ctx context.Context) ([]Workload, error) {
	var out []Workload
	err := c.get(ctx, "analytics/user-workload", &out)
	return out, err
}

func (c *Client) IssueResolutionMetrics(ctx context.Context) (ResolutionMetrics, error) {
	var out ResolutionMetrics
	err := c.get(ctx, "analytics/issue-resolution-metrics", &out)
	return out, err
}

func (c *Client) EmployeesSummary(ctx context.Context) ([]EmployeeSummary, error) {
	var out []EmployeeSummary
	err := c.get(ctx, "analytics/employees-summary", &out)
	return out, err
}

func (c *Client) Recommendations(ctx context.Context) ([]Recommendation, error) {
	var out []Recommendation
	err := c.get(ctx, "analytics/recommendations", &out)
	return out, err
}

func (c *Client) LateTasks(ctx context.Context) (LateTaskReport, error) {
	var out LateTaskReport
	err := c.get(ctx, "analytics/late-tasks", &out)
	return out, err
}

func (c *Client) CacheStats(ctx context.Context) (CacheStats, error) {
	var out CacheStats
	err := c.get(ctx, "analytics/cache-stats", &out)
	return out, err
}

// Health checks liveness; it needs no token.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil)
}

// get unwraps the {"data": ...} envelope into out.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	envelope := struct {
		Data any `json:"data"`
	}{Data: out}
	return c.do(ctx, http.MethodGet, endpoint, &envelope)
}

func (c *Client) do(ctx context.Context, method, endpoint string, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + c.basePath() + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		b, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(b, apiErr); err != nil {
			apiErr.Message = string(b)
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) basePath() string {
	p := c.BasePath
	if p == "" {
		p = "/v1"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}
