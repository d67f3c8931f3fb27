package domain

// Task statuses.
const (
	TaskNotStarted = "not_started"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskBlocked    = "blocked"
)

// Issue statuses.
const (
	IssuePendingAssignment = "pending_assignment"
	IssueAssigned          = "assigned"
	IssueInProgress        = "in_progress"
	IssueResolved          = "resolved"
	IssueClosed            = "closed"
)

// Priorities, shared by tasks and issues.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Task struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	Status         string  `json:"status" enum:"not_started,in_progress,completed,blocked"`
	Priority       string  `json:"priority" enum:"low,medium,high,critical"`
	AssignedTo     *string `json:"assigned_to,omitempty"`
	CreatedBy      string  `json:"created_by"`
	DueDate        *string `json:"due_date,omitempty" format:"date-time"`
	LateCompletion bool    `json:"late_completion"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
	UpdatedAt      string  `json:"updated_at" format:"date-time"`
	CompletedAt    *string `json:"completed_at,omitempty" format:"date-time"`
}

type Issue struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Status              string  `json:"status" enum:"pending_assignment,assigned,in_progress,resolved,closed"`
	Priority            string  `json:"priority" enum:"low,medium,high,critical"`
	ReportedBy          string  `json:"reported_by"`
	SuggestedAssigneeID *string `json:"suggested_assignee_id,omitempty"`
	AssignedTo          *string `json:"assigned_to,omitempty"`
	CreatedAt           string  `json:"created_at" format:"date-time"`
	ResolvedAt          *string `json:"resolved_at,omitempty" format:"date-time"`
}

type Profile struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Role           string `json:"role" enum:"admin,member"`
	JobDescription string `json:"job_description,omitempty"`
	Score          *int   `json:"score,omitempty"`
	WeeklyHours    *int   `json:"weekly_hours,omitempty"`
	AvatarURL      string `json:"avatar_url,omitempty"`
}

// EffectiveScore applies the default of 100 when no score is recorded.
func (p Profile) EffectiveScore() int {
	if p.Score == nil {
		return 100
	}
	return *p.Score
}

// Caller is the authenticated identity resolved by the auth layer.
type Caller struct {
	ID   string `json:"id"`
	Role string `json:"role" enum:"admin,member"`
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// Recommendation severities and types.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"

	RecommendationWorkload    = "workload"
	RecommendationPerformance = "performance"
	RecommendationSuggestion  = "suggestion"
)

// Recommendation is a transient advisory derived from workload data.
// It is recomputed per request and never persisted.
type Recommendation struct {
	Type        string               `json:"type" enum:"workload,performance,suggestion"`
	Severity    string               `json:"severity" enum:"info,warning,critical"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Users       []RecommendationUser `json:"users"`
}

// RecommendationUser identifies one affected profile. OverdueTasks is
// only set by the has-overdue rule.
type RecommendationUser struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	OverdueTasks *int   `json:"overdue_tasks,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
