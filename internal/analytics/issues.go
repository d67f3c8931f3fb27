package analytics

import (
	"context"
	"math"

	"tasklens/internal/domain"
	"tasklens/internal/scope"
)

// ResolutionMetrics summarizes issue throughput for a scope.
type ResolutionMetrics struct {
	TotalIssues        int               `json:"total_issues"`
	ResolvedIssues     int               `json:"resolved_issues"`
	PendingIssues      int               `json:"pending_issues"`
	ResolutionRate     int               `json:"resolution_rate"`
	AvgResolutionHours float64           `json:"avg_resolution_hours"`
	ByPriority         PriorityBreakdown `json:"by_priority"`
}

// IssueResolutionMetrics computes resolution counts and the mean
// resolution time over issues that carry a resolved_at timestamp.
func (e Engine) IssueResolutionMetrics(ctx context.Context, sc scope.Scope) (ResolutionMetrics, error) {
	var m ResolutionMetrics
	issues, err := e.Repo.ListIssues(ctx, sc)
	if err != nil {
		return m, dataErr("list issues", err)
	}
	m.TotalIssues = len(issues)
	var totalHours float64
	var timed int
	for _, i := range issues {
		m.ByPriority.add(i.Priority)
		if i.Status == domain.IssueResolved || i.Status == domain.IssueClosed {
			m.ResolvedIssues++
			if i.ResolvedAt != nil {
				created := parseTime(i.CreatedAt)
				resolved := parseTime(*i.ResolvedAt)
				if !created.IsZero() && !resolved.Before(created) {
					totalHours += resolved.Sub(created).Hours()
					timed++
				}
			}
		} else {
			m.PendingIssues++
		}
	}
	m.ResolutionRate = percent(m.ResolvedIssues, m.TotalIssues)
	if timed > 0 {
		m.AvgResolutionHours = math.Round(totalHours/float64(timed)*100) / 100
	}
	return m, nil
}

// LateTask is one row of the late-tasks report.
type LateTask struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	Priority     string  `json:"priority"`
	AssignedTo   *string `json:"assigned_to,omitempty"`
	AssigneeName string  `json:"assignee_name,omitempty"`
	DueDate      *string `json:"due_date,omitempty"`
}

// LateTaskReport lists currently overdue tasks and tasks that were
// completed after their deadline.
type LateTaskReport struct {
	Overdue         []LateTask `json:"overdue"`
	LateCompletions []LateTask `json:"late_completions"`
}

// LateTasks builds the admin late-work report with assignee names
// joined in from the profile list.
func (e Engine) LateTasks(ctx context.Context) (LateTaskReport, error) {
	report := LateTaskReport{Overdue: []LateTask{}, LateCompletions: []LateTask{}}
	tasks, err := e.Repo.ListTasks(ctx, scope.Scope{Admin: true})
	if err != nil {
		return report, dataErr("list tasks", err)
	}
	profiles, err := e.Repo.ListProfiles(ctx)
	if err != nil {
		return report, dataErr("list profiles", err)
	}
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.FullName
	}
	now := e.now()
	for _, t := range tasks {
		entry := LateTask{
			ID:         t.ID,
			Title:      t.Title,
			Status:     t.Status,
			Priority:   t.Priority,
			AssignedTo: t.AssignedTo,
			DueDate:    t.DueDate,
		}
		if t.AssignedTo != nil {
			entry.AssigneeName = names[*t.AssignedTo]
		}
		if taskOverdue(t, now) {
			report.Overdue = append(report.Overdue, entry)
		}
		if t.LateCompletion {
			report.LateCompletions = append(report.LateCompletions, entry)
		}
	}
	return report, nil
}
