package analytics

import (
	"context"
	"time"

	"tasklens/internal/domain"
	"tasklens/internal/scope"
)

// PriorityBreakdown partitions records across the four priorities. The
// bucket counts always sum to the scoped total.
type PriorityBreakdown struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

func (b *PriorityBreakdown) add(priority string) {
	switch priority {
	case domain.PriorityLow:
		b.Low++
	case domain.PriorityMedium:
		b.Medium++
	case domain.PriorityHigh:
		b.High++
	case domain.PriorityCritical:
		b.Critical++
	}
}

type TaskStatusBreakdown struct {
	NotStarted int `json:"not_started"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Blocked    int `json:"blocked"`
}

type IssueStatusBreakdown struct {
	PendingAssignment int `json:"pending_assignment"`
	Assigned          int `json:"assigned"`
	InProgress        int `json:"in_progress"`
	Resolved          int `json:"resolved"`
	Closed            int `json:"closed"`
}

// Dashboard is the top-level metrics record for a single scope.
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

// Dashboard computes all dashboard buckets from one scoped task query
// and one scoped issue query, partitioned in memory. Running a single
// query per table keeps every sub-count over the same row set, so the
// bucket sums equal the totals by construction.
func (e Engine) Dashboard(ctx context.Context, sc scope.Scope) (Dashboard, error) {
	var d Dashboard
	tasks, err := e.Repo.ListTasks(ctx, sc)
	if err != nil {
		return d, dataErr("list tasks", err)
	}
	issues, err := e.Repo.ListIssues(ctx, sc)
	if err != nil {
		return d, dataErr("list issues", err)
	}
	now := e.now()

	d.TotalTasks = len(tasks)
	for _, t := range tasks {
		d.TasksByPriority.add(t.Priority)
		switch t.Status {
		case domain.TaskNotStarted:
			d.TasksByStatus.NotStarted++
		case domain.TaskInProgress:
			d.TasksByStatus.InProgress++
			d.InProgressTasks++
		case domain.TaskCompleted:
			d.TasksByStatus.Completed++
			d.CompletedTasks++
		case domain.TaskBlocked:
			d.TasksByStatus.Blocked++
		}
		if taskOverdue(t, now) {
			d.OverdueTasks++
		}
	}
	d.CompletionRate = percent(d.CompletedTasks, d.TotalTasks)

	d.TotalIssues = len(issues)
	for _, i := range issues {
		d.IssuesByPriority.add(i.Priority)
		switch i.Status {
		case domain.IssuePendingAssignment:
			d.IssuesByStatus.PendingAssignment++
		case domain.IssueAssigned:
			d.IssuesByStatus.Assigned++
		case domain.IssueInProgress:
			d.IssuesByStatus.InProgress++
		case domain.IssueResolved:
			d.IssuesByStatus.Resolved++
		case domain.IssueClosed:
			d.IssuesByStatus.Closed++
		}
	}
	return d, nil
}

// taskOverdue reports whether a task is past its due date and not
// completed.
func taskOverdue(t domain.Task, now time.Time) bool {
	if t.Status == domain.TaskCompleted || t.DueDate == nil {
		return false
	}
	due := parseTime(*t.DueDate)
	return !due.IsZero() && due.Before(now)
}
