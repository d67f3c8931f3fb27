package analytics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"tasklens/internal/domain"
)

// profileFanout bounds the number of concurrent per-profile queries.
const profileFanout = 8

// Workload is the per-profile slice of the admin workload view.
type Workload struct {
	UserID         string `json:"user_id"`
	FullName       string `json:"full_name"`
	TotalTasks     int    `json:"total_tasks"`
	Completed      int    `json:"completed"`
	InProgress     int    `json:"in_progress"`
	CompletionRate int    `json:"completion_rate"`
}

// EmployeeSummary extends Workload with activity and lateness metrics.
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

// EmployeesSummary computes one summary per profile. Sub-queries fan
// out concurrently; the output sequence preserves the profile listing
// order regardless of completion order.
func (e Engine) EmployeesSummary(ctx context.Context) ([]EmployeeSummary, error) {
	profiles, err := e.Repo.ListProfiles(ctx)
	if err != nil {
		return nil, dataErr("list profiles", err)
	}
	now := e.now()
	summaries := make([]EmployeeSummary, len(profiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(profileFanout)
	for i, p := range profiles {
		i, p := i, p
		g.Go(func() error {
			tasks, err := e.Repo.TasksAssignedTo(gctx, p.ID)
			if err != nil {
				return dataErr("tasks for "+p.ID, err)
			}
			summaries[i] = summarizeProfile(p, tasks, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// UserWorkload is the cached, narrower projection of the summary.
func (e Engine) UserWorkload(ctx context.Context) ([]Workload, error) {
	summaries, err := e.EmployeesSummary(ctx)
	if err != nil {
		return nil, err
	}
	workloads := make([]Workload, len(summaries))
	for i, s := range summaries {
		workloads[i] = Workload{
			UserID:         s.UserID,
			FullName:       s.FullName,
			TotalTasks:     s.TotalTasks,
			Completed:      s.Completed,
			InProgress:     s.InProgress,
			CompletionRate: s.CompletionRate,
		}
	}
	return workloads, nil
}

func summarizeProfile(p domain.Profile, tasks []domain.Task, now time.Time) EmployeeSummary {
	s := EmployeeSummary{
		UserID:         p.ID,
		FullName:       p.FullName,
		Email:          p.Email,
		JobDescription: p.JobDescription,
		Score:          p.EffectiveScore(),
		WeeklyHours:    p.WeeklyHours,
		TotalTasks:     len(tasks),
	}
	week := weekStart(now)
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskCompleted:
			s.Completed++
			if completed := parseTimePtr(t.CompletedAt); !completed.Before(week) && !completed.IsZero() {
				s.CompletedThisWeek++
			}
		case domain.TaskInProgress:
			s.InProgress++
		}
		if t.Status != domain.TaskCompleted {
			s.ActiveTasks++
		}
		if t.LateCompletion {
			s.LateCompletions++
		}
		if taskOverdue(t, now) {
			s.OverdueTasks++
		}
	}
	s.CompletionRate = percent(s.Completed, s.TotalTasks)
	return s
}
