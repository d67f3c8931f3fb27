package analytics

import (
	"context"
	"fmt"

	"tasklens/internal/domain"
)

// Recommendations evaluates the threshold rules against a fresh
// workload snapshot. Rules are independent: every rule sees the same
// snapshot, none short-circuits another, and a user may appear in
// several recommendations. Output order is the rule order; rules with
// no matches are omitted.
func (e Engine) Recommendations(ctx context.Context) ([]domain.Recommendation, error) {
	summaries, err := e.EmployeesSummary(ctx)
	if err != nil {
		return nil, err
	}
	th := e.Config.Recommendations
	recs := []domain.Recommendation{}

	var overloaded []domain.RecommendationUser
	for _, s := range summaries {
		if s.ActiveTasks > th.OverloadedTasks {
			overloaded = append(overloaded, domain.RecommendationUser{ID: s.UserID, FullName: s.FullName})
		}
	}
	if len(overloaded) > 0 {
		recs = append(recs, domain.Recommendation{
			Type:        domain.RecommendationWorkload,
			Severity:    domain.SeverityWarning,
			Title:       "Overloaded team members",
			Description: fmt.Sprintf("These members carry more than %d active tasks; consider redistributing work.", th.OverloadedTasks),
			Users:       overloaded,
		})
	}

	var underutilized []domain.RecommendationUser
	for _, s := range summaries {
		if s.ActiveTasks < th.UnderutilizedTasks {
			underutilized = append(underutilized, domain.RecommendationUser{ID: s.UserID, FullName: s.FullName})
		}
	}
	if len(underutilized) > 0 {
		recs = append(recs, domain.Recommendation{
			Type:        domain.RecommendationSuggestion,
			Severity:    domain.SeverityInfo,
			Title:       "Underutilized team members",
			Description: fmt.Sprintf("These members have fewer than %d active tasks and could take on more.", th.UnderutilizedTasks),
			Users:       underutilized,
		})
	}

	var withOverdue []domain.RecommendationUser
	for _, s := range summaries {
		if s.OverdueTasks > 0 {
			overdue := s.OverdueTasks
			withOverdue = append(withOverdue, domain.RecommendationUser{ID: s.UserID, FullName: s.FullName, OverdueTasks: &overdue})
		}
	}
	if len(withOverdue) > 0 {
		recs = append(recs, domain.Recommendation{
			Type:        domain.RecommendationWorkload,
			Severity:    domain.SeverityCritical,
			Title:       "Members with overdue tasks",
			Description: "These members have tasks past their due date that are not completed.",
			Users:       withOverdue,
		})
	}

	var lowScore []domain.RecommendationUser
	for _, s := range summaries {
		if s.Score < th.LowScore {
			lowScore = append(lowScore, domain.RecommendationUser{ID: s.UserID, FullName: s.FullName})
		}
	}
	if len(lowScore) > 0 {
		recs = append(recs, domain.Recommendation{
			Type:        domain.RecommendationPerformance,
			Severity:    domain.SeverityWarning,
			Title:       "Low performance scores",
			Description: fmt.Sprintf("These members have a performance score below %d.", th.LowScore),
			Users:       lowScore,
		})
	}
	return recs, nil
}
