package analytics

import (
	"context"

	"tasklens/internal/domain"
	"tasklens/internal/scope"
)

const dateOnly = "2006-01-02"

// TrendBucket is one calendar day of task activity.
type TrendBucket struct {
	Date      string `json:"date"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
}

// ClampDays normalizes the requested window. Values below 1 fall back
// to the configured default; values above the configured cap are
// clamped to it. The result is always at least 1, so the trend can
// never be empty or inverted.
func (e Engine) ClampDays(days int) int {
	if days < 1 {
		days = e.Config.Trend.DefaultDays
	}
	if max := e.Config.Trend.MaxDays; max > 0 && days > max {
		days = max
	}
	if days < 1 {
		days = 1
	}
	return days
}

// CompletionTrend buckets scoped tasks into exactly `days` consecutive
// UTC calendar days ending today. Created counts tasks whose creation
// day falls in the bucket; Completed counts completed tasks by their
// update day. Days with no activity still emit a bucket.
func (e Engine) CompletionTrend(ctx context.Context, sc scope.Scope, days int) ([]TrendBucket, error) {
	days = e.ClampDays(days)
	tasks, err := e.Repo.ListTasks(ctx, sc)
	if err != nil {
		return nil, dataErr("list tasks", err)
	}

	today := dayOf(e.now())
	start := today.AddDate(0, 0, -(days - 1))
	buckets := make([]TrendBucket, days)
	index := make(map[string]*TrendBucket, days)
	for i := range buckets {
		date := start.AddDate(0, 0, i).Format(dateOnly)
		buckets[i] = TrendBucket{Date: date}
		index[date] = &buckets[i]
	}

	for _, t := range tasks {
		created := dayOf(parseTime(t.CreatedAt)).Format(dateOnly)
		if b, ok := index[created]; ok {
			b.Created++
		}
		if t.Status == domain.TaskCompleted {
			updated := dayOf(parseTime(t.UpdatedAt)).Format(dateOnly)
			if b, ok := index[updated]; ok {
				b.Completed++
			}
		}
	}
	return buckets, nil
}
