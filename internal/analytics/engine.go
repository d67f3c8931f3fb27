// Package analytics derives dashboard, trend, workload and
// recommendation metrics from the task/issue store. Every computation
// is read-only, deterministic for a fixed clock, and scoped to the
// caller before any aggregation happens.
package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"tasklens/internal/config"
	"tasklens/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// DataAccessError marks a failure of the underlying store. The caller
// maps it to a client-visible error; there is no internal retry.
type DataAccessError struct {
	Err error
}

func (e DataAccessError) Error() string { return e.Err.Error() }
func (e DataAccessError) Unwrap() error { return e.Err }

func dataErr(op string, err error) error {
	return DataAccessError{Err: fmt.Errorf("%s: %w", op, err)}
}

// percent returns round(part/total*100), and 0 when total is 0. It can
// never produce NaN or an error.
func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// parseTime reads the store's RFC3339 timestamps. Unparseable values
// yield the zero time, which falls outside every aggregation window.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(s *string) time.Time {
	if s == nil {
		return time.Time{}
	}
	return parseTime(*s)
}

// dayOf truncates a time to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// weekStart returns the most recent Sunday (UTC) on or before t.
func weekStart(t time.Time) time.Time {
	d := dayOf(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}
