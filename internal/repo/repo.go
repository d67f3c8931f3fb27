package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"tasklens/internal/domain"
	"tasklens/internal/scope"
)

// Repo is the query facade over the record store. The analytics engine
// only reads through it; writes exist for seeding and tests.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const taskColumns = `id,title,description,status,priority,assigned_to,created_by,due_date,late_completion,created_at,updated_at,completed_at`

func scanTask(scan func(...any) error) (domain.Task, error) {
	var t domain.Task
	var description, assignedTo, dueDate, completedAt sql.NullString
	var late int
	err := scan(&t.ID, &t.Title, &description, &t.Status, &t.Priority, &assignedTo, &t.CreatedBy, &dueDate, &late, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err != nil {
		return t, err
	}
	if description.Valid {
		t.Description = description.String
	}
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	t.LateCompletion = late != 0
	return t, nil
}

// ListTasks returns every task visible to the scope, oldest first. The
// engine partitions the result in memory, so one round trip serves all
// dashboard buckets and the bucket sums equal the total by construction.
func (r Repo) ListTasks(ctx context.Context, sc scope.Scope) ([]domain.Task, error) {
	clause, args := sc.TaskClause()
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if clause != "" {
		query += ` WHERE ` + clause
	}
	query += ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// TasksAssignedTo returns the tasks assigned to one profile, for the
// per-profile workload sub-queries.
func (r Repo) TasksAssignedTo(ctx context.Context, userID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE assigned_to=? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CountTasks counts tasks visible to the scope.
func (r Repo) CountTasks(ctx context.Context, sc scope.Scope) (int, error) {
	clause, args := sc.TaskClause()
	query := `SELECT COUNT(*) FROM tasks`
	if clause != "" {
		query += ` WHERE ` + clause
	}
	var n int
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

const issueColumns = `id,title,status,priority,reported_by,suggested_assignee_id,assigned_to,created_at,resolved_at`

func scanIssue(scan func(...any) error) (domain.Issue, error) {
	var i domain.Issue
	var suggested, assignedTo, resolvedAt sql.NullString
	err := scan(&i.ID, &i.Title, &i.Status, &i.Priority, &i.ReportedBy, &suggested, &assignedTo, &i.CreatedAt, &resolvedAt)
	if err != nil {
		return i, err
	}
	if suggested.Valid {
		i.SuggestedAssigneeID = &suggested.String
	}
	if assignedTo.Valid {
		i.AssignedTo = &assignedTo.String
	}
	if resolvedAt.Valid {
		i.ResolvedAt = &resolvedAt.String
	}
	return i, nil
}

// ListIssues returns every issue visible to the scope, oldest first.
func (r Repo) ListIssues(ctx context.Context, sc scope.Scope) ([]domain.Issue, error) {
	clause, args := sc.IssueClause()
	query := `SELECT ` + issueColumns + ` FROM issues`
	if clause != "" {
		query += ` WHERE ` + clause
	}
	query += ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Issue
	for rows.Next() {
		i, err := scanIssue(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, i)
	}
	return res, rows.Err()
}

const profileColumns = `id,full_name,email,role,job_description,score,weekly_hours,avatar_url`

func scanProfile(scan func(...any) error) (domain.Profile, error) {
	var p domain.Profile
	var job, avatar sql.NullString
	var score, hours sql.NullInt64
	err := scan(&p.ID, &p.FullName, &p.Email, &p.Role, &job, &score, &hours, &avatar)
	if err != nil {
		return p, err
	}
	if job.Valid {
		p.JobDescription = job.String
	}
	if avatar.Valid {
		p.AvatarURL = avatar.String
	}
	if score.Valid {
		v := int(score.Int64)
		p.Score = &v
	}
	if hours.Valid {
		v := int(hours.Int64)
		p.WeeklyHours = &v
	}
	return p, nil
}

// ListProfiles returns all profiles ordered by name then id. Per-profile
// metric sequences preserve this ordering.
func (r Repo) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY full_name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	p, err := scanProfile(r.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertProfile(ctx context.Context, tx *sql.Tx, p domain.Profile) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO profiles(`+profileColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.FullName, p.Email, p.Role, nullable(p.JobDescription), nullableIntPtr(p.Score), nullableIntPtr(p.WeeklyHours), nullable(p.AvatarURL))
	return err
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullable(t.Description), t.Status, t.Priority, nullableStringPtr(t.AssignedTo), t.CreatedBy,
		nullableStringPtr(t.DueDate), boolInt(t.LateCompletion), t.CreatedAt, t.UpdatedAt, nullableStringPtr(t.CompletedAt))
	return err
}

func (r Repo) InsertIssue(ctx context.Context, tx *sql.Tx, i domain.Issue) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO issues(`+issueColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		i.ID, i.Title, i.Status, i.Priority, i.ReportedBy, nullableStringPtr(i.SuggestedAssigneeID),
		nullableStringPtr(i.AssignedTo), i.CreatedAt, nullableStringPtr(i.ResolvedAt))
	return err
}

// LatestEvents returns the most recent audit events, newest first.
func (r Repo) LatestEvents(ctx context.Context, limit int, evtType string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	query := `SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
