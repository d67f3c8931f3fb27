// Package scope derives the row-visibility predicate applied to every
// analytics query on behalf of a caller.
package scope

import "tasklens/internal/domain"

// Scope is the visibility predicate for one request. A single Scope is
// resolved per request and reused by every sub-aggregation so that all
// derived counts are computed over the same row set.
type Scope struct {
	Admin  bool
	UserID string
}

// Resolve maps a caller identity to its scope. Admins see every row;
// members see only rows they participate in.
func Resolve(caller domain.Caller) Scope {
	if caller.IsAdmin() {
		return Scope{Admin: true}
	}
	return Scope{UserID: caller.ID}
}

// TaskClause returns the WHERE fragment and args restricting tasks to
// the scope. The empty clause means match-all.
func (s Scope) TaskClause() (string, []any) {
	if s.Admin {
		return "", nil
	}
	return "(assigned_to=? OR created_by=?)", []any{s.UserID, s.UserID}
}

// IssueClause returns the WHERE fragment and args restricting issues to
// the scope.
func (s Scope) IssueClause() (string, []any) {
	if s.Admin {
		return "", nil
	}
	return "(reported_by=? OR suggested_assignee_id=? OR assigned_to=?)", []any{s.UserID, s.UserID, s.UserID}
}

// CacheKey renders the scope component of a cache key. Two distinct
// members must never share an entry, and admin entries must never be
// served to members.
func (s Scope) CacheKey() string {
	if s.Admin {
		return "admin"
	}
	return "member:" + s.UserID
}
