package models

import "time"

// AccessEvent is one row of the append-only access log. Queries against
// the log are always time-bounded; the engine never reads it exhaustively.
type AccessEvent struct {
	UserID     string    `db:"user_id" json:"user_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
	Action     string    `db:"action" json:"action"`
}

// AccessFilter scopes access event queries. Since and Until are mandatory.
type AccessFilter struct {
	UserID   string
	CourseID string
	Since    time.Time
	Until    time.Time
}
