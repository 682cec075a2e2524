package models

import "time"

// GradeRecord is a single graded item result.
type GradeRecord struct {
	StudentID  string    `db:"student_id" json:"student_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	ItemID     string    `db:"item_id" json:"item_id"`
	RawScore   float64   `db:"raw_score" json:"raw_score"`
	MaxScore   float64   `db:"max_score" json:"max_score"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// Valid reports whether the record satisfies 0 <= raw <= max. Invalid
// records are excluded from aggregates at ingestion.
func (g GradeRecord) Valid() bool {
	if g.MaxScore < 0 {
		return false
	}
	return g.RawScore >= 0 && g.RawScore <= g.MaxScore
}

// Gradable reports whether the record can contribute to percentage
// metrics. A zero max score yields an undefined ratio and is skipped.
func (g GradeRecord) Gradable() bool {
	return g.Valid() && g.MaxScore > 0
}

// Percent returns the record's score as a percentage. Callers must check
// Gradable first; non-gradable records return 0.
func (g GradeRecord) Percent() float64 {
	if !g.Gradable() {
		return 0
	}
	return g.RawScore / g.MaxScore * 100
}

// GradeFilter scopes grade queries.
type GradeFilter struct {
	StudentID string
	CourseID  string
	Since     *time.Time
}
