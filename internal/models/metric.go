package models

import "time"

// Well-known metric names produced by the aggregation engine. Presentation
// layers pick the subset they need by name.
const (
	MetricCourseProgress  = "course_progress"
	MetricMeanProgress    = "mean_progress"
	MetricCompletionRate  = "completion_rate"
	MetricAverageGrade    = "average_grade"
	MetricEngagementScore = "engagement_score"
	MetricGradeBucket     = "grade_bucket"
)

// MetricResult is a single derived metric value. It is disposable output
// with no persistent identity. SampleSize 0 with NoData false means a
// measured zero; NoData true means the inputs were absent.
type MetricResult struct {
	SubjectID  string    `json:"subject_id"`
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	SampleSize int       `json:"sample_size"`
	NoData     bool      `json:"no_data,omitempty"`
	Label      string    `json:"label,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

// TrendDirection labels the sign of a trend delta.
type TrendDirection string

// Trend directions.
const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
	TrendFlat TrendDirection = "flat"
)

// TrendResult compares one metric across two disjoint windows.
type TrendResult struct {
	MetricName    string         `json:"metric_name"`
	SubjectID     string         `json:"subject_id"`
	CurrentValue  float64        `json:"current_value"`
	PreviousValue float64        `json:"previous_value"`
	Delta         float64        `json:"delta"`
	Direction     TrendDirection `json:"direction"`
}

// Window is a half-open [From, Until) time interval.
type Window struct {
	From  time.Time `json:"from"`
	Until time.Time `json:"until"`
}

// Inverted reports whether the window bounds are reversed or collapsed.
func (w Window) Inverted() bool {
	return !w.From.Before(w.Until)
}

// Overlaps reports whether two windows share any instant.
func (w Window) Overlaps(other Window) bool {
	return w.From.Before(other.Until) && other.From.Before(w.Until)
}

// Days returns the window length in whole days, at least 1.
func (w Window) Days() int {
	days := int(w.Until.Sub(w.From).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// RankedEntry is one row of a deterministic leaderboard.
type RankedEntry struct {
	Rank      int     `json:"rank"`
	SubjectID string  `json:"subject_id"`
	Label     string  `json:"label,omitempty"`
	Value     float64 `json:"value"`
}

// SubjectValue pairs a subject with the metric value it is ranked by.
// TieBreak supplies the deterministic secondary ordering key.
type SubjectValue struct {
	SubjectID string  `json:"subject_id"`
	TieBreak  string  `json:"tie_break,omitempty"`
	Value     float64 `json:"value"`
}

// Risk reason codes reported by the classifier.
const (
	RiskReasonLowGrade   = "average_grade_below_threshold"
	RiskReasonInactivity = "inactive_beyond_threshold"
)

// RiskAssessment is the OR-combined grade/inactivity classification for
// one student. Both conditions are evaluated independently.
type RiskAssessment struct {
	StudentID           string     `json:"student_id"`
	AtRisk              bool       `json:"at_risk"`
	Reasons             []string   `json:"reasons"`
	AverageGrade        float64    `json:"average_grade"`
	GradeSampleSize     int        `json:"grade_sample_size"`
	DaysSinceLastAccess int        `json:"days_since_last_access"`
	LastAccessAt        *time.Time `json:"last_access_at,omitempty"`
	ComputedAt          time.Time  `json:"computed_at"`
}

// ProgressStatus classifies per-course completion.
type ProgressStatus string

// Progress statuses.
const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// CourseProgress is the per (student, course) progress snapshot.
type CourseProgress struct {
	StudentID  string            `json:"student_id"`
	CourseID   string            `json:"course_id"`
	Progress   int               `json:"progress"`
	Status     ProgressStatus    `json:"status"`
	Completed  int               `json:"completed"`
	Countable  int               `json:"countable"`
	NoData     bool              `json:"no_data,omitempty"`
	Sections   []SectionProgress `json:"sections,omitempty"`
	ComputedAt time.Time         `json:"computed_at"`
}

// Metric converts the progress snapshot into the flat metric form.
func (p CourseProgress) Metric() MetricResult {
	return MetricResult{
		SubjectID:  p.StudentID,
		MetricName: MetricCourseProgress,
		Value:      float64(p.Progress),
		SampleSize: p.Countable,
		NoData:     p.NoData,
		ComputedAt: p.ComputedAt,
	}
}

// SectionProgress rolls activity completion up to section granularity. A
// section is complete only when every countable activity in it is.
type SectionProgress struct {
	SectionID string `json:"section_id"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Complete  bool   `json:"complete"`
}
