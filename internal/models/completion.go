package models

import "time"

// CompletionState tracks a student's progress through a single activity.
type CompletionState string

// Completion states in advancing order. A mark that moves backwards is a
// warning condition for the engine, not an error.
const (
	CompletionNotStarted  CompletionState = "NOT_STARTED"
	CompletionInProgress  CompletionState = "IN_PROGRESS"
	CompletionComplete    CompletionState = "COMPLETE"
	CompletionDistinction CompletionState = "COMPLETE_DISTINCTION"
)

// IsComplete reports whether the state counts toward course progress.
func (s CompletionState) IsComplete() bool {
	return s == CompletionComplete || s == CompletionDistinction
}

// rankedStates orders states for regression detection.
var rankedStates = map[CompletionState]int{
	CompletionNotStarted:  0,
	CompletionInProgress:  1,
	CompletionComplete:    2,
	CompletionDistinction: 3,
}

// Rank returns the ordinal position of a state; unknown states rank lowest.
func (s CompletionState) Rank() int {
	return rankedStates[s]
}

// CompletionMark is the single completion record per (student, activity).
// It is mutated in place as the state advances.
type CompletionMark struct {
	StudentID     string          `db:"student_id" json:"student_id"`
	CourseID      string          `db:"course_id" json:"course_id"`
	ActivityID    string          `db:"activity_id" json:"activity_id"`
	State         CompletionState `db:"state" json:"state"`
	TimeStarted   *time.Time      `db:"time_started" json:"time_started,omitempty"`
	TimeCompleted *time.Time      `db:"time_completed" json:"time_completed,omitempty"`
}

// OutOfOrder reports whether the mark's timestamps contradict each other,
// i.e. an update arrived out of sequence.
func (m CompletionMark) OutOfOrder() bool {
	if m.TimeStarted == nil || m.TimeCompleted == nil {
		return false
	}
	return m.TimeCompleted.Before(*m.TimeStarted)
}

// CompletionFilter scopes completion mark queries.
type CompletionFilter struct {
	StudentID  string
	CourseID   string
	ActivityID string
}

// CourseActivity describes one learning activity inside a course. Only
// activities with TrackCompletion set count toward progress.
type CourseActivity struct {
	ID              string `db:"id" json:"id"`
	CourseID        string `db:"course_id" json:"course_id"`
	SectionID       string `db:"section_id" json:"section_id"`
	Name            string `db:"name" json:"name"`
	TrackCompletion bool   `db:"track_completion" json:"track_completion"`
}
