package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-insights-api/internal/models"
	appErrors "github.com/noah-isme/lms-insights-api/pkg/errors"
)

// EventRepository exposes read-only access to the LMS event snapshot:
// enrollments, completion marks, grade records and access events. It never
// writes; ownership of the records stays with the LMS.
type EventRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB, logger *zap.Logger) *EventRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventRepository{db: db, logger: logger}
}

// Enrollments returns enrollments matching the filter. Empty filter fields
// mean "all".
func (r *EventRepository) Enrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	var builder strings.Builder
	builder.WriteString("SELECT id, student_id, course_id, enrolled_at, status FROM enrollments WHERE 1=1")
	var args []interface{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		builder.WriteString(fmt.Sprintf(" AND student_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		builder.WriteString(fmt.Sprintf(" AND course_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		builder.WriteString(fmt.Sprintf(" AND status = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY enrolled_at ASC")

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, builder.String(), args...); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRepositoryUnavailable.Code, appErrors.ErrRepositoryUnavailable.Status, "query enrollments")
	}
	return enrollments, nil
}

// CompletionMarks returns completion marks matching the filter.
func (r *EventRepository) CompletionMarks(ctx context.Context, filter models.CompletionFilter) ([]models.CompletionMark, error) {
	var builder strings.Builder
	builder.WriteString("SELECT student_id, course_id, activity_id, state, time_started, time_completed FROM completion_marks WHERE 1=1")
	var args []interface{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		builder.WriteString(fmt.Sprintf(" AND student_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		builder.WriteString(fmt.Sprintf(" AND course_id = $%d", len(args)))
	}
	if filter.ActivityID != "" {
		args = append(args, filter.ActivityID)
		builder.WriteString(fmt.Sprintf(" AND activity_id = $%d", len(args)))
	}

	var marks []models.CompletionMark
	if err := r.db.SelectContext(ctx, &marks, builder.String(), args...); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRepositoryUnavailable.Code, appErrors.ErrRepositoryUnavailable.Status, "query completion marks")
	}
	for _, mark := range marks {
		if mark.OutOfOrder() {
			r.logger.Warn("completion mark updated out of order",
				zap.String("student_id", mark.StudentID),
				zap.String("activity_id", mark.ActivityID))
		}
	}
	return marks, nil
}

// Grades returns grade records matching the filter. Records violating the
// 0 <= raw <= max invariant are rejected here and logged; they never reach
// the aggregation layer.
func (r *EventRepository) Grades(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecord, error) {
	var builder strings.Builder
	builder.WriteString("SELECT student_id, course_id, item_id, raw_score, max_score, recorded_at FROM grade_records WHERE 1=1")
	var args []interface{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		builder.WriteString(fmt.Sprintf(" AND student_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		builder.WriteString(fmt.Sprintf(" AND course_id = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		builder.WriteString(fmt.Sprintf(" AND recorded_at >= $%d", len(args)))
	}
	builder.WriteString(" ORDER BY recorded_at ASC")

	var records []models.GradeRecord
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRepositoryUnavailable.Code, appErrors.ErrRepositoryUnavailable.Status, "query grade records")
	}

	valid := records[:0]
	for _, record := range records {
		if !record.Valid() {
			r.logger.Warn("grade record rejected",
				zap.String("student_id", record.StudentID),
				zap.String("item_id", record.ItemID),
				zap.Float64("raw_score", record.RawScore),
				zap.Float64("max_score", record.MaxScore))
			continue
		}
		valid = append(valid, record)
	}
	return valid, nil
}

// AccessEvents returns access log rows inside [Since, Until). Both bounds
// are mandatory; the access log is never scanned unbounded.
func (r *EventRepository) AccessEvents(ctx context.Context, filter models.AccessFilter) ([]models.AccessEvent, error) {
	if filter.Since.IsZero() || filter.Until.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "access event queries require since and until bounds")
	}

	var builder strings.Builder
	builder.WriteString("SELECT user_id, course_id, occurred_at, action FROM access_events WHERE occurred_at >= $1 AND occurred_at < $2")
	args := []interface{}{filter.Since, filter.Until}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		builder.WriteString(fmt.Sprintf(" AND user_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		builder.WriteString(fmt.Sprintf(" AND course_id = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY occurred_at ASC")

	var events []models.AccessEvent
	if err := r.db.SelectContext(ctx, &events, builder.String(), args...); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRepositoryUnavailable.Code, appErrors.ErrRepositoryUnavailable.Status, "query access events")
	}
	return events, nil
}

// CourseActivities returns the activity configuration for a course,
// including activities not tracked for completion.
func (r *EventRepository) CourseActivities(ctx context.Context, courseID string) ([]models.CourseActivity, error) {
	const query = `SELECT id, course_id, section_id, name, track_completion FROM course_activities WHERE course_id = $1 ORDER BY section_id, id`
	var activities []models.CourseActivity
	if err := r.db.SelectContext(ctx, &activities, query, courseID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRepositoryUnavailable.Code, appErrors.ErrRepositoryUnavailable.Status, "query course activities")
	}
	return activities, nil
}
