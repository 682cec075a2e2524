package service

import (
	"context"
	"time"

	"github.com/noah-isme/lms-insights-api/internal/models"
)

// fakeEventSource serves canned LMS activity data to every engine service.
type fakeEventSource struct {
	enrollments []models.Enrollment
	grades      []models.GradeRecord
	access      []models.AccessEvent
	marks       []models.CompletionMark
	activities  []models.CourseActivity

	err error
}

func (f *fakeEventSource) Enrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Enrollment, 0, len(f.enrollments))
	for _, e := range f.enrollments {
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEventSource) Grades(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.GradeRecord, 0, len(f.grades))
	for _, g := range f.grades {
		if filter.CourseID != "" && g.CourseID != filter.CourseID {
			continue
		}
		if filter.StudentID != "" && g.StudentID != filter.StudentID {
			continue
		}
		if filter.Since != nil && g.RecordedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeEventSource) AccessEvents(ctx context.Context, filter models.AccessFilter) ([]models.AccessEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.AccessEvent, 0, len(f.access))
	for _, a := range f.access {
		if filter.CourseID != "" && a.CourseID != filter.CourseID {
			continue
		}
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if a.OccurredAt.Before(filter.Since) || !a.OccurredAt.Before(filter.Until) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeEventSource) CompletionMarks(ctx context.Context, filter models.CompletionFilter) ([]models.CompletionMark, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.CompletionMark, 0, len(f.marks))
	for _, m := range f.marks {
		if filter.CourseID != "" && m.CourseID != filter.CourseID {
			continue
		}
		if filter.StudentID != "" && m.StudentID != filter.StudentID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeEventSource) CourseActivities(ctx context.Context, courseID string) ([]models.CourseActivity, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.CourseActivity, 0, len(f.activities))
	for _, a := range f.activities {
		if courseID != "" && a.CourseID != courseID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
