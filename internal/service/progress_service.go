package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-insights-api/internal/models"
)

type progressEventSource interface {
	CourseActivities(ctx context.Context, courseID string) ([]models.CourseActivity, error)
	CompletionMarks(ctx context.Context, filter models.CompletionFilter) ([]models.CompletionMark, error)
}

// ProgressService computes per (student, course) completion percentages
// and status classification from countable activities.
type ProgressService struct {
	events progressEventSource
	logger *zap.Logger
	now    func() time.Time
}

// NewProgressService constructs the service.
func NewProgressService(events progressEventSource, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{events: events, logger: logger, now: time.Now}
}

// ComputeCourseProgress returns the student's progress through the course.
// Courses with no countable activities resolve to 0% / not_started without
// error; progress never exceeds [0, 100].
func (s *ProgressService) ComputeCourseProgress(ctx context.Context, studentID, courseID string) (models.CourseProgress, error) {
	activities, err := s.events.CourseActivities(ctx, courseID)
	if err != nil {
		return models.CourseProgress{}, err
	}

	countable := make([]models.CourseActivity, 0, len(activities))
	for _, activity := range activities {
		if activity.TrackCompletion {
			countable = append(countable, activity)
		}
	}

	result := models.CourseProgress{
		StudentID:  studentID,
		CourseID:   courseID,
		Status:     models.ProgressNotStarted,
		Countable:  len(countable),
		ComputedAt: s.now().UTC(),
	}

	if len(countable) == 0 {
		// No trackable activities: defined zero, never a division error.
		result.NoData = true
		return result, nil
	}

	marks, err := s.events.CompletionMarks(ctx, models.CompletionFilter{StudentID: studentID, CourseID: courseID})
	if err != nil {
		return models.CourseProgress{}, err
	}
	completedByActivity := make(map[string]bool, len(marks))
	for _, mark := range marks {
		if mark.State.IsComplete() {
			completedByActivity[mark.ActivityID] = true
		}
	}

	completed := 0
	for _, activity := range countable {
		if completedByActivity[activity.ID] {
			completed++
		}
	}

	result.Completed = completed
	pct := Percentage(float64(completed), float64(len(countable)))
	result.Progress = RoundHalfUp(pct.Value)
	switch {
	case result.Progress <= 0:
		result.Status = models.ProgressNotStarted
	case result.Progress >= 100:
		result.Status = models.ProgressCompleted
	default:
		result.Status = models.ProgressInProgress
	}
	result.Sections = rollupSections(countable, completedByActivity)
	return result, nil
}

// rollupSections derives coarse-grained section completion: a section is
// complete only when every countable activity inside it is complete.
func rollupSections(countable []models.CourseActivity, completed map[string]bool) []models.SectionProgress {
	bySection := make(map[string]*models.SectionProgress)
	order := make([]string, 0)
	for _, activity := range countable {
		section, ok := bySection[activity.SectionID]
		if !ok {
			section = &models.SectionProgress{SectionID: activity.SectionID}
			bySection[activity.SectionID] = section
			order = append(order, activity.SectionID)
		}
		section.Total++
		if completed[activity.ID] {
			section.Completed++
		}
	}
	sort.Strings(order)
	sections := make([]models.SectionProgress, 0, len(order))
	for _, id := range order {
		section := bySection[id]
		section.Complete = section.Total > 0 && section.Completed == section.Total
		sections = append(sections, *section)
	}
	return sections
}
