package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-insights-api/internal/models"
	appErrors "github.com/noah-isme/lms-insights-api/pkg/errors"
)

type cohortEventSource interface {
	Enrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error)
	Grades(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecord, error)
	AccessEvents(ctx context.Context, filter models.AccessFilter) ([]models.AccessEvent, error)
	CompletionMarks(ctx context.Context, filter models.CompletionFilter) ([]models.CompletionMark, error)
	CourseActivities(ctx context.Context, courseID string) ([]models.CourseActivity, error)
}

type progressComputer interface {
	ComputeCourseProgress(ctx context.Context, studentID, courseID string) (models.CourseProgress, error)
}

// CohortServiceConfig tunes aggregation behaviour.
type CohortServiceConfig struct {
	GradeBreakpoints []float64
	EngagementWindow time.Duration
}

// CohortService rolls per-student results into class-wide statistics. One
// parameterized aggregator serves every caller role; the caller decides
// which roster to pass.
type CohortService struct {
	events   cohortEventSource
	progress progressComputer
	fallback *FallbackService
	logger   *zap.Logger
	now      func() time.Time
	cfg      CohortServiceConfig
}

// NewCohortService constructs the aggregator with sane defaults.
func NewCohortService(events cohortEventSource, progress progressComputer, fallback *FallbackService, logger *zap.Logger, cfg CohortServiceConfig) *CohortService {
	if len(cfg.GradeBreakpoints) == 0 {
		cfg.GradeBreakpoints = []float64{90, 80, 70, 60}
	}
	if cfg.EngagementWindow <= 0 {
		cfg.EngagementWindow = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if fallback == nil {
		fallback = NewFallbackService(false, logger)
	}
	return &CohortService{
		events:   events,
		progress: progress,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
		cfg:      cfg,
	}
}

// ComputeClassStats aggregates the roster's progress, completion, grade
// distribution and engagement into a flat list of named metrics. An empty
// roster argument means "all active enrollments of the course". Empty
// cohorts resolve to zero-valued no-data metrics, never an error.
func (s *CohortService) ComputeClassStats(ctx context.Context, courseID string, roster []string) ([]models.MetricResult, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}
	if len(roster) == 0 {
		derived, err := s.activeRoster(ctx, courseID)
		if err != nil {
			return nil, err
		}
		roster = derived
	}
	now := s.now().UTC()

	results := make([]models.MetricResult, 0, 8+len(s.cfg.GradeBreakpoints))

	meanProgress, completionRate, err := s.progressStats(ctx, courseID, roster, now)
	if err != nil {
		return nil, err
	}
	results = append(results, meanProgress, completionRate)

	averageGrade, buckets, err := s.gradeStats(ctx, courseID, roster, now)
	if err != nil {
		return nil, err
	}
	results = append(results, averageGrade)
	results = append(results, buckets...)

	engagement, err := s.engagementScore(ctx, courseID, roster, now)
	if err != nil {
		return nil, err
	}
	results = append(results, engagement)

	return results, nil
}

// activeRoster collects student ids with an active enrollment.
func (s *CohortService) activeRoster(ctx context.Context, courseID string) ([]string, error) {
	enrollments, err := s.events.Enrollments(ctx, models.EnrollmentFilter{CourseID: courseID, Status: models.EnrollmentStatusActive})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(enrollments))
	roster := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		if _, ok := seen[enrollment.StudentID]; ok {
			continue
		}
		seen[enrollment.StudentID] = struct{}{}
		roster = append(roster, enrollment.StudentID)
	}
	return roster, nil
}

func (s *CohortService) progressStats(ctx context.Context, courseID string, roster []string, now time.Time) (models.MetricResult, models.MetricResult, error) {
	values := make([]float64, 0, len(roster))
	completedCount := 0
	for _, studentID := range roster {
		progress, err := s.progress.ComputeCourseProgress(ctx, studentID, courseID)
		if err != nil {
			return models.MetricResult{}, models.MetricResult{}, err
		}
		values = append(values, float64(progress.Progress))
		if progress.Status == models.ProgressCompleted {
			completedCount++
		}
	}

	mean := s.fallback.Metric(courseID, models.MetricMeanProgress, Average(values), len(roster), now)
	rate := s.fallback.Metric(courseID, models.MetricCompletionRate,
		Percentage(float64(completedCount), float64(len(roster))), len(roster), now)
	return mean, rate, nil
}

func (s *CohortService) gradeStats(ctx context.Context, courseID string, roster []string, now time.Time) (models.MetricResult, []models.MetricResult, error) {
	records, err := s.events.Grades(ctx, models.GradeFilter{CourseID: courseID})
	if err != nil {
		return models.MetricResult{}, nil, err
	}
	inRoster := rosterSet(roster)

	percents := make([]float64, 0, len(records))
	perStudent := make(map[string][]float64)
	for _, record := range records {
		if _, ok := inRoster[record.StudentID]; !ok {
			continue
		}
		if !record.Gradable() {
			continue
		}
		pct := record.Percent()
		percents = append(percents, pct)
		perStudent[record.StudentID] = append(perStudent[record.StudentID], pct)
	}

	average := s.fallback.Metric(courseID, models.MetricAverageGrade, Average(percents), len(percents), now)

	counts := make([]int, len(s.cfg.GradeBreakpoints)+1)
	for _, values := range perStudent {
		studentAvg := Average(values)
		counts[bucketIndex(s.cfg.GradeBreakpoints, studentAvg.Value)]++
	}
	buckets := make([]models.MetricResult, 0, len(counts))
	for i, count := range counts {
		buckets = append(buckets, models.MetricResult{
			SubjectID:  courseID,
			MetricName: models.MetricGradeBucket,
			Label:      bucketLabel(s.cfg.GradeBreakpoints, i),
			Value:      float64(count),
			SampleSize: len(perStudent),
			NoData:     len(perStudent) == 0,
			ComputedAt: now,
		})
	}
	return average, buckets, nil
}

func (s *CohortService) engagementScore(ctx context.Context, courseID string, roster []string, now time.Time) (models.MetricResult, error) {
	events, err := s.events.AccessEvents(ctx, models.AccessFilter{
		CourseID: courseID,
		Since:    now.Add(-s.cfg.EngagementWindow),
		Until:    now,
	})
	if err != nil {
		return models.MetricResult{}, err
	}
	inRoster := rosterSet(roster)
	active := make(map[string]struct{})
	for _, event := range events {
		if _, ok := inRoster[event.UserID]; ok {
			active[event.UserID] = struct{}{}
		}
	}
	score := Percentage(float64(len(active)), float64(len(roster)))
	return s.fallback.Metric(courseID, models.MetricEngagementScore, score, len(roster), now), nil
}

// MetricInWindow computes the named class metric bounded to one window.
// Trend comparisons call this once per window; nothing is cached or shared
// across calls, so windows never leak into each other. Progress-shaped
// metrics are evaluated "as of" the window's end using dated completions.
func (s *CohortService) MetricInWindow(ctx context.Context, metricName, courseID string, window models.Window) (float64, error) {
	roster, err := s.activeRoster(ctx, courseID)
	if err != nil {
		return 0, err
	}

	switch metricName {
	case models.MetricAverageGrade:
		since := window.From
		records, err := s.events.Grades(ctx, models.GradeFilter{CourseID: courseID, Since: &since})
		if err != nil {
			return 0, err
		}
		inRoster := rosterSet(roster)
		values := make([]float64, 0, len(records))
		for _, record := range records {
			if !record.RecordedAt.Before(window.Until) {
				continue
			}
			if _, ok := inRoster[record.StudentID]; !ok {
				continue
			}
			if record.Gradable() {
				values = append(values, record.Percent())
			}
		}
		return Average(values).Value, nil

	case models.MetricEngagementScore:
		events, err := s.events.AccessEvents(ctx, models.AccessFilter{CourseID: courseID, Since: window.From, Until: window.Until})
		if err != nil {
			return 0, err
		}
		inRoster := rosterSet(roster)
		active := make(map[string]struct{})
		for _, event := range events {
			if _, ok := inRoster[event.UserID]; ok {
				active[event.UserID] = struct{}{}
			}
		}
		return Percentage(float64(len(active)), float64(len(roster))).Value, nil

	case models.MetricMeanProgress, models.MetricCompletionRate:
		return s.progressAsOf(ctx, metricName, courseID, roster, window.Until)

	default:
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("metric %q does not support trend windows", metricName))
	}
}

// progressAsOf reconstructs roster progress at a point in time from dated
// completion marks. Marks without a completion timestamp cannot be placed
// on the timeline and are skipped.
func (s *CohortService) progressAsOf(ctx context.Context, metricName, courseID string, roster []string, cutoff time.Time) (float64, error) {
	activities, err := s.events.CourseActivities(ctx, courseID)
	if err != nil {
		return 0, err
	}
	countable := make(map[string]struct{})
	for _, activity := range activities {
		if activity.TrackCompletion {
			countable[activity.ID] = struct{}{}
		}
	}
	if len(countable) == 0 {
		return 0, nil
	}

	marks, err := s.events.CompletionMarks(ctx, models.CompletionFilter{CourseID: courseID})
	if err != nil {
		return 0, err
	}
	completedByStudent := make(map[string]int)
	for _, mark := range marks {
		if !mark.State.IsComplete() || mark.TimeCompleted == nil {
			continue
		}
		if !mark.TimeCompleted.Before(cutoff) {
			continue
		}
		if _, ok := countable[mark.ActivityID]; !ok {
			continue
		}
		completedByStudent[mark.StudentID]++
	}

	values := make([]float64, 0, len(roster))
	completedStudents := 0
	for _, studentID := range roster {
		pct := Percentage(float64(completedByStudent[studentID]), float64(len(countable)))
		values = append(values, float64(RoundHalfUp(pct.Value)))
		if completedByStudent[studentID] >= len(countable) {
			completedStudents++
		}
	}

	if metricName == models.MetricCompletionRate {
		return Percentage(float64(completedStudents), float64(len(roster))).Value, nil
	}
	return Average(values).Value, nil
}

func rosterSet(roster []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roster))
	for _, id := range roster {
		set[id] = struct{}{}
	}
	return set
}

// bucketIndex maps a value onto descending breakpoints: index i covers
// values >= breakpoints[i]; the final index collects everything below the
// last breakpoint.
func bucketIndex(breakpoints []float64, value float64) int {
	for i, bp := range breakpoints {
		if value >= bp {
			return i
		}
	}
	return len(breakpoints)
}

func bucketLabel(breakpoints []float64, index int) string {
	if index == 0 {
		return fmt.Sprintf("gte_%g", breakpoints[0])
	}
	if index == len(breakpoints) {
		return fmt.Sprintf("lt_%g", breakpoints[len(breakpoints)-1])
	}
	return fmt.Sprintf("%g_%g", breakpoints[index], breakpoints[index-1])
}
