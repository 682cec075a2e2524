package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-insights-api/internal/models"
	appErrors "github.com/noah-isme/lms-insights-api/pkg/errors"
)

type rankingEventSource interface {
	Enrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error)
	Grades(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecord, error)
	AccessEvents(ctx context.Context, filter models.AccessFilter) ([]models.AccessEvent, error)
}

// RankingServiceConfig tunes leaderboards and the risk rule.
type RankingServiceConfig struct {
	RiskGradeThreshold  float64
	InactivityThreshold time.Duration
	AccessLookback      time.Duration
	LeaderboardLimit    int
}

// RankingService produces deterministic leaderboards and the at-risk
// classification.
type RankingService struct {
	events   rankingEventSource
	progress progressComputer
	logger   *zap.Logger
	now      func() time.Time
	cfg      RankingServiceConfig
}

// NewRankingService constructs the service with default thresholds.
func NewRankingService(events rankingEventSource, progress progressComputer, logger *zap.Logger, cfg RankingServiceConfig) *RankingService {
	if cfg.RiskGradeThreshold <= 0 {
		cfg.RiskGradeThreshold = 70
	}
	if cfg.InactivityThreshold <= 0 {
		cfg.InactivityThreshold = 7 * 24 * time.Hour
	}
	if cfg.AccessLookback <= 0 {
		cfg.AccessLookback = 30 * 24 * time.Hour
	}
	if cfg.LeaderboardLimit <= 0 {
		cfg.LeaderboardLimit = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{events: events, progress: progress, logger: logger, now: time.Now, cfg: cfg}
}

// RankSubjects orders subjects descending by value. Ties are broken by the
// caller-supplied tie-break key, then by subject id, so identical input
// always yields identical order regardless of map iteration.
func (s *RankingService) RankSubjects(subjects []models.SubjectValue) []models.RankedEntry {
	sorted := make([]models.SubjectValue, len(subjects))
	copy(sorted, subjects)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		if sorted[i].TieBreak != sorted[j].TieBreak {
			return sorted[i].TieBreak < sorted[j].TieBreak
		}
		return sorted[i].SubjectID < sorted[j].SubjectID
	})

	entries := make([]models.RankedEntry, 0, len(sorted))
	for i, subject := range sorted {
		entries = append(entries, models.RankedEntry{
			Rank:      i + 1,
			SubjectID: subject.SubjectID,
			Label:     subject.TieBreak,
			Value:     subject.Value,
		})
	}
	return entries
}

// TopStudents ranks a course's active roster by average grade.
func (s *RankingService) TopStudents(ctx context.Context, courseID string, limit int) ([]models.RankedEntry, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}
	enrollments, err := s.events.Enrollments(ctx, models.EnrollmentFilter{CourseID: courseID, Status: models.EnrollmentStatusActive})
	if err != nil {
		return nil, err
	}
	records, err := s.events.Grades(ctx, models.GradeFilter{CourseID: courseID})
	if err != nil {
		return nil, err
	}
	perStudent := make(map[string][]float64)
	for _, record := range records {
		if record.Gradable() {
			perStudent[record.StudentID] = append(perStudent[record.StudentID], record.Percent())
		}
	}

	subjects := make([]models.SubjectValue, 0, len(enrollments))
	seen := make(map[string]struct{}, len(enrollments))
	for _, enrollment := range enrollments {
		if _, ok := seen[enrollment.StudentID]; ok {
			continue
		}
		seen[enrollment.StudentID] = struct{}{}
		subjects = append(subjects, models.SubjectValue{
			SubjectID: enrollment.StudentID,
			TieBreak:  enrollment.StudentID,
			Value:     Average(perStudent[enrollment.StudentID]).Value,
		})
	}
	return truncate(s.RankSubjects(subjects), s.limitOr(limit)), nil
}

// TopCourses ranks courses by their roster-wide average grade.
func (s *RankingService) TopCourses(ctx context.Context, limit int) ([]models.RankedEntry, error) {
	records, err := s.events.Grades(ctx, models.GradeFilter{})
	if err != nil {
		return nil, err
	}
	perCourse := make(map[string][]float64)
	for _, record := range records {
		if record.Gradable() {
			perCourse[record.CourseID] = append(perCourse[record.CourseID], record.Percent())
		}
	}
	subjects := make([]models.SubjectValue, 0, len(perCourse))
	for courseID, values := range perCourse {
		subjects = append(subjects, models.SubjectValue{
			SubjectID: courseID,
			TieBreak:  courseID,
			Value:     Average(values).Value,
		})
	}
	return truncate(s.RankSubjects(subjects), s.limitOr(limit)), nil
}

// ClassifyRisk flags a student under the grade-or-inactivity rule. The two
// conditions are evaluated independently and OR-combined: a highly engaged
// but poorly performing student is flagged, and so is a high performer who
// stopped showing up.
func (s *RankingService) ClassifyRisk(ctx context.Context, studentID string) (models.RiskAssessment, error) {
	if studentID == "" {
		return models.RiskAssessment{}, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	now := s.now().UTC()
	assessment := models.RiskAssessment{
		StudentID:  studentID,
		Reasons:    []string{},
		ComputedAt: now,
	}

	records, err := s.events.Grades(ctx, models.GradeFilter{StudentID: studentID})
	if err != nil {
		return models.RiskAssessment{}, err
	}
	values := make([]float64, 0, len(records))
	for _, record := range records {
		if record.Gradable() {
			values = append(values, record.Percent())
		}
	}
	average := Average(values)
	assessment.AverageGrade = average.Value
	assessment.GradeSampleSize = len(values)
	if !average.NoData && average.Value < s.cfg.RiskGradeThreshold {
		assessment.AtRisk = true
		assessment.Reasons = append(assessment.Reasons, models.RiskReasonLowGrade)
	}

	events, err := s.events.AccessEvents(ctx, models.AccessFilter{
		UserID: studentID,
		Since:  now.Add(-s.cfg.AccessLookback),
		Until:  now,
	})
	if err != nil {
		return models.RiskAssessment{}, err
	}
	var lastAccess *time.Time
	for i := range events {
		if lastAccess == nil || events[i].OccurredAt.After(*lastAccess) {
			occurred := events[i].OccurredAt
			lastAccess = &occurred
		}
	}
	if lastAccess != nil {
		assessment.LastAccessAt = lastAccess
		assessment.DaysSinceLastAccess = int(now.Sub(*lastAccess).Hours() / 24)
	} else {
		// Nothing inside the lookback; treat the whole lookback as absence.
		assessment.DaysSinceLastAccess = int(s.cfg.AccessLookback.Hours() / 24)
	}
	if float64(assessment.DaysSinceLastAccess) > s.cfg.InactivityThreshold.Hours()/24 {
		assessment.AtRisk = true
		assessment.Reasons = append(assessment.Reasons, models.RiskReasonInactivity)
	}

	return assessment, nil
}

// ClassRisk runs the risk classifier over a course's active roster,
// ordered by student id so repeated sweeps line up.
func (s *RankingService) ClassRisk(ctx context.Context, courseID string) ([]models.RiskAssessment, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}
	enrollments, err := s.events.Enrollments(ctx, models.EnrollmentFilter{CourseID: courseID, Status: models.EnrollmentStatusActive})
	if err != nil {
		return nil, err
	}
	roster := make([]string, 0, len(enrollments))
	seen := make(map[string]struct{}, len(enrollments))
	for _, enrollment := range enrollments {
		if _, ok := seen[enrollment.StudentID]; ok {
			continue
		}
		seen[enrollment.StudentID] = struct{}{}
		roster = append(roster, enrollment.StudentID)
	}
	sort.Strings(roster)

	assessments := make([]models.RiskAssessment, 0, len(roster))
	for _, studentID := range roster {
		assessment, err := s.ClassifyRisk(ctx, studentID)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, assessment)
	}
	return assessments, nil
}

func (s *RankingService) limitOr(limit int) int {
	if limit <= 0 {
		return s.cfg.LeaderboardLimit
	}
	return limit
}

func truncate(entries []models.RankedEntry, limit int) []models.RankedEntry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}
