package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-insights-api/internal/models"
	appErrors "github.com/noah-isme/lms-insights-api/pkg/errors"
)

type mapCacheRepo struct {
	entries map[string][]byte
}

func newMapCacheRepo() *mapCacheRepo {
	return &mapCacheRepo{entries: make(map[string][]byte)}
}

func (m *mapCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mapCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *mapCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	m.entries = make(map[string][]byte)
	return nil
}

type stubProgressSource struct {
	result models.CourseProgress
	calls  int
}

func (s *stubProgressSource) ComputeCourseProgress(_ context.Context, studentID, courseID string) (models.CourseProgress, error) {
	s.calls++
	out := s.result
	out.StudentID = studentID
	out.CourseID = courseID
	return out, nil
}

type stubStatsSource struct {
	results []models.MetricResult
	calls   int
}

func (s *stubStatsSource) ComputeClassStats(_ context.Context, _ string, _ []string) ([]models.MetricResult, error) {
	s.calls++
	return s.results, nil
}

type stubTrendSource struct {
	result models.TrendResult
	calls  int
}

func (s *stubTrendSource) ComputeTrend(_ context.Context, _, _ string, _, _ models.Window) (models.TrendResult, error) {
	s.calls++
	return s.result, nil
}

type stubRankingSource struct {
	students    []models.RankedEntry
	courses     []models.RankedEntry
	assessment  models.RiskAssessment
	assessments []models.RiskAssessment
	riskCalls   int
}

func (s *stubRankingSource) TopStudents(_ context.Context, _ string, _ int) ([]models.RankedEntry, error) {
	return s.students, nil
}

func (s *stubRankingSource) TopCourses(_ context.Context, _ int) ([]models.RankedEntry, error) {
	return s.courses, nil
}

func (s *stubRankingSource) ClassifyRisk(_ context.Context, studentID string) (models.RiskAssessment, error) {
	s.riskCalls++
	out := s.assessment
	out.StudentID = studentID
	return out, nil
}

func (s *stubRankingSource) ClassRisk(_ context.Context, _ string) ([]models.RiskAssessment, error) {
	return s.assessments, nil
}

func newInsightsForTest(t *testing.T) (*InsightsService, *stubProgressSource, *stubStatsSource, *stubTrendSource, *stubRankingSource) {
	t.Helper()
	progress := &stubProgressSource{result: models.CourseProgress{
		Progress:  60,
		Status:    models.ProgressInProgress,
		Completed: 6,
		Countable: 10,
	}}
	stats := &stubStatsSource{results: []models.MetricResult{
		{MetricName: models.MetricMeanProgress, Value: 60, SampleSize: 10},
	}}
	trends := &stubTrendSource{result: models.TrendResult{
		MetricName:   models.MetricAverageGrade,
		CurrentValue: 80, PreviousValue: 60, Delta: 20, Direction: models.TrendUp,
	}}
	ranking := &stubRankingSource{
		students: []models.RankedEntry{{Rank: 1, SubjectID: "student-1", Value: 90}},
		courses:  []models.RankedEntry{{Rank: 1, SubjectID: "course-1", Value: 75}},
		assessment: models.RiskAssessment{
			AtRisk:  true,
			Reasons: []string{models.RiskReasonLowGrade},
		},
		assessments: []models.RiskAssessment{{StudentID: "student-1", AtRisk: false, Reasons: []string{}}},
	}
	cache := NewCacheService(newMapCacheRepo(), nil, time.Minute, nil, true)
	svc := NewInsightsService(progress, stats, trends, ranking, cache, nil, nil)
	return svc, progress, stats, trends, ranking
}

func TestStudentProgressCacheAside(t *testing.T) {
	svc, progress, _, _, _ := newInsightsForTest(t)
	ctx := context.Background()

	first, hit, err := svc.StudentProgress(ctx, "student-1", "course-1")
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 60, first.Progress)

	second, hit, err := svc.StudentProgress(ctx, "student-1", "course-1")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, first.Progress, second.Progress)
	require.Equal(t, first.Status, second.Status)
	require.Equal(t, 1, progress.calls)
}

func TestStudentProgressCacheKeysAreScoped(t *testing.T) {
	svc, progress, _, _, _ := newInsightsForTest(t)
	ctx := context.Background()

	_, _, err := svc.StudentProgress(ctx, "student-1", "course-1")
	require.NoError(t, err)
	_, hit, err := svc.StudentProgress(ctx, "student-2", "course-1")
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 2, progress.calls)
}

func TestClassStatsCacheAside(t *testing.T) {
	svc, _, stats, _, _ := newInsightsForTest(t)
	ctx := context.Background()

	first, hit, err := svc.ClassStats(ctx, "course-1")
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, first, 1)

	second, hit, err := svc.ClassStats(ctx, "course-1")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, first[0].Value, second[0].Value)
	require.Equal(t, 1, stats.calls)
}

func TestTrendCachedPerWindowPair(t *testing.T) {
	svc, _, _, trends, _ := newInsightsForTest(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	current := models.Window{From: now.Add(-7 * 24 * time.Hour), Until: now}
	previous := models.Window{From: now.Add(-14 * 24 * time.Hour), Until: now.Add(-7 * 24 * time.Hour)}

	_, hit, err := svc.Trend(ctx, "course-1", models.MetricAverageGrade, current, previous)
	require.NoError(t, err)
	require.False(t, hit)

	_, hit, err = svc.Trend(ctx, "course-1", models.MetricAverageGrade, current, previous)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 1, trends.calls)

	shifted := models.Window{From: current.From.Add(-time.Hour), Until: current.From}
	older := models.Window{From: shifted.From.Add(-time.Hour), Until: shifted.From}
	_, hit, err = svc.Trend(ctx, "course-1", models.MetricAverageGrade, shifted, older)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 2, trends.calls)
}

func TestLeaderboardCacheAside(t *testing.T) {
	svc, _, _, _, _ := newInsightsForTest(t)
	ctx := context.Background()

	entries, hit, err := svc.TopStudents(ctx, "course-1", 10)
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, entries, 1)

	_, hit, err = svc.TopStudents(ctx, "course-1", 10)
	require.NoError(t, err)
	require.True(t, hit)

	global, hit, err := svc.TopCourses(ctx, 5)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, "course-1", global[0].SubjectID)
}

func TestStudentRiskNeverCached(t *testing.T) {
	svc, _, _, _, ranking := newInsightsForTest(t)
	ctx := context.Background()

	first, err := svc.StudentRisk(ctx, "student-1")
	require.NoError(t, err)
	require.True(t, first.AtRisk)

	_, err = svc.StudentRisk(ctx, "student-1")
	require.NoError(t, err)
	require.Equal(t, 2, ranking.riskCalls)
}

func TestClassRiskCacheAside(t *testing.T) {
	svc, _, _, _, _ := newInsightsForTest(t)
	ctx := context.Background()

	assessments, hit, err := svc.ClassRisk(ctx, "course-1")
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, assessments, 1)

	_, hit, err = svc.ClassRisk(ctx, "course-1")
	require.NoError(t, err)
	require.True(t, hit)
}

func TestInsightsDisabledCacheAlwaysComputes(t *testing.T) {
	progress := &stubProgressSource{result: models.CourseProgress{Progress: 40, Status: models.ProgressInProgress}}
	stats := &stubStatsSource{}
	trends := &stubTrendSource{}
	ranking := &stubRankingSource{}
	cache := NewCacheService(newMapCacheRepo(), nil, time.Minute, nil, false)
	svc := NewInsightsService(progress, stats, trends, ranking, cache, nil, nil)

	ctx := context.Background()
	_, hit, err := svc.StudentProgress(ctx, "student-1", "course-1")
	require.NoError(t, err)
	require.False(t, hit)
	_, hit, err = svc.StudentProgress(ctx, "student-1", "course-1")
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 2, progress.calls)
}
