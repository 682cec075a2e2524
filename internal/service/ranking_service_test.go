package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-insights-api/internal/models"
)

func newRankingForTest(events *fakeEventSource, now time.Time) *RankingService {
	progress := NewProgressService(events, nil)
	svc := NewRankingService(events, progress, nil, RankingServiceConfig{})
	svc.now = func() time.Time { return now }
	return svc
}

func TestRankSubjectsDeterministic(t *testing.T) {
	subjects := []models.SubjectValue{
		{SubjectID: "c", TieBreak: "c", Value: 80},
		{SubjectID: "a", TieBreak: "a", Value: 90},
		{SubjectID: "d", TieBreak: "d", Value: 80},
		{SubjectID: "b", TieBreak: "b", Value: 80},
	}
	svc := newRankingForTest(&fakeEventSource{}, time.Now())

	first := svc.RankSubjects(subjects)
	second := svc.RankSubjects(subjects)
	require.Equal(t, first, second)

	require.Equal(t, "a", first[0].SubjectID)
	require.Equal(t, 1, first[0].Rank)
	// Equal values fall back to the tie-break key ascending.
	require.Equal(t, "b", first[1].SubjectID)
	require.Equal(t, "c", first[2].SubjectID)
	require.Equal(t, "d", first[3].SubjectID)
	require.Equal(t, 4, first[3].Rank)
}

func TestTopStudentsOrdersAndLimits(t *testing.T) {
	now := time.Now().UTC()
	events := &fakeEventSource{
		enrollments: []models.Enrollment{
			{ID: "e1", StudentID: "student-1", CourseID: "course-1", Status: models.EnrollmentStatusActive},
			{ID: "e2", StudentID: "student-2", CourseID: "course-1", Status: models.EnrollmentStatusActive},
			{ID: "e3", StudentID: "student-3", CourseID: "course-1", Status: models.EnrollmentStatusActive},
		},
		grades: []models.GradeRecord{
			{StudentID: "student-1", CourseID: "course-1", ItemID: "i1", RawScore: 70, MaxScore: 100, RecordedAt: now},
			{StudentID: "student-2", CourseID: "course-1", ItemID: "i2", RawScore: 95, MaxScore: 100, RecordedAt: now},
			{StudentID: "student-3", CourseID: "course-1", ItemID: "i3", RawScore: 80, MaxScore: 100, RecordedAt: now},
		},
	}
	svc := newRankingForTest(events, now)

	entries, err := svc.TopStudents(context.Background(), "course-1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "student-2", entries[0].SubjectID)
	require.Equal(t, "student-3", entries[1].SubjectID)
}

func TestClassifyRiskLowGradeOnly(t *testing.T) {
	now := time.Now().UTC()
	events := &fakeEventSource{
		grades: []models.GradeRecord{
			{StudentID: "student-1", CourseID: "course-1", ItemID: "i1", RawScore: 65, MaxScore: 100, RecordedAt: now},
		},
		access: []models.AccessEvent{
			{UserID: "student-1", CourseID: "course-1", OccurredAt: now.Add(-24 * time.Hour)},
		},
	}
	svc := newRankingForTest(events, now)

	assessment, err := svc.ClassifyRisk(context.Background(), "student-1")
	require.NoError(t, err)
	require.True(t, assessment.AtRisk)
	require.Equal(t, []string{models.RiskReasonLowGrade}, assessment.Reasons)
	require.Equal(t, 1, assessment.DaysSinceLastAccess)
}

func TestClassifyRiskInactivityOnly(t *testing.T) {
	now := time.Now().UTC()
	events := &fakeEventSource{
		grades: []models.GradeRecord{
			{StudentID: "student-1", CourseID: "course-1", ItemID: "i1", RawScore: 95, MaxScore: 100, RecordedAt: now},
		},
		access: []models.AccessEvent{
			{UserID: "student-1", CourseID: "course-1", OccurredAt: now.Add(-20 * 24 * time.Hour)},
		},
	}
	svc := newRankingForTest(events, now)

	assessment, err := svc.ClassifyRisk(context.Background(), "student-1")
	require.NoError(t, err)
	require.True(t, assessment.AtRisk)
	require.Equal(t, []string{models.RiskReasonInactivity}, assessment.Reasons)
	require.Equal(t, 20, assessment.DaysSinceLastAccess)
	require.InDelta(t, 95.0, assessment.AverageGrade, 0.001)
}

func TestClassifyRiskBothConditions(t *testing.T) {
	now := time.Now().UTC()
	events := &fakeEventSource{
		grades: []models.GradeRecord{
			{StudentID: "student-1", CourseID: "course-1", ItemID: "i1", RawScore: 40, MaxScore: 100, RecordedAt: now},
		},
	}
	svc := newRankingForTest(events, now)

	assessment, err := svc.ClassifyRisk(context.Background(), "student-1")
	require.NoError(t, err)
	require.True(t, assessment.AtRisk)
	require.Len(t, assessment.Reasons, 2)
	// No access inside the lookback; the whole lookback counts as absence.
	require.Equal(t, 30, assessment.DaysSinceLastAccess)
	require.Nil(t, assessment.LastAccessAt)
}

func TestClassifyRiskNoGradablesSkipsGradeRule(t *testing.T) {
	now := time.Now().UTC()
	events := &fakeEventSource{
		grades: []models.GradeRecord{
			{StudentID: "student-1", CourseID: "course-1", ItemID: "i1", RawScore: 0, MaxScore: 0, RecordedAt: now},
		},
		access: []models.AccessEvent{
			{UserID: "student-1", CourseID: "course-1", OccurredAt: now.Add(-time.Hour)},
		},
	}
	svc := newRankingForTest(events, now)

	assessment, err := svc.ClassifyRisk(context.Background(), "student-1")
	require.NoError(t, err)
	require.False(t, assessment.AtRisk)
	require.Empty(t, assessment.Reasons)
	require.NotNil(t, assessment.Reasons)
	require.Zero(t, assessment.GradeSampleSize)
}

func TestClassRiskSweepsRosterInOrder(t *testing.T) {
	now := time.Now().UTC()
	events := &fakeEventSource{
		enrollments: []models.Enrollment{
			{ID: "e2", StudentID: "student-b", CourseID: "course-1", Status: models.EnrollmentStatusActive},
			{ID: "e1", StudentID: "student-a", CourseID: "course-1", Status: models.EnrollmentStatusActive},
			{ID: "e3", StudentID: "student-b", CourseID: "course-1", Status: models.EnrollmentStatusActive},
		},
	}
	svc := newRankingForTest(events, now)

	assessments, err := svc.ClassRisk(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, assessments, 2)
	require.Equal(t, "student-a", assessments[0].StudentID)
	require.Equal(t, "student-b", assessments[1].StudentID)
}

func TestTopCoursesRanksByAverage(t *testing.T) {
	now := time.Now().UTC()
	events := &fakeEventSource{
		grades: []models.GradeRecord{
			{StudentID: "s1", CourseID: "course-1", ItemID: "i1", RawScore: 60, MaxScore: 100, RecordedAt: now},
			{StudentID: "s2", CourseID: "course-2", ItemID: "i2", RawScore: 90, MaxScore: 100, RecordedAt: now},
		},
	}
	svc := newRankingForTest(events, now)

	entries, err := svc.TopCourses(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "course-2", entries[0].SubjectID)
	require.Equal(t, "course-1", entries[1].SubjectID)
}
