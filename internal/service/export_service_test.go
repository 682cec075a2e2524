package service

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-insights-api/internal/models"
	"github.com/noah-isme/lms-insights-api/pkg/storage"
)

type exportStatsStub struct {
	results []models.MetricResult
}

func (s *exportStatsStub) ComputeClassStats(_ context.Context, _ string, _ []string) ([]models.MetricResult, error) {
	return s.results, nil
}

type exportRankingStub struct {
	entries     []models.RankedEntry
	assessments []models.RiskAssessment
}

func (s *exportRankingStub) TopStudents(_ context.Context, _ string, _ int) ([]models.RankedEntry, error) {
	return s.entries, nil
}

func (s *exportRankingStub) ClassRisk(_ context.Context, _ string) ([]models.RiskAssessment, error) {
	return s.assessments, nil
}

func newExportForTest(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	stats := &exportStatsStub{results: []models.MetricResult{
		{MetricName: models.MetricMeanProgress, Value: 62.5, SampleSize: 8, ComputedAt: time.Now().UTC()},
		{MetricName: models.MetricAverageGrade, Value: 74.2, SampleSize: 6, ComputedAt: time.Now().UTC()},
	}}
	ranking := &exportRankingStub{
		entries: []models.RankedEntry{
			{Rank: 1, SubjectID: "student-2", Value: 91},
			{Rank: 2, SubjectID: "student-1", Value: 85},
		},
		assessments: []models.RiskAssessment{
			{StudentID: "student-3", AtRisk: true, Reasons: []string{models.RiskReasonLowGrade, models.RiskReasonInactivity}, AverageGrade: 42, GradeSampleSize: 3, DaysSinceLastAccess: 30},
		},
	}

	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	return NewExportService(stats, ranking, store, signer, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, nil, nil, nil)
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc := newExportForTest(t)
	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeClassStats,
		Params: models.ReportJobParams{CourseID: "course-1", Format: models.ReportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Contains(t, result.URL, "/api/v1/export/")
	require.Equal(t, models.ReportFormatCSV, result.Format)
	require.Equal(t, ".csv", filepath.Ext(result.RelativePath))

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	raw, err := io.ReadAll(file)
	require.NoError(t, err)
	content := string(raw)
	require.Contains(t, content, "Metric")
	require.Contains(t, content, models.MetricMeanProgress)
	require.Contains(t, content, "62.50")
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc := newExportForTest(t)
	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeLeaderboard,
		Params: models.ReportJobParams{CourseID: "course-1", Format: models.ReportFormatPDF},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, ".pdf", filepath.Ext(result.RelativePath))

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	header := make([]byte, 4)
	_, err = io.ReadFull(file, header)
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(header))
}

func TestExportServiceRiskListDataset(t *testing.T) {
	svc := newExportForTest(t)
	job := &models.ReportJob{
		ID:     "job-3",
		Type:   models.ReportTypeRiskList,
		Params: models.ReportJobParams{CourseID: "course-1", Format: models.ReportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	raw, err := io.ReadAll(file)
	require.NoError(t, err)
	content := string(raw)
	require.Contains(t, content, "student-3")
	require.Contains(t, content, models.RiskReasonLowGrade+"; "+models.RiskReasonInactivity)
}

func TestExportServiceTokenRoundTrip(t *testing.T) {
	svc := newExportForTest(t)
	job := &models.ReportJob{
		ID:     "job-4",
		Type:   models.ReportTypeClassStats,
		Params: models.ReportJobParams{CourseID: "course-1", Format: models.ReportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	jobID, relPath, expiresAt, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	require.Equal(t, "job-4", jobID)
	require.Equal(t, result.RelativePath, relPath)
	require.WithinDuration(t, result.ExpiresAt, expiresAt, time.Second)

	_, _, _, err = svc.ParseToken(result.Token+"tampered", false)
	require.Error(t, err)
}

func TestExportServiceUnsupportedType(t *testing.T) {
	svc := newExportForTest(t)
	job := &models.ReportJob{
		ID:     "job-5",
		Type:   models.ReportType("unknown"),
		Params: models.ReportJobParams{CourseID: "course-1", Format: models.ReportFormatCSV},
	}

	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "unsupported report type"))
}

func TestExportServiceFilenameSanitized(t *testing.T) {
	svc := newExportForTest(t)
	job := &models.ReportJob{
		ID:     "job-6",
		Type:   models.ReportTypeClassStats,
		Params: models.ReportJobParams{CourseID: "course one/../x", Format: models.ReportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotContains(t, filepath.Base(result.RelativePath), " ")
	require.NotContains(t, result.RelativePath, "..")
	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}
