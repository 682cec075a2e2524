package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-insights-api/internal/models"
	"github.com/noah-isme/lms-insights-api/pkg/export"
	"github.com/noah-isme/lms-insights-api/pkg/storage"
)

type classStatsSource interface {
	ComputeClassStats(ctx context.Context, courseID string, roster []string) ([]models.MetricResult, error)
}

type rankingSource interface {
	TopStudents(ctx context.Context, courseID string, limit int) ([]models.RankedEntry, error)
	ClassRisk(ctx context.Context, courseID string) ([]models.RiskAssessment, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets from the aggregation engine and
// persists rendered files.
type ExportService struct {
	stats   classStatsSource
	ranking rankingSource
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(stats classStatsSource, ranking rankingSource, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		stats:   stats,
		ranking: ranking,
		storage: storage,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate builds the dataset according to the job definition and stores the
// rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	coursePart := sanitizeFilename(job.Params.CourseID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), coursePart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeClassStats:
		return s.buildClassStatsDataset(ctx, job.Params)
	case models.ReportTypeLeaderboard:
		return s.buildLeaderboardDataset(ctx, job.Params)
	case models.ReportTypeRiskList:
		return s.buildRiskListDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildClassStatsDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	results, err := s.stats.ComputeClassStats(ctx, params.CourseID, nil)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(results))
	for _, result := range results {
		dataRows = append(dataRows, map[string]string{
			"Metric":      result.MetricName,
			"Label":       result.Label,
			"Value":       fmt.Sprintf("%.2f", result.Value),
			"Sample Size": fmt.Sprintf("%d", result.SampleSize),
			"No Data":     fmt.Sprintf("%t", result.NoData),
			"Computed At": result.ComputedAt.UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Metric", "Label", "Value", "Sample Size", "No Data", "Computed At"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Class Statistics %s", params.CourseID)
	return dataset, title, nil
}

func (s *ExportService) buildLeaderboardDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	entries, err := s.ranking.TopStudents(ctx, params.CourseID, 0)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		dataRows = append(dataRows, map[string]string{
			"Rank":          fmt.Sprintf("%d", entry.Rank),
			"Student ID":    entry.SubjectID,
			"Average Grade": fmt.Sprintf("%.2f", entry.Value),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Rank", "Student ID", "Average Grade"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Leaderboard %s", params.CourseID)
	return dataset, title, nil
}

func (s *ExportService) buildRiskListDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	assessments, err := s.ranking.ClassRisk(ctx, params.CourseID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(assessments))
	for _, assessment := range assessments {
		lastAccess := ""
		if assessment.LastAccessAt != nil {
			lastAccess = assessment.LastAccessAt.UTC().Format(time.RFC3339)
		}
		dataRows = append(dataRows, map[string]string{
			"Student ID":        assessment.StudentID,
			"At Risk":           fmt.Sprintf("%t", assessment.AtRisk),
			"Reasons":           strings.Join(assessment.Reasons, "; "),
			"Average Grade":     fmt.Sprintf("%.2f", assessment.AverageGrade),
			"Grade Samples":     fmt.Sprintf("%d", assessment.GradeSampleSize),
			"Days Since Access": fmt.Sprintf("%d", assessment.DaysSinceLastAccess),
			"Last Access":       lastAccess,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Student ID", "At Risk", "Reasons", "Average Grade", "Grade Samples", "Days Since Access", "Last Access"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("At-Risk Students %s", params.CourseID)
	return dataset, title, nil
}
