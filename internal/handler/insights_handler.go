package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-insights-api/internal/middleware"
	"github.com/noah-isme/lms-insights-api/internal/models"
	appErrors "github.com/noah-isme/lms-insights-api/pkg/errors"
	"github.com/noah-isme/lms-insights-api/pkg/response"
)

type insightsService interface {
	StudentProgress(ctx context.Context, studentID, courseID string) (models.CourseProgress, bool, error)
	ClassStats(ctx context.Context, courseID string) ([]models.MetricResult, bool, error)
	Trend(ctx context.Context, courseID, metricName string, current, previous models.Window) (models.TrendResult, bool, error)
	TopStudents(ctx context.Context, courseID string, limit int) ([]models.RankedEntry, bool, error)
	TopCourses(ctx context.Context, limit int) ([]models.RankedEntry, bool, error)
	StudentRisk(ctx context.Context, studentID string) (models.RiskAssessment, error)
	ClassRisk(ctx context.Context, courseID string) ([]models.RiskAssessment, bool, error)
}

// InsightsHandler exposes the aggregation engine over REST.
type InsightsHandler struct {
	insights insightsService
}

// NewInsightsHandler constructs the handler.
func NewInsightsHandler(insights insightsService) *InsightsHandler {
	return &InsightsHandler{insights: insights}
}

// StudentProgress godoc
// @Summary Per-course completion rollup for a student
// @Tags Insights
// @Produce json
// @Param studentId path string true "Student ID"
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /insights/students/{studentId}/courses/{courseId}/progress [get]
func (h *InsightsHandler) StudentProgress(c *gin.Context) {
	if h.insights == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	studentID := c.Param("studentId")
	courseID := c.Param("courseId")
	if studentID == "" || courseID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId and courseId required"))
		return
	}
	progress, cacheHit, err := h.insights.StudentProgress(c.Request.Context(), studentID, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, progress, middleware.ExtractMeta(c))
}

// ClassStats godoc
// @Summary Cohort metric set for a course
// @Tags Insights
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /insights/courses/{courseId}/stats [get]
func (h *InsightsHandler) ClassStats(c *gin.Context) {
	if h.insights == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	courseID := c.Param("courseId")
	if courseID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "courseId required"))
		return
	}
	results, cacheHit, err := h.insights.ClassStats(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, results, middleware.ExtractMeta(c))
}

// Trend godoc
// @Summary Metric comparison across two time windows
// @Tags Insights
// @Produce json
// @Param courseId path string true "Course ID"
// @Param metric query string true "Metric name"
// @Param currentFrom query string true "Current window start (RFC3339)"
// @Param currentUntil query string true "Current window end (RFC3339)"
// @Param previousFrom query string true "Previous window start (RFC3339)"
// @Param previousUntil query string true "Previous window end (RFC3339)"
// @Success 200 {object} response.Envelope
// @Router /insights/courses/{courseId}/trend [get]
func (h *InsightsHandler) Trend(c *gin.Context) {
	if h.insights == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	courseID := c.Param("courseId")
	metric := c.Query("metric")
	if courseID == "" || metric == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "courseId and metric required"))
		return
	}
	current, err := parseWindow(c, "currentFrom", "currentUntil")
	if err != nil {
		response.Error(c, err)
		return
	}
	previous, err := parseWindow(c, "previousFrom", "previousUntil")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, cacheHit, err := h.insights.Trend(c.Request.Context(), courseID, metric, current, previous)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// TopStudents godoc
// @Summary Course leaderboard by average grade
// @Tags Insights
// @Produce json
// @Param courseId path string true "Course ID"
// @Param limit query int false "Entry limit"
// @Success 200 {object} response.Envelope
// @Router /insights/courses/{courseId}/leaderboard [get]
func (h *InsightsHandler) TopStudents(c *gin.Context) {
	if h.insights == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	courseID := c.Param("courseId")
	if courseID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "courseId required"))
		return
	}
	entries, cacheHit, err := h.insights.TopStudents(c.Request.Context(), courseID, parseLimit(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, entries, middleware.ExtractMeta(c))
}

// TopCourses godoc
// @Summary Course ranking across the platform
// @Tags Insights
// @Produce json
// @Param limit query int false "Entry limit"
// @Success 200 {object} response.Envelope
// @Router /insights/courses/leaderboard [get]
func (h *InsightsHandler) TopCourses(c *gin.Context) {
	if h.insights == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	entries, cacheHit, err := h.insights.TopCourses(c.Request.Context(), parseLimit(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, entries, middleware.ExtractMeta(c))
}

// StudentRisk godoc
// @Summary Risk classification for a single student
// @Tags Insights
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /insights/students/{studentId}/risk [get]
func (h *InsightsHandler) StudentRisk(c *gin.Context) {
	if h.insights == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	studentID := c.Param("studentId")
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId required"))
		return
	}
	assessment, err := h.insights.StudentRisk(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, middleware.ExtractMeta(c))
}

// ClassRisk godoc
// @Summary Risk sweep over a course roster
// @Tags Insights
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /insights/courses/{courseId}/risk [get]
func (h *InsightsHandler) ClassRisk(c *gin.Context) {
	if h.insights == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	courseID := c.Param("courseId")
	if courseID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "courseId required"))
		return
	}
	assessments, cacheHit, err := h.insights.ClassRisk(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, assessments, middleware.ExtractMeta(c))
}

func parseWindow(c *gin.Context, fromKey, untilKey string) (models.Window, error) {
	from, err := time.Parse(time.RFC3339, c.Query(fromKey))
	if err != nil {
		return models.Window{}, appErrors.Clone(appErrors.ErrValidation, "invalid "+fromKey+" parameter")
	}
	until, err := time.Parse(time.RFC3339, c.Query(untilKey))
	if err != nil {
		return models.Window{}, appErrors.Clone(appErrors.ErrValidation, "invalid "+untilKey+" parameter")
	}
	return models.Window{From: from, Until: until}, nil
}

func parseLimit(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
