package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-insights-api/internal/models"
)

type progressSource interface {
	ComputeCourseProgress(ctx context.Context, studentID, courseID string) (models.CourseProgress, error)
}

type trendSource interface {
	ComputeTrend(ctx context.Context, metricName, subjectID string, current, previous models.Window) (models.TrendResult, error)
}

type leaderboardSource interface {
	TopStudents(ctx context.Context, courseID string, limit int) ([]models.RankedEntry, error)
	TopCourses(ctx context.Context, limit int) ([]models.RankedEntry, error)
	ClassifyRisk(ctx context.Context, studentID string) (models.RiskAssessment, error)
	ClassRisk(ctx context.Context, courseID string) ([]models.RiskAssessment, error)
}

// InsightsService fronts the aggregation engine with cache integration. The
// boolean on each read indicates whether data originated from cache.
type InsightsService struct {
	progress progressSource
	stats    classStatsSource
	trends   trendSource
	ranking  leaderboardSource
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewInsightsService constructs the facade.
func NewInsightsService(progress progressSource, stats classStatsSource, trends trendSource, ranking leaderboardSource, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *InsightsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightsService{
		progress: progress,
		stats:    stats,
		trends:   trends,
		ranking:  ranking,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

// StudentProgress returns the per-course completion rollup for a student.
func (s *InsightsService) StudentProgress(ctx context.Context, studentID, courseID string) (models.CourseProgress, bool, error) {
	cacheKey := ProgressKey(studentID, courseID)
	var cached models.CourseProgress
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return models.CourseProgress{}, false, fmt.Errorf("get progress cache: %w", err)
		} else if hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	result, err := s.progress.ComputeCourseProgress(ctx, studentID, courseID)
	if err != nil {
		return models.CourseProgress{}, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveComputation("course_progress", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, 0); err != nil {
			s.logger.Warn("cache progress", zap.Error(err))
		}
	}
	return result, false, nil
}

// ClassStats returns the cohort metric set for a course.
func (s *InsightsService) ClassStats(ctx context.Context, courseID string) ([]models.MetricResult, bool, error) {
	cacheKey := ClassStatsKey(courseID)
	var cached []models.MetricResult
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get class stats cache: %w", err)
		} else if hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	results, err := s.stats.ComputeClassStats(ctx, courseID, nil)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveComputation("class_stats", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, results, 0); err != nil {
			s.logger.Warn("cache class stats", zap.Error(err))
		}
	}
	return results, false, nil
}

// Trend compares a course metric across two windows.
func (s *InsightsService) Trend(ctx context.Context, courseID, metricName string, current, previous models.Window) (models.TrendResult, bool, error) {
	cacheKey := TrendKey(courseID, metricName, current, previous)
	var cached models.TrendResult
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return models.TrendResult{}, false, fmt.Errorf("get trend cache: %w", err)
		} else if hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	result, err := s.trends.ComputeTrend(ctx, metricName, courseID, current, previous)
	if err != nil {
		return models.TrendResult{}, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveComputation("trend", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, 0); err != nil {
			s.logger.Warn("cache trend", zap.Error(err))
		}
	}
	return result, false, nil
}

// TopStudents returns the course leaderboard.
func (s *InsightsService) TopStudents(ctx context.Context, courseID string, limit int) ([]models.RankedEntry, bool, error) {
	cacheKey := LeaderboardKey(courseID, models.MetricAverageGrade, limit)
	var cached []models.RankedEntry
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get leaderboard cache: %w", err)
		} else if hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	entries, err := s.ranking.TopStudents(ctx, courseID, limit)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveComputation("top_students", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, entries, 0); err != nil {
			s.logger.Warn("cache leaderboard", zap.Error(err))
		}
	}
	return entries, false, nil
}

// TopCourses ranks all courses roster-wide.
func (s *InsightsService) TopCourses(ctx context.Context, limit int) ([]models.RankedEntry, bool, error) {
	cacheKey := LeaderboardKey("", models.MetricAverageGrade, limit)
	var cached []models.RankedEntry
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get course leaderboard cache: %w", err)
		} else if hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	entries, err := s.ranking.TopCourses(ctx, limit)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveComputation("top_courses", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, entries, 0); err != nil {
			s.logger.Warn("cache course leaderboard", zap.Error(err))
		}
	}
	return entries, false, nil
}

// StudentRisk evaluates the risk rule for one student. Risk is always
// computed fresh; stale flags are worse than the extra queries.
func (s *InsightsService) StudentRisk(ctx context.Context, studentID string) (models.RiskAssessment, error) {
	start := time.Now()
	assessment, err := s.ranking.ClassifyRisk(ctx, studentID)
	if err != nil {
		return models.RiskAssessment{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveComputation("student_risk", time.Since(start))
	}
	return assessment, nil
}

// ClassRisk sweeps a course roster through the risk rule.
func (s *InsightsService) ClassRisk(ctx context.Context, courseID string) ([]models.RiskAssessment, bool, error) {
	cacheKey := RiskKey(courseID)
	var cached []models.RiskAssessment
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get risk cache: %w", err)
		} else if hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	assessments, err := s.ranking.ClassRisk(ctx, courseID)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveComputation("class_risk", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, assessments, 0); err != nil {
			s.logger.Warn("cache risk", zap.Error(err))
		}
	}
	return assessments, false, nil
}

// SystemMetrics returns the instrumentation snapshot.
func (s *InsightsService) SystemMetrics() models.SystemMetrics {
	if s.metrics == nil {
		return models.SystemMetrics{}
	}
	return s.metrics.Snapshot()
}
