package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-insights-api/internal/models"
	appErrors "github.com/noah-isme/lms-insights-api/pkg/errors"
)

// Cache key builders for insight payloads. Invalidation relies on the
// "insights:course:<id>:*" prefix, so every course-scoped key must start
// with CourseKeyPrefix.

func CourseKeyPrefix(courseID string) string {
	return fmt.Sprintf("insights:course:%s:", courseID)
}

func ClassStatsKey(courseID string) string {
	return CourseKeyPrefix(courseID) + "class-stats"
}

func ProgressKey(studentID, courseID string) string {
	return CourseKeyPrefix(courseID) + "progress:" + studentID
}

func TrendKey(courseID, metric string, current, previous models.Window) string {
	return fmt.Sprintf("%strend:%s:%d:%d:%d:%d", CourseKeyPrefix(courseID), metric,
		current.From.Unix(), current.Until.Unix(), previous.From.Unix(), previous.Until.Unix())
}

func LeaderboardKey(courseID, metric string, limit int) string {
	if courseID == "" {
		return fmt.Sprintf("insights:global:leaderboard:%s:%d", metric, limit)
	}
	return fmt.Sprintf("%sleaderboard:%s:%d", CourseKeyPrefix(courseID), metric, limit)
}

func RiskKey(courseID string) string {
	return CourseKeyPrefix(courseID) + "risk"
}

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(false, duration)
			}
			return false, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false, duration)
		}
		if s.logger != nil {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false, err
	}
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(true, duration)
	}
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	if s.metrics != nil {
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// InvalidateCourse drops every cached insight for the course.
func (s *CacheService) InvalidateCourse(ctx context.Context, courseID string) error {
	return s.Invalidate(ctx, CourseKeyPrefix(courseID)+"*")
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		if s.logger != nil {
			s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		}
		return err
	}
	return nil
}
