package service

import (
	"hash/fnv"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-insights-api/internal/models"
)

// FallbackService supplies substitute values when the event snapshot holds
// no records for a required computation, so downstream consumers never see
// an absent result. Deterministic zero defaults are always available;
// "realistic" placeholder figures for demo rendering are gated behind the
// allow flag and seeded per subject id, so repeated calls for the same
// subject agree without any mutable state.
type FallbackService struct {
	allowPlaceholders bool
	logger            *zap.Logger
}

// NewFallbackService constructs the fallback layer.
func NewFallbackService(allowPlaceholders bool, logger *zap.Logger) *FallbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackService{allowPlaceholders: allowPlaceholders, logger: logger}
}

// PlaceholdersAllowed reports whether demo placeholders are enabled.
func (s *FallbackService) PlaceholdersAllowed() bool {
	return s != nil && s.allowPlaceholders
}

// Metric builds a MetricResult from a primitive Measure. When the measure
// carries no data and placeholders are enabled, a seeded placeholder value
// is substituted; the NoData flag is kept either way so the result is
// never mistaken for a real measurement.
func (s *FallbackService) Metric(subjectID, metricName string, m Measure, sampleSize int, at time.Time) models.MetricResult {
	result := models.MetricResult{
		SubjectID:  subjectID,
		MetricName: metricName,
		Value:      m.Value,
		SampleSize: sampleSize,
		NoData:     m.NoData,
		ComputedAt: at,
	}
	if m.NoData && s.PlaceholdersAllowed() {
		result.Value = s.placeholderFor(subjectID, metricName)
	}
	return result
}

// placeholderFor derives a stable pseudo-random value from the subject and
// metric name. The range depends on the metric's shape.
func (s *FallbackService) placeholderFor(subjectID, metricName string) float64 {
	rng := seededRand(subjectID + ":" + metricName)
	switch metricName {
	case models.MetricEngagementScore, models.MetricCompletionRate,
		models.MetricMeanProgress, models.MetricCourseProgress:
		return float64(35 + rng.Intn(61)) // 35..95
	case models.MetricAverageGrade:
		return float64(55 + rng.Intn(41)) // 55..95
	default:
		return float64(rng.Intn(101))
	}
}

func seededRand(key string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}
