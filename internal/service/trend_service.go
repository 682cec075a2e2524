package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-insights-api/internal/models"
	appErrors "github.com/noah-isme/lms-insights-api/pkg/errors"
)

// MetricProvider supplies a metric value bounded to one time window.
type MetricProvider interface {
	MetricInWindow(ctx context.Context, metricName, subjectID string, window models.Window) (float64, error)
}

// TrendService compares one metric across two disjoint time windows.
type TrendService struct {
	provider MetricProvider
	logger   *zap.Logger
}

// NewTrendService constructs the service.
func NewTrendService(provider MetricProvider, logger *zap.Logger) *TrendService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrendService{provider: provider, logger: logger}
}

// ComputeTrend evaluates the metric in each window independently and
// reports the signed delta. Overlapping or inverted windows fail fast;
// a meaningless delta is never computed silently. When the previous window
// yields zero the direction is forced to flat and the delta to zero, a
// deliberate policy against reporting infinite relative change.
func (s *TrendService) ComputeTrend(ctx context.Context, metricName, subjectID string, current, previous models.Window) (models.TrendResult, error) {
	if current.Inverted() || previous.Inverted() {
		return models.TrendResult{}, appErrors.Clone(appErrors.ErrInconsistentWindow, "trend window bounds are inverted")
	}
	if current.Overlaps(previous) {
		return models.TrendResult{}, appErrors.ErrInconsistentWindow
	}

	currentValue, err := s.provider.MetricInWindow(ctx, metricName, subjectID, current)
	if err != nil {
		return models.TrendResult{}, err
	}
	previousValue, err := s.provider.MetricInWindow(ctx, metricName, subjectID, previous)
	if err != nil {
		return models.TrendResult{}, err
	}

	result := models.TrendResult{
		MetricName:    metricName,
		SubjectID:     subjectID,
		CurrentValue:  currentValue,
		PreviousValue: previousValue,
	}

	if previousValue == 0 {
		result.Direction = models.TrendFlat
		return result, nil
	}

	result.Delta = Delta(currentValue, previousValue)
	switch {
	case result.Delta > 0:
		result.Direction = models.TrendUp
	case result.Delta < 0:
		result.Direction = models.TrendDown
	default:
		result.Direction = models.TrendFlat
	}
	return result, nil
}
