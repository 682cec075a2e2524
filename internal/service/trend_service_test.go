package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-insights-api/internal/models"
	appErrors "github.com/noah-isme/lms-insights-api/pkg/errors"
)

type metricProviderMock struct {
	values map[time.Time]float64
	err    error
}

func (m *metricProviderMock) MetricInWindow(ctx context.Context, metricName, subjectID string, window models.Window) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.values[window.From], nil
}

func trendWindows(base time.Time) (current, previous models.Window) {
	previous = models.Window{From: base.Add(-14 * 24 * time.Hour), Until: base.Add(-7 * 24 * time.Hour)}
	current = models.Window{From: base.Add(-7 * 24 * time.Hour), Until: base}
	return current, previous
}

func TestComputeTrendUp(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	current, previous := trendWindows(base)
	provider := &metricProviderMock{values: map[time.Time]float64{
		current.From:  80,
		previous.From: 60,
	}}
	svc := NewTrendService(provider, nil)

	result, err := svc.ComputeTrend(context.Background(), models.MetricAverageGrade, "course-1", current, previous)
	require.NoError(t, err)
	require.Equal(t, models.TrendUp, result.Direction)
	require.InDelta(t, 20.0, result.Delta, 0.001)
	require.InDelta(t, 80.0, result.CurrentValue, 0.001)
	require.InDelta(t, 60.0, result.PreviousValue, 0.001)
}

func TestComputeTrendDown(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	current, previous := trendWindows(base)
	provider := &metricProviderMock{values: map[time.Time]float64{
		current.From:  40,
		previous.From: 55,
	}}
	svc := NewTrendService(provider, nil)

	result, err := svc.ComputeTrend(context.Background(), models.MetricAverageGrade, "course-1", current, previous)
	require.NoError(t, err)
	require.Equal(t, models.TrendDown, result.Direction)
	require.InDelta(t, -15.0, result.Delta, 0.001)
}

func TestComputeTrendZeroPreviousIsFlat(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	current, previous := trendWindows(base)
	provider := &metricProviderMock{values: map[time.Time]float64{
		current.From:  75,
		previous.From: 0,
	}}
	svc := NewTrendService(provider, nil)

	result, err := svc.ComputeTrend(context.Background(), models.MetricEngagementScore, "course-1", current, previous)
	require.NoError(t, err)
	require.Equal(t, models.TrendFlat, result.Direction)
	require.Zero(t, result.Delta)
	require.InDelta(t, 75.0, result.CurrentValue, 0.001)
}

func TestComputeTrendInvertedWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	current := models.Window{From: base, Until: base.Add(-7 * 24 * time.Hour)}
	previous := models.Window{From: base.Add(-21 * 24 * time.Hour), Until: base.Add(-14 * 24 * time.Hour)}
	svc := NewTrendService(&metricProviderMock{}, nil)

	_, err := svc.ComputeTrend(context.Background(), models.MetricAverageGrade, "course-1", current, previous)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInconsistentWindow.Code, appErrors.FromError(err).Code)
}

func TestComputeTrendOverlappingWindows(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	current := models.Window{From: base.Add(-7 * 24 * time.Hour), Until: base}
	previous := models.Window{From: base.Add(-10 * 24 * time.Hour), Until: base.Add(-3 * 24 * time.Hour)}
	svc := NewTrendService(&metricProviderMock{}, nil)

	_, err := svc.ComputeTrend(context.Background(), models.MetricAverageGrade, "course-1", current, previous)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInconsistentWindow.Code, appErrors.FromError(err).Code)
}
