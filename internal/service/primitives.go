package service

import "math"

// Measure is the result of a metric primitive: a defined value plus a
// validity flag. Primitives never return NaN and never fail; a zero
// denominator or empty input yields {0, NoData: true} so pipelines keep
// running over datasets with missing cells.
type Measure struct {
	Value  float64
	NoData bool
}

// Percentage returns numerator/denominator scaled to [0, 100]. A zero
// denominator resolves to a no-data zero instead of a division error.
func Percentage(numerator, denominator float64) Measure {
	if denominator == 0 {
		return Measure{NoData: true}
	}
	value := numerator / denominator * 100
	return Measure{Value: clamp(value, 0, 100)}
}

// Average returns the arithmetic mean. Empty input yields a no-data zero,
// not NaN.
func Average(values []float64) Measure {
	if len(values) == 0 {
		return Measure{NoData: true}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return Measure{Value: sum / float64(len(values))}
}

// Rate normalises an event count over a rolling window: the average
// number of events per population member per day. Zero population or a
// non-positive window resolves to a no-data zero.
func Rate(count, total, windowDays int) Measure {
	if total <= 0 || windowDays <= 0 {
		return Measure{NoData: true}
	}
	return Measure{Value: float64(count) / (float64(total) * float64(windowDays))}
}

// Delta returns the signed difference current - previous.
func Delta(current, previous float64) float64 {
	return current - previous
}

// RoundHalfUp rounds to the nearest integer with halves rounding up.
func RoundHalfUp(value float64) int {
	return int(math.Floor(value + 0.5))
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
