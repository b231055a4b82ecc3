// Package capacity fits a growth line over daily capacity history and
// estimates time to full. The engine only supplies numbers and a confidence
// signal; warning thresholds are policy owned by the caller.
package capacity

import (
	"math"
	"sort"
	"time"

	"github.com/qfleet/qfleet/internal/models"
)

const (
	// Fewer distinct days than this yields no projection at all.
	minDataPoints = 7

	// Fits below this R² are flagged low confidence.
	lowConfidenceRSquared = 0.5

	onPremWarnDays = 90
	cloudWarnDays  = 7
)

// HistoryPoint is one daily capacity sample.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	UsedBytes int64     `json:"used_bytes"`
}

// Project fits an ordinary least-squares line over the history and derives
// the projected days until usedBytes reaches totalBytes. It returns nil when
// fewer than minDataPoints distinct days are available. A non-positive slope
// yields a projection with no DaysToFull: stable or shrinking usage is never
// alarming regardless of current fill level.
func Project(history []HistoryPoint, totalBytes, usedBytes int64) *models.CapacityProjection {
	points := dedupeByDay(history)
	if len(points) < minDataPoints {
		return nil
	}

	slope, rSquared := fit(points)

	projection := &models.CapacityProjection{
		GrowthBytesPerDay: slope,
		RSquared:          rSquared,
		LowConfidence:     rSquared < lowConfidenceRSquared,
	}

	if slope <= 0 {
		return projection
	}

	remaining := float64(totalBytes - usedBytes)
	if remaining < 0 {
		remaining = 0
	}
	days := remaining / slope
	projection.DaysToFull = &days
	return projection
}

// ShouldWarn applies the type-specific fill-time policy: on-prem clusters
// warn under 90 days, cloud clusters (which can grow capacity quickly) only
// under 7.
func ShouldWarn(projection *models.CapacityProjection, clusterType models.ClusterType) bool {
	if projection == nil || projection.DaysToFull == nil {
		return false
	}
	threshold := float64(onPremWarnDays)
	if clusterType.IsCloud() {
		threshold = float64(cloudWarnDays)
	}
	return *projection.DaysToFull < threshold
}

// dedupeByDay collapses same-day samples keeping the last, and returns the
// survivors in time order.
func dedupeByDay(history []HistoryPoint) []HistoryPoint {
	byDay := make(map[string]HistoryPoint, len(history))
	for _, point := range history {
		day := point.Timestamp.UTC().Format("2006-01-02")
		existing, ok := byDay[day]
		if !ok || !point.Timestamp.Before(existing.Timestamp) {
			byDay[day] = point
		}
	}

	points := make([]HistoryPoint, 0, len(byDay))
	for _, point := range byDay {
		points = append(points, point)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

// fit runs ordinary least squares of used bytes against time measured in
// days since the first sample. A zero-variance x axis yields slope 0, and a
// zero-variance y axis (flat usage) reports a perfect fit.
func fit(points []HistoryPoint) (slope, rSquared float64) {
	n := float64(len(points))
	origin := points[0].Timestamp

	var sumX, sumY, sumXY, sumXX float64
	for _, point := range points {
		x := point.Timestamp.Sub(origin).Hours() / 24.0
		y := float64(point.UsedBytes)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denominator := n*sumXX - sumX*sumX
	if math.Abs(denominator) < 1e-10 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denominator
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for _, point := range points {
		x := point.Timestamp.Sub(origin).Hours() / 24.0
		y := float64(point.UsedBytes)
		predicted := intercept + slope*x
		ssRes += (y - predicted) * (y - predicted)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		return slope, 1.0
	}
	return slope, 1.0 - ssRes/ssTot
}
