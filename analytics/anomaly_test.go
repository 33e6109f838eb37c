package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financeadvisor/models"
)

// series builds daily revenue buckets from raw values.
func series(values ...float64) []models.TimeSeriesPoint {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.TimeSeriesPoint, len(values))
	for i, v := range values {
		points[i] = models.TimeSeriesPoint{
			BucketStart: base.AddDate(0, 0, i),
			BucketEnd:   base.AddDate(0, 0, i+1),
			Revenue:     decimal.NewFromFloat(v),
		}
	}
	return points
}

func TestDetectAnomaliesFlagsSingleSpike(t *testing.T) {
	// Thirty days of stable revenue wiggling one unit around 100, with a
	// tenfold spike on day 20.
	values := make([]float64, 30)
	for i := range values {
		if i%2 == 0 {
			values[i] = 99
		} else {
			values[i] = 101
		}
	}
	values[20] = 1000

	records, err := DetectAnomalies(series(values...), models.MetricRevenue, AnomalyOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1, "exactly the spike should be flagged")

	spike := records[0]
	assert.Equal(t, time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC), spike.Timestamp)
	assert.Equal(t, float64(1000), spike.ObservedValue)
	assert.InDelta(t, 100, spike.ExpectedValue, 1.5)
	assert.Greater(t, spike.ZScore, 3.0)
	assert.Equal(t, models.SeverityCritical, spike.Severity)
}

func TestDetectAnomaliesFlatWindow(t *testing.T) {
	// A flat window has zero stddev: equal values pass, any deviation is
	// infinitely unusual.
	values := []float64{50, 50, 50, 50, 50, 50, 50, 50, 100}

	records, err := DetectAnomalies(series(values...), models.MetricRevenue, AnomalyOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, math.IsInf(records[0].ZScore, 1))
	assert.Equal(t, models.SeverityCritical, records[0].Severity)
}

func TestDetectAnomaliesBoundary(t *testing.T) {
	// Window [0, 2] has mean 1 and stddev 1, so an observation of 4 sits
	// exactly at z = 3.
	points := series(0, 2, 4)

	strict, err := DetectAnomalies(points, models.MetricRevenue, AnomalyOptions{Window: 2, Threshold: 3})
	require.NoError(t, err)
	assert.Empty(t, strict, "a point exactly at the threshold is not flagged")

	inclusive, err := DetectAnomalies(points, models.MetricRevenue, AnomalyOptions{Window: 2, Threshold: 3, InclusiveBoundary: true})
	require.NoError(t, err)
	require.Len(t, inclusive, 1)
	assert.InDelta(t, 3.0, inclusive[0].ZScore, 1e-9)
}

func TestDetectAnomaliesShortSeries(t *testing.T) {
	// Fewer points than the window: nothing to compare against, no error.
	records, err := DetectAnomalies(series(1, 2, 3), models.MetricRevenue, AnomalyOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDetectAnomaliesUnknownMetric(t *testing.T) {
	_, err := DetectAnomalies(series(1, 2, 3), "profit", AnomalyOptions{})
	assert.True(t, models.IsKind(err, models.ErrValidation))
}
