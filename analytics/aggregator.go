// Package analytics derives time-bucketed metrics, anomaly flags,
// forecasts, discount simulations, and product rankings from a snapshot
// of the sales event ledger. Every function here is pure and safe for
// concurrent use.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"financeadvisor/models"
)

// BucketStart truncates t to the start of its bucket for the given
// granularity. Weeks start on Monday. All bucket math is done in UTC so
// every caller sees the same bucket boundaries.
func BucketStart(t time.Time, g models.Granularity) time.Time {
	t = t.UTC()
	switch g {
	case models.GranularityWeekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case models.GranularityMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case models.GranularityQuarterly:
		qMonth := time.Month(((int(t.Month())-1)/3)*3 + 1)
		return time.Date(t.Year(), qMonth, 1, 0, 0, 0, 0, time.UTC)
	case models.GranularityYearly:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// nextBucket advances a bucket start to the next period.
func nextBucket(t time.Time, g models.Granularity) time.Time {
	switch g {
	case models.GranularityWeekly:
		return t.AddDate(0, 0, 7)
	case models.GranularityMonthly:
		return t.AddDate(0, 1, 0)
	case models.GranularityQuarterly:
		return t.AddDate(0, 3, 0)
	case models.GranularityYearly:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// Aggregate turns events into an ordered, zero-filled bucket sequence
// covering every period between start and end. Empty periods are present
// with zero values, never omitted. BucketEnd is exclusive; the last
// bucket is clipped to end when end falls mid-period. Only completed
// events count toward any bucket value, so the sum of bucketed revenue
// equals the sum of completed event totals in the same range exactly.
func Aggregate(events []models.SalesEvent, g models.Granularity, start, end time.Time) ([]models.TimeSeriesPoint, error) {
	if !models.ValidGranularities[g] {
		return nil, models.Errorf(models.ErrValidation, "unknown granularity %q", g)
	}
	if end.Before(start) {
		return nil, models.Errorf(models.ErrValidation, "end %s precedes start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	start = start.UTC()
	end = end.UTC()

	var points []models.TimeSeriesPoint
	index := make(map[time.Time]int)
	for bs := BucketStart(start, g); !bs.After(end); bs = nextBucket(bs, g) {
		be := nextBucket(bs, g)
		if be.After(end) {
			be = end
		}
		index[bs] = len(points)
		points = append(points, models.TimeSeriesPoint{
			BucketStart: bs,
			BucketEnd:   be,
			Revenue:     decimal.Zero,
			Margin:      decimal.Zero,
		})
	}

	for _, e := range events {
		if !e.CountsTowardRevenue() {
			continue
		}
		ts := e.Timestamp.UTC()
		if ts.Before(start) || ts.After(end) {
			continue
		}
		i, ok := index[BucketStart(ts, g)]
		if !ok {
			continue
		}
		points[i].Revenue = points[i].Revenue.Add(e.TotalAmount)
		points[i].Margin = points[i].Margin.Add(e.NetAmount)
		points[i].Units += e.Quantity
		points[i].OrderCount++
	}

	return points, nil
}

// GranularityForRange picks a bucket width that keeps the series at a
// readable resolution when the caller does not request one explicitly.
func GranularityForRange(start, end time.Time) models.Granularity {
	days := int(end.Sub(start).Hours() / 24)
	switch {
	case days <= 31:
		return models.GranularityDaily
	case days <= 183:
		return models.GranularityWeekly
	case days <= 1095:
		return models.GranularityMonthly
	default:
		return models.GranularityYearly
	}
}
