package analytics

import (
	"math"

	"financeadvisor/models"
)

// AnomalyOptions tune the rolling z-score detector. The zero value is
// usable: a 7-point window, threshold 3.0, strict boundary.
type AnomalyOptions struct {
	// Window is the number of trailing points the expectation is computed
	// over. The current point is never part of its own window.
	Window int
	// Threshold is the z-score a point must exceed to be flagged.
	Threshold float64
	// InclusiveBoundary flags points sitting exactly at the threshold.
	// Off by default so noise equal to the threshold does not flap.
	InclusiveBoundary bool
}

func (o *AnomalyOptions) withDefaults() AnomalyOptions {
	out := *o
	if out.Window <= 0 {
		out.Window = 7
	}
	if out.Threshold <= 0 {
		out.Threshold = 3.0
	}
	return out
}

// DetectAnomalies flags buckets whose metric deviates from the rolling
// mean of the preceding window by more than the threshold in standard
// deviations. Points before the window fills are skipped, not errored:
// there is no expectation to compare them against yet.
func DetectAnomalies(points []models.TimeSeriesPoint, metric models.MetricName, opts AnomalyOptions) ([]models.AnomalyRecord, error) {
	if !models.ValidMetrics[metric] {
		return nil, models.Errorf(models.ErrValidation, "unknown metric %q", metric)
	}
	opts = opts.withDefaults()

	var records []models.AnomalyRecord
	for i := opts.Window; i < len(points); i++ {
		window := points[i-opts.Window : i]
		mean, stddev := meanStddev(window, metric)
		observed := points[i].MetricValue(metric)

		var z float64
		if stddev == 0 {
			if observed == mean {
				continue
			}
			// A flat window makes any deviation infinitely unusual.
			z = math.Inf(1)
			if observed < mean {
				z = math.Inf(-1)
			}
		} else {
			z = (observed - mean) / stddev
		}

		abs := math.Abs(z)
		flagged := abs > opts.Threshold
		if opts.InclusiveBoundary {
			flagged = abs >= opts.Threshold
		}
		if !flagged {
			continue
		}

		records = append(records, models.AnomalyRecord{
			Metric:        metric,
			Timestamp:     points[i].BucketStart,
			ObservedValue: observed,
			ExpectedValue: mean,
			ZScore:        z,
			Severity:      severityFor(abs, opts.Threshold),
		})
	}
	return records, nil
}

// meanStddev computes the population mean and standard deviation of the
// chosen metric over a window.
func meanStddev(window []models.TimeSeriesPoint, metric models.MetricName) (float64, float64) {
	n := float64(len(window))
	var sum float64
	for i := range window {
		sum += window[i].MetricValue(metric)
	}
	mean := sum / n

	var sq float64
	for i := range window {
		d := window[i].MetricValue(metric) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}

// severityFor grades a z-score relative to the flagging threshold.
func severityFor(absZ, threshold float64) models.AnomalySeverity {
	switch {
	case absZ >= 2*threshold:
		return models.SeverityCritical
	case absZ >= 1.5*threshold:
		return models.SeverityHigh
	case absZ >= 1.25*threshold:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
