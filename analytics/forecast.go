package analytics

import (
	"math"
	"sort"

	"financeadvisor/models"
)

// ForecastOptions tune the trend fit. The zero value fits on the last 30
// points with a 7-period seasonal cycle weighted 40% against the trend.
type ForecastOptions struct {
	// Lookback caps how many trailing points the trend is fitted on.
	Lookback int
	// SeasonLength is the seasonal-naive cycle. The seasonal adjustment
	// only applies when at least two full cycles of history exist.
	SeasonLength int
	// TrendWeight is the trend line's share of the blended prediction,
	// the remainder coming from the seasonal-naive value.
	TrendWeight float64
}

func (o *ForecastOptions) withDefaults() ForecastOptions {
	out := *o
	if out.Lookback <= 0 {
		out.Lookback = 30
	}
	if out.SeasonLength == 0 {
		out.SeasonLength = 7
	}
	if out.SeasonLength < 0 {
		// Negative disables the seasonal adjustment entirely.
		out.SeasonLength = 0
	}
	if out.TrendWeight <= 0 || out.TrendWeight > 1 {
		out.TrendWeight = 0.6
	}
	return out
}

// confidenceTable maps a confidence level to its two-sided normal
// multiplier. Intermediate levels are linearly interpolated.
var confidenceTable = []struct {
	level float64
	z     float64
}{
	{0.80, 1.2816},
	{0.85, 1.4395},
	{0.90, 1.6449},
	{0.95, 1.9600},
}

// zMultiplier returns the band multiplier for a confidence level in
// [0.80, 0.95]. Monotonically increasing in the level.
func zMultiplier(level float64) float64 {
	table := confidenceTable
	if level <= table[0].level {
		return table[0].z
	}
	if level >= table[len(table)-1].level {
		return table[len(table)-1].z
	}
	i := sort.Search(len(table), func(i int) bool { return table[i].level >= level })
	lo, hi := table[i-1], table[i]
	frac := (level - lo.level) / (hi.level - lo.level)
	return lo.z + frac*(hi.z-lo.z)
}

// Forecast projects the metric horizon periods past the end of the
// history. The prediction is a least-squares linear trend over the most
// recent points, blended with the seasonal-naive value (same position in
// the previous cycle) when enough history exists. The confidence band is
// the residual standard error of the fit scaled by the confidence
// multiplier, widening with distance from the fitted window, so a higher
// requested confidence and a longer horizon both yield a wider band. A
// flat all-zero history forecasts zero with a zero-width band.
func Forecast(points []models.TimeSeriesPoint, metric models.MetricName, horizon int, confidence float64, opts ForecastOptions) (*models.ForecastResult, error) {
	if !models.ValidMetrics[metric] {
		return nil, models.Errorf(models.ErrValidation, "unknown metric %q", metric)
	}
	if horizon <= 0 {
		return nil, models.Errorf(models.ErrValidation, "horizon must be positive, got %d", horizon)
	}
	if confidence < 0.8 || confidence > 0.95 {
		return nil, models.Errorf(models.ErrValidation, "confidence must be in [0.80, 0.95], got %g", confidence)
	}
	if len(points) < 2 {
		return nil, models.Errorf(models.ErrInsufficientHistory,
			"forecast needs at least 2 historical points, got %d", len(points))
	}
	opts = opts.withDefaults()

	full := make([]float64, len(points))
	for i := range points {
		full[i] = points[i].MetricValue(metric)
	}

	fitStart := 0
	if len(full) > opts.Lookback {
		fitStart = len(full) - opts.Lookback
	}
	fit := full[fitStart:]
	m := len(fit)

	intercept, slope := leastSquares(fit)
	se := residualStdError(fit, intercept, slope)

	seasonal := opts.SeasonLength > 0 && len(full) >= 2*opts.SeasonLength
	z := zMultiplier(confidence)

	result := &models.ForecastResult{
		HorizonPeriods:  horizon,
		PredictedValues: make([]float64, horizon),
		LowerBound:      make([]float64, horizon),
		UpperBound:      make([]float64, horizon),
		ConfidenceLevel: confidence,
	}

	for h := 1; h <= horizon; h++ {
		trend := intercept + slope*float64(m-1+h)

		predicted := trend
		if seasonal {
			idx := len(full) - opts.SeasonLength + (h-1)%opts.SeasonLength
			predicted = opts.TrendWeight*trend + (1-opts.TrendWeight)*full[idx]
		}

		width := z * se * math.Sqrt(1+float64(h)/float64(m))
		result.PredictedValues[h-1] = predicted
		result.LowerBound[h-1] = predicted - width
		result.UpperBound[h-1] = predicted + width
	}
	return result, nil
}

// leastSquares fits y = intercept + slope*x over x = 0..n-1.
func leastSquares(values []float64) (intercept, slope float64) {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return sumY / n, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return intercept, slope
}

// residualStdError is the standard error of the fit's residuals, with
// the two fitted parameters as lost degrees of freedom.
func residualStdError(values []float64, intercept, slope float64) float64 {
	n := len(values)
	if n <= 2 {
		return 0
	}
	var sq float64
	for i, y := range values {
		r := y - (intercept + slope*float64(i))
		sq += r * r
	}
	return math.Sqrt(sq / float64(n-2))
}
