package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"financeadvisor/models"
)

// SummaryOptions select the optional sections of a sales summary.
type SummaryOptions struct {
	IncludeComparison bool
	IncludeProjection bool
	// PreviousEvents is the preceding window of equal length, required
	// when IncludeComparison is set.
	PreviousEvents []models.SalesEvent
	// ProjectionHorizon is the number of daily periods projected when
	// IncludeProjection is set.
	ProjectionHorizon int
	Confidence        float64
	Forecast          ForecastOptions
}

// Summarize aggregates a window of events into headline figures. The
// projection section is omitted (not errored) when the window holds too
// little history to forecast from.
func Summarize(events []models.SalesEvent, start, end time.Time, opts SummaryOptions) (*models.SalesSummary, error) {
	summary := &models.SalesSummary{
		WindowStart:       start,
		WindowEnd:         end,
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
	}

	for _, e := range events {
		if !e.CountsTowardRevenue() {
			continue
		}
		summary.TotalRevenue = summary.TotalRevenue.Add(e.TotalAmount)
		summary.TotalUnits += e.Quantity
		summary.OrderCount++
	}
	if summary.OrderCount > 0 {
		summary.AverageOrderValue = summary.TotalRevenue.Div(decimal.NewFromInt(int64(summary.OrderCount)))
	}

	top, err := RankProducts(events, RankingOptions{
		SortBy: SortByRevenue, Limit: 5, WindowStart: start, WindowEnd: end,
	})
	if err != nil {
		return nil, err
	}
	summary.TopProducts = top

	if opts.IncludeComparison {
		summary.Comparison = compareWindows(summary, start, end, opts.PreviousEvents)
	}

	if opts.IncludeProjection {
		projection, err := projectWindow(events, start, end, opts)
		if err != nil && !models.IsKind(err, models.ErrInsufficientHistory) {
			return nil, err
		}
		summary.Projection = projection
	}

	return summary, nil
}

func compareWindows(current *models.SalesSummary, start, end time.Time, previous []models.SalesEvent) *models.WindowComparison {
	length := end.Sub(start)
	cmp := &models.WindowComparison{
		PreviousStart:   start.Add(-length),
		PreviousEnd:     start,
		PreviousRevenue: decimal.Zero,
	}

	for _, e := range previous {
		if !e.CountsTowardRevenue() {
			continue
		}
		cmp.PreviousRevenue = cmp.PreviousRevenue.Add(e.TotalAmount)
		cmp.PreviousOrderCount++
	}

	cmp.RevenueChangePercent = growthPercent(cmp.PreviousRevenue, current.TotalRevenue)
	cmp.OrderChangePercent = growthPercent(
		decimal.NewFromInt(int64(cmp.PreviousOrderCount)),
		decimal.NewFromInt(int64(current.OrderCount)),
	)
	return cmp
}

func projectWindow(events []models.SalesEvent, start, end time.Time, opts SummaryOptions) (*models.ForecastResult, error) {
	points, err := Aggregate(events, models.GranularityDaily, start, end)
	if err != nil {
		return nil, err
	}

	horizon := opts.ProjectionHorizon
	if horizon <= 0 {
		horizon = 7
	}
	confidence := opts.Confidence
	if confidence == 0 {
		confidence = 0.9
	}
	return Forecast(points, models.MetricRevenue, horizon, confidence, opts.Forecast)
}
