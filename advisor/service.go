package advisor

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"financeadvisor/analytics"
	"financeadvisor/models"
	"financeadvisor/store"
	"financeadvisor/utils"
)

// Policy carries the documented analytics defaults. Zero values fall
// back to the engine's built-in choices.
type Policy struct {
	AnomalyWindow     int
	AnomalyThreshold  float64
	ForecastLookback  int
	ForecastSeasonLen int
	DefaultConfidence float64
	QueryTimeout      time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.AnomalyWindow <= 0 {
		p.AnomalyWindow = 7
	}
	if p.AnomalyThreshold <= 0 {
		p.AnomalyThreshold = 3.0
	}
	if p.ForecastLookback <= 0 {
		p.ForecastLookback = 30
	}
	if p.ForecastSeasonLen == 0 {
		p.ForecastSeasonLen = 7
	}
	if p.DefaultConfidence <= 0 {
		p.DefaultConfidence = 0.9
	}
	if p.QueryTimeout <= 0 {
		p.QueryTimeout = 10 * time.Second
	}
	return p
}

// Service routes validated tool requests to the analytics engine over a
// snapshot read from the event store. It holds no mutable state beyond
// its dependencies and is constructed explicitly: one instance per
// process, injected into the handlers that need it.
type Service struct {
	events store.SalesEventStore
	policy Policy
	now    func() time.Time
}

// NewService wires a facade over the given event store.
func NewService(events store.SalesEventStore, policy Policy) *Service {
	return &Service{
		events: events,
		policy: policy.withDefaults(),
		now:    time.Now,
	}
}

// WithClock overrides the facade's notion of now, for tests that pin
// relative time ranges.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Execute validates a tool request against its declared schema and
// dispatches it. The response envelope is uniform: either a result or a
// kinded error, never both.
func (s *Service) Execute(ctx context.Context, req ToolRequest) ToolResponse {
	if _, err := validateRequest(req); err != nil {
		return errorResponse(err)
	}
	p := params(req.Params)

	var (
		result interface{}
		err    error
	)
	switch req.Tool {
	case ToolFetchTimeseries:
		result, err = s.fetchTimeseries(ctx, p)
	case ToolTopProducts:
		result, err = s.rankProducts(ctx, p, false)
	case ToolBottomProducts:
		result, err = s.rankProducts(ctx, p, true)
	case ToolForecastRevenue:
		result, err = s.forecastRevenue(ctx, p)
	case ToolDetectAnomalies:
		result, err = s.detectAnomalies(ctx, p)
	case ToolSimulateDiscount:
		result, err = s.simulateDiscount(ctx, p)
	case ToolSalesSummary:
		result, err = s.salesSummary(ctx, p)
	}
	if err != nil {
		log.Printf("[ADVISOR] %s failed: %v", req.Tool, err)
		return errorResponse(err)
	}
	return ToolResponse{Success: true, Result: result}
}

// resolveWindow turns the timeRange token (and optional explicit
// startDate/endDate overrides) into a concrete window.
func (s *Service) resolveWindow(p params) (time.Time, time.Time, error) {
	startStr := p.str("startDate", "")
	endStr := p.str("endDate", "")
	if startStr != "" && endStr != "" {
		start, err := utils.ParseFlexibleDate(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, models.WrapError(models.ErrValidation, "invalid startDate", err)
		}
		end, err := utils.ParseFlexibleDate(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, models.WrapError(models.ErrValidation, "invalid endDate", err)
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, models.NewError(models.ErrValidation, "endDate precedes startDate")
		}
		return start, end, nil
	}

	start, end, err := utils.ParseTimeRange(p.str("timeRange", ""), s.now())
	if err != nil {
		return time.Time{}, time.Time{}, models.WrapError(models.ErrValidation, "invalid timeRange", err)
	}
	return start, end, nil
}

// snapshot reads the events backing one tool call, bounded by the
// policy's query timeout so a slow store read surfaces as
// service-unavailable instead of hanging the caller.
func (s *Service) snapshot(ctx context.Context, filter store.EventFilter) ([]models.SalesEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.policy.QueryTimeout)
	defer cancel()

	events, err := s.events.QueryRange(ctx, filter)
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.WrapError(models.ErrServiceUnavailable, "store read timed out", err)
		}
		return nil, err
	}
	return events, nil
}

func (s *Service) fetchTimeseries(ctx context.Context, p params) ([]models.TimeSeriesPoint, error) {
	start, end, err := s.resolveWindow(p)
	if err != nil {
		return nil, err
	}

	granularity := models.Granularity(p.str("granularity", ""))
	if granularity == "" {
		granularity = analytics.GranularityForRange(start, end)
	}

	events, err := s.snapshot(ctx, store.EventFilter{
		ArtisanID: p.str("artisanId", ""),
		ProductID: p.str("productId", ""),
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, err
	}
	return analytics.Aggregate(events, granularity, start, end)
}

func (s *Service) rankProducts(ctx context.Context, p params, bottom bool) ([]models.ProductRanking, error) {
	start, end, err := s.resolveWindow(p)
	if err != nil {
		return nil, err
	}

	limit, err := p.integer("limit", 10)
	if err != nil {
		return nil, err
	}

	events, err := s.snapshot(ctx, store.EventFilter{
		ArtisanID: p.str("artisanId", ""),
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, err
	}

	return analytics.RankProducts(events, analytics.RankingOptions{
		SortBy:      analytics.SortKey(p.str("sortBy", string(analytics.SortByRevenue))),
		Limit:       limit,
		Bottom:      bottom,
		Category:    p.str("category", ""),
		MinRevenue:  decimal.NewFromFloat(p.num("minRevenue", 0)),
		WindowStart: start,
		WindowEnd:   end,
	})
}

func (s *Service) forecastRevenue(ctx context.Context, p params) (*models.ForecastResult, error) {
	horizon, err := p.integer("horizon", 0)
	if err != nil {
		return nil, err
	}
	confidence := p.num("confidence", s.policy.DefaultConfidence)

	// History window: enough daily buckets to cover the fit lookback and
	// two seasonal cycles.
	end := s.now()
	days := s.policy.ForecastLookback + 2*s.policy.ForecastSeasonLen
	if days < 90 {
		days = 90
	}
	start := end.AddDate(0, 0, -days)

	events, err := s.snapshot(ctx, store.EventFilter{
		ArtisanID: p.str("artisanId", ""),
		ProductID: p.str("productId", ""),
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, err
	}

	points, err := analytics.Aggregate(events, models.GranularityDaily, start, end)
	if err != nil {
		return nil, err
	}
	return analytics.Forecast(points, models.MetricRevenue, horizon, confidence, analytics.ForecastOptions{
		Lookback:     s.policy.ForecastLookback,
		SeasonLength: s.policy.ForecastSeasonLen,
	})
}

func (s *Service) detectAnomalies(ctx context.Context, p params) ([]models.AnomalyRecord, error) {
	start, end, err := s.resolveWindow(p)
	if err != nil {
		return nil, err
	}
	metric := models.MetricName(p.str("metric", ""))

	events, err := s.snapshot(ctx, store.EventFilter{
		ArtisanID: p.str("artisanId", ""),
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, err
	}

	points, err := analytics.Aggregate(events, models.GranularityDaily, start, end)
	if err != nil {
		return nil, err
	}
	return analytics.DetectAnomalies(points, metric, analytics.AnomalyOptions{
		Window:    s.policy.AnomalyWindow,
		Threshold: p.num("threshold", s.policy.AnomalyThreshold),
	})
}

func (s *Service) simulateDiscount(ctx context.Context, p params) (*models.DiscountSimulation, error) {
	productID := p.str("productId", "")

	// Baseline window defaults to the last 30 days when not specified.
	timeRange := p.str("timeRange", "30d")
	start, end, err := utils.ParseTimeRange(timeRange, s.now())
	if err != nil {
		return nil, models.WrapError(models.ErrValidation, "invalid timeRange", err)
	}

	events, err := s.snapshot(ctx, store.EventFilter{ProductID: productID, Start: start, End: end})
	if err != nil {
		return nil, err
	}

	baseline := analytics.BaselineFromEvents(productID, events)
	return analytics.SimulateDiscount(baseline,
		p.num("discountPercent", 0),
		p.num("expectedVolumeIncrease", 0),
	)
}

func (s *Service) salesSummary(ctx context.Context, p params) (*models.SalesSummary, error) {
	start, end, err := s.resolveWindow(p)
	if err != nil {
		return nil, err
	}

	filter := store.EventFilter{ArtisanID: p.str("artisanId", ""), Start: start, End: end}
	events, err := s.snapshot(ctx, filter)
	if err != nil {
		return nil, err
	}

	opts := analytics.SummaryOptions{
		IncludeComparison: p.boolean("includeComparisons", false),
		IncludeProjection: p.boolean("includeProjections", false),
		Confidence:        s.policy.DefaultConfidence,
		Forecast: analytics.ForecastOptions{
			Lookback:     s.policy.ForecastLookback,
			SeasonLength: s.policy.ForecastSeasonLen,
		},
	}

	if opts.IncludeComparison {
		length := end.Sub(start)
		previous, err := s.snapshot(ctx, store.EventFilter{
			ArtisanID: filter.ArtisanID,
			Start:     start.Add(-length),
			End:       start,
		})
		if err != nil {
			return nil, err
		}
		opts.PreviousEvents = previous
	}

	return analytics.Summarize(events, start, end, opts)
}
