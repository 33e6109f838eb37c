package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeSeriesPoint is one fixed-width bucket in an aggregated series.
// Sequences are ordered by BucketStart and zero-filled, so callers can
// assume a uniform bucket count for any date range.
type TimeSeriesPoint struct {
	BucketStart time.Time       `json:"bucketStart"`
	BucketEnd   time.Time       `json:"bucketEnd"`
	Revenue     decimal.Decimal `json:"revenue"`
	Units       int             `json:"units"`
	OrderCount  int             `json:"orderCount"`
	Margin      decimal.Decimal `json:"margin"`
}

// MetricName selects which bucket value an analysis operates on.
type MetricName string

const (
	MetricRevenue MetricName = "revenue"
	MetricUnits   MetricName = "units"
	MetricOrders  MetricName = "orders"
	MetricMargin  MetricName = "margin"
)

// ValidMetrics maps every accepted metric string.
var ValidMetrics = map[MetricName]bool{
	MetricRevenue: true,
	MetricUnits:   true,
	MetricOrders:  true,
	MetricMargin:  true,
}

// MetricValue returns the selected metric of a bucket as a float for
// statistical computations.
func (p *TimeSeriesPoint) MetricValue(metric MetricName) float64 {
	switch metric {
	case MetricUnits:
		return float64(p.Units)
	case MetricOrders:
		return float64(p.OrderCount)
	case MetricMargin:
		return p.Margin.InexactFloat64()
	default:
		return p.Revenue.InexactFloat64()
	}
}

// AnomalySeverity grades how far an observation sits from its rolling
// expectation.
type AnomalySeverity string

const (
	SeverityLow      AnomalySeverity = "low"
	SeverityMedium   AnomalySeverity = "medium"
	SeverityHigh     AnomalySeverity = "high"
	SeverityCritical AnomalySeverity = "critical"
)

// AnomalyRecord flags one statistically unusual bucket.
type AnomalyRecord struct {
	Metric        MetricName      `json:"metric"`
	Timestamp     time.Time       `json:"timestamp"`
	ObservedValue float64         `json:"observedValue"`
	ExpectedValue float64         `json:"expectedValue"`
	ZScore        float64         `json:"zScore"`
	Severity      AnomalySeverity `json:"severity"`
}

// ForecastResult projects future buckets with a confidence band. The band
// widens with the horizon and with the requested confidence level.
type ForecastResult struct {
	HorizonPeriods  int       `json:"horizonPeriods"`
	PredictedValues []float64 `json:"predictedValues"`
	LowerBound      []float64 `json:"lowerBound"`
	UpperBound      []float64 `json:"upperBound"`
	ConfidenceLevel float64   `json:"confidenceLevel"`
}

// DiscountSimulation compares baseline revenue/margin against the
// projection under a hypothetical discount and caller-supplied volume
// elasticity.
type DiscountSimulation struct {
	ProductID             string          `json:"productId"`
	DiscountPercent       float64         `json:"discountPercent"`
	VolumeIncreasePercent float64         `json:"volumeIncreasePercent"`
	BaselinePrice         decimal.Decimal `json:"baselinePrice"`
	BaselineVolume        int             `json:"baselineVolume"`
	BaselineRevenue       decimal.Decimal `json:"baselineRevenue"`
	BaselineMargin        decimal.Decimal `json:"baselineMargin"`
	ProjectedPrice        decimal.Decimal `json:"projectedPrice"`
	ProjectedVolume       decimal.Decimal `json:"projectedVolume"`
	ProjectedRevenue      decimal.Decimal `json:"projectedRevenue"`
	ProjectedMargin       decimal.Decimal `json:"projectedMargin"`
	MarginBecomesNegative bool            `json:"marginBecomesNegative"`
}

// ProductRanking is one row of a top/bottom products listing.
type ProductRanking struct {
	Rank       int             `json:"rank"`
	ProductID  string          `json:"productId"`
	Revenue    decimal.Decimal `json:"revenue"`
	Units      int             `json:"units"`
	OrderCount int             `json:"orderCount"`
	Margin     decimal.Decimal `json:"margin"`
	Growth     float64         `json:"growth"`
}

// SalesSummary aggregates a window into headline figures, optionally with
// a comparison against the preceding window of equal length and a revenue
// projection.
type SalesSummary struct {
	WindowStart       time.Time          `json:"windowStart"`
	WindowEnd         time.Time          `json:"windowEnd"`
	TotalRevenue      decimal.Decimal    `json:"totalRevenue"`
	TotalUnits        int                `json:"totalUnits"`
	OrderCount        int                `json:"orderCount"`
	AverageOrderValue decimal.Decimal    `json:"averageOrderValue"`
	Comparison        *WindowComparison  `json:"comparison,omitempty"`
	Projection        *ForecastResult    `json:"projection,omitempty"`
	TopProducts       []ProductRanking   `json:"topProducts,omitempty"`
}

// WindowComparison holds the previous window's figures and the
// change expressed as a percentage of the previous value.
type WindowComparison struct {
	PreviousStart        time.Time       `json:"previousStart"`
	PreviousEnd          time.Time       `json:"previousEnd"`
	PreviousRevenue      decimal.Decimal `json:"previousRevenue"`
	PreviousOrderCount   int             `json:"previousOrderCount"`
	RevenueChangePercent float64         `json:"revenueChangePercent"`
	OrderChangePercent   float64         `json:"orderChangePercent"`
}
