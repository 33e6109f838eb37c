package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the settlement state of a sales event. Only completed
// events count toward revenue metrics.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// ValidPaymentStatuses maps every accepted payment status string.
var ValidPaymentStatuses = map[PaymentStatus]bool{
	PaymentPending:   true,
	PaymentCompleted: true,
	PaymentFailed:    true,
	PaymentRefunded:  true,
}

// amountTolerance absorbs rounding differences when checking the total
// amount invariant on ingested events.
var amountTolerance = decimal.NewFromFloat(0.01)

// SalesEvent is one transaction line in the canonical event ledger.
// OrderID is the upsert key; a later upsert with the same OrderID
// supersedes the stored event (e.g. a refund flipping PaymentStatus).
type SalesEvent struct {
	OrderID       string          `json:"orderId"`
	ArtisanID     string          `json:"artisanId"`
	ProductID     string          `json:"productId"`
	Category      string          `json:"category,omitempty"`
	BuyerID       string          `json:"buyerId"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	ShippingCost  decimal.Decimal `json:"shippingCost"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	NetAmount     decimal.Decimal `json:"netAmount"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	OrderStatus   string          `json:"orderStatus"`
	Timestamp     time.Time       `json:"timestamp"`
	Region        string          `json:"region,omitempty"`
	Currency      string          `json:"currency,omitempty"`
}

// Validate checks the ledger invariants for a single event:
// a positive quantity, a known payment status, net ≤ total, and
// total = quantity×unitPrice − discount + tax + shipping within a
// rounding tolerance. A violation is reported as a data integrity error
// so the caller can skip the event without aborting its batch.
func (e *SalesEvent) Validate() error {
	if e.OrderID == "" {
		return NewError(ErrDataIntegrity, "sales event is missing orderId")
	}
	if e.Quantity <= 0 {
		return Errorf(ErrDataIntegrity, "order %s: quantity must be positive, got %d", e.OrderID, e.Quantity)
	}
	if !ValidPaymentStatuses[e.PaymentStatus] {
		return Errorf(ErrDataIntegrity, "order %s: unknown payment status %q", e.OrderID, e.PaymentStatus)
	}
	if e.Timestamp.IsZero() {
		return Errorf(ErrDataIntegrity, "order %s: missing event timestamp", e.OrderID)
	}
	if e.NetAmount.GreaterThan(e.TotalAmount) {
		return Errorf(ErrDataIntegrity, "order %s: netAmount %s exceeds totalAmount %s",
			e.OrderID, e.NetAmount, e.TotalAmount)
	}

	expected := e.UnitPrice.Mul(decimal.NewFromInt(int64(e.Quantity))).
		Sub(e.Discount).
		Add(e.Tax).
		Add(e.ShippingCost)
	if expected.Sub(e.TotalAmount).Abs().GreaterThan(amountTolerance) {
		return Errorf(ErrDataIntegrity, "order %s: totalAmount %s does not match computed %s",
			e.OrderID, e.TotalAmount, expected)
	}
	return nil
}

// CountsTowardRevenue reports whether the event contributes to revenue
// metrics.
func (e *SalesEvent) CountsTowardRevenue() bool {
	return e.PaymentStatus == PaymentCompleted
}

// JobStatus is the state of a backfill job. Transitions:
// pending → running → {paused, completed, failed}. Completed and failed
// jobs are immutable; paused jobs can be resumed.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobPaused    JobStatus = "paused"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsTerminal reports whether the job can no longer change state.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// BackfillJob is the persisted record of one resumable ingestion run.
// Cursor is the last successfully committed order id and only advances
// monotonically within a job; it is the resume token after a crash.
type BackfillJob struct {
	JobID          string     `json:"jobId"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        time.Time  `json:"endDate"`
	ChunkSize      int        `json:"chunkSize"`
	Cursor         string     `json:"cursor"`
	Status         JobStatus  `json:"status"`
	ProcessedCount int        `json:"processedCount"`
	ErrorCount     int        `json:"errorCount"`
	DryRun         bool       `json:"dryRun"`
	LastError      string     `json:"lastError,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// Granularity is the bucket width of an aggregated time series.
type Granularity string

const (
	GranularityDaily     Granularity = "daily"
	GranularityWeekly    Granularity = "weekly"
	GranularityMonthly   Granularity = "monthly"
	GranularityQuarterly Granularity = "quarterly"
	GranularityYearly    Granularity = "yearly"
)

// ValidGranularities maps every accepted granularity string.
var ValidGranularities = map[Granularity]bool{
	GranularityDaily:     true,
	GranularityWeekly:    true,
	GranularityMonthly:   true,
	GranularityQuarterly: true,
	GranularityYearly:    true,
}
