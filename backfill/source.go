// Package backfill moves historical marketplace orders into the sales
// event ledger through a crash-safe, resumable, chunked job.
package backfill

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"financeadvisor/models"
)

// UpstreamOrder is one historical order as reported by the order source,
// before normalization into a SalesEvent.
type UpstreamOrder struct {
	OrderID       string
	ArtisanID     string
	ProductID     string
	Category      string
	BuyerID       string
	Quantity      int
	UnitPrice     decimal.Decimal
	Discount      decimal.Decimal
	Tax           decimal.Decimal
	ShippingCost  decimal.Decimal
	TotalAmount   decimal.Decimal
	NetAmount     decimal.Decimal
	PaymentStatus string
	OrderStatus   string
	OrderedAt     time.Time
	Region        string
	Currency      string
}

// Page is one bounded batch of upstream orders. Exhausted means the
// source has no orders after this page for the requested window.
type Page struct {
	Orders    []UpstreamOrder
	Exhausted bool
}

// OrderSource yields historical orders in ascending order-id sequence so
// the last id of each page is a valid resume cursor. Implementations
// report transient I/O failures as upstream fetch errors; the pipeline
// retries those with backoff.
type OrderSource interface {
	FetchPage(ctx context.Context, start, end time.Time, afterOrderID string, limit int) (Page, error)
}

// paymentStatusMap normalizes the status vocabulary used by the
// marketplace's order tables ("succeeded", "paid", "cancelled", ...) to
// the ledger's enum.
var paymentStatusMap = map[string]models.PaymentStatus{
	"pending":   models.PaymentPending,
	"completed": models.PaymentCompleted,
	"succeeded": models.PaymentCompleted,
	"paid":      models.PaymentCompleted,
	"failed":    models.PaymentFailed,
	"cancelled": models.PaymentFailed,
	"canceled":  models.PaymentFailed,
	"refunded":  models.PaymentRefunded,
}

// Transform normalizes an upstream order into a ledger event. Unknown
// payment statuses pass through unchanged and are rejected later by the
// event's own integrity check.
func Transform(order UpstreamOrder) models.SalesEvent {
	status, ok := paymentStatusMap[strings.ToLower(order.PaymentStatus)]
	if !ok {
		status = models.PaymentStatus(order.PaymentStatus)
	}

	net := order.NetAmount
	if net.IsZero() && !order.TotalAmount.IsZero() {
		// Older order rows predate the net_amount column.
		net = order.TotalAmount
	}

	return models.SalesEvent{
		OrderID:       order.OrderID,
		ArtisanID:     order.ArtisanID,
		ProductID:     order.ProductID,
		Category:      order.Category,
		BuyerID:       order.BuyerID,
		Quantity:      order.Quantity,
		UnitPrice:     order.UnitPrice,
		Discount:      order.Discount,
		Tax:           order.Tax,
		ShippingCost:  order.ShippingCost,
		TotalAmount:   order.TotalAmount,
		NetAmount:     net,
		PaymentStatus: status,
		OrderStatus:   order.OrderStatus,
		Timestamp:     order.OrderedAt,
		Region:        order.Region,
		Currency:      order.Currency,
	}
}

// StaticOrderSource serves a fixed order list, used by tests and dry-run
// rehearsals against captured data.
type StaticOrderSource struct {
	orders []UpstreamOrder
}

// NewStaticOrderSource copies and sorts the given orders by order id.
func NewStaticOrderSource(orders []UpstreamOrder) *StaticOrderSource {
	sorted := make([]UpstreamOrder, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OrderID < sorted[j].OrderID })
	return &StaticOrderSource{orders: sorted}
}

func (s *StaticOrderSource) FetchPage(ctx context.Context, start, end time.Time, afterOrderID string, limit int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, models.WrapError(models.ErrUpstreamFetch, "fetch cancelled", err)
	}

	var page Page
	for _, order := range s.orders {
		if order.OrderID <= afterOrderID && afterOrderID != "" {
			continue
		}
		if order.OrderedAt.Before(start) || order.OrderedAt.After(end) {
			continue
		}
		page.Orders = append(page.Orders, order)
		if len(page.Orders) == limit {
			break
		}
	}
	page.Exhausted = len(page.Orders) < limit
	return page, nil
}
