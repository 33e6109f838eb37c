package backfill

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"financeadvisor/models"
)

// PostgresOrderSource reads historical orders from the marketplace's
// orders table using keyset pagination on order_id, so each page's last
// id doubles as the job's resume cursor.
type PostgresOrderSource struct {
	db *pgxpool.Pool
}

// NewPostgresOrderSource wraps a connection pool pointed at the
// marketplace database.
func NewPostgresOrderSource(db *pgxpool.Pool) *PostgresOrderSource {
	return &PostgresOrderSource{db: db}
}

func (s *PostgresOrderSource) FetchPage(ctx context.Context, start, end time.Time, afterOrderID string, limit int) (Page, error) {
	query := `
		SELECT order_id, artisan_id, product_id, category, buyer_id, quantity,
		       unit_price, discount, tax, shipping_cost, total_amount, net_amount,
		       payment_status, order_status, ordered_at, region, currency
		FROM orders
		WHERE ordered_at BETWEEN $1 AND $2 AND order_id > $3
		ORDER BY order_id ASC
		LIMIT $4
	`
	rows, err := s.db.Query(ctx, query, start, end, afterOrderID, limit)
	if err != nil {
		return Page{}, models.WrapError(models.ErrUpstreamFetch, "fetch orders page", err)
	}
	defer rows.Close()

	var page Page
	for rows.Next() {
		var o UpstreamOrder
		if err := rows.Scan(
			&o.OrderID, &o.ArtisanID, &o.ProductID, &o.Category, &o.BuyerID, &o.Quantity,
			&o.UnitPrice, &o.Discount, &o.Tax, &o.ShippingCost, &o.TotalAmount, &o.NetAmount,
			&o.PaymentStatus, &o.OrderStatus, &o.OrderedAt, &o.Region, &o.Currency,
		); err != nil {
			return Page{}, models.WrapError(models.ErrUpstreamFetch, "scan orders page", err)
		}
		page.Orders = append(page.Orders, o)
	}
	if err := rows.Err(); err != nil {
		return Page{}, models.WrapError(models.ErrUpstreamFetch, "iterate orders page", err)
	}

	page.Exhausted = len(page.Orders) < limit
	return page, nil
}

var _ OrderSource = (*PostgresOrderSource)(nil)
