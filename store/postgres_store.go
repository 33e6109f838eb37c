package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"financeadvisor/models"
)

// PostgresSalesStore implements SalesEventStore over the sales_events
// table.
type PostgresSalesStore struct {
	db *pgxpool.Pool
}

// NewPostgresSalesStore wraps a connection pool.
func NewPostgresSalesStore(db *pgxpool.Pool) *PostgresSalesStore {
	return &PostgresSalesStore{db: db}
}

const upsertEventQuery = `
	INSERT INTO sales_events (
		order_id, artisan_id, product_id, category, buyer_id, quantity,
		unit_price, discount, tax, shipping_cost, total_amount, net_amount,
		payment_status, order_status, event_time, region, currency
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (order_id) DO UPDATE SET
		artisan_id     = EXCLUDED.artisan_id,
		product_id     = EXCLUDED.product_id,
		category       = EXCLUDED.category,
		buyer_id       = EXCLUDED.buyer_id,
		quantity       = EXCLUDED.quantity,
		unit_price     = EXCLUDED.unit_price,
		discount       = EXCLUDED.discount,
		tax            = EXCLUDED.tax,
		shipping_cost  = EXCLUDED.shipping_cost,
		total_amount   = EXCLUDED.total_amount,
		net_amount     = EXCLUDED.net_amount,
		payment_status = EXCLUDED.payment_status,
		order_status   = EXCLUDED.order_status,
		event_time     = EXCLUDED.event_time,
		region         = EXCLUDED.region,
		currency       = EXCLUDED.currency
	WHERE sales_events.event_time <= EXCLUDED.event_time
`

// Upsert writes or supersedes one event. Last-write-wins on event_time:
// an older concurrent write never clobbers a newer stored event.
func (s *PostgresSalesStore) Upsert(ctx context.Context, event models.SalesEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	_, err := s.db.Exec(ctx, upsertEventQuery,
		event.OrderID, event.ArtisanID, event.ProductID, event.Category, event.BuyerID, event.Quantity,
		event.UnitPrice, event.Discount, event.Tax, event.ShippingCost,
		event.TotalAmount, event.NetAmount,
		string(event.PaymentStatus), event.OrderStatus, event.Timestamp,
		event.Region, event.Currency,
	)
	if err != nil {
		return models.WrapError(models.ErrServiceUnavailable, "upsert sales event", err)
	}
	return nil
}

// UpsertBatch upserts each event, skipping integrity failures. Because
// every write is an idempotent upsert there is no transaction: replaying
// a partially committed batch converges to the same state.
func (s *PostgresSalesStore) UpsertBatch(ctx context.Context, events []models.SalesEvent) (BatchResult, error) {
	var result BatchResult
	for _, event := range events {
		if err := s.Upsert(ctx, event); err != nil {
			if models.IsKind(err, models.ErrDataIntegrity) {
				result.Rejected = append(result.Rejected, err)
				continue
			}
			return result, err
		}
		result.Stored++
	}
	return result, nil
}

// QueryRange returns matching events ordered by event_time, order_id.
func (s *PostgresSalesStore) QueryRange(ctx context.Context, filter EventFilter) ([]models.SalesEvent, error) {
	query := `
		SELECT order_id, artisan_id, product_id, category, buyer_id, quantity,
		       unit_price, discount, tax, shipping_cost, total_amount, net_amount,
		       payment_status, order_status, event_time, region, currency
		FROM sales_events
		WHERE event_time BETWEEN $1 AND $2
	`
	args := []interface{}{filter.Start, filter.End}

	if filter.ArtisanID != "" {
		args = append(args, filter.ArtisanID)
		query += fmt.Sprintf(" AND artisan_id = $%d", len(args))
	}
	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	query += " ORDER BY event_time ASC, order_id ASC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, models.WrapError(models.ErrServiceUnavailable, "query sales events", err)
	}
	defer rows.Close()

	var events []models.SalesEvent
	for rows.Next() {
		var e models.SalesEvent
		var status string
		if err := rows.Scan(
			&e.OrderID, &e.ArtisanID, &e.ProductID, &e.Category, &e.BuyerID, &e.Quantity,
			&e.UnitPrice, &e.Discount, &e.Tax, &e.ShippingCost, &e.TotalAmount, &e.NetAmount,
			&status, &e.OrderStatus, &e.Timestamp, &e.Region, &e.Currency,
		); err != nil {
			return nil, models.WrapError(models.ErrServiceUnavailable, "scan sales event", err)
		}
		e.PaymentStatus = models.PaymentStatus(status)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, models.WrapError(models.ErrServiceUnavailable, "iterate sales events", err)
	}
	return events, nil
}

// PostgresJobStore implements BackfillJobStore over the backfill_jobs
// table.
type PostgresJobStore struct {
	db *pgxpool.Pool
}

// NewPostgresJobStore wraps a connection pool.
func NewPostgresJobStore(db *pgxpool.Pool) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

const jobColumns = `job_id, start_date, end_date, chunk_size, cursor_order_id, status,
	processed_count, error_count, dry_run, last_error, created_at, updated_at, completed_at`

func (s *PostgresJobStore) Create(ctx context.Context, job *models.BackfillJob) error {
	query := `
		INSERT INTO backfill_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.Exec(ctx, query,
		job.JobID, job.StartDate, job.EndDate, job.ChunkSize, job.Cursor, string(job.Status),
		job.ProcessedCount, job.ErrorCount, job.DryRun, job.LastError,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return models.WrapError(models.ErrServiceUnavailable, "create backfill job", err)
	}
	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, jobID string) (*models.BackfillJob, error) {
	query := `SELECT ` + jobColumns + ` FROM backfill_jobs WHERE job_id = $1`

	var job models.BackfillJob
	var status string
	err := s.db.QueryRow(ctx, query, jobID).Scan(
		&job.JobID, &job.StartDate, &job.EndDate, &job.ChunkSize, &job.Cursor, &status,
		&job.ProcessedCount, &job.ErrorCount, &job.DryRun, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.Errorf(models.ErrConfiguration, "backfill job %s not found", jobID)
	}
	if err != nil {
		return nil, models.WrapError(models.ErrServiceUnavailable, "get backfill job", err)
	}
	job.Status = models.JobStatus(status)
	return &job, nil
}

// Update persists the job record; this is the per-chunk checkpoint write.
func (s *PostgresJobStore) Update(ctx context.Context, job *models.BackfillJob) error {
	query := `
		UPDATE backfill_jobs SET
			cursor_order_id = $2, status = $3, processed_count = $4,
			error_count = $5, last_error = $6, updated_at = $7, completed_at = $8
		WHERE job_id = $1
	`
	tag, err := s.db.Exec(ctx, query,
		job.JobID, job.Cursor, string(job.Status), job.ProcessedCount,
		job.ErrorCount, job.LastError, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return models.WrapError(models.ErrServiceUnavailable, "update backfill job", err)
	}
	if tag.RowsAffected() == 0 {
		return models.Errorf(models.ErrConfiguration, "backfill job %s not found", job.JobID)
	}
	return nil
}

func (s *PostgresJobStore) List(ctx context.Context, limit, offset int) ([]models.BackfillJob, int, error) {
	query := `SELECT ` + jobColumns + ` FROM backfill_jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, models.WrapError(models.ErrServiceUnavailable, "list backfill jobs", err)
	}
	defer rows.Close()

	var jobs []models.BackfillJob
	for rows.Next() {
		var job models.BackfillJob
		var status string
		if err := rows.Scan(
			&job.JobID, &job.StartDate, &job.EndDate, &job.ChunkSize, &job.Cursor, &status,
			&job.ProcessedCount, &job.ErrorCount, &job.DryRun, &job.LastError,
			&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
		); err != nil {
			return nil, 0, models.WrapError(models.ErrServiceUnavailable, "scan backfill job", err)
		}
		job.Status = models.JobStatus(status)
		jobs = append(jobs, job)
	}

	var total int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM backfill_jobs").Scan(&total); err != nil {
		return nil, 0, models.WrapError(models.ErrServiceUnavailable, "count backfill jobs", err)
	}
	return jobs, total, nil
}
