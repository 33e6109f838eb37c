// Package store holds the two persisted collections the engine owns: the
// sales event ledger and the backfill job records. Everything else in the
// engine is derived, in-memory state.
package store

import (
	"context"
	"time"

	"financeadvisor/models"
)

// EventFilter narrows a ledger range query. Start and End are inclusive;
// ArtisanID and ProductID are optional.
type EventFilter struct {
	ArtisanID string
	ProductID string
	Start     time.Time
	End       time.Time
}

// BatchResult reports the outcome of a batch upsert. Rejected events
// failed the integrity check and were skipped; all other events in the
// batch were stored regardless.
type BatchResult struct {
	Stored   int
	Rejected []error
}

// SalesEventStore is the durable, idempotent ledger of sales events.
// Upserts are keyed by order id with last-write-wins on the event
// timestamp, so concurrent writers and replayed chunks converge on the
// same final state.
type SalesEventStore interface {
	// Upsert writes or supersedes a single event. An event violating the
	// amount invariant is rejected with a data integrity error and the
	// store is left unchanged.
	Upsert(ctx context.Context, event models.SalesEvent) error

	// UpsertBatch upserts every event in the slice, skipping (and
	// reporting) individual integrity failures. A non-nil error means the
	// store itself failed and the batch must be considered uncommitted.
	UpsertBatch(ctx context.Context, events []models.SalesEvent) (BatchResult, error)

	// QueryRange returns events matching the filter ordered by event
	// timestamp ascending, then order id ascending for determinism.
	QueryRange(ctx context.Context, filter EventFilter) ([]models.SalesEvent, error)
}

// BackfillJobStore persists backfill job records so a process restart can
// resume a job from durable state alone.
type BackfillJobStore interface {
	Create(ctx context.Context, job *models.BackfillJob) error
	Get(ctx context.Context, jobID string) (*models.BackfillJob, error)
	Update(ctx context.Context, job *models.BackfillJob) error
	List(ctx context.Context, limit, offset int) ([]models.BackfillJob, int, error)
}
