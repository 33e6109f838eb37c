package backfill

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financeadvisor/models"
	"financeadvisor/store"
)

var (
	windowStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

// makeOrders builds n well-formed upstream orders with ascending ids
// spread across the test window.
func makeOrders(n int) []UpstreamOrder {
	orders := make([]UpstreamOrder, n)
	for i := 0; i < n; i++ {
		price := decimal.NewFromInt(int64(10 + i%5))
		orders[i] = UpstreamOrder{
			OrderID:       fmt.Sprintf("ORD-%04d", i+1),
			ArtisanID:     "artisan-1",
			ProductID:     fmt.Sprintf("prod-%d", i%7),
			BuyerID:       "buyer-1",
			Quantity:      1,
			UnitPrice:     price,
			TotalAmount:   price,
			NetAmount:     price,
			PaymentStatus: "paid",
			OrderedAt:     windowStart.Add(time.Duration(i) * time.Hour),
		}
	}
	return orders
}

func newTestPipeline(source OrderSource) (*Pipeline, *store.MemorySalesStore, *store.MemoryJobStore) {
	events := store.NewMemorySalesStore()
	jobs := store.NewMemoryJobStore()
	p := NewPipeline(events, jobs, source, Options{MaxFetchRetries: 2, RetryBaseDelay: time.Millisecond})
	return p, events, jobs
}

func TestPipelineRunsToCompletion(t *testing.T) {
	p, events, _ := newTestPipeline(NewStaticOrderSource(makeOrders(250)))

	job, err := p.Start(context.Background(), StartRequest{
		StartDate: windowStart, EndDate: windowEnd, ChunkSize: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 250, job.ProcessedCount)
	assert.Equal(t, 0, job.ErrorCount)
	assert.Equal(t, "ORD-0250", job.Cursor)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, 250, events.Len())
}

func TestPipelineIsIdempotent(t *testing.T) {
	source := NewStaticOrderSource(makeOrders(250))
	p, events, _ := newTestPipeline(source)

	req := StartRequest{StartDate: windowStart, EndDate: windowEnd, ChunkSize: 100}
	first, err := p.Start(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, models.JobCompleted, first.Status)

	// Replaying the whole window must not duplicate a single event.
	second, err := p.Start(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, second.Status)
	assert.Equal(t, 250, second.ProcessedCount)
	assert.Equal(t, 250, events.Len())
}

// hookSource lets a test interject after each upstream fetch.
type hookSource struct {
	inner OrderSource
	calls int
	after func(call int)
}

func (h *hookSource) FetchPage(ctx context.Context, start, end time.Time, afterOrderID string, limit int) (Page, error) {
	h.calls++
	page, err := h.inner.FetchPage(ctx, start, end, afterOrderID, limit)
	if h.after != nil {
		h.after(h.calls)
	}
	return page, err
}

func TestPipelinePauseAndResume(t *testing.T) {
	source := &hookSource{inner: NewStaticOrderSource(makeOrders(250))}
	p, events, jobs := newTestPipeline(source)

	job, err := p.Prepare(context.Background(), StartRequest{
		StartDate: windowStart, EndDate: windowEnd, ChunkSize: 100,
	})
	require.NoError(t, err)

	// Ask for a pause right after the first chunk's fetch; the chunk
	// itself still commits before the pipeline stops.
	source.after = func(call int) {
		if call == 1 {
			p.RequestPause(job.JobID)
		}
	}
	require.NoError(t, p.Run(context.Background(), job))

	assert.Equal(t, models.JobPaused, job.Status)
	assert.Equal(t, 100, job.ProcessedCount)
	assert.Equal(t, "ORD-0100", job.Cursor)
	assert.Equal(t, 100, events.Len())

	// The checkpoint must be durable, not just in the returned struct.
	persisted, err := jobs.Get(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPaused, persisted.Status)
	assert.Equal(t, "ORD-0100", persisted.Cursor)

	source.after = nil
	resumed, err := p.Resume(context.Background(), ResumeRequest{JobID: job.JobID})
	require.NoError(t, err)

	// The interrupted run must converge to the same final state as an
	// uninterrupted one.
	assert.Equal(t, models.JobCompleted, resumed.Status)
	assert.Equal(t, 250, resumed.ProcessedCount)
	assert.Equal(t, "ORD-0250", resumed.Cursor)
	assert.Equal(t, 250, events.Len())
}

func TestPipelineResumeWithCursorOverride(t *testing.T) {
	p, events, _ := newTestPipeline(NewStaticOrderSource(makeOrders(50)))

	job, err := p.Prepare(context.Background(), StartRequest{
		StartDate: windowStart, EndDate: windowEnd, ChunkSize: 20,
	})
	require.NoError(t, err)
	job.Status = models.JobPaused
	require.NoError(t, p.checkpoint(context.Background(), job))

	resumed, err := p.Resume(context.Background(), ResumeRequest{
		JobID:             job.JobID,
		ResumeFromOrderID: "ORD-0040",
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, resumed.Status)
	// Only the ten orders past the forced cursor are fetched.
	assert.Equal(t, 10, resumed.ProcessedCount)
	assert.Equal(t, 10, events.Len())
}

func TestPipelineResumeRejectsCompletedJob(t *testing.T) {
	p, _, _ := newTestPipeline(NewStaticOrderSource(makeOrders(10)))

	job, err := p.Start(context.Background(), StartRequest{
		StartDate: windowStart, EndDate: windowEnd, ChunkSize: 100,
	})
	require.NoError(t, err)
	require.Equal(t, models.JobCompleted, job.Status)

	_, err = p.Resume(context.Background(), ResumeRequest{JobID: job.JobID})
	assert.True(t, models.IsKind(err, models.ErrConfiguration))
}

func TestPipelineResumeAfterCrash(t *testing.T) {
	// A hard crash leaves the persisted record in running with the
	// cursor at the last committed chunk; resuming from there is legal.
	p, events, jobs := newTestPipeline(NewStaticOrderSource(makeOrders(50)))

	job, err := p.Prepare(context.Background(), StartRequest{
		StartDate: windowStart, EndDate: windowEnd, ChunkSize: 20,
	})
	require.NoError(t, err)
	job.Status = models.JobRunning
	job.Cursor = "ORD-0020"
	job.ProcessedCount = 20
	require.NoError(t, jobs.Update(context.Background(), job))

	resumed, err := p.Resume(context.Background(), ResumeRequest{JobID: job.JobID})
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, resumed.Status)
	assert.Equal(t, 50, resumed.ProcessedCount)
	assert.Equal(t, 30, events.Len())
}

func TestPipelineDryRunStoresNothing(t *testing.T) {
	p, events, _ := newTestPipeline(NewStaticOrderSource(makeOrders(40)))

	job, err := p.Start(context.Background(), StartRequest{
		StartDate: windowStart, EndDate: windowEnd, ChunkSize: 25, DryRun: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 40, job.ProcessedCount)
	assert.Equal(t, 0, events.Len(), "dry run must not write to the ledger")
}

func TestPipelineSkipsCorruptEvents(t *testing.T) {
	orders := makeOrders(10)
	// Break the amount invariant on one order; it is counted and
	// skipped, the rest of the chunk commits.
	orders[4].TotalAmount = orders[4].TotalAmount.Add(decimal.NewFromInt(999))

	p, events, _ := newTestPipeline(NewStaticOrderSource(orders))
	job, err := p.Start(context.Background(), StartRequest{
		StartDate: windowStart, EndDate: windowEnd, ChunkSize: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 9, job.ProcessedCount)
	assert.Equal(t, 1, job.ErrorCount)
	assert.Equal(t, 9, events.Len())
}

// failingSource always reports a transient upstream failure.
type failingSource struct{ calls int }

func (f *failingSource) FetchPage(ctx context.Context, start, end time.Time, afterOrderID string, limit int) (Page, error) {
	f.calls++
	return Page{}, models.NewError(models.ErrUpstreamFetch, "connection reset")
}

func TestPipelinePausesAfterRetryBudget(t *testing.T) {
	source := &failingSource{}
	p, _, jobs := newTestPipeline(source)

	job, err := p.Start(context.Background(), StartRequest{
		StartDate: windowStart, EndDate: windowEnd, ChunkSize: 100,
	})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrServiceUnavailable))
	// Initial attempt plus the configured retries.
	assert.Equal(t, 3, source.calls)

	assert.Equal(t, models.JobPaused, job.Status)
	assert.NotEmpty(t, job.LastError)

	persisted, err := jobs.Get(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPaused, persisted.Status)
}

// brokenSource reports a non-retryable configuration failure.
type brokenSource struct{}

func (brokenSource) FetchPage(ctx context.Context, start, end time.Time, afterOrderID string, limit int) (Page, error) {
	return Page{}, models.NewError(models.ErrConfiguration, "orders table missing")
}

func TestPipelineFailsOnConfigurationError(t *testing.T) {
	p, _, _ := newTestPipeline(brokenSource{})

	job, err := p.Start(context.Background(), StartRequest{
		StartDate: windowStart, EndDate: windowEnd, ChunkSize: 100,
	})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrConfiguration))
	assert.Equal(t, models.JobFailed, job.Status)
	assert.NotNil(t, job.CompletedAt)
}

func TestPrepareValidation(t *testing.T) {
	p, _, _ := newTestPipeline(NewStaticOrderSource(nil))

	_, err := p.Prepare(context.Background(), StartRequest{})
	assert.True(t, models.IsKind(err, models.ErrConfiguration), "missing dates")

	_, err = p.Prepare(context.Background(), StartRequest{
		StartDate: windowEnd, EndDate: windowStart,
	})
	assert.True(t, models.IsKind(err, models.ErrConfiguration), "inverted range")

	_, err = p.PrepareResume(context.Background(), ResumeRequest{})
	assert.True(t, models.IsKind(err, models.ErrConfiguration), "missing job id")

	_, err = p.PrepareResume(context.Background(), ResumeRequest{JobID: "nope"})
	assert.True(t, models.IsKind(err, models.ErrConfiguration), "unknown job id")
}

func TestPrepareAppliesConfiguredChunkDefault(t *testing.T) {
	events := store.NewMemorySalesStore()
	jobs := store.NewMemoryJobStore()
	p := NewPipeline(events, jobs, NewStaticOrderSource(nil), Options{DefaultChunkSize: 250})

	job, err := p.Prepare(context.Background(), StartRequest{
		StartDate: windowStart, EndDate: windowEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, 250, job.ChunkSize)

	// An explicit request size still wins over the configured default.
	job, err = p.Prepare(context.Background(), StartRequest{
		StartDate: windowStart, EndDate: windowEnd, ChunkSize: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, 40, job.ChunkSize)

	fallback, _, _ := newTestPipeline(NewStaticOrderSource(nil))
	job, err = fallback.Prepare(context.Background(), StartRequest{
		StartDate: windowStart, EndDate: windowEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, job.ChunkSize)
}

func TestTransformNormalizesUpstreamOrders(t *testing.T) {
	price := decimal.NewFromInt(30)
	order := UpstreamOrder{
		OrderID: "ORD-1", ProductID: "prod-1", Quantity: 1,
		UnitPrice: price, TotalAmount: price,
		PaymentStatus: "Paid",
		OrderedAt:     windowStart,
	}

	event := Transform(order)
	assert.Equal(t, models.PaymentCompleted, event.PaymentStatus)
	// Missing net amount falls back to the total.
	assert.True(t, event.NetAmount.Equal(price))
	require.NoError(t, event.Validate())

	order.PaymentStatus = "cancelled"
	assert.Equal(t, models.PaymentFailed, Transform(order).PaymentStatus)

	order.PaymentStatus = "mystery"
	event = Transform(order)
	assert.Error(t, event.Validate(), "unknown statuses are rejected by the integrity check")
}
