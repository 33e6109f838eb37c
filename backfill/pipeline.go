package backfill

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"financeadvisor/models"
	"financeadvisor/store"
)

// Pipeline runs resumable chunked backfill jobs. Within one job chunks
// are strictly sequential: the job record is checkpointed after every
// committed chunk and never mid-chunk, so a crash re-fetches the current
// chunk in full on resume and the ledger's idempotent upserts make the
// replay safe. Jobs with different ids may run concurrently.
type Pipeline struct {
	events       store.SalesEventStore
	jobs         store.BackfillJobStore
	source       OrderSource
	maxRetries   int
	baseDelay    time.Duration
	defaultChunk int

	mu     sync.Mutex
	paused map[string]bool
}

// Options tune the pipeline's retry policy and chunk sizing.
type Options struct {
	MaxFetchRetries  int
	RetryBaseDelay   time.Duration
	DefaultChunkSize int
}

// NewPipeline wires a pipeline over the given stores and order source.
func NewPipeline(events store.SalesEventStore, jobs store.BackfillJobStore, source OrderSource, opts Options) *Pipeline {
	if opts.MaxFetchRetries <= 0 {
		opts.MaxFetchRetries = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 500 * time.Millisecond
	}
	if opts.DefaultChunkSize <= 0 {
		opts.DefaultChunkSize = 1000
	}
	return &Pipeline{
		events:       events,
		jobs:         jobs,
		source:       source,
		maxRetries:   opts.MaxFetchRetries,
		baseDelay:    opts.RetryBaseDelay,
		defaultChunk: opts.DefaultChunkSize,
		paused:       make(map[string]bool),
	}
}

// StartRequest describes a new backfill job.
type StartRequest struct {
	StartDate time.Time
	EndDate   time.Time
	ChunkSize int
	DryRun    bool
}

// Start creates a job record and runs it to a terminal or paused state.
// The returned job reflects the final persisted record.
func (p *Pipeline) Start(ctx context.Context, req StartRequest) (*models.BackfillJob, error) {
	job, err := p.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := p.Run(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// Prepare validates a start request and persists the pending job record
// without running it, so callers can launch Run asynchronously and
// report the job id immediately.
func (p *Pipeline) Prepare(ctx context.Context, req StartRequest) (*models.BackfillJob, error) {
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, models.NewError(models.ErrConfiguration, "startDate and endDate are required")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, models.Errorf(models.ErrConfiguration, "endDate %s precedes startDate %s",
			req.EndDate.Format(time.RFC3339), req.StartDate.Format(time.RFC3339))
	}
	if req.ChunkSize <= 0 {
		req.ChunkSize = p.defaultChunk
	}

	now := time.Now().UTC()
	job := &models.BackfillJob{
		JobID:     uuid.NewString(),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		ChunkSize: req.ChunkSize,
		Status:    models.JobPending,
		DryRun:    req.DryRun,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	log.Printf("[BACKFILL] Job %s created - range %s..%s, chunkSize %d, dryRun %v",
		job.JobID, job.StartDate.Format("2006-01-02"), job.EndDate.Format("2006-01-02"),
		job.ChunkSize, job.DryRun)
	return job, nil
}

// Run executes a prepared or resumed job until exhaustion, pause, or
// failure. The job record is mutated and checkpointed in place.
func (p *Pipeline) Run(ctx context.Context, job *models.BackfillJob) error {
	return p.run(ctx, job)
}

// ResumeRequest re-opens an interrupted job. ResumeFromOrderID, when
// set, overrides the stored cursor (operator-forced override).
type ResumeRequest struct {
	JobID             string
	ResumeFromOrderID string
	ChunkSize         int
	DryRun            *bool
}

// Resume continues a paused or failed job from its persisted cursor.
// Completed jobs are immutable and cannot be resumed.
func (p *Pipeline) Resume(ctx context.Context, req ResumeRequest) (*models.BackfillJob, error) {
	job, err := p.PrepareResume(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := p.Run(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// PrepareResume validates a resume request and returns the job record
// with overrides applied, ready for Run.
func (p *Pipeline) PrepareResume(ctx context.Context, req ResumeRequest) (*models.BackfillJob, error) {
	if req.JobID == "" {
		return nil, models.NewError(models.ErrConfiguration, "jobId is required")
	}

	job, err := p.jobs.Get(ctx, req.JobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case models.JobPaused, models.JobFailed:
		// Resumable.
	case models.JobRunning, models.JobPending:
		// A crashed process leaves the record in running/pending; the
		// cursor still marks the last committed chunk, so resuming is
		// safe. Idempotent upserts absorb any replayed chunk.
		log.Printf("[BACKFILL] Job %s was left %s; resuming from last checkpoint", job.JobID, job.Status)
	default:
		return nil, models.Errorf(models.ErrConfiguration, "job %s is %s and cannot be resumed", job.JobID, job.Status)
	}

	if req.ResumeFromOrderID != "" {
		job.Cursor = req.ResumeFromOrderID
	}
	if req.ChunkSize > 0 {
		job.ChunkSize = req.ChunkSize
	}
	if req.DryRun != nil {
		job.DryRun = *req.DryRun
	}
	job.LastError = ""

	log.Printf("[BACKFILL] Job %s resuming from cursor %q", job.JobID, job.Cursor)
	return job, nil
}

// RequestPause asks a running job to stop after its current chunk. The
// flag is checked at the top of the chunk loop; a chunk always runs to
// commit or fail.
func (p *Pipeline) RequestPause(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused[jobID] = true
}

func (p *Pipeline) pauseRequested(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused[jobID]
}

func (p *Pipeline) clearPause(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.paused, jobID)
}

// run executes the chunk loop until exhaustion, pause, or failure.
func (p *Pipeline) run(ctx context.Context, job *models.BackfillJob) error {
	defer p.clearPause(job.JobID)

	job.Status = models.JobRunning
	if err := p.checkpoint(ctx, job); err != nil {
		return err
	}

	for {
		if p.pauseRequested(job.JobID) || ctx.Err() != nil {
			job.Status = models.JobPaused
			if err := p.checkpoint(context.WithoutCancel(ctx), job); err != nil {
				return err
			}
			log.Printf("[BACKFILL] Job %s paused at cursor %q (processed %d, errors %d)",
				job.JobID, job.Cursor, job.ProcessedCount, job.ErrorCount)
			return nil
		}

		page, err := p.fetchWithRetry(ctx, job)
		if err != nil {
			return p.recordFetchFailure(ctx, job, err)
		}

		if len(page.Orders) > 0 {
			events := make([]models.SalesEvent, 0, len(page.Orders))
			for _, order := range page.Orders {
				events = append(events, Transform(order))
			}

			if job.DryRun {
				for _, event := range events {
					if err := event.Validate(); err != nil {
						job.ErrorCount++
					} else {
						job.ProcessedCount++
					}
				}
			} else {
				result, err := p.events.UpsertBatch(ctx, events)
				if err != nil {
					// The store itself failed; the chunk is uncommitted
					// and will be replayed on resume.
					job.Status = models.JobPaused
					job.LastError = err.Error()
					_ = p.checkpoint(context.WithoutCancel(ctx), job)
					return err
				}
				job.ProcessedCount += result.Stored
				job.ErrorCount += len(result.Rejected)
				for _, rej := range result.Rejected {
					log.Printf("[BACKFILL] Job %s skipped event: %v", job.JobID, rej)
				}
			}

			job.Cursor = page.Orders[len(page.Orders)-1].OrderID
		}

		if page.Exhausted {
			now := time.Now().UTC()
			job.Status = models.JobCompleted
			job.CompletedAt = &now
			if err := p.checkpoint(ctx, job); err != nil {
				return err
			}
			log.Printf("[BACKFILL] Job %s completed - processed %d, errors %d, cursor %q",
				job.JobID, job.ProcessedCount, job.ErrorCount, job.Cursor)
			return nil
		}

		// Chunk committed; persist the checkpoint before fetching more.
		if err := p.checkpoint(ctx, job); err != nil {
			return err
		}
	}
}

// fetchWithRetry retries transient upstream failures with exponential
// backoff up to the configured attempt budget.
func (p *Pipeline) fetchWithRetry(ctx context.Context, job *models.BackfillJob) (Page, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.baseDelay << (attempt - 1)
			log.Printf("[BACKFILL] Job %s fetch retry %d/%d after %s: %v",
				job.JobID, attempt, p.maxRetries, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Page{}, models.WrapError(models.ErrUpstreamFetch, "fetch cancelled", ctx.Err())
			}
		}

		page, err := p.source.FetchPage(ctx, job.StartDate, job.EndDate, job.Cursor, job.ChunkSize)
		if err == nil {
			return page, nil
		}
		if !models.IsKind(err, models.ErrUpstreamFetch) {
			// Not transient; no point retrying.
			return Page{}, err
		}
		lastErr = err
	}
	return Page{}, models.WrapError(models.ErrServiceUnavailable, "upstream retry budget exhausted", lastErr)
}

// recordFetchFailure maps a fetch failure to the job's final state:
// exhausted retries pause the job (resumable), configuration errors fail
// it (immutable).
func (p *Pipeline) recordFetchFailure(ctx context.Context, job *models.BackfillJob, err error) error {
	job.LastError = err.Error()
	if models.IsKind(err, models.ErrConfiguration) {
		job.Status = models.JobFailed
		now := time.Now().UTC()
		job.CompletedAt = &now
	} else {
		job.Status = models.JobPaused
	}
	if cpErr := p.checkpoint(context.WithoutCancel(ctx), job); cpErr != nil {
		return cpErr
	}
	log.Printf("[BACKFILL] Job %s %s after fetch failure: %v", job.JobID, job.Status, err)
	return err
}

// checkpoint persists the job record. This is the only place job state
// is written during a run.
func (p *Pipeline) checkpoint(ctx context.Context, job *models.BackfillJob) error {
	job.UpdatedAt = time.Now().UTC()
	return p.jobs.Update(ctx, job)
}
