package store

import (
	"context"
	"sort"
	"sync"

	"financeadvisor/models"
)

// MemorySalesStore is an in-process SalesEventStore used by tests and by
// deployments that run the analytics side without a database. It applies
// the same keyed last-write-wins semantics as the Postgres store.
type MemorySalesStore struct {
	mu     sync.RWMutex
	events map[string]models.SalesEvent
}

// NewMemorySalesStore returns an empty in-memory ledger.
func NewMemorySalesStore() *MemorySalesStore {
	return &MemorySalesStore{events: make(map[string]models.SalesEvent)}
}

func (s *MemorySalesStore) Upsert(ctx context.Context, event models.SalesEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.events[event.OrderID]; ok && existing.Timestamp.After(event.Timestamp) {
		// A newer write already landed for this order id.
		return nil
	}
	s.events[event.OrderID] = event
	return nil
}

func (s *MemorySalesStore) UpsertBatch(ctx context.Context, events []models.SalesEvent) (BatchResult, error) {
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

func (s *MemorySalesStore) QueryRange(ctx context.Context, filter EventFilter) ([]models.SalesEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.WrapError(models.ErrServiceUnavailable, "query sales events", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []models.SalesEvent
	for _, e := range s.events {
		if e.Timestamp.Before(filter.Start) || e.Timestamp.After(filter.End) {
			continue
		}
		if filter.ArtisanID != "" && e.ArtisanID != filter.ArtisanID {
			continue
		}
		if filter.ProductID != "" && e.ProductID != filter.ProductID {
			continue
		}
		events = append(events, e)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].OrderID < events[j].OrderID
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

// Len reports the number of distinct stored events.
func (s *MemorySalesStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// MemoryJobStore is an in-process BackfillJobStore.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]models.BackfillJob
}

// NewMemoryJobStore returns an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]models.BackfillJob)}
}

func (s *MemoryJobStore) Create(ctx context.Context, job *models.BackfillJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.JobID]; ok {
		return models.Errorf(models.ErrConfiguration, "backfill job %s already exists", job.JobID)
	}
	s.jobs[job.JobID] = *job
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, jobID string) (*models.BackfillJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, models.Errorf(models.ErrConfiguration, "backfill job %s not found", jobID)
	}
	return &job, nil
}

func (s *MemoryJobStore) Update(ctx context.Context, job *models.BackfillJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.JobID]; !ok {
		return models.Errorf(models.ErrConfiguration, "backfill job %s not found", job.JobID)
	}
	s.jobs[job.JobID] = *job
	return nil
}

func (s *MemoryJobStore) List(ctx context.Context, limit, offset int) ([]models.BackfillJob, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.BackfillJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		all = append(all, job)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].JobID < all[j].JobID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// interface guards
var (
	_ SalesEventStore  = (*MemorySalesStore)(nil)
	_ BackfillJobStore = (*MemoryJobStore)(nil)
	_ SalesEventStore  = (*PostgresSalesStore)(nil)
	_ BackfillJobStore = (*PostgresJobStore)(nil)
)
