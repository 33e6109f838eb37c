package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financeadvisor/backfill"
	"financeadvisor/models"
	"financeadvisor/store"
)

func testOrders(n int) []backfill.UpstreamOrder {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orders := make([]backfill.UpstreamOrder, n)
	for i := 0; i < n; i++ {
		price := decimal.NewFromInt(25)
		orders[i] = backfill.UpstreamOrder{
			OrderID: fmt.Sprintf("ORD-%04d", i+1), ArtisanID: "a1", ProductID: "p1",
			Quantity: 1, UnitPrice: price, TotalAmount: price, NetAmount: price,
			PaymentStatus: "paid",
			OrderedAt:     start.Add(time.Duration(i) * time.Hour),
		}
	}
	return orders
}

func newBackfillApp(n int) (*fiber.App, *store.MemoryJobStore, *store.MemorySalesStore) {
	events := store.NewMemorySalesStore()
	jobs := store.NewMemoryJobStore()
	pipeline := backfill.NewPipeline(events, jobs, backfill.NewStaticOrderSource(testOrders(n)),
		backfill.Options{MaxFetchRetries: 1, RetryBaseDelay: time.Millisecond})

	h := NewBackfillHandler(pipeline, jobs)
	app := fiber.New()
	app.Post("/api/v1/backfill", h.HandleBackfillAction)
	app.Get("/api/v1/backfill/jobs", h.HandleListJobs)
	app.Get("/api/v1/backfill/jobs/:jobId", h.HandleGetJob)
	app.Post("/api/v1/backfill/jobs/:jobId/pause", h.HandlePauseJob)
	return app, jobs, events
}

func postJSON(app *fiber.App, path string, body interface{}) (*fiber.App, map[string]interface{}, int) {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, 5000)

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return app, decoded, resp.StatusCode
}

func TestBackfillDryRunReturnsStats(t *testing.T) {
	app, _, events := newBackfillApp(40)

	_, body, status := postJSON(app, "/api/v1/backfill", fiber.Map{
		"action":    "start",
		"startDate": "2024-01-01",
		"endDate":   "2024-02-01",
		"chunkSize": 25,
		"dryRun":    true,
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])

	job := body["job"].(map[string]interface{})
	assert.Equal(t, string(models.JobCompleted), job["status"])
	assert.Equal(t, float64(40), job["processedCount"])
	assert.Equal(t, 0, events.Len(), "dry run writes nothing")
}

func TestBackfillStartRunsInBackground(t *testing.T) {
	app, jobs, events := newBackfillApp(120)

	_, body, status := postJSON(app, "/api/v1/backfill", fiber.Map{
		"action":    "start",
		"startDate": "2024-01-01",
		"endDate":   "2024-02-01",
		"chunkSize": 50,
	})
	require.Equal(t, fiber.StatusAccepted, status)
	jobID := body["job"].(map[string]interface{})["jobId"].(string)
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		job, err := jobs.Get(context.Background(), jobID)
		return err == nil && job.Status == models.JobCompleted
	}, 3*time.Second, 10*time.Millisecond)

	job, err := jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 120, job.ProcessedCount)
	assert.Equal(t, 120, events.Len())
}

// gatedSource parks every fetch until released, so the runner goroutine
// stays live while the accept response is built and serialized.
type gatedSource struct {
	inner   backfill.OrderSource
	release chan struct{}
}

func (s *gatedSource) FetchPage(ctx context.Context, start, end time.Time, afterOrderID string, limit int) (backfill.Page, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
		return backfill.Page{}, ctx.Err()
	}
	return s.inner.FetchPage(ctx, start, end, afterOrderID, limit)
}

func TestBackfillAcceptResponseIsPreRunSnapshot(t *testing.T) {
	events := store.NewMemorySalesStore()
	jobs := store.NewMemoryJobStore()
	src := &gatedSource{
		inner:   backfill.NewStaticOrderSource(testOrders(30)),
		release: make(chan struct{}),
	}
	pipeline := backfill.NewPipeline(events, jobs, src,
		backfill.Options{MaxFetchRetries: 1, RetryBaseDelay: time.Millisecond})

	h := NewBackfillHandler(pipeline, jobs)
	app := fiber.New()
	app.Post("/api/v1/backfill", h.HandleBackfillAction)

	_, body, status := postJSON(app, "/api/v1/backfill", fiber.Map{
		"action":    "start",
		"startDate": "2024-01-01",
		"endDate":   "2024-02-01",
		"chunkSize": 10,
	})
	require.Equal(t, fiber.StatusAccepted, status)

	// The response is a snapshot taken before the runner starts, so it
	// reports the created job, not whatever state the runner has
	// advanced to.
	job := body["job"].(map[string]interface{})
	assert.Equal(t, string(models.JobPending), job["status"])
	assert.Equal(t, "", job["cursor"])

	close(src.release)
	jobID := job["jobId"].(string)
	require.Eventually(t, func() bool {
		rec, err := jobs.Get(context.Background(), jobID)
		return err == nil && rec.Status == models.JobCompleted
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 30, events.Len())
}

func TestBackfillRejectsBadRequests(t *testing.T) {
	app, _, _ := newBackfillApp(0)

	_, _, status := postJSON(app, "/api/v1/backfill", fiber.Map{"action": "reboot"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	_, _, status = postJSON(app, "/api/v1/backfill", fiber.Map{
		"action": "start", "startDate": "not-a-date", "endDate": "2024-02-01",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	// Inverted range is a configuration error.
	_, _, status = postJSON(app, "/api/v1/backfill", fiber.Map{
		"action": "start", "startDate": "2024-02-01", "endDate": "2024-01-01",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	_, _, status = postJSON(app, "/api/v1/backfill", fiber.Map{
		"action": "resume", "jobId": "no-such-job",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}

func TestBackfillGetAndListJobs(t *testing.T) {
	app, _, _ := newBackfillApp(10)

	_, body, status := postJSON(app, "/api/v1/backfill", fiber.Map{
		"action": "start", "startDate": "2024-01-01", "endDate": "2024-02-01", "dryRun": true,
	})
	require.Equal(t, fiber.StatusOK, status)
	jobID := body["job"].(map[string]interface{})["jobId"].(string)

	req := httptest.NewRequest("GET", "/api/v1/backfill/jobs/"+jobID, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/v1/backfill/jobs?page=1&pageSize=10", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listBody map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listBody))
	assert.Equal(t, float64(1), listBody["pagination"].(map[string]interface{})["totalItems"])

	req = httptest.NewRequest("GET", "/api/v1/backfill/jobs/missing", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPauseTerminalJobConflicts(t *testing.T) {
	app, _, _ := newBackfillApp(5)

	_, body, status := postJSON(app, "/api/v1/backfill", fiber.Map{
		"action": "start", "startDate": "2024-01-01", "endDate": "2024-02-01", "dryRun": true,
	})
	require.Equal(t, fiber.StatusOK, status)
	jobID := body["job"].(map[string]interface{})["jobId"].(string)

	req := httptest.NewRequest("POST", "/api/v1/backfill/jobs/"+jobID+"/pause", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}
