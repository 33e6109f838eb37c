package handlers

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"

	"financeadvisor/backfill"
	"financeadvisor/models"
	"financeadvisor/store"
	"financeadvisor/utils"
)

// BackfillActionRequest drives POST /api/v1/backfill. Action is either
// "start" or "resume"; the remaining fields apply per action.
type BackfillActionRequest struct {
	Action            string `json:"action"`
	StartDate         string `json:"startDate"`
	EndDate           string `json:"endDate"`
	ChunkSize         int    `json:"chunkSize"`
	DryRun            *bool  `json:"dryRun"`
	JobID             string `json:"jobId"`
	ResumeFromOrderID string `json:"resumeFromOrderId"`
}

// BackfillHandler launches and inspects backfill jobs.
type BackfillHandler struct {
	pipeline *backfill.Pipeline
	jobs     store.BackfillJobStore
}

func NewBackfillHandler(pipeline *backfill.Pipeline, jobs store.BackfillJobStore) *BackfillHandler {
	return &BackfillHandler{pipeline: pipeline, jobs: jobs}
}

// HandleBackfillAction starts or resumes a backfill job. Dry runs are
// executed synchronously so the caller gets the would-be statistics in
// the response; real runs are launched in the background and the caller
// polls the job endpoint for progress.
// POST /api/v1/backfill
func (h *BackfillHandler) HandleBackfillAction(c *fiber.Ctx) error {
	var req BackfillActionRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("❌ [BACKFILL] Error parsing backfill request: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid backfill request format",
		})
	}

	switch req.Action {
	case "start":
		return h.startJob(c, req)
	case "resume":
		return h.resumeJob(c, req)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "action must be 'start' or 'resume'",
		})
	}
}

func (h *BackfillHandler) startJob(c *fiber.Ctx, req BackfillActionRequest) error {
	startDate, err := utils.ParseFlexibleDate(req.StartDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid startDate: " + req.StartDate,
		})
	}
	endDate, err := utils.ParseFlexibleDate(req.EndDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid endDate: " + req.EndDate,
		})
	}

	dryRun := req.DryRun != nil && *req.DryRun
	job, err := h.pipeline.Prepare(c.UserContext(), backfill.StartRequest{
		StartDate: startDate,
		EndDate:   endDate,
		ChunkSize: req.ChunkSize,
		DryRun:    dryRun,
	})
	if err != nil {
		return jobError(c, err)
	}

	return h.launch(c, job)
}

func (h *BackfillHandler) resumeJob(c *fiber.Ctx, req BackfillActionRequest) error {
	job, err := h.pipeline.PrepareResume(c.UserContext(), backfill.ResumeRequest{
		JobID:             req.JobID,
		ResumeFromOrderID: req.ResumeFromOrderID,
		ChunkSize:         req.ChunkSize,
		DryRun:            req.DryRun,
	})
	if err != nil {
		return jobError(c, err)
	}

	return h.launch(c, job)
}

// launch runs dry runs inline and everything else detached from the
// request context, so a closed connection cannot abort a live job.
func (h *BackfillHandler) launch(c *fiber.Ctx, job *models.BackfillJob) error {
	if job.DryRun {
		if err := h.pipeline.Run(c.UserContext(), job); err != nil {
			return jobError(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Dry run completed",
			"job":     job,
		})
	}

	// Snapshot the response fields before handing the record to the
	// runner goroutine; Run mutates the job in place as it checkpoints.
	accepted := fiber.Map{
		"jobId":     job.JobID,
		"status":    job.Status,
		"startDate": job.StartDate,
		"endDate":   job.EndDate,
		"chunkSize": job.ChunkSize,
		"cursor":    job.Cursor,
	}

	go func(job *models.BackfillJob) {
		if err := h.pipeline.Run(context.Background(), job); err != nil {
			log.Printf("❌ [BACKFILL] Job %s stopped: %v", job.JobID, err)
		}
	}(job)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "Backfill job accepted",
		"job":     accepted,
	})
}

// HandleGetJob returns one job record with its checkpoint and counters.
// GET /api/v1/backfill/jobs/:jobId
func (h *BackfillHandler) HandleGetJob(c *fiber.Ctx) error {
	job, err := h.jobs.Get(c.UserContext(), c.Params("jobId"))
	if err != nil {
		return jobError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "job": job})
}

// HandleListJobs returns jobs newest first with pagination metadata.
// GET /api/v1/backfill/jobs?page=1&pageSize=20
func (h *BackfillHandler) HandleListJobs(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("pageSize", 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	jobs, total, err := h.jobs.List(c.UserContext(), pageSize, (page-1)*pageSize)
	if err != nil {
		return jobError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"jobs":       jobs,
		"pagination": utils.NewPageMeta(total, page, pageSize),
	})
}

// HandlePauseJob requests a cooperative pause; the job stops after its
// current chunk commits.
// POST /api/v1/backfill/jobs/:jobId/pause
func (h *BackfillHandler) HandlePauseJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	job, err := h.jobs.Get(c.UserContext(), jobID)
	if err != nil {
		return jobError(c, err)
	}
	if job.Status.IsTerminal() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Job " + jobID + " is already " + string(job.Status),
		})
	}

	h.pipeline.RequestPause(jobID)
	log.Printf("⏸️  [BACKFILL] Pause requested for job %s", jobID)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Pause requested; the job stops after the current chunk",
	})
}

func jobError(c *fiber.Ctx, err error) error {
	return c.Status(models.HTTPStatus(err)).JSON(fiber.Map{
		"success": false,
		"message": err.Error(),
	})
}
