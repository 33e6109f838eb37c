package routes

import (
	"github.com/gofiber/fiber/v2"

	"financeadvisor/handlers"
)

// Handlers bundles the constructed handler set for wiring. There are no
// package-level singletons; main builds everything and passes it in.
type Handlers struct {
	Advisor   *handlers.AdvisorHandler
	Backfill  *handlers.BackfillHandler
	Assistant *handlers.AssistantHandler
}

// SetupRoutes defines all the routes for the application.
func SetupRoutes(app *fiber.App, h Handlers) {
	api := app.Group("/api/v1")

	// --- Advisor Tool Routes ---
	advisor := api.Group("/advisor")
	advisor.Get("/tools", h.Advisor.HandleListTools)
	advisor.Post("/tools", h.Advisor.HandleToolCall)
	advisor.Post("/assistant", h.Assistant.HandleAssistant)

	// --- Backfill Routes ---
	backfill := api.Group("/backfill")
	backfill.Post("/", h.Backfill.HandleBackfillAction)
	backfill.Get("/jobs", h.Backfill.HandleListJobs)
	backfill.Get("/jobs/:jobId", h.Backfill.HandleGetJob)
	backfill.Post("/jobs/:jobId/pause", h.Backfill.HandlePauseJob)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
