package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"financeadvisor/advisor"
	"financeadvisor/models"
)

// AdvisorHandler exposes the analytics tool surface over HTTP.
type AdvisorHandler struct {
	service *advisor.Service
}

func NewAdvisorHandler(service *advisor.Service) *AdvisorHandler {
	return &AdvisorHandler{service: service}
}

// HandleToolCall executes a single analytics tool call.
// POST /api/v1/advisor/tools
func (h *AdvisorHandler) HandleToolCall(c *fiber.Ctx) error {
	var req advisor.ToolRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("❌ [ADVISOR] Error parsing tool request: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid tool request format",
		})
	}

	resp := h.service.Execute(c.UserContext(), req)
	if !resp.Success {
		status := fiber.StatusBadRequest
		if resp.Error != nil {
			status = models.StatusForKind(resp.Error.Kind)
		}
		return c.Status(status).JSON(resp)
	}
	return c.JSON(resp)
}

// HandleListTools returns the declared schema of every tool so clients
// can build calls without guessing parameter names.
// GET /api/v1/advisor/tools
func (h *AdvisorHandler) HandleListTools(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"tools":   advisor.ToolSchemas,
	})
}
