package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"financeadvisor/advisor"
	"financeadvisor/models"
)

// AssistantHandler turns free-text prompts into tool calls and narrates
// the result with Gemini.
type AssistantHandler struct {
	service *advisor.Service
	apiKey  string
}

func NewAssistantHandler(service *advisor.Service, apiKey string) *AssistantHandler {
	return &AssistantHandler{service: service, apiKey: apiKey}
}

// HandleAssistant answers a natural-language question about sales data.
// The prompt is classified into one of the analytics tools, the tool is
// executed against the ledger, and the raw result is summarized into a
// short analysis.
// POST /api/v1/advisor/assistant
func (h *AssistantHandler) HandleAssistant(c *fiber.Ctx) error {
	if h.apiKey == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"message": "AI assistant is not configured",
		})
	}

	var req models.AssistantRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "A non-empty prompt is required",
		})
	}

	ctx := c.UserContext()

	// 1. Classify the prompt into a tool
	tool, err := h.classifyTool(ctx, req.Prompt)
	if err != nil {
		log.Printf("❌ [ASSISTANT] Classification failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"message": "Could not interpret the prompt",
		})
	}
	if tool == "unknown" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"message": "The prompt does not match any supported analysis",
		})
	}

	// 2. Execute the tool with assistant defaults
	toolReq := advisor.ToolRequest{Tool: tool, Params: assistantParams(tool, req)}
	resp := h.service.Execute(ctx, toolReq)
	if !resp.Success {
		status := fiber.StatusBadRequest
		if resp.Error != nil {
			status = models.StatusForKind(resp.Error.Kind)
		}
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"message": resp.Error.Message,
			"tool":    tool,
		})
	}

	// 3. Narrate the raw result
	analysis, err := h.generateAnalysis(ctx, req.Prompt, tool, resp.Result)
	if err != nil {
		log.Printf("⚠️  [ASSISTANT] Narration failed, returning raw result: %v", err)
		analysis = "Analysis is temporarily unavailable; the raw result is attached."
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": models.AssistantResponse{
			Tool:     tool,
			Result:   resp.Result,
			Analysis: analysis,
		},
	})
}

// assistantTools are the intents the classifier may pick. Discount
// simulation is excluded because it needs a product id and baseline the
// prompt cannot reliably supply.
var assistantTools = []string{
	advisor.ToolSalesSummary,
	advisor.ToolTopProducts,
	advisor.ToolBottomProducts,
	advisor.ToolFetchTimeseries,
	advisor.ToolDetectAnomalies,
	advisor.ToolForecastRevenue,
}

// classifyTool uses Gemini to map the prompt to a tool name.
func (h *AssistantHandler) classifyTool(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(h.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create AI client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel("gemini-1.5-pro")
	classificationPrompt := fmt.Sprintf(
		`You are an intent classification system for a sales analytics service. Classify the user's prompt into exactly one of the following tool names: %s, or 'unknown' if none applies. Respond with the tool name only. The user prompt is: "%s"`,
		strings.Join(assistantTools, ", "), prompt,
	)

	resp, err := model.GenerateContent(ctx, genai.Text(classificationPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to classify prompt: %w", err)
	}

	answer := strings.Trim(strings.TrimSpace(fmt.Sprint(resp.Candidates[0].Content.Parts[0])), "'\"`")
	for _, tool := range assistantTools {
		if answer == tool {
			return tool, nil
		}
	}
	return "unknown", nil
}

// assistantParams fills each tool's parameters with sensible defaults
// so a bare prompt still produces a valid call.
func assistantParams(tool string, req models.AssistantRequest) map[string]interface{} {
	timeRange := req.TimeRange
	if timeRange == "" {
		timeRange = "30d"
	}

	params := map[string]interface{}{}
	switch tool {
	case advisor.ToolSalesSummary:
		params["timeRange"] = timeRange
		params["includeComparisons"] = true
	case advisor.ToolTopProducts:
		params["timeRange"] = timeRange
		params["sortBy"] = "revenue"
	case advisor.ToolBottomProducts:
		params["timeRange"] = timeRange
	case advisor.ToolFetchTimeseries:
		params["timeRange"] = timeRange
	case advisor.ToolDetectAnomalies:
		params["timeRange"] = timeRange
		params["metric"] = "revenue"
	case advisor.ToolForecastRevenue:
		params["horizon"] = 7
	}
	if req.ArtisanID != "" {
		params["artisanId"] = req.ArtisanID
	}
	return params
}

// generateAnalysis asks Gemini for a short narrative over the tool data.
func (h *AssistantHandler) generateAnalysis(ctx context.Context, prompt, tool string, result interface{}) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(h.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create AI client: %w", err)
	}
	defer client.Close()

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to serialize tool result: %w", err)
	}

	model := client.GenerativeModel("gemini-1.5-pro")
	analysisPrompt := fmt.Sprintf(
		`You are a finance advisor for artisan sellers. The user asked: "%s". The '%s' tool returned this JSON data: %s. Answer the user's question in two or three plain sentences grounded in the data. Do not mention JSON or tools.`,
		prompt, tool, string(data),
	)

	resp, err := model.GenerateContent(ctx, genai.Text(analysisPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate analysis: %w", err)
	}
	return strings.TrimSpace(fmt.Sprint(resp.Candidates[0].Content.Parts[0])), nil
}
