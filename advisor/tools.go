// Package advisor exposes the analytics engine through a validated
// tool-call contract, consumed by HTTP handlers and by an AI agent's
// tool-calling loop alike.
package advisor

import (
	"fmt"
	"math"

	"financeadvisor/models"
)

// Tool names of the advisor's catalog.
const (
	ToolFetchTimeseries  = "fetch_timeseries"
	ToolTopProducts      = "top_products"
	ToolBottomProducts   = "bottom_products"
	ToolForecastRevenue  = "forecast_revenue"
	ToolDetectAnomalies  = "detect_anomalies"
	ToolSimulateDiscount = "simulate_discount"
	ToolSalesSummary     = "sales_summary"
)

// ParamType is the JSON type a tool parameter must decode to.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamNumber ParamType = "number"
	ParamBool   ParamType = "boolean"
)

// ParamSpec declares one parameter of a tool's schema.
type ParamSpec struct {
	Name     string    `json:"name"`
	Type     ParamType `json:"type"`
	Required bool      `json:"required"`
}

// ToolSchemas declares every tool and its parameters. Requests are
// validated against this table before dispatch.
var ToolSchemas = map[string][]ParamSpec{
	ToolFetchTimeseries: {
		{Name: "timeRange", Type: ParamString, Required: true},
		{Name: "artisanId", Type: ParamString},
		{Name: "productId", Type: ParamString},
		{Name: "startDate", Type: ParamString},
		{Name: "endDate", Type: ParamString},
		{Name: "granularity", Type: ParamString},
	},
	ToolTopProducts: {
		{Name: "timeRange", Type: ParamString, Required: true},
		{Name: "sortBy", Type: ParamString, Required: true},
		{Name: "category", Type: ParamString},
		{Name: "limit", Type: ParamNumber},
		{Name: "minRevenue", Type: ParamNumber},
		{Name: "artisanId", Type: ParamString},
	},
	ToolBottomProducts: {
		{Name: "timeRange", Type: ParamString, Required: true},
		{Name: "sortBy", Type: ParamString},
		{Name: "category", Type: ParamString},
		{Name: "limit", Type: ParamNumber},
		{Name: "minRevenue", Type: ParamNumber},
		{Name: "artisanId", Type: ParamString},
	},
	ToolForecastRevenue: {
		{Name: "horizon", Type: ParamNumber, Required: true},
		{Name: "artisanId", Type: ParamString},
		{Name: "productId", Type: ParamString},
		{Name: "confidence", Type: ParamNumber},
	},
	ToolDetectAnomalies: {
		{Name: "metric", Type: ParamString, Required: true},
		{Name: "timeRange", Type: ParamString, Required: true},
		{Name: "artisanId", Type: ParamString},
		{Name: "threshold", Type: ParamNumber},
	},
	ToolSimulateDiscount: {
		{Name: "productId", Type: ParamString, Required: true},
		{Name: "discountPercent", Type: ParamNumber, Required: true},
		{Name: "expectedVolumeIncrease", Type: ParamNumber},
		{Name: "timeRange", Type: ParamString},
	},
	ToolSalesSummary: {
		{Name: "timeRange", Type: ParamString, Required: true},
		{Name: "artisanId", Type: ParamString},
		{Name: "includeComparisons", Type: ParamBool},
		{Name: "includeProjections", Type: ParamBool},
	},
}

// ToolRequest is a single tool invocation: one variant of the dispatch
// union, selected by Tool.
type ToolRequest struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

// ToolError is the error half of the response envelope.
type ToolError struct {
	Kind    models.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// ToolResponse is the uniform result envelope for every tool.
type ToolResponse struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   *ToolError  `json:"error,omitempty"`
}

// errorResponse wraps a typed error into the envelope.
func errorResponse(err error) ToolResponse {
	return ToolResponse{
		Success: false,
		Error:   &ToolError{Kind: models.KindOf(err), Message: err.Error()},
	}
}

// validateRequest checks a request against the tool's declared schema:
// unknown tool, missing required parameters, and mistyped values are all
// rejected before any work happens.
func validateRequest(req ToolRequest) ([]ParamSpec, error) {
	schema, ok := ToolSchemas[req.Tool]
	if !ok {
		return nil, models.Errorf(models.ErrConfiguration, "unknown tool %q", req.Tool)
	}

	declared := make(map[string]ParamSpec, len(schema))
	for _, spec := range schema {
		declared[spec.Name] = spec
		value, present := req.Params[spec.Name]
		if !present {
			if spec.Required {
				return nil, models.Errorf(models.ErrValidation, "%s: missing required parameter %q", req.Tool, spec.Name)
			}
			continue
		}
		if err := checkType(spec, value); err != nil {
			return nil, err
		}
	}

	for name := range req.Params {
		if _, ok := declared[name]; !ok {
			return nil, models.Errorf(models.ErrValidation, "%s: unknown parameter %q", req.Tool, name)
		}
	}
	return schema, nil
}

func checkType(spec ParamSpec, value interface{}) error {
	switch spec.Type {
	case ParamString:
		if _, ok := value.(string); !ok {
			return models.Errorf(models.ErrValidation, "parameter %q must be a string", spec.Name)
		}
	case ParamNumber:
		if _, ok := toFloat(value); !ok {
			return models.Errorf(models.ErrValidation, "parameter %q must be a number", spec.Name)
		}
	case ParamBool:
		if _, ok := value.(bool); !ok {
			return models.Errorf(models.ErrValidation, "parameter %q must be a boolean", spec.Name)
		}
	}
	return nil
}

// toFloat accepts the numeric shapes JSON decoding can produce.
func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// params wraps the raw parameter map with typed accessors. Validation
// has already run, so accessors only distinguish present from absent.
type params map[string]interface{}

func (p params) str(name, fallback string) string {
	if v, ok := p[name].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (p params) num(name string, fallback float64) float64 {
	if v, ok := p[name]; ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return fallback
}

func (p params) integer(name string, fallback int) (int, error) {
	v, ok := p[name]
	if !ok {
		return fallback, nil
	}
	f, _ := toFloat(v)
	if f != math.Trunc(f) {
		return 0, models.Errorf(models.ErrValidation, "parameter %q must be an integer, got %v", name, v)
	}
	return int(f), nil
}

func (p params) boolean(name string, fallback bool) bool {
	if v, ok := p[name].(bool); ok {
		return v
	}
	return fallback
}

// String satisfies fmt.Stringer for log lines.
func (p params) String() string {
	return fmt.Sprintf("%v", map[string]interface{}(p))
}
