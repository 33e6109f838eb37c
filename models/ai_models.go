package models

// AssistantRequest is a free-form merchant question routed through the
// advisor's tool catalog.
type AssistantRequest struct {
	Prompt    string `json:"prompt"`
	ArtisanID string `json:"artisanId,omitempty"`
	TimeRange string `json:"timeRange,omitempty"`
}

// AssistantResponse carries the tool that was selected, its raw result,
// and the narrated analysis.
type AssistantResponse struct {
	Tool     string      `json:"tool"`
	Result   interface{} `json:"result,omitempty"`
	Analysis string      `json:"analysis"`
}
