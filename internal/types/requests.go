package types

// ChatRequest is one shopper message sent to the assistant. Shop may be
// left empty when the route already identifies the shop.
type ChatRequest struct {
	Shop      string `json:"shop"`
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// ListConversationsQuery pages through a shop's conversations
type ListConversationsQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// ArchiveResponse reports where a transcript was uploaded
type ArchiveResponse struct {
	SessionID string `json:"session_id"`
	Key       string `json:"key"`
	URL       string `json:"url,omitempty"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
	AI       string `json:"ai"`
	// Platforms maps each connected shop to its circuit breaker state
	Platforms map[string]string `json:"platforms,omitempty"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}
