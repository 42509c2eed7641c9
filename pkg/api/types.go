package api

import "encoding/json"

// Wire types of the Cosmotrix character API as consumed by charcheck.
// The service owns the schema; fields we do not inspect are left out.

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	// ThreadID continues an existing conversation when set.
	ThreadID string `json:"thread_id,omitempty"`
}

type ChatResponse struct {
	Response string `json:"response"`
	ThreadID string `json:"thread_id"`
	Status   string `json:"status"`
}

// CharacterInfo describes one persona in the characters index.
type CharacterInfo struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Sector   string `json:"sector,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

type CharactersResponse struct {
	Message    string                   `json:"message,omitempty"`
	Characters map[string]CharacterInfo `json:"characters"`
}

type ConversationResponse struct {
	ThreadID string `json:"thread_id"`
	// History entries are opaque to us; only the count is reported.
	History []json.RawMessage `json:"history"`
	Status  string            `json:"status,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Memory string `json:"memory"`
	Error  string `json:"error,omitempty"`
}

// ErrorBody is the error envelope returned on non-200 responses.
type ErrorBody struct {
	Error string `json:"error"`
}

const (
	StatusSuccess = "success"
	StatusHealthy = "healthy"
)
