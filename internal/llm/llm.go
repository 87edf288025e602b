// Package llm provides the model backend boundary: message types, the
// Provider interface, and adapters over concrete API clients.
package llm

import (
	"context"
	"time"
)

// Message represents a single role-tagged message sent to the model.
type Message struct {
	Role       string         // system, user, assistant, tool
	Content    string         // text content
	ToolCallID string         // for role "tool": the call this result answers
	ToolCalls  []ToolCall     // for role "assistant": calls the model issued
}

// ToolCall is a model-issued request to execute one named tool.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// ToolDefinition is the model-facing tool declaration.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema
}

// ChatRequest carries the full conversation plus the tool declarations.
type ChatRequest struct {
	Messages  []Message
	Tools     []ToolDefinition
	MaxTokens int
}

// ChatResponse is the model's reply: free text, tool calls, or both.
// An empty ToolCalls slice means the model answered with text only.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	StopReason   string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Provider is the model backend. A Chat error is fatal for the run;
// callers must not retry beyond what the adapter already does internally.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// RetryConfig tunes the adapter's transient-error retry behavior.
type RetryConfig struct {
	MaxRetries  int
	InitBackoff time.Duration
	MaxBackoff  time.Duration
}

// Config describes a concrete provider/model to construct.
type Config struct {
	Provider  string // google, anthropic, openai, openai-compat
	Model     string
	APIKey    string
	BaseURL   string // required for openai-compat style endpoints
	MaxTokens int
	Retry     RetryConfig
}
