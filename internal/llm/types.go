package llm

import (
	"time"
)

// Role identifies the author of a message in a completion request.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleModel  Role = "model"
)

// Message is a single turn in a completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a system-role message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user-role message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// CompletionRequest describes a single completion call.
type CompletionRequest struct {
	// Model is the model identifier; empty uses the provider default.
	Model string `json:"model,omitempty"`

	// Messages is the ordered conversation supplied to the model.
	Messages []Message `json:"messages"`

	// MaxTokens bounds the completion length. Zero uses the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling randomness. Structured calls pin this low.
	Temperature float64 `json:"temperature,omitempty"`
}

// CompletionResponse is the provider's answer to a completion request.
type CompletionResponse struct {
	// Content is the raw model output.
	Content string `json:"content"`

	// Model is the model that produced the response.
	Model string `json:"model,omitempty"`

	// PromptTokens and CompletionTokens report usage when the provider
	// exposes it; zero otherwise.
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`

	// Latency is the wall-clock duration of the call.
	Latency time.Duration `json:"latency,omitempty"`
}

// TotalTokens returns the combined prompt and completion token count.
func (r *CompletionResponse) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// ProviderConfig contains the connection settings for a completion provider.
type ProviderConfig struct {
	// Provider names the backend ("openai", "mock").
	Provider string `yaml:"provider"`

	// DefaultModel is used when a request does not name a model.
	DefaultModel string `yaml:"default_model"`

	// APIKey authenticates against the backend. Falls back to the
	// provider's conventional environment variable when empty.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend endpoint (for OpenAI-compatible servers).
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each completion call.
	Timeout time.Duration `yaml:"timeout"`
}
