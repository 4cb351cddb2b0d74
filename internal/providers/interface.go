package providers

import (
	"context"
)

// Provider is the uniform contract every completion backend satisfies.
// Adapters normalize their backend's wire format into CompletionResult
// and never retry internally; fallback is the router's job.
type Provider interface {
	// Descriptor returns the static identity and pricing of the backend.
	Descriptor() Descriptor

	// IsAvailable reports whether a credential could be resolved. The
	// resolution happens once per adapter lifetime and is cached.
	IsAvailable(ctx context.Context) bool

	// Complete performs a single non-streaming completion.
	Complete(ctx context.Context, messages []Message, opts Options) (*CompletionResult, error)
}

// Role of a conversation message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the request history. Immutable once built.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion call.
type Options struct {
	Temperature      float32 `json:"temperature"`
	MaxOutputTokens  int     `json:"max_output_tokens"`
	TopP             float32 `json:"top_p"`
	FrequencyPenalty float32 `json:"frequency_penalty"`
	PresencePenalty  float32 `json:"presence_penalty"`
	StrictJSON       bool    `json:"strict_json"`

	// Model overrides the provider's configured default when set.
	Model string `json:"model,omitempty"`
}

// Descriptor identifies a backend and its token pricing.
type Descriptor struct {
	Name            string  `json:"name"`
	ModelID         string  `json:"model_id"`
	CostPer1kInput  float64 `json:"cost_per_1k_input"`
	CostPer1kOutput float64 `json:"cost_per_1k_output"`
	Available       bool    `json:"available"`
}

// TokenUsage holds the token accounting a backend reports.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// CompletionResult is the normalized output of any backend.
type CompletionResult struct {
	Text         string     `json:"text"`
	Confidence   int        `json:"confidence"`
	Tokens       TokenUsage `json:"tokens"`
	Model        string     `json:"model"`
	FinishReason string     `json:"finish_reason"`
}

// SynthesizeConfidence derives a 0-100 confidence for backends that
// report none, from the finish reason and output size.
func SynthesizeConfidence(finishReason string, completionTokens int) int {
	confidence := 70
	switch finishReason {
	case "stop", "end_turn", "STOP":
		confidence += 15
	case "length", "max_tokens", "MAX_TOKENS":
		confidence -= 20
	case "":
		confidence -= 10
	}
	if completionTokens >= 30 {
		confidence += 5
	}
	if confidence > 100 {
		confidence = 100
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}
