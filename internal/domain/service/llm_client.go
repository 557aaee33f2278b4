package service

import "context"

// LLMClient is the text generation provider.
type LLMClient interface {
	Generate(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
}

// LLMRequest is a single-prompt generation request.
type LLMRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

// LLMResponse is the generated text.
type LLMResponse struct {
	Content    string `json:"content"`
	ModelUsed  string `json:"model_used"`
	TokensUsed int    `json:"tokens_used"`
	// Truncated is set when the provider stopped at the token ceiling but
	// returned usable text.
	Truncated bool `json:"truncated,omitempty"`
}
