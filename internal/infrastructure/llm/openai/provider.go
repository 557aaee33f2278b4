package openai

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/service"
	llm "github.com/chatcommerce/gateway/internal/infrastructure/llm"
)

func init() {
	llm.RegisterFactory("openai", func(cfg llm.ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
		return New(cfg, logger), nil
	})
}

// Provider is an OpenAI-compatible chat completions client.
// Compatible with: OpenAI, DeepSeek, Ollama, vLLM, etc.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	models  []string
	client  *http.Client
	logger  *zap.Logger
}

// New creates an OpenAI-compatible provider.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	return &Provider{
		name:    name,
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		models:  cfg.Models,
		client:  &http.Client{Transport: transport},
		logger:  logger.With(zap.String("provider", name), zap.String("type", "openai")),
	}
}

// Compile-time interface check
var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Name() string                    { return p.name }
func (p *Provider) Models() []string                { return p.models }
func (p *Provider) SupportsModel(model string) bool { return llm.SupportsModel(p.models, model) }

// Configured reports whether requests can be sent. Local servers such as
// Ollama need no key, so a non-default base URL also counts.
func (p *Provider) Configured() bool {
	return p.apiKey != "" || p.baseURL != "https://api.openai.com/v1"
}

// chat completions wire types
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Generate implements service.LLMClient.
func (p *Provider) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	// Strip provider prefix (e.g. "deepseek/deepseek-chat" → "deepseek-chat")
	model := req.Model
	if idx := strings.Index(model, "/"); idx >= 0 {
		model = model[idx+1:]
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, service.NewGenerationError(service.ErrKindMalformed, p.name, "marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, service.NewGenerationError(service.ErrKindMalformed, p.name, "create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, service.ClassifyError(fmt.Errorf("HTTP request failed: %w", err), p.name, model)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, service.ClassifyError(fmt.Errorf("read response: %w", err), p.name, model)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody, p.name, model)
	}
	return parseResponse(respBody, p.name, model)
}

func statusError(status int, body []byte, provider, model string) *service.GenerationError {
	msg := strings.TrimSpace(string(body))
	var apiErr apiErrorBody
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	kind := service.ErrKindUpstream
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired:
		kind = service.ErrKindQuota
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = service.ErrKindMalformed
		if strings.Contains(strings.ToLower(msg), "content") && strings.Contains(strings.ToLower(msg), "policy") {
			kind = service.ErrKindSafety
		}
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway:
		kind = service.ErrKindUnavailable
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		kind = service.ErrKindTimeout
	}
	return &service.GenerationError{
		Kind:       kind,
		Message:    fmt.Sprintf("API error %d: %s", status, msg),
		StatusCode: status,
		Provider:   provider,
		Model:      model,
	}
}

func parseResponse(body []byte, provider, model string) (*service.LLMResponse, error) {
	var apiResp chatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, service.NewGenerationError(service.ErrKindMalformed, provider, "parse response", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, service.NewGenerationError(service.ErrKindEmpty, provider, "no choices", nil)
	}

	choice := apiResp.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	resp := &service.LLMResponse{
		Content:    text,
		ModelUsed:  apiResp.Model,
		TokensUsed: apiResp.Usage.TotalTokens,
	}
	if resp.ModelUsed == "" {
		resp.ModelUsed = model
	}

	switch choice.FinishReason {
	case "content_filter":
		return nil, service.NewGenerationError(service.ErrKindSafety, provider, "content filtered", nil)
	case "length":
		if text == "" {
			return nil, service.NewGenerationError(service.ErrKindTruncated, provider, "token limit reached before any text", nil)
		}
		resp.Truncated = true
	}
	if text == "" {
		return nil, service.NewGenerationError(service.ErrKindEmpty, provider, "empty text", nil)
	}
	return resp, nil
}
