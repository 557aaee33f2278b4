package gemini

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/chatcommerce/gateway/internal/domain/service"
	llm "github.com/chatcommerce/gateway/internal/infrastructure/llm"
)

func init() {
	llm.RegisterFactory("gemini", func(cfg llm.ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
		return New(context.Background(), cfg, logger)
	})
}

// Provider generates text through the Google GenAI SDK.
type Provider struct {
	name   string
	apiKey string
	models []string
	client *genai.Client
	logger *zap.Logger
}

// New creates a Gemini provider. Without an API key the provider is built
// but reports itself unconfigured.
func New(ctx context.Context, cfg llm.ProviderConfig, logger *zap.Logger) (*Provider, error) {
	p := &Provider{
		name:   cfg.Name,
		apiKey: cfg.APIKey,
		models: cfg.Models,
		logger: logger.With(zap.String("provider", cfg.Name), zap.String("type", "gemini")),
	}
	if p.name == "" {
		p.name = "gemini"
	}
	if cfg.APIKey == "" {
		return p, nil
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	p.client = client
	return p, nil
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Name() string                    { return p.name }
func (p *Provider) Models() []string                { return p.models }
func (p *Provider) SupportsModel(model string) bool { return llm.SupportsModel(p.models, model) }
func (p *Provider) Configured() bool                { return p.client != nil }

// Generate implements service.LLMClient.
func (p *Provider) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	if p.client == nil {
		return nil, service.NewGenerationError(service.ErrKindUnavailable, p.name, "no API key configured", nil)
	}

	model := req.Model
	if model == "" && len(p.models) > 0 {
		model = p.models[0]
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	result, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, service.ClassifyError(err, p.name, model)
	}
	return toResponse(result, p.name, model)
}

// toResponse maps an SDK response onto the domain contract. Text cut at the
// token ceiling is still a success, flagged Truncated.
func toResponse(result *genai.GenerateContentResponse, provider, model string) (*service.LLMResponse, error) {
	if result == nil {
		return nil, service.NewGenerationError(service.ErrKindMalformed, provider, "nil response", nil)
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return nil, &service.GenerationError{
			Kind:     service.ErrKindSafety,
			Message:  fmt.Sprintf("prompt blocked: %s", result.PromptFeedback.BlockReason),
			Provider: provider,
			Model:    model,
		}
	}
	if len(result.Candidates) == 0 || result.Candidates[0] == nil {
		return nil, service.NewGenerationError(service.ErrKindEmpty, provider, "no candidates", nil)
	}

	candidate := result.Candidates[0]
	var sb strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
	}
	text := strings.TrimSpace(sb.String())

	resp := &service.LLMResponse{Content: text, ModelUsed: model}
	if result.UsageMetadata != nil {
		resp.TokensUsed = int(result.UsageMetadata.TotalTokenCount)
	}

	switch candidate.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return nil, &service.GenerationError{
			Kind:     service.ErrKindSafety,
			Message:  fmt.Sprintf("generation stopped: %s", candidate.FinishReason),
			Provider: provider,
			Model:    model,
		}
	case genai.FinishReasonMaxTokens:
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
