package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/chatcommerce/gateway/internal/domain/service"
	llm "github.com/chatcommerce/gateway/internal/infrastructure/llm"
)

func candidate(text string, reason genai.FinishReason) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
			FinishReason: reason,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 42},
	}
}

func kindOf(t *testing.T, err error) service.GenerationErrorKind {
	t.Helper()
	var genErr *service.GenerationError
	require.True(t, errors.As(err, &genErr))
	return genErr.Kind
}

func TestToResponse_Stop(t *testing.T) {
	resp, err := toResponse(candidate(" Hello! ", genai.FinishReasonStop), "gemini", "m")
	require.NoError(t, err)
	require.Equal(t, "Hello!", resp.Content)
	require.Equal(t, 42, resp.TokensUsed)
	require.False(t, resp.Truncated)
}

func TestToResponse_TruncatedWithText(t *testing.T) {
	resp, err := toResponse(candidate("Partial answer", genai.FinishReasonMaxTokens), "gemini", "m")
	require.NoError(t, err)
	require.True(t, resp.Truncated)
	require.Equal(t, "Partial answer", resp.Content)
}

func TestToResponse_Failures(t *testing.T) {
	blocked := candidate("", genai.FinishReasonStop)
	blocked.PromptFeedback = &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety}

	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want service.GenerationErrorKind
	}{
		{"nil", nil, service.ErrKindMalformed},
		{"no candidates", &genai.GenerateContentResponse{}, service.ErrKindEmpty},
		{"truncated empty", candidate("", genai.FinishReasonMaxTokens), service.ErrKindTruncated},
		{"safety", candidate("x", genai.FinishReasonSafety), service.ErrKindSafety},
		{"prompt blocked", blocked, service.ErrKindSafety},
		{"empty text", candidate("   ", genai.FinishReasonStop), service.ErrKindEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := toResponse(tt.resp, "gemini", "m")
			require.Equal(t, tt.want, kindOf(t, err))
		})
	}
}

func TestNew_WithoutKeyIsUnconfigured(t *testing.T) {
	p, err := New(context.Background(), llm.ProviderConfig{Name: "g"}, zap.NewNop())
	require.NoError(t, err)
	require.False(t, p.Configured())

	_, err = p.Generate(context.Background(), &service.LLMRequest{Prompt: "hi"})
	require.Equal(t, service.ErrKindUnavailable, kindOf(t, err))
}
