package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// GenerationErrorKind classifies provider failures.
type GenerationErrorKind int

const (
	ErrKindUpstream GenerationErrorKind = iota
	ErrKindQuota
	ErrKindMalformed
	ErrKindSafety
	ErrKindTruncated
	ErrKindTimeout
	ErrKindUnavailable
	ErrKindEmpty
)

// String returns a human-readable label for the error kind.
func (k GenerationErrorKind) String() string {
	switch k {
	case ErrKindQuota:
		return "quota"
	case ErrKindMalformed:
		return "malformed"
	case ErrKindSafety:
		return "safety"
	case ErrKindTruncated:
		return "truncated"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindUnavailable:
		return "unavailable"
	case ErrKindEmpty:
		return "empty"
	default:
		return "upstream"
	}
}

// GenerationError is a typed generation failure.
type GenerationError struct {
	Kind       GenerationErrorKind
	Message    string
	StatusCode int
	Provider   string
	Model      string
	Cause      error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Kind)
	if e.Provider != "" {
		prefix = fmt.Sprintf("[%s/%s]", e.Provider, e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap enables errors.Is/errors.As on the cause chain.
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// NewGenerationError 创建生成错误
func NewGenerationError(kind GenerationErrorKind, provider, message string, cause error) *GenerationError {
	return &GenerationError{Kind: kind, Provider: provider, Message: message, Cause: cause}
}

// ClassifyError returns err as a *GenerationError, pattern-matching the
// message when the provider did not classify it.
func ClassifyError(err error, provider, model string) *GenerationError {
	if err == nil {
		return nil
	}

	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &GenerationError{Kind: ErrKindTimeout, Message: "generation timed out", Provider: provider, Model: model, Cause: err}
	}

	errStr := strings.ToLower(err.Error())
	patterns := []struct {
		kind     GenerationErrorKind
		message  string
		keywords []string
	}{
		{ErrKindTimeout, "generation timed out", []string{"deadline exceeded", "timeout"}},
		{ErrKindQuota, "quota exceeded", []string{"quota", "429", "rate limit", "resource_exhausted", "billing"}},
		{ErrKindSafety, "blocked by safety filter", []string{"safety", "blocked", "content policy", "content filter"}},
		{ErrKindMalformed, "malformed request", []string{"invalid argument", "invalid_argument", "bad request", "400"}},
		{ErrKindUnavailable, "provider unavailable", []string{"503", "unavailable", "circuit"}},
	}
	for _, p := range patterns {
		for _, kw := range p.keywords {
			if strings.Contains(errStr, kw) {
				return &GenerationError{
					Kind:       p.kind,
					Message:    p.message,
					StatusCode: extractStatusCode(errStr),
					Provider:   provider,
					Model:      model,
					Cause:      err,
				}
			}
		}
	}

	return &GenerationError{
		Kind:       ErrKindUpstream,
		Message:    "generation failed",
		StatusCode: extractStatusCode(errStr),
		Provider:   provider,
		Model:      model,
		Cause:      err,
	}
}

// extractStatusCode tries to find HTTP status codes in an error string.
func extractStatusCode(errStr string) int {
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			return code
		}
	}
	return 0
}
