package llm

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/service"
)

// Router implements service.LLMClient over the configured providers.
// Each request goes to the highest-priority provider that serves the model
// and whose circuit is closed. There is exactly one attempt per request: a
// failure is returned to the caller, not retried on another provider.
type Router struct {
	providers []routedProvider
	stats     map[string]*providerStats
	breakers  map[string]*CircuitBreaker
	threshold int
	cooldown  time.Duration
	mu        sync.RWMutex
	logger    *zap.Logger
}

type routedProvider struct {
	Provider
	priority int
}

// providerStats tracks per-provider call counters.
type providerStats struct {
	TotalCalls   int64
	FailureCount int64
	LastLatency  time.Duration
}

// NewRouter creates a router whose breakers open after failureThreshold
// consecutive failures and probe again after cooldown.
func NewRouter(failureThreshold int, cooldown time.Duration, logger *zap.Logger) *Router {
	return &Router{
		stats:     make(map[string]*providerStats),
		breakers:  make(map[string]*CircuitBreaker),
		threshold: failureThreshold,
		cooldown:  cooldown,
		logger:    logger.With(zap.String("component", "llm-router")),
	}
}

// Compile-time interface check: Router implements service.LLMClient
var _ service.LLMClient = (*Router)(nil)

// AddProvider registers p. Lower priority values are preferred; equal
// priorities keep insertion order.
func (r *Router) AddProvider(p Provider, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, routedProvider{Provider: p, priority: priority})
	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].priority < r.providers[j].priority
	})
	r.stats[p.Name()] = &providerStats{}
	r.breakers[p.Name()] = NewCircuitBreaker(r.threshold, r.cooldown)
	r.logger.Info("LLM provider added",
		zap.String("name", p.Name()),
		zap.Strings("models", p.Models()),
		zap.Int("priority", priority),
	)
}

// Generate implements service.LLMClient. Errors are *service.GenerationError.
func (r *Router) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	p, cb := r.pick(req.Model)
	if p == nil {
		return nil, &service.GenerationError{
			Kind:    service.ErrKindUnavailable,
			Message: "no generation provider available",
			Model:   req.Model,
		}
	}

	start := time.Now()
	resp, err := p.Generate(ctx, req)
	latency := time.Since(start)

	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = service.NewGenerationError(service.ErrKindEmpty, p.Name(), "provider returned no text", nil)
	}

	r.mu.Lock()
	if s, ok := r.stats[p.Name()]; ok {
		s.TotalCalls++
		s.LastLatency = latency
		if err != nil {
			s.FailureCount++
		}
	}
	r.mu.Unlock()

	if err != nil {
		genErr := service.ClassifyError(err, p.Name(), req.Model)
		if tripsBreaker(genErr.Kind) {
			cb.RecordFailure()
		} else {
			cb.RecordSuccess()
		}
		r.logger.Warn("Provider failed",
			zap.String("provider", p.Name()),
			zap.String("kind", genErr.Kind.String()),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		return nil, genErr
	}

	cb.RecordSuccess()
	r.logger.Debug("Provider succeeded",
		zap.String("provider", p.Name()),
		zap.Duration("latency", latency),
		zap.Int("tokens", resp.TokensUsed),
		zap.Bool("truncated", resp.Truncated),
	)
	return resp, nil
}

// pick returns the first eligible provider and its breaker. Allow is called
// last so a half-open probe slot is only taken by the provider that runs.
func (r *Router) pick(model string) (Provider, *CircuitBreaker) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		if !p.SupportsModel(model) || !p.Configured() {
			continue
		}
		cb := r.breakers[p.Name()]
		if !cb.Allow() {
			r.logger.Debug("Provider circuit open, skipping", zap.String("provider", p.Name()))
			continue
		}
		return p.Provider, cb
	}
	return nil, nil
}

// tripsBreaker reports whether a failure says something about provider health
// rather than about this particular prompt.
func tripsBreaker(kind service.GenerationErrorKind) bool {
	switch kind {
	case service.ErrKindSafety, service.ErrKindMalformed, service.ErrKindEmpty, service.ErrKindTruncated:
		return false
	}
	return true
}

// ListProviders returns names, status and counters of all providers.
func (r *Router) ListProviders() []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ProviderStatus, 0, len(r.providers))
	for _, p := range r.providers {
		ps := ProviderStatus{
			Name:       p.Name(),
			Models:     p.Models(),
			Configured: p.Configured(),
			Priority:   p.priority,
		}
		if s, ok := r.stats[p.Name()]; ok {
			ps.TotalCalls = s.TotalCalls
			ps.FailureCount = s.FailureCount
			ps.LastLatencyMs = float64(s.LastLatency) / float64(time.Millisecond)
		}
		if cb, ok := r.breakers[p.Name()]; ok {
			ps.CircuitState = cb.State().String()
		}
		result = append(result, ps)
	}
	return result
}

// ProviderStatus describes a provider's current state
type ProviderStatus struct {
	Name          string   `json:"name"`
	Models        []string `json:"models"`
	Configured    bool     `json:"configured"`
	Priority      int      `json:"priority"`
	TotalCalls    int64    `json:"total_calls"`
	FailureCount  int64    `json:"failure_count"`
	LastLatencyMs float64  `json:"last_latency_ms"`
	CircuitState  string   `json:"circuit_state"`
}
