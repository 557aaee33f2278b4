package llm

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/service"
)

// Provider is one generation backend behind the Router.
type Provider interface {
	service.LLMClient

	// Name returns the provider identifier from config (e.g. "gemini")
	Name() string

	// Models returns the configured model identifiers; empty means any
	Models() []string

	// SupportsModel checks if a specific model is served
	SupportsModel(model string) bool

	// Configured reports whether credentials are present
	Configured() bool
}

// ProviderConfig holds configuration for one provider.
type ProviderConfig struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"` // "gemini" | "openai"
	BaseURL  string   `json:"base_url"`
	APIKey   string   `json:"api_key"`
	Models   []string `json:"models"`
	Priority int      `json:"priority"` // lower = tried first
}

// --- Provider Factory Registry ---
// Provider packages register themselves via init().

// ProviderFactory creates a Provider from config.
type ProviderFactory func(cfg ProviderConfig, logger *zap.Logger) (Provider, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]ProviderFactory{}
)

// RegisterFactory registers a provider factory for the given type name.
func RegisterFactory(typeName string, factory ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[typeName] = factory
}

// CreateProvider builds a Provider with the factory registered for cfg.Type.
// An empty Type means "gemini".
func CreateProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	t := cfg.Type
	if t == "" {
		t = "gemini"
	}

	factoryMu.RLock()
	factory, ok := factories[t]
	available := make([]string, 0, len(factories))
	for k := range factories {
		available = append(available, k)
	}
	factoryMu.RUnlock()

	if !ok {
		sort.Strings(available)
		return nil, fmt.Errorf("unknown provider type %q (available: %v)", t, available)
	}
	return factory(cfg, logger)
}

// SupportsModel is the shared model filter: an empty list serves everything.
func SupportsModel(models []string, model string) bool {
	if len(models) == 0 || model == "" {
		return true
	}
	for _, m := range models {
		if m == model {
			return true
		}
	}
	return false
}
