package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFrom_DefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  type: memory
engine:
  dedup_ttl: 45s
llm:
  providers:
    - name: primary
      type: openai
      base_url: http://localhost:8080/v1
      models: [local-model]
      priority: 2
messenger:
  pages:
    - channel_id: page-1
      name: Shop Page
      access_token: tok
`)
	t.Setenv("CHATCOMMERCE_COMMERCE_CURRENCY", "USD")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	require.Equal(t, "memory", cfg.Database.Type)
	require.Equal(t, 45*time.Second, cfg.Engine.DedupTTL)
	require.Equal(t, 20, cfg.Engine.HistoryLimit)
	require.Equal(t, 300, cfg.LLM.MaxOutputTokens)
	require.Equal(t, "USD", cfg.Commerce.Currency)
	require.Equal(t, 50.0, cfg.Commerce.ShippingFee)
	require.Equal(t, "telegram", cfg.Telegram.ChannelID)
	require.Equal(t, "v19.0", cfg.Messenger.APIVersion)
	require.Equal(t, "0.0.0.0:18790", cfg.Gateway.Address())

	require.Len(t, cfg.LLM.Providers, 1)
	require.Equal(t, []string{"local-model"}, cfg.LLM.Providers[0].Models)
	require.Len(t, cfg.Messenger.Pages, 1)
	require.Equal(t, "page-1", cfg.Messenger.Pages[0].ChannelID)
}

func TestLoadFrom_Invalid(t *testing.T) {
	cases := map[string]string{
		"database type": "database:\n  type: mongo\n",
		"dedup ttl":     "engine:\n  dedup_ttl: 0s\n",
		"shipping":      "commerce:\n  shipping_fee: -5\n",
		"output tokens": "llm:\n  max_output_tokens: 4096\n",
		"zero tokens":   "llm:\n  max_output_tokens: 0\n",
		"page token":    "messenger:\n  pages:\n    - channel_id: p\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(writeConfig(t, body))
			require.Error(t, err)
		})
	}

	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	cfg, err := LoadFrom(writeConfig(t, "llm:\n  max_output_tokens: 512\n"))
	require.NoError(t, err)
	require.Equal(t, MaxOutputTokensLimit, cfg.LLM.MaxOutputTokens)
}

func TestBootstrap_DoesNotOverwrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home")

	created, err := Bootstrap(dir, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 3, created)

	persona := filepath.Join(dir, "persona.md")
	require.NoError(t, os.WriteFile(persona, []byte("custom"), 0644))

	created, err = Bootstrap(dir, zap.NewNop())
	require.NoError(t, err)
	require.Zero(t, created)

	data, err := os.ReadFile(persona)
	require.NoError(t, err)
	require.Equal(t, "custom", string(data))

	// 默认配置可直接加载
	cfg, err := LoadFrom(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Database.Type)
}

func TestResolvePath(t *testing.T) {
	require.Equal(t, "", ResolvePath(""))
	require.Equal(t, "/etc/persona.md", ResolvePath("/etc/persona.md"))
	require.Equal(t, filepath.Join(HomeDir(), "no-such-file.yaml"), ResolvePath("no-such-file.yaml"))
}
