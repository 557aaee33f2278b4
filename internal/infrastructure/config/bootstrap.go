package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppName is the canonical application name
const AppName = "chatcommerce"

// HomeDir returns the configuration home: ~/.chatcommerce
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// ResolvePath maps a relative file setting to the working directory when the
// file exists there, otherwise to HomeDir.
func ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return filepath.Join(HomeDir(), p)
}

// Bootstrap writes default config, persona and catalog files into dir when
// they are missing. Existing files are never overwritten.
func Bootstrap(dir string, logger *zap.Logger) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create dir %s: %w", dir, err)
	}

	defaults := map[string]string{
		filepath.Join(dir, "config.yaml"):  defaultConfig,
		filepath.Join(dir, "persona.md"):   defaultPersona,
		filepath.Join(dir, "catalog.yaml"): defaultCatalog,
	}

	created := 0
	for path, content := range defaults {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			logger.Warn("Failed to write default file", zap.String("path", path), zap.Error(err))
			continue
		}
		created++
	}

	if created > 0 {
		logger.Info("Bootstrap complete", zap.String("dir", dir), zap.Int("files_created", created))
	} else {
		logger.Debug("Config directory OK", zap.String("dir", dir))
	}
	return created, nil
}

const defaultConfig = `# ─── Gateway / HTTP 服务 ───────────────────────────────────
gateway:
  host: 0.0.0.0
  port: 18790
  mode: local                  # local | production

# ─── Database / 数据库 ─────────────────────────────────────
database:
  type: sqlite                 # sqlite | postgres | memory
  dsn: chatcommerce.db

log:
  level: info                  # debug | info | warn | error
  format: json                 # json | console

# ─── Text generation / 文本生成 ────────────────────────────
llm:
  default_model: gemini-2.0-flash
  temperature: 0.7
  max_output_tokens: 300
  providers:
    - name: gemini
      type: gemini
      api_key: ""              # or CHATCOMMERCE_LLM_PROVIDERS... / GEMINI_API_KEY
      models: [gemini-2.0-flash]
      priority: 1

# ─── Reply engine / 回复流水线 ─────────────────────────────
engine:
  dedup_ttl: 30s
  history_limit: 20
  max_history_chars: 4000
  max_catalog_items: 8
  max_catalog_chars: 2500
  generation_timeout: 30s
  delivery_timeout: 15s

commerce:
  shipping_fee: 50
  currency: EGP
  catalog_file: catalog.yaml

persona:
  file: persona.md
  watch: true

telegram:
  enabled: false
  bot_token: ""
  channel_id: telegram
`

const defaultPersona = `---
shop_name: Our Shop
language: Egyptian Arabic and English
currency: EGP
---
You are the sales assistant of {{shop_name}}. Reply in the customer's language
({{language}}), keep answers short and friendly, and quote prices in {{currency}}.
Only mention products that appear in the catalog you are given.
`

const defaultCatalog = `products:
  - name: Classic Sneaker
    description: White leather sneaker
    category: shoes
    price: 350
    discount_percent: 30
    stock: 10
    featured: true
    sizes: ["39", "40", "41", "42"]
    colors: [white, black]
`
