package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxOutputTokensLimit caps llm.max_output_tokens; replies are short chat messages.
const MaxOutputTokensLimit = 512

// Config 应用配置
type Config struct {
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Commerce  CommerceConfig  `mapstructure:"commerce"`
	Persona   PersonaConfig   `mapstructure:"persona"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Messenger MessengerConfig `mapstructure:"messenger"`
}

// GatewayConfig 网关配置
type GatewayConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // local, production
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type         string `mapstructure:"type"` // sqlite, postgres, memory
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// LLMConfig 文本生成配置
type LLMConfig struct {
	DefaultModel    string              `mapstructure:"default_model"`
	Temperature     float64             `mapstructure:"temperature"`
	MaxOutputTokens int                 `mapstructure:"max_output_tokens"`
	Providers       []LLMProviderConfig `mapstructure:"providers"`
	// Breaker tuning per provider
	FailureThreshold int           `mapstructure:"failure_threshold"`
	CooldownPeriod   time.Duration `mapstructure:"cooldown_period"`
}

// LLMProviderConfig configures one generation backend (used by llm.Router)
type LLMProviderConfig struct {
	Name     string   `mapstructure:"name"`
	Type     string   `mapstructure:"type"` // gemini, openai
	BaseURL  string   `mapstructure:"base_url"`
	APIKey   string   `mapstructure:"api_key"`
	Models   []string `mapstructure:"models"`
	Priority int      `mapstructure:"priority"`
}

// EngineConfig 回复流水线参数
type EngineConfig struct {
	DedupTTL          time.Duration `mapstructure:"dedup_ttl"`
	HistoryLimit      int           `mapstructure:"history_limit"`
	MaxHistoryChars   int           `mapstructure:"max_history_chars"`
	MaxCatalogItems   int           `mapstructure:"max_catalog_items"`
	MaxCatalogChars   int           `mapstructure:"max_catalog_chars"`
	GenerationTimeout time.Duration `mapstructure:"generation_timeout"`
	DeliveryTimeout   time.Duration `mapstructure:"delivery_timeout"`
	FeaturedCacheTTL  time.Duration `mapstructure:"featured_cache_ttl"`
}

// CommerceConfig 订单参数
type CommerceConfig struct {
	ShippingFee float64 `mapstructure:"shipping_fee"`
	Currency    string  `mapstructure:"currency"`
	CatalogFile string  `mapstructure:"catalog_file"` // seed 命令使用
}

// PersonaConfig 人设文件
type PersonaConfig struct {
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

// TelegramConfig Telegram 配置
type TelegramConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BotToken  string `mapstructure:"bot_token"`
	ChannelID string `mapstructure:"channel_id"` // channels 表中对应的行
	Timeout   int    `mapstructure:"timeout"`    // long polling seconds
}

// MessengerConfig Graph Send API 配置
type MessengerConfig struct {
	GraphURL   string                `mapstructure:"graph_url"`
	APIVersion string                `mapstructure:"api_version"`
	Pages      []MessengerPageConfig `mapstructure:"pages"` // serve 启动时写入 channels 表
}

// MessengerPageConfig is one Facebook page the engine replies as.
type MessengerPageConfig struct {
	ChannelID   string `mapstructure:"channel_id"`
	Name        string `mapstructure:"name"`
	AccessToken string `mapstructure:"access_token"`
}

// Address returns host:port for the HTTP server.
func (c GatewayConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load 加载配置
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom 加载配置; explicit 非空时只读取该文件
func LoadFrom(explicit string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", explicit, err)
		}
	} else {
		// 优先级 (低 → 高): 默认值 → ~/.chatcommerce/ → 项目本地 → 环境变量
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".chatcommerce"))
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read global config: %w", err)
			}
		}

		for _, localDir := range []string{"./config", "."} {
			localPath := filepath.Join(localDir, "config.yaml")
			if _, err := os.Stat(localPath); err == nil {
				local := viper.New()
				local.SetConfigFile(localPath)
				if err := local.ReadInConfig(); err != nil {
					return nil, fmt.Errorf("failed to read %s: %w", localPath, err)
				}
				_ = v.MergeConfigMap(local.AllSettings())
				break
			}
		}
	}

	v.SetEnvPrefix("CHATCOMMERCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.DedupTTL <= 0 {
		return fmt.Errorf("engine.dedup_ttl must be positive")
	}
	if c.Engine.HistoryLimit <= 0 {
		return fmt.Errorf("engine.history_limit must be positive")
	}
	if c.LLM.MaxOutputTokens <= 0 || c.LLM.MaxOutputTokens > MaxOutputTokensLimit {
		return fmt.Errorf("llm.max_output_tokens must be between 1 and %d", MaxOutputTokensLimit)
	}
	if c.Commerce.ShippingFee < 0 {
		return fmt.Errorf("commerce.shipping_fee must not be negative")
	}
	for i, p := range c.Messenger.Pages {
		if p.ChannelID == "" || p.AccessToken == "" {
			return fmt.Errorf("messenger.pages[%d]: channel_id and access_token are required", i)
		}
	}
	switch c.Database.Type {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	return nil
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 18790)
	v.SetDefault("gateway.mode", "local")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "chatcommerce.db")
	v.SetDefault("database.max_open_conns", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("llm.default_model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_output_tokens", 300)
	v.SetDefault("llm.failure_threshold", 3)
	v.SetDefault("llm.cooldown_period", "30s")

	v.SetDefault("engine.dedup_ttl", "30s")
	v.SetDefault("engine.history_limit", 20)
	v.SetDefault("engine.max_history_chars", 4000)
	v.SetDefault("engine.max_catalog_items", 8)
	v.SetDefault("engine.max_catalog_chars", 2500)
	v.SetDefault("engine.generation_timeout", "30s")
	v.SetDefault("engine.delivery_timeout", "15s")
	v.SetDefault("engine.featured_cache_ttl", "0s") // 0 = 每次读取最新库存

	v.SetDefault("commerce.shipping_fee", 50)
	v.SetDefault("commerce.currency", "EGP")
	v.SetDefault("commerce.catalog_file", "catalog.yaml")

	v.SetDefault("persona.file", "persona.md")
	v.SetDefault("persona.watch", true)

	v.SetDefault("telegram.channel_id", "telegram")
	v.SetDefault("telegram.timeout", 60)

	v.SetDefault("messenger.graph_url", "https://graph.facebook.com")
	v.SetDefault("messenger.api_version", "v19.0")
}
