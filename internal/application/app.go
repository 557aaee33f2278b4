package application

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chatcommerce/gateway/internal/application/usecase"
	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/service"
	"github.com/chatcommerce/gateway/internal/domain/valueobject"
	"github.com/chatcommerce/gateway/internal/infrastructure/channel"
	"github.com/chatcommerce/gateway/internal/infrastructure/config"
	"github.com/chatcommerce/gateway/internal/infrastructure/eventbus"
	"github.com/chatcommerce/gateway/internal/infrastructure/llm"
	_ "github.com/chatcommerce/gateway/internal/infrastructure/llm/gemini" // register gemini provider factory
	_ "github.com/chatcommerce/gateway/internal/infrastructure/llm/openai" // register openai provider factory
	"github.com/chatcommerce/gateway/internal/infrastructure/monitoring"
	"github.com/chatcommerce/gateway/internal/infrastructure/persistence"
	"github.com/chatcommerce/gateway/internal/infrastructure/prompt"
	httpServer "github.com/chatcommerce/gateway/internal/interfaces/http"
	"github.com/chatcommerce/gateway/internal/interfaces/http/handlers"
	"github.com/chatcommerce/gateway/internal/interfaces/telegram"
)

// ConsoleChannelID is the channel row used by the REPL.
const ConsoleChannelID = "console"

// Options 控制构建哪些接口
type Options struct {
	// Interfaces builds the HTTP server and, when enabled, Telegram polling.
	Interfaces bool
	// ConsoleOut receives replies sent to the console channel (default stdout).
	ConsoleOut io.Writer
	// LLM replaces the provider router, e.g. in tests.
	LLM service.LLMClient
	// TelegramBot replaces the bot API client, e.g. in tests.
	TelegramBot func(token string) (*tgbotapi.BotAPI, error)
}

// App 应用程序 (依赖注入容器)
type App struct {
	config *config.Config
	logger *zap.Logger
	opts   Options

	store *Store

	// 基础设施
	bus            *eventbus.InMemoryBus
	monitor        *monitoring.Monitor
	persona        *prompt.PersonaStore
	llmRouter      *llm.Router
	llmClient      service.LLMClient
	channelRouter  *channel.Router
	telegramSender *channel.TelegramSender

	// 应用服务
	replyUseCase *usecase.ReplyUseCase

	// 接口层
	httpServer      *httpServer.Server
	telegramAdapter *telegram.Adapter

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewApp 创建应用程序
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if opts.ConsoleOut == nil {
		opts.ConsoleOut = os.Stdout
	}
	if opts.TelegramBot == nil {
		opts.TelegramBot = tgbotapi.NewBotAPI
	}

	app := &App{
		config: cfg,
		logger: logger,
		opts:   opts,
	}

	store, err := OpenStore(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}
	app.store = store

	if err := app.initInfrastructure(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}

	app.initApplicationServices()

	if opts.Interfaces {
		if err := app.initInterfaces(); err != nil {
			app.bus.Close()
			_ = store.Close()
			return nil, fmt.Errorf("failed to init interfaces: %w", err)
		}
	}

	return app, nil
}

// initInfrastructure 初始化基础设施
func (app *App) initInfrastructure(ctx context.Context) error {
	app.logger.Info("Initializing infrastructure")

	// 领域事件总线 + 审计
	app.bus = eventbus.NewInMemoryBus(app.logger, 256)
	eventbus.NewAuditLogger(app.logger).Attach(app.bus)
	app.monitor = monitoring.NewMonitor(app.config.Commerce.Currency, app.logger)
	app.monitor.Attach(app.bus)

	// Persona (hot reload in Start)
	app.persona = prompt.NewPersonaStore(config.ResolvePath(app.config.Persona.File), app.logger)

	// LLM Router
	app.llmClient = app.opts.LLM
	if app.llmClient == nil {
		app.llmRouter = llm.NewRouter(app.config.LLM.FailureThreshold, app.config.LLM.CooldownPeriod, app.logger)
		for _, p := range app.config.LLM.Providers {
			provider, err := llm.CreateProvider(llm.ProviderConfig{
				Name:     p.Name,
				Type:     p.Type,
				BaseURL:  p.BaseURL,
				APIKey:   p.APIKey,
				Models:   p.Models,
				Priority: p.Priority,
			}, app.logger)
			if err != nil {
				app.logger.Error("Failed to create LLM provider",
					zap.String("name", p.Name),
					zap.String("type", p.Type),
					zap.Error(err),
				)
				continue
			}
			app.llmRouter.AddProvider(provider, p.Priority)
		}
		app.logger.Info("LLM Router initialized", zap.Int("providers", len(app.config.LLM.Providers)))
		app.llmClient = app.llmRouter
	}

	// 出站渠道
	app.channelRouter = channel.NewRouter(app.store.Channels, app.logger)
	app.channelRouter.Register(valueobject.ChannelMessenger,
		channel.NewMessengerSender(app.config.Messenger.GraphURL, app.config.Messenger.APIVersion, app.logger))
	app.telegramSender = channel.NewTelegramSender(channel.NewBotAPI, app.logger)
	app.channelRouter.Register(valueobject.ChannelTelegram, app.telegramSender)
	app.channelRouter.Register(valueobject.ChannelConsole, channel.NewConsoleSender(app.opts.ConsoleOut, "🤖 "))

	if err := app.ensureChannels(ctx); err != nil {
		return err
	}
	return app.seedMemoryCatalog(ctx)
}

// ensureChannels writes the channel rows implied by config.
func (app *App) ensureChannels(ctx context.Context) error {
	rows := []*entity.Channel{{
		ID:      ConsoleChannelID,
		Type:    valueobject.ChannelConsole,
		Name:    "Local console",
		Enabled: true,
	}}
	if tg := app.config.Telegram; tg.Enabled && tg.BotToken != "" {
		rows = append(rows, &entity.Channel{
			ID:          tg.ChannelID,
			Type:        valueobject.ChannelTelegram,
			Name:        "Telegram bot",
			AccessToken: tg.BotToken,
			Enabled:     true,
		})
	}
	for _, page := range app.config.Messenger.Pages {
		rows = append(rows, &entity.Channel{
			ID:          page.ChannelID,
			Type:        valueobject.ChannelMessenger,
			Name:        page.Name,
			AccessToken: page.AccessToken,
			Enabled:     true,
		})
	}

	for _, ch := range rows {
		if err := app.store.Channels.Save(ctx, ch); err != nil {
			return fmt.Errorf("failed to save channel %s: %w", ch.ID, err)
		}
	}
	app.logger.Info("Channels ready", zap.Int("count", len(rows)))
	return nil
}

// seedMemoryCatalog loads the catalog file into a memory store, which
// otherwise starts empty on every run.
func (app *App) seedMemoryCatalog(ctx context.Context) error {
	if app.store.Persistent() || app.config.Commerce.CatalogFile == "" {
		return nil
	}
	path := config.ResolvePath(app.config.Commerce.CatalogFile)
	products, err := persistence.LoadCatalogFile(path)
	if err != nil {
		app.logger.Warn("Catalog file not loaded, memory store has no products",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil
	}
	n, err := persistence.SeedCatalog(ctx, app.store.Products, products)
	if err != nil {
		return err
	}
	app.logger.Info("Memory catalog seeded", zap.Int("products", n))
	return nil
}

// initApplicationServices 初始化应用服务
func (app *App) initApplicationServices() {
	app.logger.Info("Initializing application services")

	eng := app.config.Engine
	excerpt := service.NewCatalogExcerpt(app.store.Products, app.config.Commerce.Currency, eng.FeaturedCacheTTL, nil)
	fulfillment := service.NewOrderFulfillment(
		app.store.Products,
		app.store.Orders,
		app.config.Commerce.ShippingFee,
		app.config.Commerce.Currency,
		app.bus,
		nil,
		app.logger,
	)

	app.replyUseCase = usecase.NewReplyUseCase(usecase.ReplyDeps{
		Gate:          service.NewGate(eng.DedupTTL, nil, app.logger),
		Conversations: app.store.Conversations,
		Messages:      app.store.Messages,
		Products:      app.store.Products,
		Assembler:     service.NewContextAssembler(app.store.Messages, eng.HistoryLimit, app.logger),
		Intent:        service.NewIntentClassifier(),
		Prompts: service.NewPromptBuilder(app.persona, excerpt, service.PromptLimits{
			MaxHistoryChars: eng.MaxHistoryChars,
			MaxCatalogItems: eng.MaxCatalogItems,
			MaxCatalogChars: eng.MaxCatalogChars,
		}, app.logger),
		LLM:        app.llmClient,
		Post:       service.NewPostProcessor(fulfillment, app.logger),
		Dispatcher: service.NewDispatcher(app.store.Messages, app.channelRouter, eng.DeliveryTimeout, app.bus, app.logger),
		Events:     app.bus,
	}, usecase.ReplyConfig{
		Model:             app.config.LLM.DefaultModel,
		Temperature:       app.config.LLM.Temperature,
		MaxOutputTokens:   app.config.LLM.MaxOutputTokens,
		GenerationTimeout: eng.GenerationTimeout,
	}, app.logger)
}

// initInterfaces 初始化接口层
func (app *App) initInterfaces() error {
	app.logger.Info("Initializing interfaces")

	var providers handlers.ProviderLister
	if app.llmRouter != nil {
		providers = app.llmRouter
	}
	app.httpServer = httpServer.NewServer(
		httpServer.Config{
			Host: app.config.Gateway.Host,
			Port: app.config.Gateway.Port,
			Mode: app.config.Gateway.Mode,
		},
		handlers.NewEventHandler(app.replyUseCase, app.logger),
		handlers.NewQueryHandler(app.store.Conversations, app.store.Messages, app.store.Orders, providers, app.logger),
		app.monitor.PrometheusHandler(),
		app.logger,
	)

	// Telegram适配器
	tg := app.config.Telegram
	if tg.Enabled && tg.BotToken != "" {
		bot, err := app.opts.TelegramBot(tg.BotToken)
		if err != nil {
			return fmt.Errorf("failed to create telegram bot: %w", err)
		}
		app.logger.Info("Telegram bot authorized", zap.String("username", bot.Self.UserName))

		// 入站轮询与出站共用同一个 bot
		app.telegramSender.Use(tg.BotToken, bot)
		app.telegramAdapter = telegram.NewAdapter(bot, app.replyUseCase, telegram.Config{
			ChannelID: tg.ChannelID,
			Timeout:   tg.Timeout,
		}, app.logger)
	}
	return nil
}

// Start 启动应用程序
func (app *App) Start(ctx context.Context) error {
	app.logger.Info("Starting application")

	app.mu.Lock()
	defer app.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	app.cancel = cancel
	app.group = &errgroup.Group{}

	if app.config.Persona.Watch {
		app.group.Go(func() error { return app.persona.Watch(runCtx) })
	}
	if app.httpServer != nil {
		app.group.Go(func() error { return app.httpServer.Start(runCtx) })
	}
	if app.telegramAdapter != nil {
		app.group.Go(func() error { return app.telegramAdapter.Start(runCtx) })
	}

	if err := app.group.Wait(); err != nil {
		cancel()
		return err
	}
	app.logger.Info("Application started successfully")
	return nil
}

// Stop 停止应用程序
func (app *App) Stop(ctx context.Context) error {
	app.logger.Info("Stopping application")

	app.mu.Lock()
	cancel := app.cancel
	app.cancel = nil
	app.mu.Unlock()

	if app.telegramAdapter != nil {
		app.telegramAdapter.Stop()
	}
	if app.httpServer != nil {
		if err := app.httpServer.Stop(ctx); err != nil {
			app.logger.Error("Failed to stop HTTP server", zap.Error(err))
		}
	}
	if cancel != nil {
		cancel()
	}

	app.bus.Close()

	if err := app.store.Close(); err != nil {
		app.logger.Error("Failed to close database connection", zap.Error(err))
	}

	app.logger.Info("Application stopped successfully")
	return nil
}

// Replies returns the reply pipeline (used by the REPL)
func (app *App) Replies() *usecase.ReplyUseCase {
	return app.replyUseCase
}

// Monitor returns the pipeline metrics
func (app *App) Monitor() *monitoring.Monitor {
	return app.monitor
}

// Store returns the repositories
func (app *App) Store() *Store {
	return app.store
}

// Handler returns the HTTP handler, nil without interfaces
func (app *App) Handler() http.Handler {
	if app.httpServer == nil {
		return nil
	}
	return app.httpServer.Handler()
}

// Logger returns the application logger
func (app *App) Logger() *zap.Logger {
	return app.logger
}

// AppConfig returns the application config
func (app *App) AppConfig() *config.Config {
	return app.config
}
