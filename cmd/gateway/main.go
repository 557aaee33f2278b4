package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/application"
	"github.com/chatcommerce/gateway/internal/infrastructure/config"
	"github.com/chatcommerce/gateway/internal/infrastructure/logger"
	"github.com/chatcommerce/gateway/internal/infrastructure/persistence"
	"github.com/chatcommerce/gateway/internal/interfaces/repl"
)

const (
	appName    = "chatcommerce-gateway"
	appVersion = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gateway",
		Short:         "Conversational commerce reply gateway",
		Long:          "chatcommerce gateway: 接收渠道消息, 生成回复, 执行下单指令并投递回渠道",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "配置文件路径 (默认按层级查找)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "启动网关服务 (HTTP + Telegram)",
		RunE:  runServe,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "repl",
		Short: "以顾客身份在控制台对话",
		RunE:  runREPL,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "创建或更新数据库表",
		RunE:  runMigrate,
	})

	seedCmd := &cobra.Command{
		Use:   "seed [catalog.yaml]",
		Short: "从 YAML 文件导入商品",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSeed,
	}
	rootCmd.AddCommand(seedCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "生成默认配置, 人设与商品文件",
		RunE:  runInit,
	}
	initCmd.Flags().String("dir", config.HomeDir(), "目标目录")
	rootCmd.AddCommand(initCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "环境诊断",
		RunE:  runDoctor,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", appName, appVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig 读取 --config 或层级配置
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, format, level string) (*zap.Logger, error) {
	if format == "" {
		format = cfg.Log.Format
	}
	if level == "" {
		level = cfg.Log.Level
	}
	log, err := logger.NewLogger(logger.Config{
		Level:      level,
		Format:     format,
		OutputPath: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	return log, nil
}

// ─── Gateway Server Mode ───

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, "", "")
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting gateway",
		zap.String("name", appName),
		zap.String("version", appVersion),
		zap.String("address", cfg.Gateway.Address()),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := application.NewApp(ctx, cfg, log, application.Options{Interfaces: true})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		_ = app.Stop(context.Background())
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-ctx.Done()
	log.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
		return err
	}
	return nil
}

// ─── REPL Mode ───

func runREPL(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Reduce noise in REPL mode
	log, err := newLogger(cfg, "console", "warn")
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := application.NewApp(ctx, cfg, log, application.Options{ConsoleOut: os.Stdout})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	if err := app.Start(ctx); err != nil {
		_ = app.Stop(context.Background())
		return err
	}

	r := repl.New(app.Replies(), log, repl.Config{
		ChannelID: application.ConsoleChannelID,
		UserName:  os.Getenv("USER"),
		In:        os.Stdin,
		Out:       os.Stdout,
	})
	runErr := r.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = app.Stop(shutdownCtx)
	return runErr
}

// ─── Store maintenance ───

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.Type == "memory" {
		return fmt.Errorf("database.type is memory: nothing to migrate")
	}
	log, err := newLogger(cfg, "console", "")
	if err != nil {
		return err
	}
	defer log.Sync()

	// OpenStore runs AutoMigrate
	store, err := application.OpenStore(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("✓ %s schema is up to date\n", cfg.Database.Type)
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.Type == "memory" {
		return fmt.Errorf("database.type is memory: seeded products would be lost on exit")
	}
	log, err := newLogger(cfg, "console", "")
	if err != nil {
		return err
	}
	defer log.Sync()

	path := config.ResolvePath(cfg.Commerce.CatalogFile)
	if len(args) == 1 {
		path = args[0]
	}
	products, err := persistence.LoadCatalogFile(path)
	if err != nil {
		return err
	}

	store, err := application.OpenStore(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := persistence.SeedCatalog(cmd.Context(), store.Products, products)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %d products imported from %s\n", n, path)
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	log, err := logger.NewLogger(logger.Config{Level: "warn", Format: "console", OutputPath: "stderr"})
	if err != nil {
		return err
	}
	defer log.Sync()

	created, err := config.Bootstrap(dir, log)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %d files created in %s\n", created, dir)
	return nil
}

// ─── Doctor ───

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Printf("◇ %s doctor v%s\n\n", appName, appVersion)

	cfg, cfgErr := loadConfig(cmd)
	checks := []struct {
		name  string
		check func() (string, bool)
	}{
		{"配置文件", func() (string, bool) {
			if cfgErr != nil {
				return cfgErr.Error(), false
			}
			return "ok", true
		}},
		{"人设文件", func() (string, bool) { return checkFile(cfg, func(c *config.Config) string { return c.Persona.File }) }},
		{"商品文件", func() (string, bool) { return checkFile(cfg, func(c *config.Config) string { return c.Commerce.CatalogFile }) }},
		{"生成后端", func() (string, bool) {
			if cfg == nil || len(cfg.LLM.Providers) == 0 {
				return "未配置 llm.providers", false
			}
			return fmt.Sprintf("%d 个", len(cfg.LLM.Providers)), true
		}},
	}

	allOK := true
	for _, c := range checks {
		val, ok := c.check()
		icon := "\033[92m✓\033[0m"
		if !ok {
			icon = "\033[91m✗\033[0m"
			allOK = false
		}
		fmt.Printf("  %s %s: %s\n", icon, c.name, val)
	}

	fmt.Println()
	if allOK {
		fmt.Println("所有检查通过 ✓")
	} else {
		fmt.Println("存在问题, 请检查上方标记 (gateway init 可生成默认文件)")
	}
	return nil
}

func checkFile(cfg *config.Config, pick func(*config.Config) string) (string, bool) {
	if cfg == nil {
		return "配置未加载", false
	}
	path := config.ResolvePath(pick(cfg))
	if path == "" {
		return "未配置", false
	}
	if _, err := os.Stat(path); err != nil {
		return "未找到 " + path, false
	}
	return path, true
}
