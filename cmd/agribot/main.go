package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"agribot/internal/advisor"
	"agribot/internal/advisory"
	"agribot/internal/bus"
	"agribot/internal/channel"
	"agribot/internal/config"
	"agribot/internal/provider"
	"agribot/internal/store"
	"agribot/internal/vision"
	"agribot/internal/weather"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// Secrets commonly live in a local .env during development.
	_ = godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "agribot",
		Short: "AgriBot: farming advisory chat backend",
		Long:  "AgriBot answers smallholder farmer questions over WhatsApp, Telegram, and CLI: crop disease detection from photos, weather-based irrigation advice, and general maize/coffee guidance.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.agribot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(plantingCmd())
	root.AddCommand(doctorCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfigOrDefaults() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		return config.Defaults()
	}
	return cfg
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			dataDir := config.ExpandPath(cfg.General.DataDir)
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "data", dataDir)
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start interactive chat (CLI)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigOrDefaults()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.close()

			go rt.advisor.Run(ctx)

			cliCh := channel.NewCLI(channel.CLIChannelConfig{Logger: logger})
			return cliCh.Start(ctx, rt.bus)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigOrDefaults()
			ctx := context.Background()

			model := provider.NewClaude(provider.ClaudeConfig{
				APIKey: cfg.Model.APIKey,
				Model:  cfg.Model.Model,
				Logger: logger,
			})
			if err := model.Healthy(ctx); err != nil {
				logger.Info("model", "name", model.Name(), "healthy", false, "err", err)
			} else {
				logger.Info("model", "name", model.Name(), "model", cfg.Model.Model, "healthy", true)
			}

			st, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
			if err != nil {
				logger.Info("store", "healthy", false, "err", err)
				return nil
			}
			defer st.Close()
			stats, err := st.Stats(ctx)
			if err != nil {
				logger.Info("store", "healthy", false, "err", err)
				return nil
			}
			logger.Info("store", "healthy", true,
				"farmers", stats.Farmers, "active", stats.ActiveFarmers,
				"turns", stats.Turns, "turns_24h", stats.TurnsLast24h)
			return nil
		},
	}
}

func plantingCmd() *cobra.Command {
	var monthFlag int
	cmd := &cobra.Command{
		Use:   "planting [crop]",
		Short: "Show planting advice for a crop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigOrDefaults()

			cal := advisory.DefaultCalendar()
			if cfg.Advisory.CalendarPath != "" {
				loaded, err := advisory.LoadCalendar(cfg.Advisory.CalendarPath)
				if err != nil {
					return fmt.Errorf("load calendar: %w", err)
				}
				cal = loaded
			}

			month := time.Now().Month()
			if monthFlag >= 1 && monthFlag <= 12 {
				month = time.Month(monthFlag)
			}
			fmt.Printf("%s in %s: %s\n", strings.ToLower(args[0]), month, cal.PlantingAdvice(args[0], month))
			return nil
		},
	}
	cmd.Flags().IntVarP(&monthFlag, "month", "m", 0, "month number 1-12 (default: current month)")
	return cmd
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start gateway (WhatsApp + Telegram + Web + advisor loop)",
		Long:  "Starts all enabled channels and the advisor loop. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

// runtime bundles the pieces shared by chat and gateway.
type runtime struct {
	bus     *bus.InMemoryBus
	store   *store.SQLiteStore
	advisor *advisor.Advisor
	cache   *weather.RedisCache
}

func (r *runtime) close() {
	r.bus.Close()
	r.store.Close()
	if r.cache != nil {
		r.cache.Close()
	}
}

func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	if cfg.Advisory.CalendarPath != "" {
		cal, err := advisory.LoadCalendar(cfg.Advisory.CalendarPath)
		if err != nil {
			return nil, fmt.Errorf("load planting calendar: %w", err)
		}
		advisory.UseCalendar(cal)
	}

	messageBus := bus.New(100, logger)

	profileStore, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("profile store: %w", err)
	}

	model := provider.NewClaude(provider.ClaudeConfig{
		APIKey:    cfg.Model.APIKey,
		Model:     cfg.Model.Model,
		MaxTokens: cfg.Model.MaxTokens,
		Timeout:   time.Duration(cfg.Model.TimeoutSeconds) * time.Second,
		Logger:    logger,
	})
	if err := model.Healthy(ctx); err != nil {
		logger.Warn("dialogue model unhealthy at startup", "err", err)
	}

	classifier := vision.New(vision.Config{
		APIURL:  cfg.Vision.APIURL,
		Token:   cfg.Vision.Token,
		Timeout: time.Duration(cfg.Vision.TimeoutSeconds) * time.Second,
		Logger:  logger,
	})

	var cache *weather.RedisCache
	var forecastCache weather.Cache
	if cfg.Redis.Enabled {
		cache, err = weather.NewRedisCache(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis unavailable, forecast caching disabled", "err", err)
		} else {
			forecastCache = cache
			logger.Info("forecast cache enabled")
		}
	}

	forecaster := weather.New(weather.Config{
		APIKey:   cfg.Weather.APIKey,
		Cache:    forecastCache,
		CacheTTL: time.Duration(cfg.Weather.CacheTTLMinutes) * time.Minute,
		Timeout:  time.Duration(cfg.Weather.TimeoutSeconds) * time.Second,
		Logger:   logger,
	})

	adv := advisor.New(advisor.Config{
		Store:         profileStore,
		Model:         model,
		Classifier:    classifier,
		Forecaster:    forecaster,
		Bus:           messageBus,
		Logger:        logger,
		HistoryTurns:  cfg.General.HistoryTurns,
		MaxConcurrent: cfg.General.MaxConcurrentMessages,
	})

	return &runtime{
		bus:     messageBus,
		store:   profileStore,
		advisor: adv,
		cache:   cache,
	}, nil
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}

	go rt.advisor.Run(ctx)

	var whatsappCh *channel.WhatsApp
	if cfg.Channels.WhatsApp.Enabled {
		whatsappCh = channel.NewWhatsApp(channel.WhatsAppChannelConfig{
			Config: cfg.Channels.WhatsApp,
			Logger: logger,
		})
		if err := whatsappCh.Start(ctx, rt.bus); err != nil {
			return fmt.Errorf("whatsapp channel: %w", err)
		}
		logger.Info("whatsapp channel enabled")
	} else {
		logger.Info("whatsapp channel disabled")
	}

	var telegramCh *channel.Telegram
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		telegramCh = channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Channels.Telegram.Token,
			ParseMode: cfg.Channels.Telegram.ParseMode,
			Logger:    logger,
		})
		go func() {
			if err := telegramCh.Start(ctx, rt.bus); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
	} else {
		logger.Info("telegram channel disabled")
	}

	var webCh *channel.Web
	if cfg.Channels.Web.Enabled {
		webCfg := channel.WebChannelConfig{
			Config: cfg.Channels.Web,
			Store:  rt.store,
			Logger: logger,
		}
		if whatsappCh != nil {
			webCfg.WhatsApp = whatsappCh.Handler()
		}
		webCh = channel.NewWeb(webCfg)
		go func() {
			if err := webCh.Start(ctx); err != nil {
				logger.Error("web server error", "err", err)
			}
		}()
	} else if whatsappCh != nil {
		logger.Warn("whatsapp enabled but web server disabled: webhook is unreachable")
	}

	logger.Info("gateway started", "version", version)

	// Block until shutdown signal
	<-ctx.Done()
	logger.Info("shutting down gateway...")

	// Graceful shutdown with timeout
	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if telegramCh != nil {
			telegramCh.Stop()
		}
		if webCh != nil {
			webCh.Stop()
		}
		rt.close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}
