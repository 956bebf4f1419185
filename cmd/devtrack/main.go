package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/devtrack-agent/internal/bot"
	"github.com/p-blackswan/devtrack-agent/internal/config"
	"github.com/p-blackswan/devtrack-agent/internal/digest"
	"github.com/p-blackswan/devtrack-agent/internal/health"
	"github.com/p-blackswan/devtrack-agent/internal/issue"
	"github.com/p-blackswan/devtrack-agent/internal/mastra"
	"github.com/p-blackswan/devtrack-agent/internal/metrics"
	"github.com/p-blackswan/devtrack-agent/internal/scheduler"
	"github.com/p-blackswan/devtrack-agent/internal/server"
	"github.com/p-blackswan/devtrack-agent/internal/store"
	"github.com/p-blackswan/devtrack-agent/internal/task"
	"github.com/p-blackswan/devtrack-agent/internal/telex"
	"github.com/p-blackswan/devtrack-agent/internal/ttlcache"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Str("db_path", cfg.DBPath).
		Bool("mastra_enabled", cfg.MastraEnabled()).
		Bool("outbound_enabled", cfg.OutboundEnabled()).
		Msg("starting devtrack agent")

	// Shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Storage
	if dir := filepath.Dir(cfg.DBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal().Err(err).Str("dir", dir).Msg("failed to create database directory")
		}
	}

	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	// Metrics registry
	m := metrics.New()

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := st.Ping(); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// Engines
	listCache := ttlcache.New[string, string](cfg.ListCacheSize, cfg.ListCacheTTL)
	tasks := task.NewEngine(st, listCache, logger)
	issues := issue.NewEngine(st, logger)

	// Outbound digest delivery (optional)
	var notifier digest.Notifier
	if cfg.OutboundEnabled() {
		notifier = telex.NewClient(cfg.TelexOutboundURL, logger,
			telex.WithTimeout(cfg.OutboundTimeout),
			telex.WithMetrics(m),
		)
		logger.Info().Msg("outbound digest delivery enabled")
	} else {
		logger.Info().Msg("outbound channel not configured — digests stay local")
	}

	dg := digest.NewGenerator(st, notifier, cfg.DefaultChannelID, logger)

	// External conversational agent (optional)
	var agent bot.ExternalAgent
	if cfg.MastraEnabled() {
		agent = mastra.NewClient(cfg.MastraURL(), cfg.MastraAPIKey, logger,
			mastra.WithTimeout(cfg.ExternalTimeout),
			mastra.WithMetrics(m),
		)
		logger.Info().Str("url", cfg.MastraURL()).Msg("external agent delegation enabled")
	} else {
		logger.Info().Msg("external agent not configured — unmatched messages get help text")
	}

	router := bot.NewRouter(tasks, issues, dg, agent, cfg.ResolveSystemPrompt(), cfg.DefaultChannelID, m, logger)

	// Scheduler
	sched := scheduler.New(dg, m, logger)
	if err := sched.Register(cfg.SummaryCron); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.SummaryCron).Msg("invalid summary cron spec")
	}
	sched.Start()

	// HTTP server
	srv := server.New(fmt.Sprintf(":%d", cfg.HTTPPort), router, tasks, dg, checker, m, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-errCh:
		logger.Error().Err(err).Msg("HTTP server error")
	}

	sched.Stop()
	if err := srv.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("devtrack agent stopped")
}
