package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"telegram-field-extractor/internal/application"
	"telegram-field-extractor/internal/config"
	"telegram-field-extractor/internal/domain/ports/adapter"
	"telegram-field-extractor/internal/domain/ports/repository"
	tele "telegram-field-extractor/internal/infra/adapters/telegram"
	pg "telegram-field-extractor/internal/infra/db/postgres"
	httpapi "telegram-field-extractor/internal/infra/http"
	"telegram-field-extractor/internal/infra/i18n"
	"telegram-field-extractor/internal/infra/logging"
	"telegram-field-extractor/internal/infra/memory"
	"telegram-field-extractor/internal/infra/metrics"
	red "telegram-field-extractor/internal/infra/redis"
	"telegram-field-extractor/internal/infra/sched"
	"telegram-field-extractor/internal/infra/staging"
	"telegram-field-extractor/internal/infra/worker"
	"telegram-field-extractor/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

type botAdapter interface {
	adapter.Messenger
	adapter.Fetcher
}

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted user and file names)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Str("path", *cfgPath).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("exited with error")
	}
	logger.Info().Msg("bye")
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Staging ----
	store, err := staging.New(cfg.Staging.Dir, logger)
	if err != nil {
		return err
	}
	if _, err := store.Sweep(); err != nil {
		logger.Warn().Err(err).Msg("startup sweep incomplete")
	}

	// ---- Settings and rate limiting: Redis, else in-process ----
	var (
		settingsRepo repository.SettingsRepository
		limiter      adapter.RateLimiter
		storeName    string
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		settingsRepo = red.NewSettingsRepo(redisClient, cfg.Redis.TTL)
		limiter = red.NewRateLimiter(redisClient)
		storeName = "redis"
	} else {
		logger.Warn().Msg("redis.url not set; settings are kept in memory and lost on restart")
		settingsRepo = memory.NewSettingsRepo()
		limiter = memory.NewRateLimiter()
		storeName = "memory"
	}

	// ---- Request log: Postgres, else in-process ring ----
	var (
		requestLog repository.RequestLogRepository
		background []func(context.Context) error
	)
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo := pg.NewRequestLogRepo(pool)
		requestLog = repo
		background = append(background,
			sched.NewDBStatsReporter(cfg.Database.StatsInterval, pool, logger).Run,
			sched.NewRequestLogRetention(time.Hour, cfg.Database.Retention, repo, logger).Run,
		)
	} else {
		requestLog = memory.NewRequestLog(0)
	}
	background = append(background, sched.NewStagingSweeper(cfg.Staging.SweepInterval, store, logger).Run)

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Language)
	if err != nil {
		return err
	}

	// ---- Telegram ----
	workers := worker.NewPool(cfg.Bot.Workers, cfg.Bot.QueueSize, logger)
	var (
		bot    botAdapter
		poller *tele.RealTelegramBotAdapter
	)
	if strings.ToLower(cfg.Bot.Mode) == "noop" {
		logger.Warn().Msg("bot.mode=noop; no updates will be received")
		bot = tele.NewNoopBotAdapter(logger)
	} else {
		poller, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, workers, logger)
		if err != nil {
			return err
		}
		bot = poller
	}

	// ---- Use cases ----
	settingsUC := usecase.NewSettingsUseCase(settingsRepo, storeName, cfg.Pipeline.MaxFieldIndex, logger)
	pipelineUC := usecase.NewPipelineUseCase(bot, usecase.PipelineConfig{
		MaxFileBytes:   cfg.Pipeline.MaxFileBytes,
		MaxLineBytes:   cfg.Pipeline.MaxLineBytes,
		MaxAttempts:    cfg.Pipeline.MaxAttempts,
		RetryBackoff:   cfg.Pipeline.RetryBackoff,
		AttemptTimeout: cfg.Pipeline.AttemptTimeout,
	}, logger)
	statsUC := usecase.NewStatsUseCase(requestLog, logger)

	dispatcher, err := application.NewDispatcher(application.Deps{
		Messenger:  bot,
		Settings:   settingsUC,
		Pipeline:   pipelineUC,
		Staging:    store,
		Limiter:    limiter,
		RequestLog: requestLog,
		Translator: tr,
		Logger:     logger,
	}, application.DispatcherConfig{
		RateLimit:         cfg.Bot.RateLimit,
		RateWindow:        cfg.Bot.RateWindow,
		ReplyRetryBackoff: cfg.Bot.ReplyRetryBackoff,
		MaxFileBytes:      cfg.Pipeline.MaxFileBytes,
		MaxLineBytes:      cfg.Pipeline.MaxLineBytes,
		Dev:               cfg.Runtime.Dev,
	})
	if err != nil {
		return err
	}

	// ---- Admin HTTP ----
	admin := httpapi.NewServer(statsUC, cfg.Admin.APIKey, logger)

	workers.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	if poller != nil {
		if err := poller.SetMenuCommands(gctx, tr); err != nil {
			logger.Warn().Err(err).Msg("set menu commands failed")
		}
		g.Go(func() error { return poller.StartPolling(gctx, dispatcher) })
	}
	g.Go(func() error { return admin.Start(cfg.Admin.Port) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return admin.Shutdown(shutdownCtx)
	})
	for _, fn := range background {
		fn := fn
		g.Go(func() error {
			if err := fn(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	logger.Info().Str("mode", cfg.Bot.Mode).Str("settings_store", storeName).Msg("bot is running")
	<-gctx.Done()
	logger.Info().Msg("shutdown requested")

	err = g.Wait()

	// In-flight requests finish and release their artifacts first.
	if perr := workers.Stop(cfg.Bot.ShutdownTimeout); perr != nil {
		logger.Error().Err(perr).Msg("worker pool did not drain")
	}
	if _, serr := store.Sweep(); serr != nil {
		logger.Warn().Err(serr).Msg("shutdown sweep incomplete")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
