package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habittracker/internal/api"
	"habittracker/internal/auth"
	"habittracker/internal/bot"
	"habittracker/internal/config"
	"habittracker/internal/database"
	"habittracker/internal/domain"
	"habittracker/internal/events"
	"habittracker/internal/logging"
	"habittracker/internal/metrics"
	"habittracker/internal/repository"
	"habittracker/internal/scheduler"
	"habittracker/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.Open(cfg.Database, &logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, limiter := initRateLimiter(ctx, cfg, &logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}

	eventBus := events.NewEventBus(&logger)
	sched := scheduler.New(cfg.Location(), &logger)
	registerMaintenanceJobs(ctx, cfg, db, sched, limiter, &logger)

	tokens := auth.NewIssuer(cfg.API.Auth.JWTSecret, cfg.API.Auth.Issuer, cfg.API.Auth.TokenTTL)
	userService := service.NewUserService(db, tokens, cfg, eventBus, &logger)
	habitService := service.NewHabitService(db, eventBus, service.NewPaginator(cfg.Pagination), &logger)

	tgBot, sender, err := initTelegram(cfg, userService, limiter.primary(), &logger)
	if err != nil {
		return err
	}

	notifications := service.NewNotificationService(db, sender, sched, cfg.Notifications, &logger)
	notifications.Subscribe(eventBus)
	notifications.Start(ctx)

	restored, err := notifications.RestoreReminders(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("restore reminders")
	} else {
		logger.Info().Int("jobs", restored).Msg("reminders restored")
	}
	sched.Start()

	startMetrics(ctx, cfg, &logger)

	if tgBot != nil {
		go tgBot.Start(ctx)
	}

	httpServer := api.NewHTTPServer(cfg, api.Services{
		Habits:  habitService,
		Users:   userService,
		Health:  db,
		Limiter: limiter.primary(),
	}, &logger)

	err = serve(ctx, httpServer, cfg, &logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if tgBot != nil {
		tgBot.Stop()
	}
	if stopErr := sched.Stop(shutdownCtx); stopErr != nil {
		logger.Warn().Err(stopErr).Msg("scheduler stop timed out")
	}
	notifications.Wait()

	logger.Info().Msg("habit tracker stopped")
	return err
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "main").Logger()

	return cfg, logger, closer, nil
}

// limiters держит оба ограничителя: redis (если доступен) с откатом на память
type limiters struct {
	memory   *repository.MemoryRateLimiter
	failover *repository.FailoverRateLimiter
}

func (l limiters) primary() domain.RateLimiter {
	if l.failover != nil {
		return l.failover
	}
	return l.memory
}

func initRateLimiter(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, limiters) {
	memory := repository.NewMemoryRateLimiter()
	if cfg.Redis.Address == "" {
		return nil, limiters{memory: memory}
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with in-memory rate limiter")
		_ = repository.Close(client)
		return nil, limiters{memory: memory}
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	failover := repository.NewFailoverRateLimiter(repository.NewRedisRateLimiter(client), memory, logger)
	return client, limiters{memory: memory, failover: failover}
}

func registerMaintenanceJobs(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	sched *scheduler.Scheduler,
	limiter limiters,
	logger *zerolog.Logger,
) {
	if err := sched.RegisterSpec("maintenance:ratelimit-sweep", "@every 5m", func() {
		if n := limiter.memory.Sweep(); n > 0 {
			logger.Debug().Int("keys", n).Msg("rate limit keys swept")
		}
	}); err != nil {
		logger.Error().Err(err).Msg("register rate limit sweep")
	}

	if !cfg.Database.Backup.Enabled {
		return
	}
	if db.Driver() != config.DriverSQLite {
		logger.Warn().Str("driver", db.Driver()).Msg("backups are only available for sqlite, skipping")
		return
	}

	backupService := database.NewBackupService(db, cfg.Database.Backup, logger)
	if err := sched.RegisterSpec("maintenance:backup", cfg.Database.Backup.Schedule, func() {
		backupService.Run(ctx)
	}); err != nil {
		logger.Error().Err(err).Str("schedule", cfg.Database.Backup.Schedule).Msg("register backup job")
	}
}

// initTelegram returns a nil sender when Telegram is disabled.
func initTelegram(
	cfg *config.Config,
	users *service.UserService,
	limiter domain.RateLimiter,
	logger *zerolog.Logger,
) (*bot.Bot, domain.MessageSender, error) {
	if !cfg.Telegram.Enabled {
		logger.Info().Msg("telegram disabled, reminders will be scheduled but not delivered")
		return nil, nil, nil
	}

	client, err := bot.Connect(cfg.Telegram)
	if err != nil {
		logger.Error().Err(err).Msg("create telegram bot")
		return nil, nil, err
	}

	tgService := service.NewTelegramService(client, cfg.Notifications)

	var botMetrics *bot.Metrics
	if cfg.Monitoring.PrometheusEnabled {
		botMetrics = bot.NewMetrics(prometheus.DefaultRegisterer)
	}

	tgBot, err := bot.NewBot(tgService, cfg.Telegram, users, limiter, botMetrics, logger)
	if err != nil {
		return nil, nil, err
	}
	return tgBot, tgService, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	var err error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err = <-errCh:
		logger.Error().Err(err).Msg("http server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	return err
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
