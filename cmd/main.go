package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/moderator/internal/adapters/http/api"
	"github.com/okian/moderator/internal/adapters/http/swagger"
	"github.com/okian/moderator/internal/adapters/repository"
	"github.com/okian/moderator/internal/adapters/scorer"
	service "github.com/okian/moderator/internal/app"
	"github.com/okian/moderator/internal/config"
	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/pkg/logger"
	"github.com/okian/moderator/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Use stderr since the logger may not be available
		os.Stderr.WriteString("moderator: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.InitWithOptions(logger.Options{Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Runtime metrics live on the same registry /healthz serves.
	registry := metrics.GetRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := service.New(store,
		service.WithLogger(log),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithMaxAttempts(cfg.MaxAttempts),
		service.WithRetryDelay(cfg.RetryDelay()),
		service.WithResendEvery(cfg.ResendEveryTicks),
		service.WithResendBatchSize(cfg.ResendBatchSize),
		service.WithResendStaleAfter(cfg.ResendStaleAfter()),
		service.WithHeartbeatInterval(cfg.HeartbeatInterval()),
		service.WithScorerOptions(
			scorer.WithCacheSize(cfg.ShimCacheSize),
			scorer.WithTimeout(cfg.ScorerTimeout()),
			scorer.WithCallbackBase(cfg.CallbackBaseURL),
		),
	)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	if err := seed(ctx, svc, cfg); err != nil {
		return err
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.WithLogger(log)).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// openStore returns the configured store and a func releasing it.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, func(), error) {
	if cfg.DatabaseDriver == repository.DriverMemory {
		return repository.NewMemoryStore(), func() {}, nil
	}

	db, err := repository.OpenGorm(cfg.DatabaseDriver, cfg.DatabaseDSN,
		repository.WithGormLogger(logger.Slog().With("component", "gorm")),
	)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open database: %w", err)
	}
	closeDB := func() {
		if sqldb, err := db.DB(); err == nil {
			_ = sqldb.Close()
		}
	}

	store := repository.NewGormStore(db, log)
	if err := store.Migrate(ctx); err != nil {
		closeDB()
		return nil, func() {}, fmt.Errorf("migrate database: %w", err)
	}
	return store, closeDB, nil
}

// seed registers the scorers, summary tags and rules named in cfg. It is
// safe to run on every start against a persistent store: scorers are
// matched by name and rules by their full definition.
func seed(ctx context.Context, svc *service.Service, cfg *config.Config) error {
	for _, sc := range cfg.Scorers {
		if _, err := svc.EnsureScorer(ctx, model.Scorer{
			Name:         sc.Name,
			IsActive:     !sc.Inactive,
			EndpointType: model.EndpointType(sc.EndpointType),
			Endpoint:     sc.Endpoint,
			APIKey:       sc.APIKey,
			Attributes:   sc.Attributes,
			UserAgent:    sc.UserAgent,
		}); err != nil {
			return fmt.Errorf("seed scorer %s: %w", sc.Name, err)
		}
	}

	if len(cfg.SummaryTags) > 0 {
		if err := svc.IncludeInSummary(ctx, cfg.SummaryTags...); err != nil {
			return fmt.Errorf("seed summary tags: %w", err)
		}
	}

	for _, r := range cfg.Rules {
		if _, _, err := svc.EnsureRule(ctx, service.RuleSpec{
			TagKey:         r.Tag,
			CategoryID:     r.CategoryID,
			LowerThreshold: r.Lower,
			UpperThreshold: r.Upper,
			Action:         model.Action(r.Action),
		}); err != nil {
			return fmt.Errorf("seed rule on %s: %w", r.Tag, err)
		}
	}
	return nil
}
