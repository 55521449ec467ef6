package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spacesedan/quiznox/config"
	"github.com/spacesedan/quiznox/internal/auth"
	"github.com/spacesedan/quiznox/internal/cache"
	"github.com/spacesedan/quiznox/internal/clients"
	"github.com/spacesedan/quiznox/internal/db"
	"github.com/spacesedan/quiznox/internal/logging"
	"github.com/spacesedan/quiznox/internal/metrics"
	"github.com/spacesedan/quiznox/internal/monitoring"
	"github.com/spacesedan/quiznox/internal/server"
	"github.com/spacesedan/quiznox/internal/store"
	"github.com/spacesedan/quiznox/internal/streams"
)

const (
	shutdownTimeout    = 10 * time.Second
	streamRestartDelay = 30 * time.Second
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Main] Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("[Main] Exiting", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	collector := metrics.New()
	health := monitoring.NewHealth()

	var (
		client     store.Client
		awsClients *clients.AWSClients
	)
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		slog.Warn("[Main] Using in-process store, data is lost on exit")
		client = db.NewMemoryStore(0, cfg.QuestionsTable, cfg.BookmarksTable, cfg.ReviewsTable)
	default:
		var err error
		awsClients, err = clients.NewAWSClients(ctx, clients.AWSConfig{Region: cfg.AWSRegion, Endpoint: cfg.AWSEndpoint})
		if err != nil {
			return err
		}
		client = store.NewDynamoDB(awsClients.DynamoDB(), nil)
	}

	questionCache, closeCache, err := newCache(ctx, cfg, collector, health)
	if err != nil {
		return err
	}
	defer closeCache()

	deps := db.Deps{Client: client, Metrics: collector}
	questions := db.NewQuestionStore(deps, cfg.QuestionsTable, questionCache, cfg.CacheTTL)

	go health.Monitor(ctx, "store", monitoring.HEALTHCHECK_INTERVAL, func(ctx context.Context) error {
		_, err := client.Scan(ctx, store.ScanInput{Table: cfg.QuestionsTable, Limit: 1})
		return err
	})

	if cfg.WatchQuestionStream && awsClients != nil {
		inv := streams.NewInvalidator(questions, cfg.QuestionsTable, nil)
		go watchQuestionStream(ctx, inv, awsClients.DynamoDBStreams(), cfg.QuestionsTable)
	}

	srv := server.New(server.Config{
		Questions:    questions,
		Bookmarks:    db.NewBookmarkStore(deps, cfg.BookmarksTable),
		Reviews:      db.NewReviewStore(deps, cfg.ReviewsTable),
		Auth:         auth.NewAuthenticator(cfg.JWTSecret),
		Metrics:      collector,
		Health:       health,
		StoreTimeout: cfg.StoreTimeout,
	})
	if cfg.JWTSecret == "" {
		slog.Warn("[Main] JWT_SECRET not set, bearer tokens are used as user ids")
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("[Main] Listening", slog.String("addr", httpServer.Addr), slog.String("env", cfg.AppEnv))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("[Main] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newCache(ctx context.Context, cfg *config.Config, m *metrics.Collector, health *monitoring.Health) (*cache.Cache, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheBackendNone:
		return nil, func() {}, nil
	case config.CacheBackendValkey:
		vc, err := clients.NewValkeyClient(ctx, clients.ValkeyConfig{
			Address:  cfg.ValkeyAddress,
			Password: cfg.ValkeyPassword,
			UseTLS:   cfg.ValkeyTLS,
		})
		if err != nil {
			return nil, nil, err
		}
		go health.Monitor(ctx, "cache", monitoring.HEALTHCHECK_INTERVAL, vc.Ping)
		return cache.New(cache.NewValkeyBackend(vc, ""), m, nil), vc.Close, nil
	default:
		return cache.New(cache.NewMemoryBackend(), m, nil), func() {}, nil
	}
}

// watchQuestionStream keeps the stream watcher running until ctx is done.
func watchQuestionStream(ctx context.Context, inv *streams.Invalidator, client streams.StreamsAPI, table string) {
	for {
		err := inv.Watch(ctx, client, table)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Error("[Main] Question stream watcher failed, restarting",
				slog.String("error", err.Error()),
				slog.Duration("delay", streamRestartDelay))
		} else {
			slog.Warn("[Main] Question stream watcher ran out of shards, restarting",
				slog.Duration("delay", streamRestartDelay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(streamRestartDelay):
		}
	}
}
