package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spacesedan/quiznox/config"
	"github.com/spacesedan/quiznox/internal/cache"
	"github.com/spacesedan/quiznox/internal/clients"
	"github.com/spacesedan/quiznox/internal/db"
	"github.com/spacesedan/quiznox/internal/logging"
	"github.com/spacesedan/quiznox/internal/metrics"
	"github.com/spacesedan/quiznox/internal/streams"
)

var invalidator *streams.Invalidator

// init runs once per Lambda cold start
func init() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("[StreamHandler] Invalid configuration", slog.String("error", err.Error()))
		panic(err)
	}
	logging.InitLogger(cfg.LogLevel)

	if cfg.CacheBackend != config.CacheBackendValkey {
		// an in-process cache would only invalidate this Lambda's own memory
		slog.Error("[StreamHandler] CACHE_BACKEND must be valkey", slog.String("cache_backend", cfg.CacheBackend))
		panic("stream handler needs the shared valkey cache")
	}

	vc, err := clients.NewValkeyClient(context.Background(), clients.ValkeyConfig{
		Address:  cfg.ValkeyAddress,
		Password: cfg.ValkeyPassword,
		UseTLS:   cfg.ValkeyTLS,
	})
	if err != nil {
		slog.Error("[StreamHandler] Failed to connect to valkey", slog.String("error", err.Error()))
		panic(err)
	}

	c := cache.New(cache.NewValkeyBackend(vc, ""), metrics.New(), nil)
	questions := db.NewQuestionStore(db.Deps{}, cfg.QuestionsTable, c, cfg.CacheTTL)
	invalidator = streams.NewInvalidator(questions, cfg.QuestionsTable, nil)

	slog.Info("[StreamHandler] Initialization complete",
		slog.String("environment", env),
		slog.String("table", cfg.QuestionsTable))
}

func main() {
	lambda.Start(invalidator.HandleEvent)
}
