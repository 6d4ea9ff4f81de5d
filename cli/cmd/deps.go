package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/stacksos/aicore/pkg/cache"
	appconfig "github.com/stacksos/aicore/pkg/config"
	"github.com/stacksos/aicore/pkg/database"
	"github.com/stacksos/aicore/services/generate"
)

func buildLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadBase() (*appconfig.Base, error) {
	return appconfig.Load("aicore-cli")
}

func connectDB(ctx context.Context, base *appconfig.Base) (*database.DB, error) {
	db, err := database.ConnectDSN(ctx, base.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// buildStore creates the outcome store for the configured backend. The
// returned closer is nil for the memory backend.
func buildStore(ctx context.Context, base *appconfig.Base) (generate.OutcomeStore, func() error, error) {
	if base.UsePostgresStorage() {
		db, err := connectDB(ctx, base)
		if err != nil {
			return nil, nil, err
		}
		store, err := generate.NewOutcomeStore(generate.StoreOptions{
			Backend: appconfig.StoragePostgres,
			DB:      db.DB,
		})
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	}

	store, err := generate.NewOutcomeStore(generate.StoreOptions{Backend: appconfig.StorageMemory})
	return store, nil, err
}

// buildGate prefers Redis so counters survive across invocations, and
// falls back to in-process counters when Redis is not configured.
func buildGate(ctx context.Context, base *appconfig.Base, logger *slog.Logger) (generate.Gate, func() error) {
	if base.RedisAddr == "" {
		return generate.NewMemoryGate(), nil
	}

	redisCfg := cache.DefaultConfig()
	redisCfg.Addr = base.RedisAddr
	redisCfg.Password = base.RedisPassword
	redisCfg.DB = base.RedisDB

	client, err := cache.Connect(ctx, redisCfg)
	if err != nil {
		logger.Warn("redis unavailable, using in-process budget counters", "error", err)
		return generate.NewMemoryGate(), nil
	}
	return generate.NewRedisGate(client), client.Close
}

func buildRegistry() *generate.Registry {
	registry := generate.NewRegistry()
	registry.Register(generate.NewAnthropicProvider(os.Getenv("ANTHROPIC_API_KEY")))
	registry.Register(generate.NewOpenAIProvider(os.Getenv("OPENAI_API_KEY")))
	return registry
}
