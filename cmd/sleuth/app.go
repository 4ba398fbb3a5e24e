package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leofalp/sleuth/internal/config"
	"github.com/leofalp/sleuth/internal/investigation"
	"github.com/leofalp/sleuth/providers/ai"
	"github.com/leofalp/sleuth/providers/ai/middleware"
	"github.com/leofalp/sleuth/providers/ai/openai"
	"github.com/leofalp/sleuth/providers/checkpoint"
	"github.com/leofalp/sleuth/providers/checkpoint/inmemory"
	"github.com/leofalp/sleuth/providers/checkpoint/pgcheckpoint"
	"github.com/leofalp/sleuth/providers/checkpoint/sqlitestore"
	"github.com/leofalp/sleuth/providers/observability"
	"github.com/leofalp/sleuth/providers/search"
	"github.com/leofalp/sleuth/providers/search/brave"
	"github.com/leofalp/sleuth/providers/search/tavily"
)

// shutdownTimeout bounds the flush of telemetry and stores on exit.
const shutdownTimeout = 5 * time.Second

type app struct {
	investigator *investigation.Investigator
	observer     observability.Provider
	closers      []func(context.Context) error
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && a.observer != nil {
			a.observer.Warn(ctx, "shutdown step failed", observability.Error(err))
		}
	}
}

func setup(ctx context.Context, configPath string, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{}
	tel, err := newTelemetry(cfg, stderr)
	if err != nil {
		return nil, err
	}
	a.observer = tel.observer
	a.closers = append(a.closers, tel.shutdown)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	investigator, err := investigation.New(
		completionProvider(cfg, a.observer, tel.logger),
		retrievalProvider(cfg, a.observer),
		investigation.WithStore(store),
		investigation.WithObserver(a.observer),
		investigation.WithMaxResults(cfg.MaxResults),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.investigator = investigator

	a.observer.Debug(ctx, "sleuth configured",
		observability.String(observability.AttrLLMModel, cfg.Model),
		observability.String(observability.AttrCheckpointBackend, cfg.CheckpointBackend),
		observability.String("telemetry.backend", cfg.Telemetry),
	)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (checkpoint.Store, func(context.Context) error, error) {
	switch cfg.CheckpointBackend {
	case config.BackendSQLite:
		store, err := sqlitestore.Open(ctx, cfg.CheckpointDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func(context.Context) error { return store.Close() }, nil
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.CheckpointDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect checkpoint database: %w", err)
		}
		store := pgcheckpoint.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, func(context.Context) error { pool.Close(); return nil }, nil
	case config.BackendMemory:
		return inmemory.New(), func(context.Context) error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unsupported checkpoint backend %q", cfg.CheckpointBackend)
}

func completionProvider(cfg *config.Config, observer observability.Provider, logger *slog.Logger) ai.Provider {
	client := openai.New().
		WithModel(cfg.Model).
		WithTemperature(cfg.Temperature).
		WithObserver(observer)
	if cfg.OpenAIAPIKey != "" {
		client = client.WithAPIKey(cfg.OpenAIAPIKey)
	}
	if cfg.OpenAIBaseURL != "" {
		client = client.WithBaseURL(cfg.OpenAIBaseURL)
	}

	var logging, retry ai.Middleware
	if cfg.CompletionLog != config.CompletionLogOff {
		level, _ := middleware.ParseLogLevel(cfg.CompletionLog)
		logging = middleware.NewLogging(logger, level)
	}
	if cfg.CompletionRetries > 0 {
		retry = middleware.NewRetry(middleware.RetryConfig{MaxRetries: cfg.CompletionRetries})
	}
	// Each attempt gets its own timeout and log entries.
	return ai.Chain(client, retry, logging, middleware.NewTimeout(cfg.CompletionTimeout))
}

func retrievalProvider(cfg *config.Config, observer observability.Provider) search.Provider {
	if cfg.SearchBackend == config.SearchBrave {
		client := brave.New().WithObserver(observer)
		if cfg.BraveAPIKey != "" {
			client = client.WithAPIKey(cfg.BraveAPIKey)
		}
		if cfg.BraveBaseURL != "" {
			client = client.WithBaseURL(cfg.BraveBaseURL)
		}
		return client
	}

	client := tavily.New().WithObserver(observer)
	if cfg.TavilyAPIKey != "" {
		client = client.WithAPIKey(cfg.TavilyAPIKey)
	}
	if cfg.TavilyBaseURL != "" {
		client = client.WithBaseURL(cfg.TavilyBaseURL)
	}
	return client
}

// nopCompletion and nopSearch stand in for real collaborators when only the
// graph structure is needed.
type nopCompletion struct{}

func (nopCompletion) Complete(context.Context, ai.CompletionRequest) (*ai.Completion, error) {
	return nil, errors.New("completion disabled")
}

type nopSearch struct{}

func (nopSearch) Search(context.Context, string, int) ([]search.Document, error) {
	return nil, errors.New("search disabled")
}
