// Package app wires the components shared by the server and bot binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/advisor"
	"github.com/xaenox/tracely/internal/aggregator"
	"github.com/xaenox/tracely/internal/api"
	"github.com/xaenox/tracely/internal/chat"
	"github.com/xaenox/tracely/internal/classifier"
	"github.com/xaenox/tracely/internal/llm"
	"github.com/xaenox/tracely/internal/recommend"
	"github.com/xaenox/tracely/internal/storage"
	"github.com/xaenox/tracely/pkg/config"
)

// App holds the process-wide dependencies.
type App struct {
	Service *api.Service
	Chat    *chat.Agent
	Janitor *chat.Janitor

	closers []func() error
	logger  *zap.Logger
}

// Build constructs every component from cfg. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	if cfg.OpenAI.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}

	store, err := a.openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessions, err := a.openSessions(ctx, cfg, store)
	if err != nil {
		a.Close()
		return nil, err
	}

	model := llm.NewOpenAIModel(llm.OpenAIConfig{
		APIKey:    cfg.OpenAI.APIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
		Model:     cfg.OpenAI.Model,
		MaxTokens: cfg.OpenAI.MaxTokens,
		Timeout:   cfg.OpenAI.Timeout,
	}, logger)

	agg := aggregator.New(store, logger)
	a.Chat = chat.NewAgent(sessions, agg, model, chat.Config{
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.Chat.MaxTokens,
		Temperature: cfg.Chat.Temperature,
	}, logger)
	a.Janitor = chat.NewJanitor(a.Chat, cfg.Chat.CleanupInterval, cfg.Chat.SessionMaxAge, logger)

	a.Service = api.NewService(api.Deps{
		Classifier: newClassifier(cfg, model, logger),
		Facts:      store,
		Profiles:   store,
		Aggregator: agg,
		Recommender: recommend.NewGenerator(agg, model, recommend.Config{
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.Recommender.MaxTokens,
			Temperature: cfg.Recommender.Temperature,
		}, logger),
		Chat:    a.Chat,
		Advisor: advisor.New(agg, logger),
	}, logger)

	return a, nil
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg.Database.UseInMemory {
		a.logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	}

	a.logger.Info("Using PostgreSQL storage",
		zap.String("host", cfg.Database.Host),
		zap.String("dbname", cfg.Database.DBName))
	store, err := storage.NewPostgresStorage(ctx, storage.DatabaseConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func (a *App) openSessions(ctx context.Context, cfg *config.Config, store storage.Storage) (storage.SessionStore, error) {
	if cfg.Chat.SessionBackend != "redis" {
		return store, nil
	}

	a.logger.Info("Using Redis session storage", zap.String("addr", cfg.Redis.Addr))
	sessions, err := storage.NewRedisSessionStore(ctx, storage.RedisConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		Prefix:     cfg.Redis.Prefix,
		SessionTTL: cfg.Chat.SessionMaxAge,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session storage: %w", err)
	}
	a.closers = append(a.closers, sessions.Close)
	return sessions, nil
}

func newClassifier(cfg *config.Config, model llm.Model, logger *zap.Logger) classifier.Classifier {
	keywords := classifier.NewKeywordClassifier(cfg.Classifier.MaxTags)
	if cfg.Classifier.Strategy == "keyword" {
		logger.Info("Using keyword classifier")
		return keywords
	}

	gpt := classifier.NewGPTClassifier(model, classifier.GPTConfig{
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.Classifier.Temperature,
		MaxTags:     cfg.Classifier.MaxTags,
	}, logger)
	if cfg.Classifier.FallbackToKeywords {
		gpt.WithFallback(keywords)
	}
	return gpt
}

// Close releases storage connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("Failed to close resource", zap.Error(err))
		}
	}
	a.closers = nil
}
