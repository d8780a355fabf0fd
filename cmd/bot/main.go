package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xaenox/tracely/internal/app"
	"github.com/xaenox/tracely/internal/bot"
	"github.com/xaenox/tracely/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	defer a.Close()

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, a.Service, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error { return a.Janitor.Run(gctx) })

	if err := g.Wait(); err != nil {
		logger.Error("Bot error", zap.Error(err))
	}
}
