package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xaenox/tracely/internal/app"
	"github.com/xaenox/tracely/internal/server"
	"github.com/xaenox/tracely/pkg/config"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}
	if cfg.Server.JWTSecret == "" {
		logger.Fatal("Missing JWT secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	defer a.Close()

	srv := server.New(a.Service, server.NewAuthenticator(cfg.Server.JWTSecret, logger), cfg.Server.ListenAddr, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return a.Janitor.Run(gctx) })

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return
	}
	logger.Info("Server stopped")
}
