package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/application"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/config"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/logger"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/interfaces/cli"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 管理接口",
		Long:  "启动 iafleet HTTP 服务：/api/v1 管理接口、/api/v1/events 变更推送、/health 与 /metrics",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.NewLogger(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	log.Info("Starting iafleet",
		zap.String("name", appName),
		zap.String("version", appVersion),
	)

	app, err := application.NewApp(cfg, log.Logger)
	if err != nil {
		log.Error("Failed to initialize application", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		log.Error("Failed to start application", zap.Error(err))
		return err
	}

	fmt.Fprint(os.Stderr, cli.RenderBanner(cli.BannerInfo{
		Version:  appVersion,
		Address:  cfg.Server.Addr(),
		Database: cfg.Database.Type,
		Config:   cfg.Source(),
	}))

	// 配置文件变更时热更新日志级别
	if cfg.Watch(log.Logger, func(next *config.Config) {
		log.SetLevel(next.Log.Level)
		log.Info("Log level reloaded", zap.String("level", next.Log.Level))
	}) {
		log.Info("Watching config file", zap.String("path", cfg.Source()))
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
		return err
	}

	log.Info("Application stopped successfully")
	return nil
}
