package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/application"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/config"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/logger"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/interfaces/cli"
)

// runFunc 单次 CLI 命令体
type runFunc func(ctx context.Context, cmd *cobra.Command, app *application.App, r *cli.Renderer, args []string) error

// withApp 加载配置并构建轻量 App（静默 SQL 日志），命令结束后释放
func withApp(fn runFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Quiet logger for CLI
		log, err := logger.NewLogger(logger.Config{
			Level:  "error",
			Format: "console",
		})
		if err != nil {
			return fmt.Errorf("logger init: %w", err)
		}
		defer log.Sync()

		app, err := application.NewAppCLI(cfg, log.Logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = app.Stop(ctx)
		}()

		return fn(cmd.Context(), cmd, app, cli.NewRenderer(100), args)
	}
}

// parseID 解析位置参数中的 ID
func parseID(name, s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, s)
	}
	return uint(id), nil
}
