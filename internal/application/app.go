package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/application/usecase"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/config"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/eventbus"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/monitoring"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/persistence"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/vault"
	httpServer "github.com/ngoclaw/ngoclaw/iafleet/internal/interfaces/http"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/interfaces/websocket"
	"github.com/ngoclaw/ngoclaw/iafleet/pkg/safego"
)

// App 应用程序
type App struct {
	// 配置
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB

	// 仓储层
	tx         repository.TxManager
	iaRepo     repository.IARepository
	promptRepo repository.PromptRepository
	configRepo repository.ConfigRepository
	leadRepo   repository.LeadRepository

	// 基础设施
	vault   *vault.Vault
	bus     *eventbus.InMemoryBus
	metrics *monitoring.Metrics

	// 应用服务
	fleet *usecase.FleetService

	// 接口层
	hub        *websocket.Hub
	httpServer *httpServer.Server
	hubCancel  context.CancelFunc
}

// NewApp 创建应用程序（依赖注入容器）
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// 首次运行时生成 ~/.iafleet/config.yaml
	if err := config.Bootstrap(logger); err != nil {
		logger.Warn("Bootstrap failed (non-fatal)", zap.Error(err))
	}

	app := &App{
		config: cfg,
		logger: logger,
	}

	if err := app.initRepositories(cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	app.initApplicationServices()

	if err := app.initInterfaces(); err != nil {
		return nil, fmt.Errorf("failed to init interfaces: %w", err)
	}

	return app, nil
}

// NewAppCLI creates a lightweight app for one-shot CLI commands.
// SQL logging is silenced and no HTTP server or websocket hub is built.
func NewAppCLI(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		config: cfg,
		logger: logger,
	}

	dbCfg := cfg.Database
	dbCfg.LogLevel = "silent"
	if err := app.initRepositories(dbCfg); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	app.initApplicationServices()
	return app, nil
}

// initRepositories 初始化数据库、凭据保险库与仓储层
func (app *App) initRepositories(dbCfg config.DatabaseConfig) error {
	v, err := vault.New(app.config.Vault.SecretKey)
	if err != nil {
		return err
	}
	app.vault = v

	db, err := persistence.NewDBConnection(&dbCfg)
	if err != nil {
		return err
	}
	app.db = db

	app.tx = persistence.NewTxManager(db)
	app.iaRepo = persistence.NewGormIARepository(db, app.tx, v)
	app.promptRepo = persistence.NewGormPromptRepository(db, app.tx)
	app.configRepo = persistence.NewGormConfigRepository(db, app.tx, v)
	app.leadRepo = persistence.NewGormLeadRepository(db, app.tx)

	app.logger.Info("Repositories initialized",
		zap.String("database", dbCfg.Type),
	)
	return nil
}

// initApplicationServices 初始化事件总线、指标与应用服务
func (app *App) initApplicationServices() {
	app.bus = eventbus.NewInMemoryBus(app.logger, app.config.Events.BufferSize)
	app.metrics = monitoring.NewMetrics()

	app.fleet = usecase.NewFleetService(usecase.FleetDeps{
		IAs:     app.iaRepo,
		Prompts: app.promptRepo,
		Configs: app.configRepo,
		Leads:   app.leadRepo,
		Tx:      app.tx,
		Cipher:  app.vault,
		Events:  app.bus,
		Metrics: app.metrics,
		Logger:  app.logger,
	})
}

// initInterfaces 初始化接口层
func (app *App) initInterfaces() error {
	app.hub = websocket.NewHub(app.bus, app.metrics, app.logger)

	app.httpServer = httpServer.NewServer(httpServer.Config{
		Host:        app.config.Server.Host,
		Port:        app.config.Server.Port,
		Mode:        app.config.Server.Mode,
		CORSOrigins: app.config.Server.CORSOrigins,
	}, httpServer.Deps{
		Fleet:   app.fleet,
		Hub:     app.hub,
		Metrics: app.metrics,
		Ping:    app.Ping,
	}, app.logger)
	return nil
}

// Start 启动应用程序
func (app *App) Start(ctx context.Context) error {
	app.logger.Info("Starting application")

	if app.hub != nil {
		hubCtx, cancel := context.WithCancel(ctx)
		app.hubCancel = cancel
		safego.Go(app.logger, "ws-hub", func() { app.hub.Run(hubCtx) }, nil)
	}

	if app.httpServer != nil {
		if err := app.httpServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	app.logger.Info("Application started successfully")
	return nil
}

// Stop 停止应用程序
func (app *App) Stop(ctx context.Context) error {
	app.logger.Info("Stopping application")

	var firstErr error
	if app.httpServer != nil {
		if err := app.httpServer.Stop(ctx); err != nil {
			app.logger.Error("Failed to stop HTTP server", zap.Error(err))
			firstErr = err
		}
	}
	if app.hubCancel != nil {
		app.hubCancel()
	}
	if app.bus != nil {
		app.bus.Close()
	}
	if app.db != nil {
		if err := persistence.Close(app.db); err != nil {
			app.logger.Error("Failed to close database", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	app.logger.Info("Application stopped")
	return firstErr
}

// Ping 检查数据库连接
func (app *App) Ping(ctx context.Context) error {
	sqlDB, err := app.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate 执行数据库迁移
func (app *App) Migrate() error {
	return persistence.Migrate(app.db)
}

// Fleet returns the fleet service (used by HTTP and CLI)
func (app *App) Fleet() *usecase.FleetService {
	return app.fleet
}

// Logger returns the application logger
func (app *App) Logger() *zap.Logger {
	return app.logger
}

// AppConfig returns the application config
func (app *App) AppConfig() *config.Config {
	return app.config
}
