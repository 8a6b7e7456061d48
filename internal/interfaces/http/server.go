package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/application/usecase"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/monitoring"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/interfaces/http/handlers"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/interfaces/websocket"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config HTTP服务器配置
type Config struct {
	Host        string
	Port        int
	Mode        string // debug, release, test
	CORSOrigins []string
}

// Deps 路由依赖；Hub、Metrics 与 Ping 可为 nil
type Deps struct {
	Fleet   *usecase.FleetService
	Hub     *websocket.Hub
	Metrics *monitoring.Metrics
	Ping    func(ctx context.Context) error
}

// NewServer 创建HTTP服务器
func NewServer(cfg Config, deps Deps, logger *zap.Logger) *Server {
	logger = logger.With(zap.String("component", "http"))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(cfg, deps, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		server: server,
		logger: logger,
	}
}

// NewRouter 创建 gin 路由
func NewRouter(cfg Config, deps Deps, logger *zap.Logger) *gin.Engine {
	// 设置Gin模式
	switch cfg.Mode {
	case "release", "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(ginLogger(logger))
	if deps.Metrics != nil {
		router.Use(metricsMiddleware(deps.Metrics))
	}
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	setupRoutes(router, deps, logger)
	return router
}

// Start 启动服务器
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// setupRoutes 设置路由
func setupRoutes(router *gin.Engine, deps Deps, logger *zap.Logger) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if deps.Ping != nil {
			if err := deps.Ping(c.Request.Context()); err != nil {
				logger.Warn("Health check failed", zap.Error(err))
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{
			"status": status,
			"time":   time.Now().Unix(),
		})
	})

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	iaHandler := handlers.NewIAHandler(deps.Fleet, logger)
	promptHandler := handlers.NewPromptHandler(deps.Fleet, logger)
	configHandler := handlers.NewConfigHandler(deps.Fleet, logger)
	leadHandler := handlers.NewLeadHandler(deps.Fleet, logger)

	// API版本1
	v1 := router.Group("/api/v1")
	{
		ias := v1.Group("/ias")
		ias.GET("", iaHandler.List)
		ias.POST("", iaHandler.Create)
		ias.GET("/:id", iaHandler.Get)
		ias.PATCH("/:id", iaHandler.Update)
		ias.DELETE("/:id", iaHandler.Delete)
		ias.PUT("/:id/edit", iaHandler.Edit)

		ias.GET("/:id/prompts", promptHandler.ListForIA)
		ias.POST("/:id/prompts", promptHandler.Create)
		ias.POST("/:id/prompts/:promptId/activate", promptHandler.Activate)

		ias.GET("/:id/config", configHandler.Get)
		ias.PUT("/:id/config", configHandler.Put)

		ias.GET("/:id/leads", leadHandler.ListForIA)
		ias.POST("/:id/leads", leadHandler.Create)
		ias.GET("/:id/leads/export", leadHandler.Export)

		prompts := v1.Group("/prompts")
		prompts.GET("", promptHandler.ListAll)
		prompts.PATCH("/:id", promptHandler.Update)
		prompts.DELETE("/:id", promptHandler.Delete)
		prompts.GET("/:id/preview", promptHandler.Preview)

		leads := v1.Group("/leads")
		leads.GET("/:id", leadHandler.Get)
		leads.PATCH("/:id", leadHandler.Update)
		leads.DELETE("/:id", leadHandler.Delete)

		if deps.Hub != nil {
			v1.GET("/events", gin.WrapF(deps.Hub.ServeWS))
		}
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// requestID 透传或生成 X-Request-ID
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(handlers.RequestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// metricsMiddleware 按路由模板统计请求
func metricsMiddleware(m *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ginLogger Gin日志中间件
func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", c.GetString(handlers.RequestIDKey)),
		)
	}
}
