package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/postpilot-io/postpilot/internal/config"
	"github.com/postpilot-io/postpilot/internal/pipeline"
	"github.com/postpilot-io/postpilot/internal/provider"
	"github.com/postpilot-io/postpilot/internal/reconcile"
	"github.com/postpilot-io/postpilot/internal/registry"
	"github.com/postpilot-io/postpilot/internal/service"
	"github.com/postpilot-io/postpilot/internal/tokenstore"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Store      *service.Store
	Registry   *registry.Registry
	Tokens     *tokenstore.Store
	Pipeline   *pipeline.Pipeline
	Reconciler *reconcile.Reconciler
	Scheduler  *service.Scheduler
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	store := service.NewStore(db)
	exec := provider.NewExecutor(provider.Mode(cfg.Providers.Mode), logger)
	reg := registry.New(logger, exec, &cfg.Providers)
	tokens := tokenstore.New(store, logger)
	tasks := service.NewDeferredTasks(db, logger)
	notifier := service.NewLogNotifier(logger)
	pipe := pipeline.New(reg, tokens, store, tasks, notifier, logger)

	probeTimeout, err := time.ParseDuration(cfg.Reconciler.ProbeTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid reconciler probe timeout %q: %w", cfg.Reconciler.ProbeTimeout, err)
	}
	reconciler := reconcile.New(reg, store, reconcile.Config{
		ProbeTimeout:    probeTimeout,
		HighThreshold:   cfg.Reconciler.HighThreshold,
		MediumThreshold: cfg.Reconciler.MediumThreshold,
	}, logger)

	collector := service.NewAnalyticsCollector(reg, store, tasks, logger)
	scheduler := service.NewScheduler(&cfg.Scheduler, logger, reconciler, collector, store)

	// Create router
	router := gin.New()

	// Create server
	srv := &Server{
		Config:     cfg,
		DB:         db,
		Router:     router,
		Logger:     logger,
		Store:      store,
		Registry:   reg,
		Tokens:     tokens,
		Pipeline:   pipe,
		Reconciler: reconciler,
		Scheduler:  scheduler,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes
	api := s.Router.Group("/api/v1")
	{
		posts := api.Group("/posts")
		{
			posts.POST("", s.handleCreatePost)
			posts.GET("/:id", s.handleGetPost)
			posts.GET("/:id/jobs", s.handleListJobs)
			posts.POST("/:id/publish", s.handlePublish)
			posts.POST("/:id/repost", s.handleRepost)
			posts.POST("/:id/reconcile", s.handleReconcile)
			posts.POST("/:id/reconcile/confirm", s.handleConfirmReconcile)
		}

		channels := api.Group("/channels")
		{
			channels.POST("", s.handleCreateChannel)
			channels.GET("", s.handleListChannels)
		}

		oauth := api.Group("/oauth")
		{
			oauth.GET("/:platform/connect", s.handleOAuthConnect)
			oauth.GET("/:platform/callback", s.handleOAuthCallback)
		}

		api.GET("/platforms", s.handleListPlatforms)
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Scheduler.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
