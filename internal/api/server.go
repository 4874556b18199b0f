package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/platformbuilds/mirador-servicehealth/internal/api/handlers"
	"github.com/platformbuilds/mirador-servicehealth/internal/api/middleware"
	"github.com/platformbuilds/mirador-servicehealth/internal/api/websocket"
	"github.com/platformbuilds/mirador-servicehealth/internal/config"
	"github.com/platformbuilds/mirador-servicehealth/internal/monitoring"
	"github.com/platformbuilds/mirador-servicehealth/internal/services"
	"github.com/platformbuilds/mirador-servicehealth/internal/timerange"
	"github.com/platformbuilds/mirador-servicehealth/internal/tracing"
	"github.com/platformbuilds/mirador-servicehealth/pkg/cache"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	cache      cache.ValkeyCluster
	metrics    handlers.HealthChecker
	health     handlers.HealthQueries
	dashboard  *services.Dashboard
	tracer     *tracing.HealthTracer
	hub        *websocket.Hub
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	valkeyCache cache.ValkeyCluster,
	metrics handlers.HealthChecker,
	health handlers.HealthQueries,
	dashboard *services.Dashboard,
	tracer *tracing.HealthTracer,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:    cfg,
		logger:    log,
		cache:     valkeyCache,
		metrics:   metrics,
		health:    health,
		dashboard: dashboard,
		tracer:    tracer,
		router:    gin.New(),
	}

	if cfg.WebSocket.Enabled {
		server.hub = websocket.NewHub(cfg.WebSocket, dashboard.State, log)
		dashboard.OnCommit(server.hub.BroadcastState)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())

	// CORS for the dashboard UI
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))

	s.router.Use(middleware.RequestLogger(s.logger))

	if s.tracer != nil {
		s.router.Use(middleware.Tracing(s.tracer))
	}

	if s.config.Monitoring.PrometheusEnabled {
		s.router.Use(monitoring.HTTPMetricsMiddleware())
		monitoring.SetupPrometheusMetrics(s.router, s.config.Monitoring.MetricsPath)
	}

	if s.config.RateLimitPerMinute > 0 {
		s.router.Use(middleware.RateLimiter(s.cache, int64(s.config.RateLimitPerMinute)))
	}
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.metrics, s.cache, s.logger)
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	// OpenAPI document and Swagger UI at /swagger/index.html
	s.router.GET("/api/openapi.yaml", handlers.GetOpenAPIYAML)
	s.router.GET("/api/openapi.json", handlers.GetOpenAPISpec)
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/api/openapi.yaml")))

	v1 := s.router.Group("/api/v1")
	v1.GET("/health", healthHandler.HealthCheck)

	sh := handlers.NewServiceHealthHandler(
		s.health,
		s.dashboard,
		timerange.NewResolver(timerange.WithLocation(s.location())),
		s.config.ServiceHealth.DefaultFrom,
		s.config.ServiceHealth.DefaultTo,
		s.logger,
	)
	sh.Register(v1.Group("/service-health"))

	if s.hub != nil {
		v1.GET("/service-health/stream", s.hub.ServeWS)
	}
}

func (s *Server) location() *time.Location {
	tz := s.config.ServiceHealth.Timezone
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.logger.Warn("Unknown timezone, using UTC", "timezone", tz, "error", err)
		return time.UTC
	}
	return loc
}

func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	if s.hub != nil {
		go s.hub.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Service health API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down service health API gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying Gin engine so tests (or embedders) can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}
