package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/retrieval"
)

// Config holds the HTTP server settings.
type Config struct {
	// Addr is the listen address. Default: ":8080".
	Addr string `yaml:"addr" env:"HTTP_ADDR"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP front of the gateway.
type Server struct {
	cfg Config
	svc *retrieval.Service
	log *zap.Logger

	router *gin.Engine
	http   *http.Server
}

// NewServer builds the router. Each server carries its own metrics
// registry, so constructing several servers in one process is safe.
func NewServer(cfg Config, svc *retrieval.Service, log *zap.Logger) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	s := &Server{cfg: cfg, svc: svc, log: log, router: router}
	router.Use(requestLogger(log), requestMetrics(registry))

	api := router.Group("/api")
	{
		api.GET("/storages", s.listStorages)
		api.POST("/storages", s.createStorage)
		api.GET("/storages/:storage/images/:id", s.getByStorage)
		api.DELETE("/storages/:storage/images/:id", s.deleteImage)
		api.GET("/images/:id", s.getImage)
		api.GET("/images", s.listImages)
		api.POST("/images", s.createImage)
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	s.http = &http.Server{Addr: cfg.Addr, Handler: router}
	return s
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start begins serving in the background.
func (s *Server) Start(_ context.Context) error {
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.cfg.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
