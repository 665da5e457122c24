// Package server wires the subsystems together and runs the HTTP surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/agentkube/desktop/backend/internal/config"
	"github.com/agentkube/desktop/backend/internal/events"
	apihttp "github.com/agentkube/desktop/backend/internal/http"
	"github.com/agentkube/desktop/backend/internal/logging"
	"github.com/agentkube/desktop/backend/internal/monitoring"
	"github.com/agentkube/desktop/backend/internal/providers/network"
	"github.com/agentkube/desktop/backend/internal/providers/terminal"
	"github.com/agentkube/desktop/backend/internal/service"
	"github.com/agentkube/desktop/backend/internal/ws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and its dependencies
type Server struct {
	log      *logging.Logger
	cfg      *config.Config
	router   *gin.Engine
	httpSrv  *http.Server
	sessions *terminal.Manager
	monitor  *network.Monitor
	bus      *events.Bus
	registry *service.Registry
	metrics  *monitoring.Metrics

	cancelMonitor context.CancelFunc
}

// New builds a fully wired server. Pass prometheus.DefaultRegisterer in
// production; tests use a fresh registry to avoid duplicate registration.
func New(cfg *config.Config, log *logging.Logger, reg prometheus.Registerer) *Server {
	if log == nil {
		log = logging.NewDefault()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	bus := events.New()
	metrics := monitoring.NewMetrics(reg)
	sessions := terminal.NewManager(log.Named("terminal"), bus,
		terminal.WithDefaultSize(cfg.Terminal.DefaultCols, cfg.Terminal.DefaultRows))
	monitor := network.NewMonitor(log.Named("network"), bus,
		network.WithProbeURL(cfg.Network.ProbeURL),
		network.WithTimeout(time.Duration(cfg.Network.ProbeTimeoutSec)*time.Second),
		network.WithInterval(time.Duration(cfg.Network.IntervalSec)*time.Second),
	)

	registry := service.NewRegistry()
	if err := registry.Register(terminal.NewProvider(sessions)); err != nil {
		log.Error("failed to register terminal provider", zap.Error(err))
	}
	if err := registry.Register(network.NewProvider(monitor)); err != nil {
		log.Error("failed to register network provider", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	}))
	router.Use(monitoring.Middleware(metrics))

	handlers := apihttp.NewHandlers(sessions, registry, monitor, metrics)
	wsHandler := ws.NewHandler(bus, log.Named("ws"), metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/stream", wsHandler.HandleConnection)

	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.DELETE("/sessions", handlers.CloseAllSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.POST("/sessions/:id/write", handlers.WriteSession)
	router.GET("/sessions/:id/read", handlers.ReadSession)
	router.POST("/sessions/:id/resize", handlers.ResizeSession)
	router.PATCH("/sessions/:id", handlers.RenameSession)
	router.DELETE("/sessions/:id", handlers.CloseSession)

	router.GET("/network/status", handlers.NetworkStatus)
	router.POST("/network/monitor", handlers.StartNetworkMonitoring)

	router.GET("/services", handlers.ListServices)
	router.POST("/services/execute", handlers.ExecuteService)

	return &Server{
		log:      log,
		cfg:      cfg,
		router:   router,
		sessions: sessions,
		monitor:  monitor,
		bus:      bus,
		registry: registry,
		metrics:  metrics,
	}
}

// Run starts the connectivity poller and serves until the listener fails.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelMonitor = cancel
	s.monitor.Start(ctx)

	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.log.Info("server listening", zap.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, tears down every terminal session and
// stops the connectivity poller.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelMonitor != nil {
		s.cancelMonitor()
	}

	count := s.sessions.CloseAll()
	if count > 0 {
		s.log.Info("closed sessions on shutdown", zap.Int("count", count))
	}

	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
