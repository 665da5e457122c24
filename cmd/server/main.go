package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentkube/desktop/backend/internal/config"
	"github.com/agentkube/desktop/backend/internal/logging"
	"github.com/agentkube/desktop/backend/internal/server"
	"github.com/agentkube/desktop/backend/internal/sidecar"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	dev := flag.Bool("dev", false, "Development mode (console logging, debug level)")
	flag.Parse()

	cfg := config.LoadOrDefault()

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if cfg.Logging.Development || *dev {
		logCfg = logging.DevelopmentConfig()
	}
	log, err := logging.New(logCfg)
	if err != nil {
		log = logging.NewDefault()
	}
	defer log.Sync()

	log.Info("desktop backend starting")

	// companion services come up before the command surface so the UI
	// never sees a half-ready system
	supervisor := sidecar.New(log.Named("sidecar"), sidecar.Config{
		BinDir:           cfg.Sidecar.BinDir,
		OrchestratorPort: cfg.Sidecar.OrchestratorPort,
		OperatorPort:     cfg.Sidecar.OperatorPort,
	})
	if cfg.Sidecar.Enabled {
		supervisor.Start(context.Background())
	}
	defer supervisor.Shutdown()

	srv := server.New(cfg, log.Named("server"), prometheus.DefaultRegisterer)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}

	supervisor.Shutdown()
	log.Info("desktop backend stopped")
}
