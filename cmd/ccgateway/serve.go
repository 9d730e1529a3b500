package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/fentz26/ccgateway/internal/audit"
	"github.com/fentz26/ccgateway/internal/connectors/localexec"
	"github.com/fentz26/ccgateway/internal/controlplane"
	"github.com/fentz26/ccgateway/internal/logging"
	"github.com/fentz26/ccgateway/internal/registry"
	"github.com/fentz26/ccgateway/internal/store"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP server",
	Long:  `Starts the gateway, which forwards analyze, execute and status requests to the claude-code binary.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stdout})
	logger.Info("starting gateway", "env", cfg.Env, "binary", cfg.Runner.Binary, "timeout", cfg.Runner.Timeout)

	// The journal is optional; without it runs are only logged.
	var journal *store.Store
	if cfg.AuditDBPath != "" {
		journal, err = store.New(cfg.AuditDBPath)
		if err != nil {
			return err
		}
		defer journal.Close()
		logger.Info("run journal enabled", "path", cfg.AuditDBPath)
	}

	reg := registry.New()
	connector := localexec.New(cfg.Runner, logger)
	service := controlplane.NewService(reg, connector, audit.NewRecorder(journal, logger), cfg.ProjectsRoot, logger)

	var metrics *controlplane.Metrics
	if cfg.MetricsEnabled {
		promRegistry := prometheus.NewRegistry()
		promRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = controlplane.MustNewMetrics(promRegistry, reg.Counts)
		service.SetMetrics(metrics)
	}

	server := controlplane.NewServer(service, cfg, metrics, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}
