package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alem-hub/scorm-interceptor/config"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/host"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/metrics"
	httpiface "github.com/alem-hub/scorm-interceptor/internal/interface/http"
	"github.com/alem-hub/scorm-interceptor/internal/interface/http/handlers"
	"github.com/alem-hub/scorm-interceptor/pkg/interceptor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interceptor behind an HTTP interface",
	Long: `Starts the interceptor with an in-memory SCORM runtime and exposes it over HTTP.
Host calls are made with POST /api/v1/scorm/{function}.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("runtime", true, "Register the in-memory SCORM runtime under the configured names")
	serveCmd.Flags().String("learner-id", "", "Learner id reported by the in-memory runtime")
	serveCmd.Flags().String("learner-name", "", "Learner name reported by the in-memory runtime")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration and logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.LoadService()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := setupLogger(cfg, os.Stderr)
	log.Info("starting interceptor service",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"journal", cfg.Journal.Backend,
	)

	overrides, err := loadOverrides(cmd, cfg)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Journal and metrics
	// ─────────────────────────────────────────────────────────────────────────
	j, err := openJournal(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.close()

	m := metrics.New(true)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Host runtime and interceptor
	// ─────────────────────────────────────────────────────────────────────────
	registry := host.NewRegistry()
	ic := interceptor.New(registry,
		interceptor.WithJournal(j),
		interceptor.WithMetrics(m),
		interceptor.WithLogger(log),
	)

	if err := ic.Init(overrides); err != nil {
		return fmt.Errorf("failed to initialize interceptor: %w", err)
	}

	if withRuntime, _ := cmd.Flags().GetBool("runtime"); withRuntime {
		id, _ := cmd.Flags().GetString("learner-id")
		name, _ := cmd.Flags().GetString("learner-name")
		rc := ic.Config()
		host.NewMemoryRuntime(host.StaticLearner{ID: id, Name: name}).
			Install(registry, rc.SCORM.SetValueFunction, rc.SCORM.API)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP interface
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewHealthChecker(cfg.App.Version)
	if j.check != nil {
		health.AddCheck("journal", j.check)
	}
	if check := ic.LRSCheck(); check != nil {
		health.AddCheck("lrs", check)
	}

	deps := httpiface.Dependencies{
		Interceptor: ic,
		Registry:    registry,
		Health:      health,
		Logger:      log,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = m.Handler()
	}

	srvCfg := httpiface.DefaultConfig()
	srvCfg.Addr = cfg.HTTP.Addr
	srvCfg.APIKeyHash = cfg.HTTP.APIKeyHash
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout

	server := httpiface.NewServer(srvCfg, deps)
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if err := ic.Drain(shutdownCtx); err != nil {
		log.Error("pending statements not drained", "error", err)
	}
	ic.Close()

	log.Info("shutdown completed")
	return nil
}
