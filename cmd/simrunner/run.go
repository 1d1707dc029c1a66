package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"simrunner/internal/config"
	"simrunner/internal/engine"
	"simrunner/internal/observability"
	"simrunner/internal/remote"
	"simrunner/internal/render"
	"simrunner/internal/runner"
)

var (
	runConfigPath string
	runName       string
	runTargetTime float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive one simulation job to completion",
	Long:  "run creates a remote job record, steps the simulation engine, uploads each step's artifacts, and leaves the job in a terminal success or error status.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg := config.LoadRunnerConfig()
		simCfg, err := config.LoadSimulation(runConfigPath)
		if err != nil {
			return err
		}

		name := runName
		if name == "" {
			name = "sim-" + uuid.New().String()
		}

		metrics, metricsHandler, err := observability.NewMetrics(ctx)
		if err != nil {
			return err
		}

		// Metrics are scraped while the run is in flight.
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", metricsHandler)
		metricsServer := &http.Server{
			Addr:         ":" + cfg.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("Starting metrics server", "port", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Warn("Metrics server shutdown error", "error", err)
			}
		}()

		store := remote.NewClient(remote.ClientConfig{
			APIBase:  cfg.APIBase,
			Token:    cfg.Token,
			FolderID: cfg.FolderID,
			Timeout:  cfg.UploadTimeout,
		})
		geometry := remote.NewGeometry(
			&http.Client{Timeout: cfg.UploadTimeout},
			cfg.GeometryURL,
			cfg.GeometryPath,
		)

		r := runner.New(runner.Config{
			Store:    store,
			Engine:   engine.FixedStep{},
			Renderer: render.JSON{},
			Preparer: geometry,
			Metrics:  metrics,
			Notifier: runner.NewNotifier(cfg.CallbackURL, cfg.CallbackKey, cfg.CallbackTimeout),
		})

		desc, err := r.Run(ctx, runner.Job{
			Name:       name,
			TargetTime: runTargetTime,
			Config:     simCfg,
		})
		if err != nil {
			return err
		}

		slog.Info("Job finished", "jobId", desc.JobID, "status", desc.Status.String())
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	runCmd.Flags().StringVar(&runName, "name", "", "Run name (default: sim-<uuid>)")
	runCmd.Flags().Float64Var(&runTargetTime, "target-time", 10, "Simulated time at which the run stops")
}
