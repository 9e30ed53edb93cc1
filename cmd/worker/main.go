package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/aaer-miner/internal/bootstrap"
	"github.com/kirillkom/aaer-miner/internal/config"
	"github.com/kirillkom/aaer-miner/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, "worker", cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", app.Metrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	switch cfg.RunMode {
	case bootstrap.RunModeSubscribe:
		err = subscribe(ctx, app)
	default:
		err = runBatch(ctx, app)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker_failed", "mode", cfg.RunMode, "error", err)
		app.Close()
		os.Exit(1)
	}
}

func runBatch(ctx context.Context, app *bootstrap.App) error {
	report, err := app.BatchUC.Run(ctx)
	app.Logger.Info("batch_report",
		"run_id", report.RunID,
		"total", report.Total,
		"persisted", report.Persisted,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"aborted", report.Aborted,
	)
	return err
}

func subscribe(ctx context.Context, app *bootstrap.App) error {
	app.Logger.Info("worker_subscribed", "subject", app.Config.NATSSubject)
	return app.Queue.SubscribeDocuments(ctx, func(handlerCtx context.Context, url string) error {
		outcome, err := app.BatchUC.ProcessURL(handlerCtx, url)
		if err != nil {
			return err
		}
		if outcome.Skipped() {
			app.Logger.Info("document_message_skipped", "url", url, "reason", string(outcome.SkipReason))
		}
		return nil
	})
}
