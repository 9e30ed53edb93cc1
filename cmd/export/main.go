package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/aaer-miner/internal/bootstrap"
	"github.com/kirillkom/aaer-miner/internal/config"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/aaer-miner/internal/observability/logging"
)

func main() {
	out := flag.String("out", "aaer_records.xlsx", "output XLSX file path")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(os.Stderr, "export", cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := bootstrap.OpenRecordStore(ctx, cfg)
	if err != nil {
		logger.Error("record_store_init_failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	data, err := xlsx.NewExporter(store, logger).Export(ctx)
	if err != nil {
		logger.Error("export_failed", "error", err)
		closeStore()
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("write_export_failed", "path", *out, "error", err)
		closeStore()
		os.Exit(1)
	}
	logger.Info("export_written", "path", *out, "bytes", len(data))
}
