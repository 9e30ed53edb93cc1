package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/aaer-miner/internal/bootstrap"
	"github.com/kirillkom/aaer-miner/internal/config"
	"github.com/kirillkom/aaer-miner/internal/core/domain"
	"github.com/kirillkom/aaer-miner/internal/observability/logging"
)

type resolution struct {
	Query      string  `json:"query"`
	Identifier string  `json:"identifier,omitempty"`
	Ticker     string  `json:"ticker,omitempty"`
	Name       string  `json:"name,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// registry resolves company names given as arguments against the configured
// resolver and prints one JSON line per name.
func main() {
	cfg, err := config.Load().ApplyRulesFile()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load rules:", err)
		os.Exit(2)
	}
	threshold := flag.Float64("threshold", cfg.Rules.SimilarityThreshold, "minimum similarity score in (0,1]")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: registry [-threshold 0.85] NAME [NAME...]")
		os.Exit(2)
	}

	logger := logging.New(os.Stderr, "registry", cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver, err := bootstrap.NewResolver(ctx, cfg, *threshold, bootstrap.NewExecutor(cfg, logger), logger)
	if err != nil {
		logger.Error("resolver_init_failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	failed := false
	for _, name := range flag.Args() {
		out := resolution{Query: name}
		company, err := resolver.Resolve(ctx, name)
		if err != nil {
			out.Error = err.Error()
			if !domain.IsKind(err, domain.ErrResolutionFailed) {
				failed = true
			}
		} else {
			out.Identifier = company.Identifier
			out.Ticker = company.Ticker
			out.Name = company.Name
			out.Score = company.Score
		}
		if err := enc.Encode(out); err != nil {
			logger.Error("write_result_failed", "error", err)
			os.Exit(1)
		}
	}
	if failed {
		os.Exit(1)
	}
}
