package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
	"github.com/kirillkom/aaer-miner/internal/core/ports"
)

type BatchConfig struct {
	Workers               int
	Interval              time.Duration
	DocumentTimeout       time.Duration
	MaxConsecutiveOutages int
}

// BatchUseCase runs the pipeline over every pending upstream document.
type BatchUseCase struct {
	source    ports.DocumentSource
	processor ports.DocumentProcessor
	observer  ports.BatchObserver
	logger    *slog.Logger
	cfg       BatchConfig
}

func NewBatchUseCase(
	source ports.DocumentSource,
	processor ports.DocumentProcessor,
	observer ports.BatchObserver,
	logger *slog.Logger,
	cfg BatchConfig,
) *BatchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &BatchUseCase{
		source:    source,
		processor: processor,
		observer:  observer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run makes one pass. Skips never stop the pass; it aborts with
// domain.ErrCollaboratorOutage once MaxConsecutiveOutages documents in a row were
// skipped because a lookup or tagging service was down.
func (uc *BatchUseCase) Run(ctx context.Context) (domain.BatchReport, error) {
	runID := uuid.NewString()
	report := domain.NewBatchReport(runID, time.Now().UTC())
	ctx = WithRunID(ctx, runID)

	docs, err := uc.source.ListPending(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending documents: %w", err)
	}
	uc.logger.Info("batch_started", "run_id", runID, "documents", len(docs), "workers", uc.cfg.Workers)

	var limiter *rate.Limiter
	if uc.cfg.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(uc.cfg.Interval), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.Workers)

	var (
		mu          sync.Mutex
		consecutive int
	)
	record := func(outcome domain.Outcome) error {
		mu.Lock()
		defer mu.Unlock()
		report.Add(outcome)

		switch {
		case outcome.Skipped() && domain.IsCollaboratorFailure(outcome.Err):
			consecutive++
		case outcome.State == domain.StatePersisted || outcome.Skipped():
			consecutive = 0
		}
		if uc.cfg.MaxConsecutiveOutages > 0 && consecutive >= uc.cfg.MaxConsecutiveOutages {
			return domain.WrapError(domain.ErrCollaboratorOutage, "batch run",
				fmt.Errorf("%d consecutive documents skipped for collaborator failures; last: %v", consecutive, outcome.Err))
		}
		return nil
	}

	for _, doc := range docs {
		if gctx.Err() != nil {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				break
			}
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			outcome, err := uc.processOne(gctx, doc)
			if err != nil && gctx.Err() != nil {
				// Cancelled mid-flight by an abort or shutdown; not counted.
				return nil
			}
			return record(outcome)
		})
	}

	runErr := g.Wait()
	report.Duration = time.Since(report.StartedAt)
	if errors.Is(runErr, domain.ErrCollaboratorOutage) {
		report.Aborted = true
	}
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}
	if uc.observer != nil {
		uc.observer.FinishBatch(report)
	}

	logArgs := []any{
		"run_id", runID,
		"total", report.Total,
		"persisted", report.Persisted,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"aborted", report.Aborted,
		"duration_ms", report.Duration.Milliseconds(),
	}
	if runErr != nil {
		uc.logger.Error("batch_aborted", append(logArgs, "error", runErr)...)
		return report, runErr
	}
	uc.logger.Info("batch_completed", logArgs...)
	return report, nil
}

// ProcessURL processes a single upstream row addressed by URL, as delivered by the
// subscription mode.
func (uc *BatchUseCase) ProcessURL(ctx context.Context, url string) (domain.Outcome, error) {
	if RunIDFromContext(ctx) == "" {
		ctx = WithRunID(ctx, uuid.NewString())
	}
	doc, err := uc.source.GetByURL(ctx, url)
	if err != nil {
		return domain.Outcome{URL: url, Err: err}, fmt.Errorf("lookup source document: %w", err)
	}
	return uc.processOne(ctx, *doc)
}

func (uc *BatchUseCase) processOne(ctx context.Context, doc domain.SourceDocument) (domain.Outcome, error) {
	if uc.cfg.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.DocumentTimeout)
		defer cancel()
	}

	if uc.observer != nil {
		uc.observer.StartDocument()
	}
	started := time.Now()
	outcome, err := uc.processor.Process(ctx, doc)
	if err != nil && outcome.Err == nil {
		outcome.Err = err
	}
	if outcome.URL == "" {
		outcome.DocumentID, outcome.URL = doc.ID, doc.URL
	}
	if uc.observer != nil {
		uc.observer.FinishDocument(outcome, time.Since(started))
	}
	if err != nil {
		uc.logger.Error("document_failed", "document_id", doc.ID, "url", doc.URL, "error", err)
	}
	return outcome, err
}
