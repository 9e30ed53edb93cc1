package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

type processorFake struct {
	mu       sync.Mutex
	outcomes map[string]domain.Outcome
	errs     map[string]error
	seen     []string
}

func (f *processorFake) Process(_ context.Context, doc domain.SourceDocument) (domain.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, doc.URL)
	if err := f.errs[doc.URL]; err != nil {
		return domain.Outcome{DocumentID: doc.ID, URL: doc.URL, Err: err}, err
	}
	if o, ok := f.outcomes[doc.URL]; ok {
		return o, nil
	}
	return domain.Outcome{DocumentID: doc.ID, URL: doc.URL, State: domain.StatePersisted}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func docsN(n int) []domain.SourceDocument {
	out := make([]domain.SourceDocument, n)
	for i := range out {
		url := fmt.Sprintf("https://www.sec.gov/aaer/%d.pdf", i)
		out[i] = domain.SourceDocument{ID: url, URL: url}
	}
	return out
}

func skipped(reason domain.SkipReason, err error) domain.Outcome {
	return domain.Outcome{State: domain.StateSkipped, SkipReason: reason, Err: err}
}

func TestBatchRunCountsOutcomes(t *testing.T) {
	docs := docsN(4)
	processor := &processorFake{
		outcomes: map[string]domain.Outcome{
			docs[1].URL: skipped(domain.SkipAmbiguousCandidates, domain.ErrAmbiguousCandidates),
			docs[2].URL: skipped(domain.SkipNoCandidateFound, domain.ErrNoCandidateFound),
		},
		errs: map[string]error{docs[3].URL: errors.New("db down")},
	}
	observer := &batchObserverFake{}
	uc := NewBatchUseCase(&sourceFake{docs: docs}, processor, observer, discardLogger(), BatchConfig{Workers: 1})

	report, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.RunID == "" {
		t.Fatalf("expected run id")
	}
	if report.Total != 4 || report.Persisted != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Skipped[domain.SkipAmbiguousCandidates] != 1 || report.Skipped[domain.SkipNoCandidateFound] != 1 {
		t.Fatalf("unexpected skip counts %v", report.Skipped)
	}
	if observer.started != 4 || len(observer.finished) != 4 || len(observer.reports) != 1 {
		t.Fatalf("unexpected observer calls %+v", observer)
	}
	for i, url := range processor.seen {
		if url != docs[i].URL {
			t.Fatalf("sequential run must keep source order, got %v", processor.seen)
		}
	}
}

func TestBatchRunAbortsOnPersistentOutage(t *testing.T) {
	docs := docsN(10)
	outage := domain.WrapError(domain.ErrResolutionFailed, "secapi", domain.WrapError(domain.ErrTemporary, "secapi", errors.New("503")))
	outcomes := make(map[string]domain.Outcome)
	for _, d := range docs {
		outcomes[d.URL] = skipped(domain.SkipResolutionFailed, outage)
	}
	processor := &processorFake{outcomes: outcomes}
	uc := NewBatchUseCase(&sourceFake{docs: docs}, processor, nil, discardLogger(), BatchConfig{Workers: 1, MaxConsecutiveOutages: 3})

	report, err := uc.Run(context.Background())
	if !domain.IsKind(err, domain.ErrCollaboratorOutage) {
		t.Fatalf("expected collaborator outage, got %v", err)
	}
	if !report.Aborted {
		t.Fatalf("expected aborted report")
	}
	if report.Total != 3 || len(processor.seen) != 3 {
		t.Fatalf("expected abort after 3 documents, got total=%d seen=%d", report.Total, len(processor.seen))
	}
}

func TestBatchRunOutageCounterResetsOnSuccess(t *testing.T) {
	docs := docsN(6)
	outage := domain.WrapError(domain.ErrTaggingUnavailable, "ollama", errors.New("refused"))
	processor := &processorFake{outcomes: map[string]domain.Outcome{
		docs[0].URL: skipped(domain.SkipTaggingUnavailable, outage),
		docs[1].URL: skipped(domain.SkipTaggingUnavailable, outage),
		docs[3].URL: skipped(domain.SkipTaggingUnavailable, outage),
		docs[4].URL: skipped(domain.SkipTaggingUnavailable, outage),
	}}
	uc := NewBatchUseCase(&sourceFake{docs: docs}, processor, nil, discardLogger(), BatchConfig{Workers: 1, MaxConsecutiveOutages: 3})

	report, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Aborted || report.Total != 6 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestBatchRunParallelProcessesAll(t *testing.T) {
	docs := docsN(20)
	processor := &processorFake{}
	uc := NewBatchUseCase(&sourceFake{docs: docs}, processor, nil, discardLogger(), BatchConfig{Workers: 4})

	report, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Total != 20 || report.Persisted != 20 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestBatchRunListError(t *testing.T) {
	uc := NewBatchUseCase(&sourceFake{listErr: errors.New("relation does not exist")}, &processorFake{}, nil, discardLogger(), BatchConfig{})
	if _, err := uc.Run(context.Background()); err == nil {
		t.Fatalf("expected list error")
	}
}

func TestProcessURLLooksUpSource(t *testing.T) {
	docs := docsN(2)
	processor := &processorFake{}
	uc := NewBatchUseCase(&sourceFake{docs: docs}, processor, nil, discardLogger(), BatchConfig{})

	outcome, err := uc.ProcessURL(context.Background(), docs[1].URL)
	if err != nil || outcome.State != domain.StatePersisted {
		t.Fatalf("ProcessURL() = %+v, %v", outcome, err)
	}
	if _, err := uc.ProcessURL(context.Background(), "https://unknown"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
