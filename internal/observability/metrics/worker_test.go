package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

func TestFinishDocumentLabelsSkipReason(t *testing.T) {
	m := NewWorkerMetrics("test")

	m.StartDocument()
	m.FinishDocument(domain.Outcome{State: domain.StateSkipped, SkipReason: domain.SkipAmbiguousCandidates}, time.Second)
	m.StartDocument()
	m.FinishDocument(domain.Outcome{State: domain.StatePersisted}, time.Second)

	skipped := testutil.ToFloat64(m.documentTotal.WithLabelValues("test", "skipped", "ambiguous_candidates"))
	if skipped != 1 {
		t.Fatalf("expected 1 ambiguous skip, got %v", skipped)
	}
	persisted := testutil.ToFloat64(m.documentTotal.WithLabelValues("test", "persisted", ""))
	if persisted != 1 {
		t.Fatalf("expected 1 persisted document, got %v", persisted)
	}
	if inFlight := testutil.ToFloat64(m.documentInFlight); inFlight != 0 {
		t.Fatalf("expected in-flight gauge back to 0, got %v", inFlight)
	}
}

func TestFinishDocumentCountsErrors(t *testing.T) {
	m := NewWorkerMetrics("test")
	m.StartDocument()
	m.FinishDocument(domain.Outcome{State: domain.StateClassified, Err: errors.New("db down")}, time.Millisecond)

	if got := testutil.ToFloat64(m.documentTotal.WithLabelValues("test", "error", "")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
}

func TestFinishBatchLabelsAborted(t *testing.T) {
	m := NewWorkerMetrics("test")
	m.FinishBatch(domain.BatchReport{Aborted: true})

	if got := testutil.ToFloat64(m.batchTotal.WithLabelValues("test", "aborted")); got != 1 {
		t.Fatalf("expected aborted batch counted, got %v", got)
	}
}
