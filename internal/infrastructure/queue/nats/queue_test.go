package nats

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/resilience"
)

type publisherFake struct {
	subject string
	data    []byte
	err     error
	calls   int
}

func (p *publisherFake) Publish(subject string, data []byte) error {
	p.calls++
	p.subject = subject
	p.data = data
	return p.err
}

func newTestQueue(pub publisher) *Queue {
	return &Queue{
		pub:              pub,
		documentsSubject: "aaer.documents",
		recordsSubject:   "aaer.records",
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestPublishRecordPersistedEncodesEvent(t *testing.T) {
	pub := &publisherFake{}
	q := newTestQueue(pub)

	err := q.PublishRecordPersisted(context.Background(), "run-1", domain.ExtractionRecord{
		Identifier: "0001234",
		URL:        "https://example.test/a.pdf",
		Ticker:     "ACM",
	})
	if err != nil {
		t.Fatalf("PublishRecordPersisted() error = %v", err)
	}
	if pub.subject != "aaer.records" {
		t.Fatalf("unexpected subject %q", pub.subject)
	}

	var event RecordEvent
	if err := json.Unmarshal(pub.data, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Type != EventRecordPersisted || event.RunID != "run-1" || event.Identifier != "0001234" || event.Ticker != "ACM" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestPublishWrapsRetryableFailureAsTemporary(t *testing.T) {
	pub := &publisherFake{err: nats.ErrConnectionClosed}
	q := newTestQueue(pub)
	cfg := resilience.DefaultConfig()
	cfg.RetryMaxAttempts = 2
	cfg.RetryInitialBackoff = time.Millisecond
	cfg.BreakerEnabled = false
	q.executor = resilience.NewExecutor(cfg)

	err := q.PublishRecordPersisted(context.Background(), "run-1", domain.ExtractionRecord{Identifier: "1", URL: "u"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if pub.calls != 2 {
		t.Fatalf("expected 2 publish attempts, got %d", pub.calls)
	}
}

func TestPublishKeepsPermanentFailureUnwrapped(t *testing.T) {
	pub := &publisherFake{err: errors.New("bad subject")}
	q := newTestQueue(pub)

	err := q.PublishRecordPersisted(context.Background(), "run-1", domain.ExtractionRecord{Identifier: "1", URL: "u"})
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestHandleMessageTrimsURLAndSkipsEmpty(t *testing.T) {
	q := newTestQueue(&publisherFake{})
	var got []string
	handler := func(_ context.Context, url string) error {
		got = append(got, url)
		return nil
	}

	q.handleMessage(context.Background(), []byte("  https://example.test/a.pdf\n"), handler)
	q.handleMessage(context.Background(), []byte("   "), handler)

	if len(got) != 1 || got[0] != "https://example.test/a.pdf" {
		t.Fatalf("unexpected handled urls: %v", got)
	}
}

func TestHandleMessageIgnoresCanceledContext(t *testing.T) {
	q := newTestQueue(&publisherFake{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	q.handleMessage(ctx, []byte("u"), func(context.Context, string) error {
		called = true
		return nil
	})
	if called {
		t.Fatalf("handler must not run after cancellation")
	}
}
