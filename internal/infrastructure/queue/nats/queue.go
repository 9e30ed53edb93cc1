package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/resilience"
)

const EventRecordPersisted = "record.persisted"

// RecordEvent is the payload published after a record is persisted.
type RecordEvent struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	Identifier string    `json:"identifier"`
	URL        string    `json:"url"`
	Ticker     string    `json:"ticker"`
	OccurredAt time.Time `json:"occurred_at"`
}

type publisher interface {
	Publish(subject string, data []byte) error
}

type Queue struct {
	conn             *nats.Conn
	pub              publisher
	documentsSubject string
	recordsSubject   string
	executor         *resilience.Executor
	logger           *slog.Logger
}

type Options struct {
	DocumentsSubject     string
	RecordsSubject       string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("aaer-miner"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:             conn,
		pub:              conn,
		documentsSubject: options.DocumentsSubject,
		recordsSubject:   options.RecordsSubject,
		executor:         options.ResilienceExecutor,
		logger:           logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishRecordPersisted(ctx context.Context, runID string, record domain.ExtractionRecord) error {
	payload, err := json.Marshal(RecordEvent{
		Type:       EventRecordPersisted,
		RunID:      runID,
		Identifier: record.Identifier,
		URL:        record.URL,
		Ticker:     record.Ticker,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal record event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := q.pub.Publish(q.recordsSubject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapPublishError(err)
	}
	return nil
}

// SubscribeDocuments queue-subscribes to the documents subject and hands each
// message body, a document URL, to handler until ctx is done.
func (q *Queue) SubscribeDocuments(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.documentsSubject, "aaer-workers", func(msg *nats.Msg) {
		q.handleMessage(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) handleMessage(ctx context.Context, data []byte, handler func(context.Context, string) error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}
	url := strings.TrimSpace(string(data))
	if url == "" {
		q.logger.Warn("empty_document_message", "subject", q.documentsSubject)
		return
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handler(handlerCtx, url); err != nil {
		q.logger.Error("document_message_failed", "url", url, "error", err)
	}
}
