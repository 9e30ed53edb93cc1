package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

// NewClient creates a Firestore client for the given project.
func NewClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "firestore client", errors.New("project id must be provided"))
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return client, nil
}

// RecordStore keeps one document per (identifier, url) in a single collection.
type RecordStore struct {
	client     *firestore.Client
	collection string
}

func NewRecordStore(client *firestore.Client, collection string) *RecordStore {
	if collection == "" {
		collection = "aaer_records"
	}
	return &RecordStore{client: client, collection: collection}
}

// DocumentID is the hex SHA-256 of identifier and url joined by a NUL byte.
func DocumentID(key domain.RecordKey) string {
	sum := sha256.Sum256([]byte(key.Identifier + "\x00" + key.URL))
	return hex.EncodeToString(sum[:])
}

func (s *RecordStore) Upsert(ctx context.Context, record domain.ExtractionRecord) error {
	if record.Identifier == "" || record.URL == "" {
		return domain.WrapError(domain.ErrInvalidInput, "upsert record", errors.New("identifier and url are required"))
	}
	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now().UTC()
	}
	if _, err := s.doc(record.Key()).Set(ctx, record); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (s *RecordStore) Get(ctx context.Context, key domain.RecordKey) (*domain.ExtractionRecord, error) {
	snap, err := s.doc(key).Get(ctx)
	if err != nil {
		return nil, mapGetError(key, err)
	}
	var record domain.ExtractionRecord
	if err := snap.DataTo(&record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &record, nil
}

func (s *RecordStore) List(ctx context.Context) ([]domain.ExtractionRecord, error) {
	iter := s.client.Collection(s.collection).OrderBy("processed_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	out := make([]domain.ExtractionRecord, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		var record domain.ExtractionRecord
		if err := snap.DataTo(&record); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", snap.Ref.ID, err)
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *RecordStore) doc(key domain.RecordKey) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(DocumentID(key))
}

func mapGetError(key domain.RecordKey, err error) error {
	if status.Code(err) == codes.NotFound {
		return domain.WrapError(domain.ErrRecordNotFound, "get record", fmt.Errorf("identifier=%s url=%s", key.Identifier, key.URL))
	}
	return fmt.Errorf("get record: %w", err)
}
