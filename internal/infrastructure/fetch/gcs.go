package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

// GCSObjects reads documents mirrored to Cloud Storage.
type GCSObjects struct {
	client *storage.Client
}

func NewGCSObjects(client *storage.Client) *GCSObjects {
	return &GCSObjects{client: client}
}

func (g *GCSObjects) NewObjectReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	rc, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "gcs open", err)
		}
		return nil, fmt.Errorf("gcs open gs://%s/%s: %w", bucket, object, err)
	}
	return rc, nil
}
