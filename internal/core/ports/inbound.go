package ports

import (
	"context"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

// DocumentProcessor runs the extraction pipeline for a single document.
type DocumentProcessor interface {
	Process(ctx context.Context, doc domain.SourceDocument) (domain.Outcome, error)
}

// BatchRunner performs one full pass over the pending upstream documents.
type BatchRunner interface {
	Run(ctx context.Context) (domain.BatchReport, error)
}

// URLProcessor processes a document identified only by its source URL.
type URLProcessor interface {
	ProcessURL(ctx context.Context, url string) (domain.Outcome, error)
}
