package ports

import (
	"context"
	"time"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

// DocumentSource is the upstream store of AAER rows.
type DocumentSource interface {
	ListPending(ctx context.Context) ([]domain.SourceDocument, error)
	GetByURL(ctx context.Context, url string) (*domain.SourceDocument, error)
	MarkScraped(ctx context.Context, url string) error
}

// DocumentFetcher downloads raw document bytes by URL.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (domain.Payload, error)
}

// TextExtractor converts raw document bytes into text and sections.
type TextExtractor interface {
	Extract(ctx context.Context, doc domain.SourceDocument) (domain.ExtractedText, error)
}

// CandidateFinder proposes company names found in text.
type CandidateFinder interface {
	Find(text string) []domain.CompanyCandidate
	Normalize(name string) string
}

// IdentityResolver maps a candidate name to a canonical company.
type IdentityResolver interface {
	Resolve(ctx context.Context, name string) (*domain.ResolvedCompany, error)
}

// DateTagger finds date mentions in text.
type DateTagger interface {
	TagDates(ctx context.Context, text string) ([]domain.DateMention, error)
}

// PeriodFilter reduces date mentions to a plausible fraud period.
type PeriodFilter interface {
	Filter(mentions []domain.DateMention) (domain.FraudPeriod, bool)
}

// HarmClassifier flags the statutory significant-harm cue.
type HarmClassifier interface {
	ContainsHarm(text string) bool
}

// NameMatcher scores two company names in [0,1].
type NameMatcher interface {
	Similarity(a, b string) float64
}

// RecordStore persists extraction records keyed by (identifier, url).
type RecordStore interface {
	Upsert(ctx context.Context, record domain.ExtractionRecord) error
	Get(ctx context.Context, key domain.RecordKey) (*domain.ExtractionRecord, error)
	List(ctx context.Context) ([]domain.ExtractionRecord, error)
}

// EventPublisher announces persisted records.
type EventPublisher interface {
	PublishRecordPersisted(ctx context.Context, runID string, record domain.ExtractionRecord) error
}

// ProcessObserver receives per-document pipeline measurements.
type ProcessObserver interface {
	ObserveResolution(score float64)
	ObservePeriod(period domain.FraudPeriod)
}

// BatchObserver receives per-document and per-run measurements.
type BatchObserver interface {
	StartDocument()
	FinishDocument(outcome domain.Outcome, duration time.Duration)
	FinishBatch(report domain.BatchReport)
}
