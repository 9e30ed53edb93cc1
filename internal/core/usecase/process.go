package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
	"github.com/kirillkom/aaer-miner/internal/core/ports"
)

const (
	CandidateScopeSection = "section"
	CandidateScopeFull    = "full"
)

type ProcessConfig struct {
	CandidateScope      string
	SimilarityThreshold float64
	LookupTimeout       time.Duration
}

// ProcessDeps holds the collaborators of the pipeline. Source, Events and Observer
// are optional.
type ProcessDeps struct {
	Fetcher   ports.DocumentFetcher
	Extractor ports.TextExtractor
	Finder    ports.CandidateFinder
	Resolver  ports.IdentityResolver
	Tagger    ports.DateTagger
	Periods   ports.PeriodFilter
	Harm      ports.HarmClassifier
	Matcher   ports.NameMatcher
	Store     ports.RecordStore
	Source    ports.DocumentSource
	Events    ports.EventPublisher
	Observer  ports.ProcessObserver
	Logger    *slog.Logger
}

// ProcessDocumentUseCase takes one AAER from raw bytes to a persisted record, or to a
// logged skip.
type ProcessDocumentUseCase struct {
	deps ProcessDeps
	cfg  ProcessConfig
	now  func() time.Time
}

func NewProcessDocumentUseCase(deps ProcessDeps, cfg ProcessConfig) *ProcessDocumentUseCase {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.CandidateScope == "" {
		cfg.CandidateScope = CandidateScopeSection
	}
	return &ProcessDocumentUseCase{
		deps: deps,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Process returns a nil error for skipped documents. Only persistence failures and
// cancellation are returned as errors.
func (uc *ProcessDocumentUseCase) Process(ctx context.Context, doc domain.SourceDocument) (domain.Outcome, error) {
	outcome := domain.Outcome{DocumentID: doc.ID, URL: doc.URL}

	doc, err := uc.ensureContent(ctx, doc)
	if err != nil {
		return uc.skipOrFail(ctx, outcome, domain.SkipUnreadableDocument, err)
	}
	outcome.State = domain.StateFetched

	text, err := uc.deps.Extractor.Extract(ctx, doc)
	if err != nil {
		return uc.skipOrFail(ctx, outcome, domain.SkipUnreadableDocument, err)
	}
	outcome.State = domain.StateExtracted

	candidate, err := uc.selectCandidate(doc, text)
	if err != nil {
		return uc.skipOrFail(ctx, outcome, domain.SkipNoCandidateFound, err)
	}
	outcome.State = domain.StateCandidatesFound

	company, err := uc.resolve(ctx, candidate)
	if err != nil {
		return uc.skipOrFail(ctx, outcome, domain.SkipResolutionFailed, err)
	}
	outcome.State = domain.StateResolved
	if uc.deps.Observer != nil {
		uc.deps.Observer.ObserveResolution(company.Score)
	}

	summary, _ := text.Section(domain.SectionSummary)
	mentions, err := uc.deps.Tagger.TagDates(ctx, summary)
	if err != nil {
		if !domain.IsKind(err, domain.ErrTaggingUnavailable) {
			err = domain.WrapError(domain.ErrTaggingUnavailable, "tag dates", err)
		}
		return uc.skipOrFail(ctx, outcome, domain.SkipTaggingUnavailable, err)
	}
	period, hasPeriod := uc.deps.Periods.Filter(mentions)
	outcome.State = domain.StateDatesFiltered
	if hasPeriod && uc.deps.Observer != nil {
		uc.deps.Observer.ObservePeriod(period)
	}

	caption, _ := text.Section(domain.SectionITMO)
	containsHarm := uc.deps.Harm.ContainsHarm(caption)
	outcome.State = domain.StateClassified

	record := domain.ExtractionRecord{
		Identifier:   company.Identifier,
		URL:          doc.URL,
		CompanyName:  company.Name,
		Ticker:       company.Ticker,
		ITMOSection:  text.Sections[domain.SectionITMO],
		ContainsHarm: containsHarm,
		Scraped:      true,
		ProcessedAt:  uc.now(),
	}
	if hasPeriod {
		record.SetPeriod(period)
	}

	overwrote, err := uc.persist(ctx, record)
	if err != nil {
		outcome.Err = err
		uc.deps.Logger.Error("record_persist_failed",
			"document_id", doc.ID,
			"url", doc.URL,
			"identifier", record.Identifier,
			"error", err,
		)
		return outcome, err
	}
	outcome.State = domain.StatePersisted
	outcome.Record = &record
	outcome.Overwrote = overwrote

	uc.afterPersist(ctx, record)
	uc.deps.Logger.Info("record_persisted",
		"document_id", doc.ID,
		"url", doc.URL,
		"identifier", record.Identifier,
		"ticker", record.Ticker,
		"resolution_score", company.Score,
		"contains_harm", record.ContainsHarm,
		"period_set", hasPeriod,
		"overwrote", overwrote,
	)
	return outcome, nil
}

func (uc *ProcessDocumentUseCase) ensureContent(ctx context.Context, doc domain.SourceDocument) (domain.SourceDocument, error) {
	if len(doc.Content) > 0 {
		return doc, nil
	}
	if uc.deps.Fetcher == nil {
		return doc, domain.WrapError(domain.ErrUnreadableDocument, "fetch document", errors.New("no content and no fetcher"))
	}
	payload, err := uc.deps.Fetcher.Fetch(ctx, doc.URL)
	if err != nil {
		return doc, domain.WrapError(domain.ErrUnreadableDocument, "fetch document", err)
	}
	doc.Content = payload.Content
	if doc.ContentType == "" {
		doc.ContentType = payload.ContentType
	}
	return doc, nil
}

// selectCandidate picks the single company the document is about. Several candidates
// are disambiguated only by the upstream respondents field.
func (uc *ProcessDocumentUseCase) selectCandidate(doc domain.SourceDocument, text domain.ExtractedText) (domain.CompanyCandidate, error) {
	scope := text.Full
	if uc.cfg.CandidateScope == CandidateScopeSection {
		scope, _ = text.Section(domain.SectionITMO)
	}

	candidates := uc.deps.Finder.Find(scope)
	switch len(candidates) {
	case 0:
		return domain.CompanyCandidate{}, domain.WrapError(domain.ErrNoCandidateFound, "find candidates", fmt.Errorf("no entity suffix in %d chars", len(scope)))
	case 1:
		return candidates[0], nil
	}

	respondents := uc.deps.Finder.Normalize(doc.Respondents)
	if respondents == "" || uc.deps.Matcher == nil {
		return domain.CompanyCandidate{}, domain.WrapError(domain.ErrAmbiguousCandidates, "select candidate", fmt.Errorf("%d candidates and no respondents", len(candidates)))
	}

	var matched []domain.CompanyCandidate
	for _, c := range candidates {
		if uc.deps.Matcher.Similarity(c.Normalized, respondents) >= uc.cfg.SimilarityThreshold {
			matched = append(matched, c)
		}
	}
	if len(matched) != 1 {
		return domain.CompanyCandidate{}, domain.WrapError(domain.ErrAmbiguousCandidates, "select candidate",
			fmt.Errorf("%d candidates, %d match respondents %q", len(candidates), len(matched), doc.Respondents))
	}
	return matched[0], nil
}

func (uc *ProcessDocumentUseCase) resolve(ctx context.Context, candidate domain.CompanyCandidate) (*domain.ResolvedCompany, error) {
	lookupCtx := ctx
	if uc.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, uc.cfg.LookupTimeout)
		defer cancel()
	}

	company, err := uc.deps.Resolver.Resolve(lookupCtx, candidate.Normalized)
	if err != nil {
		if domain.IsKind(err, domain.ErrResolutionFailed) {
			return nil, err
		}
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = domain.WrapError(domain.ErrTemporary, "lookup timeout", err)
		}
		return nil, domain.WrapError(domain.ErrResolutionFailed, "resolve company", err)
	}
	if company == nil || company.Identifier == "" {
		return nil, domain.WrapError(domain.ErrResolutionFailed, "resolve company", fmt.Errorf("empty identity for %q", candidate.Normalized))
	}
	return company, nil
}

// persist reads before writing so an overwrite is reported.
func (uc *ProcessDocumentUseCase) persist(ctx context.Context, record domain.ExtractionRecord) (bool, error) {
	existing, err := uc.deps.Store.Get(ctx, record.Key())
	if err != nil && !domain.IsKind(err, domain.ErrRecordNotFound) {
		return false, fmt.Errorf("read existing record: %w", err)
	}
	if err := uc.deps.Store.Upsert(ctx, record); err != nil {
		return false, fmt.Errorf("upsert record: %w", err)
	}
	return existing != nil, nil
}

func (uc *ProcessDocumentUseCase) afterPersist(ctx context.Context, record domain.ExtractionRecord) {
	if uc.deps.Source != nil {
		if err := uc.deps.Source.MarkScraped(ctx, record.URL); err != nil {
			uc.deps.Logger.Warn("mark_scraped_failed", "url", record.URL, "error", err)
		}
	}
	if uc.deps.Events != nil {
		if err := uc.deps.Events.PublishRecordPersisted(ctx, RunIDFromContext(ctx), record); err != nil {
			uc.deps.Logger.Warn("record_event_publish_failed", "url", record.URL, "error", err)
		}
	}
}

// skipOrFail turns a stage error into a skip outcome. Cancellation of the caller's
// context is returned as an error instead.
func (uc *ProcessDocumentUseCase) skipOrFail(ctx context.Context, outcome domain.Outcome, fallback domain.SkipReason, err error) (domain.Outcome, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		outcome.Err = err
		return outcome, ctxErr
	}

	reason, ok := domain.SkipReasonOf(err)
	if !ok {
		reason = fallback
	}
	reachedState := outcome.State
	outcome.State = domain.StateSkipped
	outcome.SkipReason = reason
	outcome.Err = err

	uc.deps.Logger.Warn("document_skipped",
		"document_id", outcome.DocumentID,
		"url", outcome.URL,
		"reason", string(reason),
		"after_state", string(reachedState),
		"error", err,
	)
	return outcome, nil
}

type runIDKey struct{}

// WithRunID tags ctx with the batch run id used in published events.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func RunIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}
