package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kirillkom/aaer-miner/internal/config"
	"github.com/kirillkom/aaer-miner/internal/core/domain"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/entities"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/fuzzy"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/harm"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/tagger/rules"
)

const scenarioAText = "ACME CORP violated Section 21(c) between January 2015 and March 2016."

type pipeline struct {
	uc        *ProcessDocumentUseCase
	store     *memoryStore
	resolver  *resolverFake
	extractor *textExtractorFake
	source    *sourceFake
	events    *publisherFake
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	rulesCfg := config.DefaultRules()
	classifier, err := harm.NewClassifier(rulesCfg.HarmPatterns)
	if err != nil {
		t.Fatalf("harm.NewClassifier() error = %v", err)
	}

	p := &pipeline{
		store: newMemoryStore(),
		resolver: &resolverFake{companies: map[string]domain.ResolvedCompany{
			"ACME CORP":  {Identifier: "0001234", Ticker: "ACM", Name: "ACME CORP", Score: 1},
			"WIDGET INC": {Identifier: "0005678", Ticker: "WDG", Name: "WIDGET INC", Score: 1},
		}},
		extractor: &textExtractorFake{},
		source:    &sourceFake{},
		events:    &publisherFake{},
	}
	p.uc = NewProcessDocumentUseCase(ProcessDeps{
		Extractor: p.extractor,
		Finder:    entities.NewFinder(rulesCfg.EntitySuffixes),
		Resolver:  p.resolver,
		Tagger:    rules.NewTagger(),
		Periods:   defaultPeriodFilter(),
		Harm:      classifier,
		Matcher:   fuzzy.Matcher{},
		Store:     p.store,
		Source:    p.source,
		Events:    p.events,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, ProcessConfig{
		CandidateScope:      CandidateScopeSection,
		SimilarityThreshold: 0.85,
		LookupTimeout:       time.Second,
	})
	return p
}

func doc(url, text string) domain.SourceDocument {
	return domain.SourceDocument{ID: url, URL: url, Content: []byte(text)}
}

func TestProcessPersistsSingleCompanyRecord(t *testing.T) {
	p := newPipeline(t)
	ctx := WithRunID(context.Background(), "run-1")

	outcome, err := p.uc.Process(ctx, doc("https://www.sec.gov/aaer/1.pdf", scenarioAText))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome.State != domain.StatePersisted || outcome.Record == nil {
		t.Fatalf("expected persisted outcome, got %+v", outcome)
	}

	rec, err := p.store.Get(context.Background(), domain.RecordKey{Identifier: "0001234", URL: "https://www.sec.gov/aaer/1.pdf"})
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if rec.Ticker != "ACM" || rec.CompanyName != "ACME CORP" || !rec.ContainsHarm || !rec.Scraped {
		t.Fatalf("unexpected record %+v", rec)
	}
	period, ok := rec.Period()
	if !ok {
		t.Fatalf("expected period on record")
	}
	want := domain.FraudPeriod{YearStart: 2015, MonthStart: 1, YearEnd: 2016, MonthEnd: 3}
	if period != want {
		t.Fatalf("got period %+v want %+v", period, want)
	}
	if len(p.source.scraped) != 1 || p.source.scraped[0] != "https://www.sec.gov/aaer/1.pdf" {
		t.Fatalf("expected document marked scraped, got %v", p.source.scraped)
	}
	if len(p.events.runIDs) != 1 || p.events.runIDs[0] != "run-1" {
		t.Fatalf("expected one event with run id, got %v", p.events.runIDs)
	}
}

func TestProcessSkipsAmbiguousCandidates(t *testing.T) {
	p := newPipeline(t)

	outcome, err := p.uc.Process(context.Background(), doc("u2", "ACME CORP and WIDGET INC violated Section 21(c) in January 2015."))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !outcome.Skipped() || outcome.SkipReason != domain.SkipAmbiguousCandidates {
		t.Fatalf("expected ambiguous skip, got %+v", outcome)
	}
	if p.store.upserts != 0 {
		t.Fatalf("no record must be written, got %d upserts", p.store.upserts)
	}
	if len(p.resolver.calls) != 0 {
		t.Fatalf("resolver must not be called for ambiguous documents")
	}
}

func TestProcessDisambiguatesWithRespondents(t *testing.T) {
	p := newPipeline(t)
	d := doc("u3", "ACME CORP and WIDGET INC violated Section 21(c) between January 2015 and March 2016.")
	d.Respondents = "Widget, Inc., John Doe"

	outcome, err := p.uc.Process(context.Background(), d)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome.State != domain.StatePersisted || outcome.Record.Identifier != "0005678" {
		t.Fatalf("expected widget record, got %+v", outcome)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	p := newPipeline(t)
	d := doc("https://www.sec.gov/aaer/1.pdf", scenarioAText)

	first, err := p.uc.Process(context.Background(), d)
	if err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	second, err := p.uc.Process(context.Background(), d)
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}
	if first.Overwrote || !second.Overwrote {
		t.Fatalf("expected only the second run to overwrite: %v %v", first.Overwrote, second.Overwrote)
	}

	records, _ := p.store.List(context.Background())
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}
	if !first.Record.SameExtraction(records[0]) || !second.Record.SameExtraction(records[0]) {
		t.Fatalf("records differ: %+v vs %+v", *first.Record, records[0])
	}
}

func TestProcessSkipReasons(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(p *pipeline)
		text   string
		reason domain.SkipReason
	}{
		{
			name: "unreadable",
			setup: func(p *pipeline) {
				p.extractor.err = domain.WrapError(domain.ErrUnreadableDocument, "pdf", errors.New("no text layer"))
			},
			text:   scenarioAText,
			reason: domain.SkipUnreadableDocument,
		},
		{
			name:   "no candidate",
			setup:  func(*pipeline) {},
			text:   "The respondent violated Section 21(c) in January 2015.",
			reason: domain.SkipNoCandidateFound,
		},
		{
			name:   "resolution failed",
			setup:  func(*pipeline) {},
			text:   "GLOBEX LTD violated Section 21(c) in January 2015.",
			reason: domain.SkipResolutionFailed,
		},
		{
			name: "tagging unavailable",
			setup: func(p *pipeline) {
				p.uc.deps.Tagger = &taggerFake{err: errors.New("connection refused")}
			},
			text:   scenarioAText,
			reason: domain.SkipTaggingUnavailable,
		},
	}

	for _, tc := range cases {
		p := newPipeline(t)
		tc.setup(p)
		outcome, err := p.uc.Process(context.Background(), doc("u", tc.text))
		if err != nil {
			t.Fatalf("%s: Process() error = %v", tc.name, err)
		}
		if !outcome.Skipped() || outcome.SkipReason != tc.reason {
			t.Fatalf("%s: expected skip %s, got %+v", tc.name, tc.reason, outcome)
		}
		if p.store.upserts != 0 {
			t.Fatalf("%s: no record must be written", tc.name)
		}
	}
}

func TestProcessUsesSections(t *testing.T) {
	p := newPipeline(t)
	p.extractor.sections = map[domain.SectionName]string{
		domain.SectionITMO:    "In the Matter of ACME CORP, Respondent. Section 21C",
		domain.SectionSummary: "Summary from June 2012 through December 2013",
	}
	text := "WIDGET INC is mentioned outside the caption in January 2001 and March 2002."

	outcome, err := p.uc.Process(context.Background(), doc("u4", text))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome.State != domain.StatePersisted {
		t.Fatalf("expected persisted, got %+v", outcome)
	}
	rec := outcome.Record
	if rec.Identifier != "0001234" || rec.ITMOSection == "" || !rec.ContainsHarm {
		t.Fatalf("expected caption-scoped record, got %+v", rec)
	}
	period, _ := rec.Period()
	if period.YearStart != 2012 || period.YearEnd != 2013 {
		t.Fatalf("expected summary-scoped period, got %+v", period)
	}
}

func TestProcessLeavesPeriodUnsetWithoutDates(t *testing.T) {
	p := newPipeline(t)
	outcome, err := p.uc.Process(context.Background(), doc("u5", "ACME CORP violated the reporting provisions in fiscal 2015."))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome.State != domain.StatePersisted {
		t.Fatalf("expected persisted, got %+v", outcome)
	}
	if _, ok := outcome.Record.Period(); ok {
		t.Fatalf("expected unset period, got %+v", outcome.Record)
	}
	if outcome.Record.ContainsHarm {
		t.Fatalf("expected no harm flag")
	}
}

func TestProcessFetchesMissingContent(t *testing.T) {
	p := newPipeline(t)
	fetcher := &fetcherFake{payloads: map[string]domain.Payload{
		"https://www.sec.gov/aaer/9.pdf": {Content: []byte(scenarioAText), ContentType: "application/pdf"},
	}}
	p.uc.deps.Fetcher = fetcher

	outcome, err := p.uc.Process(context.Background(), domain.SourceDocument{ID: "9", URL: "https://www.sec.gov/aaer/9.pdf"})
	if err != nil || outcome.State != domain.StatePersisted {
		t.Fatalf("expected persisted after fetch, got %+v %v", outcome, err)
	}

	outcome, err = p.uc.Process(context.Background(), domain.SourceDocument{ID: "10", URL: "https://www.sec.gov/aaer/10.pdf"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome.SkipReason != domain.SkipUnreadableDocument {
		t.Fatalf("expected unreadable skip for failed fetch, got %+v", outcome)
	}
}

func TestProcessReturnsPersistenceErrors(t *testing.T) {
	p := newPipeline(t)
	p.store.upsertErr = errors.New("connection reset")

	outcome, err := p.uc.Process(context.Background(), doc("u6", scenarioAText))
	if err == nil {
		t.Fatalf("expected persistence error")
	}
	if outcome.Skipped() || outcome.Record != nil {
		t.Fatalf("persistence failure must not look like a skip or a success: %+v", outcome)
	}
	if len(p.source.scraped) != 0 {
		t.Fatalf("document must not be marked scraped")
	}
}
