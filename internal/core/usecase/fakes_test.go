package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

type memoryStore struct {
	mu        sync.Mutex
	records   map[domain.RecordKey]domain.ExtractionRecord
	upserts   int
	getErr    error
	upsertErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[domain.RecordKey]domain.ExtractionRecord)}
}

func (s *memoryStore) Upsert(_ context.Context, rec domain.ExtractionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	s.records[rec.Key()] = rec
	return nil
}

func (s *memoryStore) Get(_ context.Context, key domain.RecordKey) (*domain.ExtractionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "memory get", errors.New(key.URL))
	}
	return &rec, nil
}

func (s *memoryStore) List(context.Context) ([]domain.ExtractionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ExtractionRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

type textExtractorFake struct {
	sections map[domain.SectionName]string
	err      error
}

func (f *textExtractorFake) Extract(_ context.Context, doc domain.SourceDocument) (domain.ExtractedText, error) {
	if f.err != nil {
		return domain.ExtractedText{}, f.err
	}
	return domain.ExtractedText{Full: string(doc.Content), Sections: f.sections, Pages: 1}, nil
}

type resolverFake struct {
	mu        sync.Mutex
	companies map[string]domain.ResolvedCompany
	err       error
	calls     []string
}

func (f *resolverFake) Resolve(_ context.Context, name string) (*domain.ResolvedCompany, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.companies[name]
	if !ok {
		return nil, domain.WrapError(domain.ErrResolutionFailed, "fake resolve", errors.New(name))
	}
	return &c, nil
}

type taggerFake struct {
	mentions []domain.DateMention
	err      error
}

func (f *taggerFake) TagDates(context.Context, string) ([]domain.DateMention, error) {
	return f.mentions, f.err
}

type fetcherFake struct {
	payloads map[string]domain.Payload
	calls    int
}

func (f *fetcherFake) Fetch(_ context.Context, url string) (domain.Payload, error) {
	f.calls++
	p, ok := f.payloads[url]
	if !ok {
		return domain.Payload{}, domain.WrapError(domain.ErrDocumentNotFound, "fake fetch", errors.New(url))
	}
	return p, nil
}

type sourceFake struct {
	mu      sync.Mutex
	docs    []domain.SourceDocument
	listErr error
	scraped []string
}

func (f *sourceFake) ListPending(context.Context) ([]domain.SourceDocument, error) {
	return f.docs, f.listErr
}

func (f *sourceFake) GetByURL(_ context.Context, url string) (*domain.SourceDocument, error) {
	for _, d := range f.docs {
		if d.URL == url {
			doc := d
			return &doc, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "fake source", errors.New(url))
}

func (f *sourceFake) MarkScraped(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scraped = append(f.scraped, url)
	return nil
}

type publisherFake struct {
	mu     sync.Mutex
	runIDs []string
	urls   []string
}

func (f *publisherFake) PublishRecordPersisted(_ context.Context, runID string, rec domain.ExtractionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runIDs = append(f.runIDs, runID)
	f.urls = append(f.urls, rec.URL)
	return nil
}

type batchObserverFake struct {
	mu       sync.Mutex
	started  int
	finished []domain.Outcome
	reports  []domain.BatchReport
}

func (f *batchObserverFake) StartDocument() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *batchObserverFake) FinishDocument(o domain.Outcome, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, o)
}

func (f *batchObserverFake) FinishBatch(r domain.BatchReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
}
