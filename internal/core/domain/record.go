package domain

import "time"

// ExtractionRecord is the persisted output, keyed by (Identifier, URL).
type ExtractionRecord struct {
	Identifier   string    `json:"identifier" firestore:"identifier"`
	URL          string    `json:"url" firestore:"url"`
	CompanyName  string    `json:"company_name" firestore:"company_name"`
	Ticker       string    `json:"ticker" firestore:"ticker"`
	ITMOSection  string    `json:"itmo_section" firestore:"itmo_section"`
	ContainsHarm bool      `json:"contains_harm_flag" firestore:"contains_harm_flag"`
	YearStart    *int      `json:"year_start,omitempty" firestore:"year_start,omitempty"`
	MonthStart   *int      `json:"month_start,omitempty" firestore:"month_start,omitempty"`
	YearEnd      *int      `json:"year_end,omitempty" firestore:"year_end,omitempty"`
	MonthEnd     *int      `json:"month_end,omitempty" firestore:"month_end,omitempty"`
	Scraped      bool      `json:"scraped_flag" firestore:"scraped_flag"`
	ProcessedAt  time.Time `json:"processed_at" firestore:"processed_at"`
}

type RecordKey struct {
	Identifier string
	URL        string
}

func (r ExtractionRecord) Key() RecordKey {
	return RecordKey{Identifier: r.Identifier, URL: r.URL}
}

func (r *ExtractionRecord) SetPeriod(p FraudPeriod) {
	r.YearStart = intPtr(p.YearStart)
	r.MonthStart = intPtr(p.MonthStart)
	r.YearEnd = intPtr(p.YearEnd)
	r.MonthEnd = intPtr(p.MonthEnd)
}

// Period returns the fraud period when all four fields are set.
func (r ExtractionRecord) Period() (FraudPeriod, bool) {
	if r.YearStart == nil || r.MonthStart == nil || r.YearEnd == nil || r.MonthEnd == nil {
		return FraudPeriod{}, false
	}
	return FraudPeriod{
		YearStart:  *r.YearStart,
		MonthStart: *r.MonthStart,
		YearEnd:    *r.YearEnd,
		MonthEnd:   *r.MonthEnd,
	}, true
}

// SameExtraction compares every extracted field. ProcessedAt is bookkeeping and is
// ignored, so re-processing an unchanged document yields an equal record.
func (r ExtractionRecord) SameExtraction(other ExtractionRecord) bool {
	return r.Identifier == other.Identifier &&
		r.URL == other.URL &&
		r.CompanyName == other.CompanyName &&
		r.Ticker == other.Ticker &&
		r.ITMOSection == other.ITMOSection &&
		r.ContainsHarm == other.ContainsHarm &&
		r.Scraped == other.Scraped &&
		sameInt(r.YearStart, other.YearStart) &&
		sameInt(r.MonthStart, other.MonthStart) &&
		sameInt(r.YearEnd, other.YearEnd) &&
		sameInt(r.MonthEnd, other.MonthEnd)
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtr(v int) *int {
	return &v
}
