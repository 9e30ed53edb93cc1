package domain

import "time"

type ProcessingState string

const (
	StateFetched         ProcessingState = "fetched"
	StateExtracted       ProcessingState = "extracted"
	StateCandidatesFound ProcessingState = "candidates_found"
	StateSkipped         ProcessingState = "skipped"
	StateResolved        ProcessingState = "resolved"
	StateDatesFiltered   ProcessingState = "dates_filtered"
	StateClassified      ProcessingState = "classified"
	StatePersisted       ProcessingState = "persisted"
)

type SkipReason string

const (
	SkipUnreadableDocument  SkipReason = "unreadable_document"
	SkipNoCandidateFound    SkipReason = "no_candidate_found"
	SkipAmbiguousCandidates SkipReason = "ambiguous_candidates"
	SkipResolutionFailed    SkipReason = "resolution_failed"
	SkipTaggingUnavailable  SkipReason = "tagging_unavailable"
)

// Outcome describes where a single document ended up in the pipeline.
type Outcome struct {
	DocumentID string            `json:"document_id"`
	URL        string            `json:"url"`
	State      ProcessingState   `json:"state"`
	SkipReason SkipReason        `json:"skip_reason,omitempty"`
	Record     *ExtractionRecord `json:"record,omitempty"`
	Overwrote  bool              `json:"overwrote,omitempty"`
	Err        error             `json:"-"`
}

func (o Outcome) Skipped() bool {
	return o.State == StateSkipped
}

type BatchReport struct {
	RunID     string             `json:"run_id"`
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"duration"`
	Total     int                `json:"total"`
	Persisted int                `json:"persisted"`
	Failed    int                `json:"failed"`
	Skipped   map[SkipReason]int `json:"skipped"`
	Aborted   bool               `json:"aborted"`
}

func NewBatchReport(runID string, startedAt time.Time) BatchReport {
	return BatchReport{
		RunID:     runID,
		StartedAt: startedAt,
		Skipped:   make(map[SkipReason]int),
	}
}

func (r *BatchReport) Add(o Outcome) {
	r.Total++
	switch {
	case o.State == StatePersisted:
		r.Persisted++
	case o.Skipped():
		r.Skipped[o.SkipReason]++
	default:
		r.Failed++
	}
}
