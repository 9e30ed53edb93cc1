package usecase

import (
	"math"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

const (
	PeriodStrategyClassic     = "classic"
	PeriodStrategyStudentized = "studentized"

	SingleMentionUnset = "unset"
	SingleMentionPoint = "point"

	// Leave-one-out statistics need at least three other mentions to be meaningful.
	minStudentizedMentions = 4
)

type PeriodFilterConfig struct {
	Strategy        string
	Cutoff          float64
	MinSpreadMonths float64
	SingleMention   string
}

// PeriodFilter drops outlying date mentions and spans the rest.
//
// The classic strategy keeps mentions within Cutoff population standard deviations
// of the mean. The studentized strategy judges each mention against the mean and
// sample deviation of the other mentions, so a lone outlier cannot inflate the
// spread used to test it. Both repeat until no mention is removed, which makes
// Retain idempotent.
type PeriodFilter struct {
	cfg PeriodFilterConfig
}

func NewPeriodFilter(cfg PeriodFilterConfig) *PeriodFilter {
	if cfg.Cutoff <= 0 {
		cfg.Cutoff = 2
	}
	if cfg.MinSpreadMonths < 0 {
		cfg.MinSpreadMonths = 0
	}
	if cfg.Strategy == "" {
		cfg.Strategy = PeriodStrategyStudentized
	}
	if cfg.SingleMention == "" {
		cfg.SingleMention = SingleMentionUnset
	}
	return &PeriodFilter{cfg: cfg}
}

// Filter returns the span of retained mentions. ok is false when the period is unset.
func (f *PeriodFilter) Filter(mentions []domain.DateMention) (domain.FraudPeriod, bool) {
	valid := validMentions(mentions)
	if len(valid) == 0 {
		return domain.FraudPeriod{}, false
	}
	if len(valid) == 1 {
		if f.cfg.SingleMention == SingleMentionPoint {
			return spanOf(valid), true
		}
		return domain.FraudPeriod{}, false
	}

	retained := f.Retain(valid)
	if len(retained) < 2 {
		return domain.FraudPeriod{}, false
	}
	return spanOf(retained), true
}

// Retain returns the mentions that survive outlier removal, in input order.
func (f *PeriodFilter) Retain(mentions []domain.DateMention) []domain.DateMention {
	current := validMentions(mentions)
	for {
		keep := f.keepMask(current)
		next := current[:0:0]
		for i, m := range current {
			if keep[i] {
				next = append(next, m)
			}
		}
		if len(next) == len(current) {
			return current
		}
		current = next
	}
}

func (f *PeriodFilter) keepMask(mentions []domain.DateMention) []bool {
	keep := make([]bool, len(mentions))
	for i := range keep {
		keep[i] = true
	}
	if len(mentions) < 2 {
		return keep
	}

	xs := make([]float64, len(mentions))
	for i, m := range mentions {
		xs[i] = float64(m.Scalar())
	}

	if f.cfg.Strategy == PeriodStrategyClassic {
		mean, sd := meanStd(xs, 0)
		for i, x := range xs {
			keep[i] = math.Abs(x-mean) <= f.cfg.Cutoff*sd
		}
		return keep
	}

	if len(xs) < minStudentizedMentions {
		return keep
	}
	others := make([]float64, 0, len(xs)-1)
	for i, x := range xs {
		others = others[:0]
		others = append(others, xs[:i]...)
		others = append(others, xs[i+1:]...)

		mean, sd := meanStd(others, 1)
		sd = math.Max(sd, f.cfg.MinSpreadMonths)
		// Prediction-interval width for one new observation given the others.
		limit := f.cfg.Cutoff * sd * math.Sqrt(1+1/float64(len(others)))
		keep[i] = math.Abs(x-mean) <= limit
	}
	return keep
}

// meanStd returns the mean and standard deviation with ddof delta degrees of freedom.
func meanStd(xs []float64, ddof int) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs)-ddof <= 0 {
		return mean, 0
	}
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)-ddof))
}

func validMentions(mentions []domain.DateMention) []domain.DateMention {
	out := make([]domain.DateMention, 0, len(mentions))
	for _, m := range mentions {
		if m.Valid() {
			out = append(out, m)
		}
	}
	return out
}

func spanOf(mentions []domain.DateMention) domain.FraudPeriod {
	lo, hi := mentions[0].Scalar(), mentions[0].Scalar()
	for _, m := range mentions[1:] {
		s := m.Scalar()
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	start := domain.MentionFromScalar(lo)
	end := domain.MentionFromScalar(hi)
	return domain.FraudPeriod{
		YearStart:  start.Year,
		MonthStart: start.Month,
		YearEnd:    end.Year,
		MonthEnd:   end.Month,
	}
}
