package rules

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

var monthIndex = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var ordinalIndex = map[string]int{
	"first": 1, "1st": 1, "second": 2, "2nd": 2, "third": 3, "3rd": 3, "fourth": 4, "4th": 4,
}

var (
	monthYear = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(?:\d{1,2}(?:st|nd|rd|th)?,?\s+)?(\d{4})\b`)
	slashDate = regexp.MustCompile(`\b(\d{1,2})/(?:\d{1,2}/)?(\d{4})\b`)
	isoDate   = regexp.MustCompile(`\b(\d{4})-(\d{2})(?:-\d{2})?\b`)
	quarter   = regexp.MustCompile(`(?i)\b(first|second|third|fourth|1st|2nd|3rd|4th)\s+(?:fiscal\s+)?quarter\s+(?:of\s+)?(?:the\s+)?(?:fiscal\s+)?(?:year\s+)?(\d{4})\b`)
	quarterQ  = regexp.MustCompile(`(?i)\bQ([1-4])\s*(?:of\s+)?(?:FY\s*)?(\d{4})\b`)
	half      = regexp.MustCompile(`(?i)\b(first|second)\s+half\s+(?:of\s+)?(?:the\s+)?(?:fiscal\s+)?(?:year\s+)?(\d{4})\b`)
)

type match struct {
	start, end int
	mention    domain.DateMention
}

// Tagger finds month-resolvable date mentions with regular expressions. Bare years
// carry no month and are not reported.
type Tagger struct{}

func NewTagger() *Tagger {
	return &Tagger{}
}

func (t *Tagger) TagDates(_ context.Context, text string) ([]domain.DateMention, error) {
	var found []match
	collect := func(re *regexp.Regexp, build func(groups []string) (int, int, bool)) {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			groups := make([]string, len(loc)/2)
			for i := range groups {
				if loc[2*i] >= 0 {
					groups[i] = text[loc[2*i]:loc[2*i+1]]
				}
			}
			year, month, ok := build(groups)
			if !ok {
				continue
			}
			m := domain.DateMention{Year: year, Month: month, Offset: loc[0], Text: groups[0]}
			if m.Valid() {
				found = append(found, match{start: loc[0], end: loc[1], mention: m})
			}
		}
	}

	collect(monthYear, func(g []string) (int, int, bool) {
		month := monthIndex[strings.ToLower(g[1][:3])]
		year, err := strconv.Atoi(g[2])
		return year, month, err == nil && month > 0
	})
	collect(slashDate, func(g []string) (int, int, bool) {
		month, err1 := strconv.Atoi(g[1])
		year, err2 := strconv.Atoi(g[2])
		return year, month, err1 == nil && err2 == nil
	})
	collect(isoDate, func(g []string) (int, int, bool) {
		year, err1 := strconv.Atoi(g[1])
		month, err2 := strconv.Atoi(g[2])
		return year, month, err1 == nil && err2 == nil
	})
	collect(quarter, func(g []string) (int, int, bool) {
		q := ordinalIndex[strings.ToLower(g[1])]
		year, err := strconv.Atoi(g[2])
		return year, quarterStart(q), err == nil && q > 0
	})
	collect(quarterQ, func(g []string) (int, int, bool) {
		q, err1 := strconv.Atoi(g[1])
		year, err2 := strconv.Atoi(g[2])
		return year, quarterStart(q), err1 == nil && err2 == nil
	})
	collect(half, func(g []string) (int, int, bool) {
		year, err := strconv.Atoi(g[2])
		month := 1
		if strings.EqualFold(g[1], "second") {
			month = 7
		}
		return year, month, err == nil
	})

	return dropOverlaps(found), nil
}

func quarterStart(q int) int {
	return (q-1)*3 + 1
}

// dropOverlaps keeps the earliest, then longest, match of overlapping spans.
func dropOverlaps(found []match) []domain.DateMention {
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].start != found[j].start {
			return found[i].start < found[j].start
		}
		return found[i].end > found[j].end
	})
	out := make([]domain.DateMention, 0, len(found))
	lastEnd := -1
	for _, m := range found {
		if m.start < lastEnd {
			continue
		}
		out = append(out, m.mention)
		lastEnd = m.end
	}
	return out
}
