package sections

import (
	"regexp"
	"strings"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

var (
	captionStart   = regexp.MustCompile(`(?i)in\s+the\s+matter\s+of`)
	captionEnd     = regexp.MustCompile(`(?m)^\s*I\.\s`)
	summaryHeading = regexp.MustCompile(`(?im)^\s*summary\s*$`)
	summaryOrder   = regexp.MustCompile(`(?i)on\s+the\s+basis\s+of\s+this\s+order\s+and`)
	summaryEnd     = regexp.MustCompile(`(?m)^\s*Respondents?\s*$`)
)

// Splitter derives the caption ("In the Matter of" up to "I.") and summary sections.
// Bold headings are preferred when the extractor indexed them; plain text markers are
// the fallback. A section whose markers are missing is simply left out.
type Splitter struct{}

func NewSplitter() *Splitter {
	return &Splitter{}
}

func (s *Splitter) Split(text domain.ExtractedText) map[domain.SectionName]string {
	out := make(map[domain.SectionName]string, 2)
	full := text.Full

	itmoStart, itmoEnd := captionBounds(full, text.Headings)
	if itmoStart >= 0 && itmoEnd > itmoStart {
		if section := strings.TrimSpace(full[itmoStart:itmoEnd]); section != "" {
			out[domain.SectionITMO] = section
		}
	}

	sumStart, sumEnd := summaryBounds(full, text.Headings)
	if sumStart >= 0 {
		// A summary located inside or before the caption means the markers misfired;
		// everything after the caption is used instead.
		if itmoEnd > 0 && sumStart < itmoStart {
			sumStart, sumEnd = itmoEnd, len(full)
		}
		if section := strings.TrimSpace(full[sumStart:sumEnd]); section != "" {
			out[domain.SectionSummary] = section
		}
	}
	return out
}

func captionBounds(full string, headings domain.HeadingIndex) (int, int) {
	start := -1
	if offsets := headings["in"]; len(offsets) > 0 {
		start = offsets[0]
	} else if loc := captionStart.FindStringIndex(full); loc != nil {
		start = loc[0]
	}
	if start < 0 {
		return -1, -1
	}

	if end := firstAfter(headings["i."], start); end > 0 {
		return start, end
	}
	if loc := captionEnd.FindStringIndex(full[start:]); loc != nil {
		return start, start + loc[0]
	}
	return -1, -1
}

func summaryBounds(full string, headings domain.HeadingIndex) (int, int) {
	start := -1
	if offsets := headings["summary"]; len(offsets) > 0 {
		start = offsets[0]
	} else if loc := summaryHeading.FindStringIndex(full); loc != nil {
		start = loc[0]
	} else if loc := summaryOrder.FindStringIndex(full); loc != nil {
		start = loc[0]
	}
	if start < 0 {
		return -1, -1
	}

	if len(headings) > 0 {
		for _, key := range []string{"respondent", "respondents"} {
			if end := firstAfter(headings[key], start); end > 0 {
				return start, end
			}
		}
		if end := nextHeading(headings, start); end > 0 {
			return start, end
		}
		return start, len(full)
	}

	if loc := summaryEnd.FindStringIndex(full[start:]); loc != nil && loc[0] > 0 {
		return start, start + loc[0]
	}
	return start, len(full)
}

func firstAfter(offsets []int, after int) int {
	for _, off := range offsets {
		if off > after {
			return off
		}
	}
	return -1
}

// nextHeading returns the closest bold word starting after the summary heading word.
func nextHeading(headings domain.HeadingIndex, after int) int {
	best := -1
	for key, offsets := range headings {
		if key == "summary" {
			continue
		}
		if off := firstAfter(offsets, after); off > 0 && (best < 0 || off < best) {
			best = off
		}
	}
	return best
}
