package sections

import (
	"strings"
	"testing"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

const releaseText = `UNITED STATES OF AMERICA
Before the
SECURITIES AND EXCHANGE COMMISSION
In the Matter of
ACME CORP,
Respondent.
ORDER INSTITUTING CEASE-AND-DESIST PROCEEDINGS
I.
The Securities and Exchange Commission deems it appropriate.
Summary
Between January 2015 and March 2016 ACME CORP overstated revenue.
Respondent
1. ACME CORP is a Delaware corporation.`

func TestSplitUsesTextMarkers(t *testing.T) {
	sections := NewSplitter().Split(domain.ExtractedText{Full: releaseText})

	itmo, ok := sections[domain.SectionITMO]
	if !ok {
		t.Fatalf("expected itmo section")
	}
	if !strings.HasPrefix(itmo, "In the Matter of") || !strings.HasSuffix(itmo, "PROCEEDINGS") {
		t.Fatalf("unexpected itmo section %q", itmo)
	}

	summary, ok := sections[domain.SectionSummary]
	if !ok {
		t.Fatalf("expected summary section")
	}
	if summary != "Summary\nBetween January 2015 and March 2016 ACME CORP overstated revenue." {
		t.Fatalf("unexpected summary %q", summary)
	}
}

func TestSplitPrefersHeadingIndex(t *testing.T) {
	full := "In the Matter of WIDGET INC I. Findings Summary fraud ran in 2014 Respondents WIDGET"
	headings := domain.HeadingIndex{
		"in":          {0},
		"i.":          {28},
		"summary":     {40},
		"respondents": {66},
	}

	sections := NewSplitter().Split(domain.ExtractedText{Full: full, Headings: headings})
	if got := sections[domain.SectionITMO]; got != "In the Matter of WIDGET INC" {
		t.Fatalf("unexpected itmo %q", got)
	}
	if got := sections[domain.SectionSummary]; got != "Summary fraud ran in 2014" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestSplitWithoutMarkersLeavesSectionsAbsent(t *testing.T) {
	sections := NewSplitter().Split(domain.ExtractedText{Full: "ACME CORP violated Section 21(c) between January 2015 and March 2016."})
	if len(sections) != 0 {
		t.Fatalf("expected no sections, got %v", sections)
	}
}

func TestSplitFallsBackToOrderPhrase(t *testing.T) {
	text := "In the Matter of ACME CORP\nI. Findings\nOn the basis of this Order and Respondent's Offer, the Commission finds that in 2015 revenue was misstated."
	sections := NewSplitter().Split(domain.ExtractedText{Full: text})
	summary := sections[domain.SectionSummary]
	if !strings.HasPrefix(summary, "On the basis of this Order and") || !strings.HasSuffix(summary, "misstated.") {
		t.Fatalf("unexpected summary %q", summary)
	}
}
