package rules

import (
	"context"
	"testing"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

func tag(t *testing.T, text string) []domain.DateMention {
	t.Helper()
	got, err := NewTagger().TagDates(context.Background(), text)
	if err != nil {
		t.Fatalf("TagDates() error = %v", err)
	}
	return got
}

func TestTagDatesRecognizesFormats(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"in January 2015 the company", "2015-01"},
		{"on March 31, 2016, it filed", "2016-03"},
		{"as of Sept. 2014", "2014-09"},
		{"period 07/2013 only", "2013-07"},
		{"dated 2012-11-05", "2012-11"},
		{"during the third quarter of 2015", "2015-07"},
		{"for the fourth quarter of fiscal 2014", "2014-10"},
		{"reported Q2 2011 revenue", "2011-04"},
		{"in the second half of 2010", "2010-07"},
	}
	for _, tc := range cases {
		got := tag(t, tc.text)
		if len(got) != 1 {
			t.Fatalf("%q: expected one mention, got %+v", tc.text, got)
		}
		if got[0].String() != tc.want {
			t.Fatalf("%q: got %s want %s", tc.text, got[0], tc.want)
		}
	}
}

func TestTagDatesIgnoresBareYearsAndInvalidMonths(t *testing.T) {
	if got := tag(t, "In fiscal 2015 and 2016 the company restated; see 13/2015."); len(got) != 0 {
		t.Fatalf("expected no mentions, got %+v", got)
	}
}

func TestTagDatesKeepsDocumentOrderAndOffsets(t *testing.T) {
	text := "between January 2015 and March 2016"
	got := tag(t, text)
	if len(got) != 2 {
		t.Fatalf("expected two mentions, got %+v", got)
	}
	if got[0].String() != "2015-01" || got[1].String() != "2016-03" {
		t.Fatalf("unexpected order %+v", got)
	}
	if text[got[1].Offset:got[1].Offset+len(got[1].Text)] != "March 2016" {
		t.Fatalf("unexpected offset for %+v", got[1])
	}
}
