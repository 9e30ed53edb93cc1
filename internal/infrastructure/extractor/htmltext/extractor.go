package htmltext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

const blockElements = "br,p,div,li,tr,h1,h2,h3,h4,h5,h6,title,center,blockquote,pre"

// Extractor converts AAER HTML releases to text with one line per block element.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, content []byte) (domain.ExtractedText, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrUnreadableDocument, "html parse", err)
	}

	doc.Find("script,style,noscript,head meta").Remove()
	doc.Find(blockElements).AfterHtml("\n")

	full := normalizeLines(doc.Find("body").Text())
	if full == "" {
		full = normalizeLines(doc.Text())
	}
	if full == "" {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrUnreadableDocument, "html extract", fmt.Errorf("no text content"))
	}

	return domain.ExtractedText{
		Full:     full,
		Headings: indexHeadings(doc, full),
		Pages:    1,
	}, nil
}

// indexHeadings locates bold and heading words in full text, in document order.
func indexHeadings(doc *goquery.Document, full string) domain.HeadingIndex {
	headings := domain.HeadingIndex{}
	cursor := 0
	doc.Find("b,strong,h1,h2,h3,h4,h5,h6").Each(func(_ int, s *goquery.Selection) {
		for _, word := range strings.Fields(s.Text()) {
			idx := strings.Index(full[cursor:], word)
			if idx < 0 {
				continue
			}
			offset := cursor + idx
			key := strings.ToLower(strings.Trim(word, `,;:'"`))
			if key != "" {
				headings[key] = append(headings[key], offset)
			}
			cursor = offset + len(word)
		}
	})
	return headings
}

func normalizeLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
