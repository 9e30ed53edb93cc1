package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

// Extractor reads the text layer of a PDF and rebuilds reading order from glyph positions.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, content []byte) (out domain.ExtractedText, err error) {
	defer func() {
		// ledongthuc/pdf panics on some malformed content streams.
		if r := recover(); r != nil {
			out = domain.ExtractedText{}
			err = domain.WrapError(domain.ErrUnreadableDocument, "pdf extract", fmt.Errorf("reader panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrUnreadableDocument, "pdf open", err)
	}

	b := newLayoutBuilder()
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return domain.ExtractedText{}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		b.writePage(page.Content().Text)
	}

	full := b.String()
	if strings.TrimSpace(full) == "" {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrUnreadableDocument, "pdf extract", fmt.Errorf("no text layer in %d pages", pages))
	}
	return domain.ExtractedText{
		Full:     full,
		Headings: b.headings,
		Pages:    pages,
	}, nil
}

type layoutBuilder struct {
	sb       strings.Builder
	headings domain.HeadingIndex

	word      strings.Builder
	wordStart int
	wordBold  bool
}

func newLayoutBuilder() *layoutBuilder {
	return &layoutBuilder{headings: domain.HeadingIndex{}}
}

func (b *layoutBuilder) String() string {
	b.endWord()
	return b.sb.String()
}

func (b *layoutBuilder) writePage(glyphs []pdf.Text) {
	var prev *pdf.Text
	for i := range glyphs {
		g := glyphs[i]
		if g.S == "" {
			continue
		}
		if prev != nil {
			size := math.Max(g.FontSize, 1)
			switch {
			case math.Abs(g.Y-prev.Y) > size*0.5:
				b.writeBreak("\n")
			case g.X-(prev.X+prev.W) > size*0.15:
				b.writeBreak(" ")
			}
		}
		b.writeGlyph(g)
		prev = &glyphs[i]
	}
	b.writeBreak("\n")
}

func (b *layoutBuilder) writeBreak(sep string) {
	b.endWord()
	b.sb.WriteString(sep)
}

func (b *layoutBuilder) writeGlyph(g pdf.Text) {
	bold := strings.Contains(strings.ToLower(g.Font), "bold")
	for _, r := range g.S {
		if unicode.IsSpace(r) || strings.ContainsRune(`.,'"0123456789`, r) {
			b.endWord()
			b.sb.WriteRune(r)
			continue
		}
		if b.word.Len() == 0 {
			b.wordStart = b.sb.Len()
			b.wordBold = bold
		}
		b.wordBold = b.wordBold && bold
		b.word.WriteRune(r)
		b.sb.WriteRune(r)
	}
}

// endWord records the finished word in the heading index when every glyph was bold.
// Roman numerals get their trailing period so "I." and "II." are addressable.
func (b *layoutBuilder) endWord() {
	if b.word.Len() == 0 {
		return
	}
	if b.wordBold {
		key := strings.ToLower(b.word.String())
		if isRomanNumeral(key) {
			key += "."
		}
		b.headings[key] = append(b.headings[key], b.wordStart)
	}
	b.word.Reset()
	b.wordBold = false
}

func isRomanNumeral(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	return strings.Trim(s, "ivx") == ""
}
