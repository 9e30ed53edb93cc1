package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

type Format string

const (
	FormatPDF   Format = "pdf"
	FormatHTML  Format = "html"
	FormatPlain Format = "plain"
)

// FormatExtractor turns raw bytes of one format into text.
type FormatExtractor interface {
	Extract(ctx context.Context, content []byte) (domain.ExtractedText, error)
}

// SectionSplitter derives named sections from extracted text.
type SectionSplitter interface {
	Split(text domain.ExtractedText) map[domain.SectionName]string
}

// Router picks a format extractor for a document and attaches its sections.
type Router struct {
	extractors map[Format]FormatExtractor
	sections   SectionSplitter
}

func NewRouter(extractors map[Format]FormatExtractor, sections SectionSplitter) *Router {
	return &Router{extractors: extractors, sections: sections}
}

func (r *Router) Extract(ctx context.Context, doc domain.SourceDocument) (domain.ExtractedText, error) {
	if len(doc.Content) == 0 {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrUnreadableDocument, "extract", fmt.Errorf("empty content for %s", doc.URL))
	}

	format, ok := DetectFormat(doc)
	if !ok {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrUnreadableDocument, "extract", fmt.Errorf("unsupported format for %s", doc.URL))
	}
	ex, ok := r.extractors[format]
	if !ok {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrUnreadableDocument, "extract", fmt.Errorf("no extractor for %s", format))
	}

	text, err := ex.Extract(ctx, doc.Content)
	if err != nil {
		return domain.ExtractedText{}, err
	}
	if r.sections != nil {
		text.Sections = r.sections.Split(text)
	}
	return text, nil
}

// DetectFormat checks PDF magic bytes first, then the declared content type, the URL
// extension, and finally sniffs HTML or UTF-8 text.
func DetectFormat(doc domain.SourceDocument) (Format, bool) {
	if bytes.HasPrefix(doc.Content, []byte("%PDF-")) {
		return FormatPDF, true
	}

	ct := strings.ToLower(doc.ContentType)
	switch {
	case strings.Contains(ct, "pdf"):
		return FormatPDF, true
	case strings.Contains(ct, "html"):
		return FormatHTML, true
	case strings.HasPrefix(ct, "text/plain"):
		return FormatPlain, true
	}

	switch urlExtension(doc.URL) {
	case ".pdf":
		return FormatPDF, true
	case ".htm", ".html":
		return FormatHTML, true
	case ".txt":
		return FormatPlain, true
	}

	head := doc.Content
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	if bytes.Contains(lower, []byte("<html")) || bytes.Contains(lower, []byte("<!doctype html")) {
		return FormatHTML, true
	}
	if utf8.Valid(doc.Content) {
		return FormatPlain, true
	}
	return "", false
}

func urlExtension(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}
