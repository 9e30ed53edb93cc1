package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, content []byte) (domain.ExtractedText, error) {
	raw := bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(raw) {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrUnreadableDocument, "plaintext extract", fmt.Errorf("content is not valid utf-8"))
	}

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrUnreadableDocument, "plaintext extract", fmt.Errorf("empty document"))
	}
	return domain.ExtractedText{Full: text, Pages: 1}, nil
}
