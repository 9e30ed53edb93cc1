package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/chunking"
)

// TextSplitter cuts long text into overlapping windows.
type TextSplitter interface {
	Split(text string) []chunking.Chunk
}

// DateTagger asks a local model for date mentions, one window of text at a time.
type DateTagger struct {
	client   *Client
	splitter TextSplitter
}

func NewDateTagger(client *Client, splitter TextSplitter) *DateTagger {
	return &DateTagger{client: client, splitter: splitter}
}

type dateItem struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Text  string `json:"text"`
}

func (t *DateTagger) TagDates(ctx context.Context, text string) ([]domain.DateMention, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	type key struct{ offset, scalar int }
	seen := make(map[key]struct{})
	out := make([]domain.DateMention, 0)

	for _, chunk := range t.splitter.Split(text) {
		items, err := t.tagChunk(ctx, chunk.Text)
		if err != nil {
			return nil, domain.WrapError(domain.ErrTaggingUnavailable, "ollama tag dates", err)
		}

		// A text repeated by the model is located after its previous occurrence.
		cursor := make(map[string]int)
		for _, item := range items {
			m := domain.DateMention{Year: item.Year, Month: item.Month, Text: strings.TrimSpace(item.Text), Offset: chunk.Offset}
			if !m.Valid() {
				continue
			}
			if m.Text != "" {
				from := cursor[m.Text]
				idx := strings.Index(chunk.Text[from:], m.Text)
				if idx < 0 && from > 0 {
					// more repeats than occurrences in the window
					continue
				}
				if idx >= 0 {
					m.Offset = chunk.Offset + from + idx
					cursor[m.Text] = from + idx + len(m.Text)
				}
			}
			k := key{offset: m.Offset, scalar: m.Scalar()}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *DateTagger) tagChunk(ctx context.Context, chunk string) ([]dateItem, error) {
	raw, err := t.client.generateJSON(ctx, buildDatePrompt(chunk))
	if err != nil {
		return nil, err
	}
	data := []byte(extractJSONObject(raw))
	if err := validateDateResponse(data); err != nil {
		return nil, err
	}
	var parsed struct {
		Dates []dateItem `json:"dates"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse dates json: %w", err)
	}
	return parsed.Dates, nil
}
