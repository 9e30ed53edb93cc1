package chunking

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunk is a window of the source text. Offset is the byte position of Text in it.
type Chunk struct {
	Text   string
	Offset int
}

// Splitter cuts text into overlapping windows of at most ChunkSize bytes. Window
// edges fall on whitespace when possible so a date phrase is not cut in half.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 3000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	out := make([]Chunk, 0, len(text)/s.ChunkSize+1)
	start := 0
	for start < len(text) {
		end := s.windowEnd(text, start)
		if chunk := text[start:end]; strings.TrimSpace(chunk) != "" {
			out = append(out, Chunk{Text: chunk, Offset: start})
		}
		if end == len(text) {
			break
		}

		next := wordStart(text, end-s.Overlap, end)
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func (s *Splitter) windowEnd(text string, start int) int {
	end := start + s.ChunkSize
	if end >= len(text) {
		return len(text)
	}
	for i := end; i > start; i-- {
		if isSpaceAt(text, i) {
			return i
		}
	}
	// No whitespace in the window: cut on a rune boundary.
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	if end == start {
		_, size := utf8.DecodeRuneInString(text[start:])
		end = start + size
	}
	return end
}

// wordStart moves pos forward to the first byte of a word, looking no further than
// limit. Without a word break it only aligns pos to a rune boundary.
func wordStart(text string, pos, limit int) int {
	if pos <= 0 {
		return 0
	}
	for i := pos; i < limit; i++ {
		if isSpaceAt(text, i-1) {
			return i
		}
	}
	for pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos++
	}
	return pos
}

func isSpaceAt(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsSpace(r)
}
