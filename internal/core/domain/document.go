package domain

// SourceDocument is a row supplied by the upstream store. It is never mutated.
type SourceDocument struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Content     []byte `json:"-"`
	ContentType string `json:"content_type,omitempty"`
	Respondents string `json:"respondents,omitempty"`
}

// Payload is raw document bytes as returned by a fetcher.
type Payload struct {
	Content     []byte
	ContentType string
}

type SectionName string

const (
	SectionITMO    SectionName = "itmo"
	SectionSummary SectionName = "summary"
)

// HeadingIndex maps a lower-cased bold word to the byte offsets where it starts in Full.
type HeadingIndex map[string][]int

type ExtractedText struct {
	Full     string                 `json:"full"`
	Sections map[SectionName]string `json:"sections,omitempty"`
	Headings HeadingIndex           `json:"-"`
	Pages    int                    `json:"pages"`
}

// Section returns the named section, falling back to the full text when absent.
func (t ExtractedText) Section(name SectionName) (string, bool) {
	if s, ok := t.Sections[name]; ok && s != "" {
		return s, true
	}
	return t.Full, false
}
