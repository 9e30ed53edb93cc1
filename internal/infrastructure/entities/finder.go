package entities

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

const maxNameTokens = 8

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'’&.\-]*|&`)

var connectors = map[string]struct{}{
	"AND": {}, "OF": {}, "THE": {}, "&": {}, "FOR": {}, "DE": {},
}

// Words that open or sit inside enforcement boilerplate rather than company names.
var stopWords = map[string]struct{}{
	"IN": {}, "MATTER": {}, "RESPONDENT": {}, "RESPONDENTS": {}, "COMMISSION": {},
	"ORDER": {}, "SECTION": {}, "RULE": {}, "ACT": {}, "PURSUANT": {}, "AGAINST": {},
	"ADMINISTRATIVE": {}, "PROCEEDING": {}, "PROCEEDINGS": {}, "FILE": {}, "RELEASE": {},
	"NO": {}, "SEC": {}, "WHEREAS": {}, "ON": {}, "BY": {}, "FROM": {}, "TO": {},
}

// Bodies and statutes whose names end in an entity suffix. A span directly followed
// by "ACT" ("INVESTMENT COMPANY ACT OF 1940") is a statute as well.
var institutionalNames = map[string]struct{}{
	"PUBLIC CO":                 {},
	"INVESTMENT CO":             {},
	"BANK HOLDING CO":           {},
	"PUBLIC UTILITY HOLDING CO": {},
}

type token struct {
	index int
	text  string
	upper string
	start int
	end   int
}

// Finder proposes company-name candidates ending in a recognized entity suffix.
type Finder struct {
	suffixes map[string]struct{}
}

func NewFinder(suffixes []string) *Finder {
	set := make(map[string]struct{}, len(suffixes))
	for _, s := range suffixes {
		if s = canonicalSuffix(strings.TrimSpace(s)); s != "" {
			set[s] = struct{}{}
		}
	}
	return &Finder{suffixes: set}
}

// Find returns distinct candidates in order of first appearance.
func (f *Finder) Find(text string) []domain.CompanyCandidate {
	tokens := tokenize(text)
	seen := make(map[string]struct{})
	out := make([]domain.CompanyCandidate, 0)

	for _, run := range f.runs(text, tokens) {
		for _, span := range f.candidateSpans(run) {
			raw := collapseSpace(text[span[0].start:span[len(span)-1].end])
			raw = strings.TrimRight(raw, ",;:")
			normalized := Normalize(raw)
			if normalized == "" || namesStatute(tokens, span) {
				continue
			}
			if _, ok := institutionalNames[normalized]; ok {
				continue
			}
			if _, dup := seen[normalized]; dup {
				continue
			}
			seen[normalized] = struct{}{}
			out = append(out, domain.CompanyCandidate{
				Raw:        raw,
				Normalized: normalized,
				Offset:     span[0].start,
			})
		}
	}
	return out
}

// runs groups consecutive name-like tokens separated only by whitespace, or by a
// comma directly before an entity suffix ("Acme, Inc.").
func (f *Finder) runs(text string, tokens []token) [][]token {
	var out [][]token
	var cur []token

	flush := func() {
		if len(cur) > 0 {
			out = append(out, cur)
		}
		cur = nil
	}

	for _, tok := range tokens {
		if !f.nameLike(tok) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			gap := text[prev.end:tok.start]
			if !gapContinues(gap, f.isSuffix(tok)) || closesSentence(prev, f.isSuffix(prev)) {
				flush()
			}
		}
		if len(cur) == 0 && isConnector(tok) {
			continue
		}
		cur = append(cur, tok)
	}
	flush()
	return out
}

// candidateSpans cuts a run after every suffix token that is not immediately
// followed by another suffix token, and keeps only the pieces ending in a suffix.
func (f *Finder) candidateSpans(run []token) [][]token {
	var out [][]token
	start := 0
	for i := 0; i < len(run); i++ {
		if !f.isSuffix(run[i]) {
			continue
		}
		if i+1 < len(run) && f.isSuffix(run[i+1]) {
			continue
		}
		span := trimConnectors(run[start : i+1])
		if len(span) > maxNameTokens {
			span = trimConnectors(span[len(span)-maxNameTokens:])
		}
		if hasNameToken(span, f) {
			out = append(out, span)
		}
		start = i + 1
	}
	return out
}

func namesStatute(tokens []token, span []token) bool {
	next := span[len(span)-1].index + 1
	if next >= len(tokens) {
		return false
	}
	return strings.TrimRight(tokens[next].upper, ".") == "ACT"
}

func (f *Finder) isSuffix(tok token) bool {
	if !startsUpper(tok.text) {
		return false
	}
	_, ok := f.suffixes[canonicalSuffix(tok.text)]
	return ok
}

func (f *Finder) nameLike(tok token) bool {
	if isConnector(tok) {
		return true
	}
	word := strings.TrimRight(tok.upper, ".")
	if _, stop := stopWords[word]; stop {
		return false
	}
	r, _ := utf8.DecodeRuneInString(tok.text)
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}

func hasNameToken(span []token, f *Finder) bool {
	for _, tok := range span {
		if !f.isSuffix(tok) && !isConnector(tok) {
			return true
		}
	}
	return false
}

func isConnector(tok token) bool {
	_, ok := connectors[tok.upper]
	return ok
}

func trimConnectors(span []token) []token {
	for len(span) > 0 && isConnector(span[0]) {
		span = span[1:]
	}
	for len(span) > 0 && isConnector(span[len(span)-1]) {
		span = span[:len(span)-1]
	}
	return span
}

func gapContinues(gap string, nextIsSuffix bool) bool {
	trimmed := strings.TrimSpace(gap)
	if trimmed == "" {
		return true
	}
	return trimmed == "," && nextIsSuffix
}

// closesSentence reports a word like "fraud." that ends a sentence. Suffixes
// ("Inc.") and dotted abbreviations ("U.S.") do not.
func closesSentence(tok token, isSuffix bool) bool {
	if isSuffix || !strings.HasSuffix(tok.text, ".") {
		return false
	}
	body := strings.TrimSuffix(tok.text, ".")
	return len(body) > 1 && !strings.Contains(body, ".")
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func tokenize(text string) []token {
	locs := tokenPattern.FindAllStringIndex(text, -1)
	out := make([]token, 0, len(locs))
	for i, loc := range locs {
		t := text[loc[0]:loc[1]]
		out = append(out, token{
			index: i,
			text:  t,
			upper: strings.ToUpper(t),
			start: loc[0],
			end:   loc[1],
		})
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (f *Finder) Normalize(name string) string {
	return Normalize(name)
}
