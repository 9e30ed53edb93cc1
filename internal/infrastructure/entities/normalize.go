package entities

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var suffixAliases = map[string]string{
	"CORPORATION":  "CORP",
	"INCORPORATED": "INC",
	"LIMITED":      "LTD",
	"COMPANY":      "CO",
}

// Normalize returns the comparison form of a company name: NFKC, upper case,
// punctuation removed, whitespace collapsed, and entity suffixes in canonical form.
func Normalize(name string) string {
	name = norm.NFKC.String(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '.' || r == '\'' || r == '’':
		case r == '&':
			b.WriteString(" & ")
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	for len(fields) > 0 && fields[0] == "THE" {
		fields = fields[1:]
	}
	for i, f := range fields {
		if canonical, ok := suffixAliases[f]; ok {
			fields[i] = canonical
		}
	}
	return strings.Join(fields, " ")
}

func canonicalSuffix(token string) string {
	t := strings.ToUpper(strings.NewReplacer(".", "", ",", "").Replace(token))
	if canonical, ok := suffixAliases[t]; ok {
		return canonical
	}
	return t
}
