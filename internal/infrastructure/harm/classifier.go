package harm

import (
	"fmt"
	"regexp"
)

// Classifier flags text that cites the statutory significant-harm provision.
type Classifier struct {
	patterns []*regexp.Regexp
}

func NewClassifier(patterns []string) (*Classifier, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile harm pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &Classifier{patterns: compiled}, nil
}

func (c *Classifier) ContainsHarm(text string) bool {
	for _, re := range c.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
