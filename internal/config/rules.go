package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules are the tunable extraction parameters. They can be overridden by a YAML file.
type Rules struct {
	EntitySuffixes      []string    `yaml:"entity_suffixes"`
	HarmPatterns        []string    `yaml:"harm_patterns"`
	SimilarityThreshold float64     `yaml:"similarity_threshold"`
	CandidateScope      string      `yaml:"candidate_scope"`
	Period              PeriodRules `yaml:"period"`
}

type PeriodRules struct {
	Strategy        string  `yaml:"strategy"`
	Cutoff          float64 `yaml:"cutoff"`
	MinSpreadMonths float64 `yaml:"min_spread_months"`
	SingleMention   string  `yaml:"single_mention"`
}

func DefaultRules() Rules {
	return Rules{
		EntitySuffixes: []string{
			"LLC", "LLP", "LP", "CORP", "CORPORATION", "INC", "INCORPORATED",
			"CO", "COMPANY", "LTD", "LIMITED", "PLC", "HOLDINGS", "INTERNATIONAL",
		},
		HarmPatterns: []string{
			`(?i)section\s*21\s*\(\s*c\s*\)`,
			`(?i)\b21\s?c\b`,
		},
		SimilarityThreshold: 0.85,
		CandidateScope:      "section",
		Period: PeriodRules{
			Strategy:        "studentized",
			Cutoff:          2.0,
			MinSpreadMonths: 1,
			SingleMention:   "unset",
		},
	}
}

// LoadRules reads a YAML rules file on top of base. Fields absent from the file keep
// their base values.
func LoadRules(path string, base Rules) (Rules, error) {
	if path == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read rules file: %w", err)
	}

	out := base
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return base, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if err := out.Validate(); err != nil {
		return base, fmt.Errorf("rules file %s: %w", path, err)
	}
	return out, nil
}

// ApplyRulesFile layers RULES_FILE over the env-derived rules and validates the
// result, so every entrypoint runs with the same thresholds.
func (c Config) ApplyRulesFile() (Config, error) {
	rules, err := LoadRules(c.RulesFile, c.Rules)
	if err != nil {
		return c, err
	}
	if err := rules.Validate(); err != nil {
		return c, fmt.Errorf("validate rules: %w", err)
	}
	c.Rules = rules
	return c, nil
}

func (r Rules) Validate() error {
	if len(r.EntitySuffixes) == 0 {
		return fmt.Errorf("entity_suffixes must not be empty")
	}
	if r.SimilarityThreshold <= 0 || r.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0,1], got %v", r.SimilarityThreshold)
	}
	if r.Period.Cutoff <= 0 {
		return fmt.Errorf("period.cutoff must be positive, got %v", r.Period.Cutoff)
	}
	switch r.Period.Strategy {
	case "classic", "studentized":
	default:
		return fmt.Errorf("unknown period.strategy %q", r.Period.Strategy)
	}
	switch r.Period.SingleMention {
	case "unset", "point":
	default:
		return fmt.Errorf("unknown period.single_mention %q", r.Period.SingleMention)
	}
	switch r.CandidateScope {
	case "section", "full":
	default:
		return fmt.Errorf("unknown candidate_scope %q", r.CandidateScope)
	}
	return nil
}
