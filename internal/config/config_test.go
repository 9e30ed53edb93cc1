package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "")
	t.Setenv("PERIOD_CUTOFF", "")
	t.Setenv("BATCH_INTERVAL", "")
	t.Setenv("BATCH_WORKERS", "")
	t.Setenv("RESOLVER_BACKEND", "")

	cfg := Load()
	if cfg.Rules.SimilarityThreshold != 0.85 {
		t.Fatalf("expected default similarity threshold 0.85, got %v", cfg.Rules.SimilarityThreshold)
	}
	if cfg.Rules.Period.Cutoff != 2.0 {
		t.Fatalf("expected default period cutoff 2.0, got %v", cfg.Rules.Period.Cutoff)
	}
	if cfg.BatchInterval != 750*time.Millisecond {
		t.Fatalf("expected default batch interval 750ms, got %s", cfg.BatchInterval)
	}
	if cfg.BatchWorkers != 1 {
		t.Fatalf("expected sequential batch by default, got %d workers", cfg.BatchWorkers)
	}
	if cfg.ResolverBackend != "directory" {
		t.Fatalf("expected directory resolver by default, got %q", cfg.ResolverBackend)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("PERIOD_CUTOFF", "2.5")
	t.Setenv("PERIOD_SINGLE_MENTION", "point")
	t.Setenv("BATCH_INTERVAL", "2s")
	t.Setenv("ENTITY_SUFFIXES", "LLC, INC ,")
	t.Setenv("BREAKER_CONSECUTIVE_FAILURES", "3")

	cfg := Load()
	if cfg.Rules.SimilarityThreshold != 0.9 {
		t.Fatalf("expected similarity threshold override, got %v", cfg.Rules.SimilarityThreshold)
	}
	if cfg.Rules.Period.Cutoff != 2.5 {
		t.Fatalf("expected cutoff override, got %v", cfg.Rules.Period.Cutoff)
	}
	if cfg.Rules.Period.SingleMention != "point" {
		t.Fatalf("expected single mention override, got %q", cfg.Rules.Period.SingleMention)
	}
	if cfg.BatchInterval != 2*time.Second {
		t.Fatalf("expected batch interval 2s, got %s", cfg.BatchInterval)
	}
	if len(cfg.Rules.EntitySuffixes) != 2 || cfg.Rules.EntitySuffixes[1] != "INC" {
		t.Fatalf("unexpected suffixes: %v", cfg.Rules.EntitySuffixes)
	}
	if cfg.BreakerConsecutiveFailures != 3 {
		t.Fatalf("expected breaker consecutive failures 3, got %d", cfg.BreakerConsecutiveFailures)
	}
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("BATCH_WORKERS", "many")
	t.Setenv("FETCH_TIMEOUT", "soon")

	cfg := Load()
	if cfg.BatchWorkers != 1 {
		t.Fatalf("expected fallback workers, got %d", cfg.BatchWorkers)
	}
	if cfg.FetchTimeout != 60*time.Second {
		t.Fatalf("expected fallback fetch timeout, got %s", cfg.FetchTimeout)
	}
}

func TestLoadRulesOverridesOnlyPresentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	body := `
entity_suffixes: [LLC, CORP]
period:
  cutoff: 3
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	rules, err := LoadRules(path, DefaultRules())
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if len(rules.EntitySuffixes) != 2 {
		t.Fatalf("expected suffix list replaced, got %v", rules.EntitySuffixes)
	}
	if rules.Period.Cutoff != 3 {
		t.Fatalf("expected cutoff 3, got %v", rules.Period.Cutoff)
	}
	if rules.Period.Strategy != "studentized" {
		t.Fatalf("expected strategy to keep default, got %q", rules.Period.Strategy)
	}
	if rules.SimilarityThreshold != 0.85 {
		t.Fatalf("expected threshold to keep default, got %v", rules.SimilarityThreshold)
	}
}

func TestLoadRulesRejectsInvalidStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("period:\n  strategy: median\n"), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	if _, err := LoadRules(path, DefaultRules()); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRulesWithoutPathReturnsBase(t *testing.T) {
	base := DefaultRules()
	rules, err := LoadRules("", base)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if rules.SimilarityThreshold != base.SimilarityThreshold {
		t.Fatalf("expected base rules")
	}
}

func TestApplyRulesFileUsesFileThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("similarity_threshold: 0.92\n"), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	t.Setenv("RULES_FILE", path)
	t.Setenv("SIMILARITY_THRESHOLD", "0.8")

	cfg, err := Load().ApplyRulesFile()
	if err != nil {
		t.Fatalf("ApplyRulesFile() error = %v", err)
	}
	if cfg.Rules.SimilarityThreshold != 0.92 {
		t.Fatalf("expected file threshold 0.92, got %v", cfg.Rules.SimilarityThreshold)
	}
}

func TestApplyRulesFileRejectsMissingFile(t *testing.T) {
	t.Setenv("RULES_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load().ApplyRulesFile(); err == nil {
		t.Fatalf("expected error for missing rules file")
	}
}
