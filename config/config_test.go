package config

import (
	"strings"
	"testing"
	"time"

	"github.com/c360studio/writegate/policy"
)

func TestParse(t *testing.T) {
	doc := `
settings:
  enabled: true
  v1:
    enabled: true
    credential_scan: false
    structural_checks: true
  v2:
    enabled: true
    ollama_url: http://oracle:11434
    model: test-model
    timeout: 5s
    min_content_length: 40
  fail_mode: closed
  override_ttl: 30m
  max_violations_shown: 2
rules:
  - name: registry
    pattern: 'registry.yaml'
    tier: high
    checks: [key_deletion_protection]
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !cfg.Settings.Enabled {
		t.Error("expected settings.enabled true")
	}
	if cfg.Settings.V1.CredentialScan {
		t.Error("expected credential_scan false")
	}
	if cfg.Settings.GetFailMode() != "closed" {
		t.Errorf("expected fail mode closed, got %s", cfg.Settings.GetFailMode())
	}
	if cfg.Settings.GetOverrideTTL() != 30*time.Minute {
		t.Errorf("expected override TTL 30m, got %v", cfg.Settings.GetOverrideTTL())
	}
	if cfg.Settings.GetMaxViolationsShown() != 2 {
		t.Errorf("expected max violations 2, got %d", cfg.Settings.GetMaxViolationsShown())
	}
	if cfg.Settings.V2.GetOllamaURL() != "http://oracle:11434" {
		t.Errorf("expected oracle URL http://oracle:11434, got %s", cfg.Settings.V2.GetOllamaURL())
	}
	if cfg.Settings.V2.GetTimeout() != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Settings.V2.GetTimeout())
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Name != "registry" {
		t.Fatalf("expected one rule named registry, got %+v", cfg.Rules)
	}
}

func TestParseRejectsBadFailMode(t *testing.T) {
	_, err := Parse([]byte("settings:\n  fail_mode: opne\n"))
	if err == nil {
		t.Fatal("expected error for unknown fail_mode")
	}
	if !strings.Contains(err.Error(), "fail_mode") {
		t.Errorf("error should name fail_mode, got %v", err)
	}
}

func TestSettingsDefaults(t *testing.T) {
	var s Settings

	if s.GetFailMode() != "open" {
		t.Errorf("expected default fail mode open, got %s", s.GetFailMode())
	}
	if s.GetOverrideTTL() != 10*time.Minute {
		t.Errorf("expected default TTL 10m, got %v", s.GetOverrideTTL())
	}
	if s.GetMaxViolationsShown() != 5 {
		t.Errorf("expected default cap 5, got %d", s.GetMaxViolationsShown())
	}

	s.OverrideTTL = "not-a-duration"
	if s.GetOverrideTTL() != 10*time.Minute {
		t.Errorf("expected fallback TTL for bad value, got %v", s.GetOverrideTTL())
	}

	var v V2Settings
	if v.GetOllamaURL() != "http://localhost:11434" {
		t.Errorf("expected default oracle URL, got %s", v.GetOllamaURL())
	}
	if v.GetModel() != "llama3.2" {
		t.Errorf("expected default model, got %s", v.GetModel())
	}
	if v.GetTimeout() != 15*time.Second {
		t.Errorf("expected default timeout 15s, got %v", v.GetTimeout())
	}
	if v.GetMinContentLength() != 80 {
		t.Errorf("expected default min length 80, got %d", v.GetMinContentLength())
	}
}

func TestPolicyRules(t *testing.T) {
	cfg := &Config{
		Rules: []RuleConfig{
			{Name: "good", Pattern: "*.md", Tier: "high", Checks: []string{"section_preservation"}},
			{Name: "odd-tier", Pattern: "*.go", Tier: "severe", Checks: []string{"no_write_allowed"}},
			{Name: "", Pattern: "*.txt", Tier: "low", Checks: []string{"no_write_allowed"}},
			{Name: "no-checks", Pattern: "*.txt", Tier: "low"},
			{Name: "no-pattern", Tier: "low", Checks: []string{"no_write_allowed"}},
		},
	}

	rules := cfg.PolicyRules(nil)
	if len(rules) != 2 {
		t.Fatalf("expected 2 usable rules, got %d: %+v", len(rules), rules)
	}
	if rules[0].Tier != policy.TierHigh {
		t.Errorf("expected high tier, got %s", rules[0].Tier)
	}
	if rules[1].Tier != policy.TierMedium {
		t.Errorf("expected unknown tier to become medium, got %s", rules[1].Tier)
	}
}

func TestGeneralRulesNeedNoPattern(t *testing.T) {
	cfg := &Config{
		General: []RuleConfig{
			{Name: "global-credential-scan", Checks: []string{"credential_scan"}},
		},
	}
	rules := cfg.GeneralRules(nil)
	if len(rules) != 1 {
		t.Fatalf("expected 1 general rule, got %d", len(rules))
	}
}

func TestCompiledPatterns(t *testing.T) {
	cfg := &Config{
		CredentialPatterns: []PatternConfig{
			{Name: "aws", Regex: `AKIA[0-9A-Z]{16}`},
			{Name: "broken", Regex: `AKIA[`},
		},
		PlaceholderPatterns: []string{`(?i)example`, `[`},
	}

	creds := cfg.CredentialScanPatterns()
	if len(creds) != 1 || creds[0].Name != "aws" {
		t.Errorf("expected one compiled credential pattern, got %+v", creds)
	}
	if got := cfg.PlaceholderExclusions(); len(got) != 1 {
		t.Errorf("expected one compiled placeholder pattern, got %d", len(got))
	}
}
