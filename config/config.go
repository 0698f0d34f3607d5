// Package config loads and manages writegate policy configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/writegate/checks"
	"github.com/c360studio/writegate/policy"
)

// Config is the complete policy document: engine settings, global checks,
// path-matched rules and credential patterns. A project-level policy file
// replaces the packaged default document entirely; there is no field-level
// merge between the two.
type Config struct {
	Settings            Settings        `yaml:"settings"`
	General             []RuleConfig    `yaml:"general"`
	Rules               []RuleConfig    `yaml:"rules"`
	CredentialPatterns  []PatternConfig `yaml:"credential_patterns"`
	PlaceholderPatterns []string        `yaml:"placeholder_patterns"`

	compiled *compiledPatterns
}

// Settings holds the engine toggles and limits.
type Settings struct {
	// Enabled is the master switch for the whole engine.
	Enabled bool       `yaml:"enabled"`
	V1      V1Settings `yaml:"v1"`
	V2      V2Settings `yaml:"v2"`
	// FailMode selects how a malformed mutation request resolves:
	// "open" allows it, "closed" blocks it. Default open.
	FailMode string `yaml:"fail_mode"`
	// OverrideTTL is the lifetime of an issued override (e.g. "10m").
	OverrideTTL string `yaml:"override_ttl"`
	// MaxViolationsShown caps the violations listed in a block message.
	MaxViolationsShown int `yaml:"max_violations_shown"`
}

// V1Settings gates the structural check generation.
type V1Settings struct {
	Enabled          bool `yaml:"enabled"`
	CredentialScan   bool `yaml:"credential_scan"`
	StructuralChecks bool `yaml:"structural_checks"`
}

// V2Settings gates and configures the semantic relevance check.
type V2Settings struct {
	Enabled bool `yaml:"enabled"`
	// OllamaURL is the base URL of the relevance oracle.
	OllamaURL string `yaml:"ollama_url"`
	// Model is the model name passed to the oracle.
	Model string `yaml:"model"`
	// Timeout bounds the generation call (e.g. "15s").
	Timeout string `yaml:"timeout"`
	// MinContentLength skips the check for content shorter than this.
	MinContentLength int `yaml:"min_content_length"`
}

// RuleConfig is one rule entry as written in the policy file. Check
// identifiers stay strings here so externally supplied configuration can
// carry identifiers this build does not know; the dispatcher reports them.
type RuleConfig struct {
	Name              string   `yaml:"name"`
	Pattern           string   `yaml:"pattern"`
	Tier              string   `yaml:"tier"`
	Checks            []string `yaml:"checks"`
	Message           string   `yaml:"message"`
	LockedFields      []string `yaml:"locked_fields"`
	ProtectedSections []string `yaml:"protected_sections"`
	Purpose           string   `yaml:"purpose"`
}

// PatternConfig is a named credential-detection regex.
type PatternConfig struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
}

type compiledPatterns struct {
	credentials  []checks.CredentialPattern
	placeholders []*regexp.Regexp
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Settings.FailMode {
	case "", "open", "closed":
	default:
		return fmt.Errorf("settings.fail_mode must be open or closed, got %q", c.Settings.FailMode)
	}
	return nil
}

// GetFailMode returns the configured fail mode, defaulting to open.
func (s Settings) GetFailMode() string {
	if s.FailMode == "closed" {
		return "closed"
	}
	return "open"
}

// GetOverrideTTL parses the override lifetime.
func (s Settings) GetOverrideTTL() time.Duration {
	if s.OverrideTTL == "" {
		return 10 * time.Minute
	}
	d, err := time.ParseDuration(s.OverrideTTL)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// GetMaxViolationsShown returns the block-message violation cap.
func (s Settings) GetMaxViolationsShown() int {
	if s.MaxViolationsShown <= 0 {
		return 5
	}
	return s.MaxViolationsShown
}

// GetOllamaURL returns the oracle base URL.
func (v V2Settings) GetOllamaURL() string {
	if v.OllamaURL == "" {
		return "http://localhost:11434"
	}
	return v.OllamaURL
}

// GetModel returns the oracle model name.
func (v V2Settings) GetModel() string {
	if v.Model == "" {
		return "llama3.2"
	}
	return v.Model
}

// GetTimeout parses the generation timeout.
func (v V2Settings) GetTimeout() time.Duration {
	if v.Timeout == "" {
		return 15 * time.Second
	}
	d, err := time.ParseDuration(v.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// GetMinContentLength returns the semantic-check length threshold.
func (v V2Settings) GetMinContentLength() int {
	if v.MinContentLength <= 0 {
		return 80
	}
	return v.MinContentLength
}

// PolicyRules converts the configured rules into engine rule records.
// Entries without a name, pattern or checks are reported and skipped.
func (c *Config) PolicyRules(logger *slog.Logger) []policy.Rule {
	return convertRules(c.Rules, true, logger)
}

// GeneralRules converts the global check entries, which carry no pattern.
func (c *Config) GeneralRules(logger *slog.Logger) []policy.Rule {
	return convertRules(c.General, false, logger)
}

func convertRules(entries []RuleConfig, needPattern bool, logger *slog.Logger) []policy.Rule {
	if logger == nil {
		logger = slog.Default()
	}
	rules := make([]policy.Rule, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" || len(e.Checks) == 0 || (needPattern && e.Pattern == "") {
			logger.Warn("Skipping incomplete rule entry", slog.String("name", e.Name))
			continue
		}
		tier, ok := policy.ParseTier(e.Tier)
		if !ok {
			if e.Tier != "" {
				logger.Warn("Unknown tier, using medium",
					slog.String("rule", e.Name),
					slog.String("tier", e.Tier))
			}
			tier = policy.TierMedium
		}
		rules = append(rules, policy.Rule{
			Name:              e.Name,
			Pattern:           e.Pattern,
			Tier:              tier,
			Checks:            e.Checks,
			Message:           e.Message,
			LockedFields:      e.LockedFields,
			ProtectedSections: e.ProtectedSections,
			Purpose:           e.Purpose,
		})
	}
	return rules
}

// CredentialScanPatterns returns the compiled credential patterns.
func (c *Config) CredentialScanPatterns() []checks.CredentialPattern {
	if c.compiled == nil {
		c.compile(slog.Default())
	}
	return c.compiled.credentials
}

// PlaceholderExclusions returns the compiled placeholder patterns.
func (c *Config) PlaceholderExclusions() []*regexp.Regexp {
	if c.compiled == nil {
		c.compile(slog.Default())
	}
	return c.compiled.placeholders
}

// compile builds the regex sets once per loaded document. A pattern that
// fails to compile is reported and dropped rather than failing the whole
// policy.
func (c *Config) compile(logger *slog.Logger) {
	cp := &compiledPatterns{}
	for _, p := range c.CredentialPatterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			logger.Warn("Dropping credential pattern with invalid regex",
				slog.String("name", p.Name),
				slog.String("error", err.Error()))
			continue
		}
		cp.credentials = append(cp.credentials, checks.CredentialPattern{Name: p.Name, Pattern: re})
	}
	for _, expr := range c.PlaceholderPatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			logger.Warn("Dropping placeholder pattern with invalid regex",
				slog.String("pattern", expr),
				slog.String("error", err.Error()))
			continue
		}
		cp.placeholders = append(cp.placeholders, re)
	}
	c.compiled = cp
}

// LoadFromFile loads a policy document from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a policy document.
func Parse(data []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
