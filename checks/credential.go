package checks

import (
	"fmt"
	"regexp"

	"github.com/c360studio/writegate/policy"
)

// CredentialPattern is a named credential-detection expression from
// configuration.
type CredentialPattern struct {
	Name    string
	Pattern *regexp.Regexp
}

// ScanCredentials scans every proposed text fragment against the configured
// credential patterns. A match that also satisfies a placeholder pattern is
// ignored. Violations are always critical and never quote the matched text,
// so detected material cannot leak into messages or audit records.
func ScanCredentials(view View, patterns []CredentialPattern, placeholders []*regexp.Regexp) []policy.Violation {
	var violations []policy.Violation
	for _, text := range view.NewTexts() {
		for _, cp := range patterns {
			for _, match := range cp.Pattern.FindAllString(text, -1) {
				if isPlaceholder(match, placeholders) {
					continue
				}
				violations = append(violations, policy.Violation{
					Check:   policy.CheckCredentialScan,
					Tier:    policy.TierCritical,
					Message: fmt.Sprintf("possible %s detected", cp.Name),
				})
			}
		}
	}
	return violations
}

func isPlaceholder(match string, placeholders []*regexp.Regexp) bool {
	for _, re := range placeholders {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}
