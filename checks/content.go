package checks

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/c360studio/writegate/policy"
)

// topLevelKeyPattern matches a key identifier at column zero, the
// line-oriented approximation of a top-level mapping key.
var topLevelKeyPattern = regexp.MustCompile(`^([A-Za-z0-9_][A-Za-z0-9_-]*)\s*:`)

// NoWriteAllowed produces the unconditional write-protection violation for
// a matched rule. Content is never inspected.
func NoWriteAllowed(r policy.Rule, path string) policy.Violation {
	msg := r.Message
	if msg == "" {
		msg = fmt.Sprintf("%s is write-protected", path)
	}
	return policy.Violation{Check: policy.CheckNoWriteAllowed, Tier: r.Tier, Message: msg}
}

// KeyDeletion flags top-level keys present in the old text but missing from
// the new text.
func KeyDeletion(r policy.Rule, view View, prior string, hasPrior bool) []policy.Violation {
	var violations []policy.Violation
	for _, pair := range view.comparisons(prior, hasPrior) {
		removed := missingKeys(topLevelKeys(pair.OldText), topLevelKeys(pair.NewText))
		for _, key := range removed {
			violations = append(violations, policy.Violation{
				Check:   policy.CheckKeyDeletion,
				Tier:    r.Tier,
				Message: fmt.Sprintf("top-level key would be removed: %s", key),
			})
		}
	}
	return violations
}

// ShebangPreservation flags removal of an interpreter line. Only the first
// line of each old/new pair is compared.
func ShebangPreservation(r policy.Rule, view View, prior string, hasPrior bool) []policy.Violation {
	var violations []policy.Violation
	for _, pair := range view.comparisons(prior, hasPrior) {
		oldFirst := firstLine(pair.OldText)
		if !strings.HasPrefix(oldFirst, "#!") {
			continue
		}
		if strings.HasPrefix(firstLine(pair.NewText), "#!") {
			continue
		}
		violations = append(violations, policy.Violation{
			Check:   policy.CheckShebang,
			Tier:    r.Tier,
			Message: fmt.Sprintf("shebang line would be removed: %q", oldFirst),
		})
	}
	return violations
}

// topLevelKeys extracts column-zero key identifiers in first-seen order.
func topLevelKeys(text string) []string {
	var keys []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		m := topLevelKeyPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		keys = append(keys, m[1])
	}
	return keys
}

// missingKeys returns the members of old absent from new, preserving old's
// order.
func missingKeys(old, new []string) []string {
	present := make(map[string]struct{}, len(new))
	for _, k := range new {
		present[k] = struct{}{}
	}
	var missing []string
	for _, k := range old {
		if _, ok := present[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimSuffix(text[:i], "\r")
	}
	return text
}
