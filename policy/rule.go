// Package policy defines the rule model for writegate: severity tiers,
// check kinds, glob-based rule selection and violation accounting.
package policy

// Tier classifies the severity of a rule or violation.
type Tier string

// Severity tiers, ordered critical > high > medium > low.
const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// tierRank orders tiers for escalation; higher outranks lower.
var tierRank = map[Tier]int{
	TierLow:      1,
	TierMedium:   2,
	TierHigh:     3,
	TierCritical: 4,
}

// ParseTier maps a configuration string to a known Tier.
func ParseTier(s string) (Tier, bool) {
	t := Tier(s)
	_, ok := tierRank[t]
	return t, ok
}

// Outranks reports whether t is strictly more severe than other.
// Unknown tiers rank below low.
func (t Tier) Outranks(other Tier) bool {
	return tierRank[t] > tierRank[other]
}

// CheckKind identifies one of the checks a rule can declare.
type CheckKind string

// The closed set of check kinds. Configuration identifiers outside this
// set are diagnosed at dispatch time and contribute no violations.
const (
	CheckNoWriteAllowed      CheckKind = "no_write_allowed"
	CheckCredentialScan      CheckKind = "credential_scan"
	CheckKeyDeletion         CheckKind = "key_deletion_protection"
	CheckSectionPreservation CheckKind = "section_preservation"
	CheckHeadingStructure    CheckKind = "heading_structure"
	CheckFrontmatter         CheckKind = "frontmatter_preservation"
	CheckShebang             CheckKind = "shebang_preservation"
	CheckSemanticRelevance   CheckKind = "semantic_relevance"
)

// knownChecks is the parse table for configuration identifiers.
var knownChecks = map[CheckKind]bool{
	CheckNoWriteAllowed:      true,
	CheckCredentialScan:      true,
	CheckKeyDeletion:         true,
	CheckSectionPreservation: true,
	CheckHeadingStructure:    true,
	CheckFrontmatter:         true,
	CheckShebang:             true,
	CheckSemanticRelevance:   true,
}

// ParseCheckKind maps a configuration identifier to a known check kind.
// Unknown identifiers return false so the dispatcher can log a diagnostic
// instead of failing the evaluation.
func ParseCheckKind(s string) (CheckKind, bool) {
	k := CheckKind(s)
	return k, knownChecks[k]
}

// Rule is one declarative policy entry. Rules are supplied by
// configuration and never mutated by the engine; identity is Name.
type Rule struct {
	// Name identifies the rule in block messages and audit records.
	Name string

	// Pattern is the path glob the rule applies to.
	Pattern string

	// Tier is the severity assigned to the rule's violations. Some
	// checks override it (credential scan is always critical, semantic
	// relevance always medium).
	Tier Tier

	// Checks lists the check identifiers to run, as written in
	// configuration. Parsed into CheckKind at dispatch.
	Checks []string

	// Message optionally replaces the default violation text for
	// no_write_allowed.
	Message string

	// LockedFields names frontmatter fields that must not change.
	LockedFields []string

	// ProtectedSections restricts section_preservation to an explicit
	// allow-list of section titles. Empty means every section.
	ProtectedSections []string

	// Purpose is free text describing what the file is for, consumed by
	// the semantic relevance check.
	Purpose string
}
