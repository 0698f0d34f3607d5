package policy

// Violation records one check failure. Violations are produced per
// evaluation and never persisted standalone; audit records embed them.
type Violation struct {
	Check   CheckKind `json:"check"`
	Tier    Tier      `json:"tier"`
	Message string    `json:"message"`
}

// MaxTier returns the most severe tier present in violations, or the
// zero Tier when the slice is empty.
func MaxTier(violations []Violation) Tier {
	var max Tier
	for _, v := range violations {
		if v.Tier.Outranks(max) {
			max = v.Tier
		}
	}
	return max
}

// Dedupe collapses violations that share an exact message, keeping the
// first occurrence of each so evaluation order stays visible in output.
func Dedupe(violations []Violation) []Violation {
	if len(violations) < 2 {
		return violations
	}

	seen := make(map[string]bool, len(violations))
	out := violations[:0]
	for _, v := range violations {
		if seen[v.Message] {
			continue
		}
		seen[v.Message] = true
		out = append(out, v)
	}
	return out
}
