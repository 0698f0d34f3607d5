package hook

import (
	"fmt"
	"strings"
	"time"

	"github.com/c360studio/writegate/audit"
	"github.com/c360studio/writegate/config"
	"github.com/c360studio/writegate/override"
	"github.com/c360studio/writegate/policy"
)

// Outcome names the four per-mutation decision states.
type Outcome string

const (
	OutcomeAllow        Outcome = "ALLOW"
	OutcomeWarn         Outcome = "ALLOW_WITH_WARNING"
	OutcomeOverrideUsed Outcome = "ALLOW_OVERRIDE_USED"
	OutcomeBlock        Outcome = "BLOCK"
)

// Decision is the hook's reply, serialized to the output stream. Message
// is set only when the write is blocked; HookSpecificOutput carries
// advisory context for warnings and override-used outcomes.
type Decision struct {
	Proceed            bool        `json:"proceed"`
	Message            string      `json:"message,omitempty"`
	HookSpecificOutput *HookOutput `json:"hookSpecificOutput,omitempty"`
}

// HookOutput is the advisory part of a decision.
type HookOutput struct {
	AdditionalContext string `json:"additionalContext"`
}

// Renderer maps a violation set to the final decision, consuming a
// matching override and recording audit entries as side effects.
type Renderer struct {
	cfg       *config.Config
	overrides *override.Store
	audit     *audit.Log
	dryRun    bool
	now       func() time.Time
}

// NewRenderer builds a renderer over the project's override store and
// audit log. Either may be nil, disabling that side effect.
func NewRenderer(cfg *config.Config, overrides *override.Store, auditLog *audit.Log) *Renderer {
	return &Renderer{
		cfg:       cfg,
		overrides: overrides,
		audit:     auditLog,
		now:       time.Now,
	}
}

// Preview returns a copy that neither consumes overrides nor writes audit
// records, for dry-run evaluation.
func (r *Renderer) Preview() *Renderer {
	out := *r
	out.dryRun = true
	return &out
}

// Render produces the decision for one evaluated mutation. Each call is a
// fresh one-shot transition from the violation set's maximum tier.
func (r *Renderer) Render(m *Mutation, violations []policy.Violation, ruleNames []string) (Outcome, Decision) {
	switch policy.MaxTier(violations) {
	case policy.TierCritical, policy.TierHigh:
		if r.overrides != nil && r.overrides.Has(m.Path) {
			if !r.dryRun {
				r.overrides.Consume(m.Path)
				r.record(audit.ActionOverrideUsed, m, violations, ruleNames)
			}
			note := fmt.Sprintf("Override used for %s; the one-time approval has been consumed.", m.Path)
			return OutcomeOverrideUsed, Decision{
				Proceed:            true,
				HookSpecificOutput: &HookOutput{AdditionalContext: note},
			}
		}
		if !r.dryRun {
			r.record(audit.ActionBlocked, m, violations, ruleNames)
		}
		return OutcomeBlock, Decision{
			Proceed: false,
			Message: r.blockMessage(m.Path, violations, ruleNames),
		}

	case policy.TierMedium:
		if !r.dryRun {
			r.record(audit.ActionWarned, m, violations, ruleNames)
		}
		return OutcomeWarn, Decision{
			Proceed:            true,
			HookSpecificOutput: &HookOutput{AdditionalContext: warningSummary(violations)},
		}

	case policy.TierLow:
		if !r.dryRun {
			r.record(audit.ActionLogged, m, violations, ruleNames)
		}
		return OutcomeAllow, Decision{Proceed: true}

	default:
		return OutcomeAllow, Decision{Proceed: true}
	}
}

// blockMessage formats the human-readable explanation for a blocked
// write: the violations up to the configured cap, the rules involved and
// literal instructions for recording a one-time approval.
func (r *Renderer) blockMessage(path string, violations []policy.Violation, ruleNames []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write to %s blocked by policy.\n\nViolations:\n", path)

	limit := r.cfg.Settings.GetMaxViolationsShown()
	for i, v := range violations {
		if i == limit {
			fmt.Fprintf(&b, "  ...and %d more\n", len(violations)-limit)
			break
		}
		fmt.Fprintf(&b, "  - [%s] %s\n", v.Tier, v.Message)
	}

	if len(ruleNames) > 0 {
		fmt.Fprintf(&b, "\nMatched rules: %s\n", strings.Join(ruleNames, ", "))
	}

	expires := r.now().Add(r.cfg.Settings.GetOverrideTTL()).UTC().Format(time.RFC3339)
	fmt.Fprintf(&b, "\nTo proceed once, record an approval:\n")
	fmt.Fprintf(&b, "  writegate approve %s --reason \"<why this write is intended>\"\n", path)
	fmt.Fprintf(&b, "or add a record to %s/%s:\n", config.ProjectDir, override.File)
	fmt.Fprintf(&b, "  {\"file\": %q, \"reason\": \"<why>\", \"expires\": %q}\n", path, expires)
	b.WriteString("The approval is single-use and expires at the timestamp shown.")
	return b.String()
}

// record appends one audit entry; appends are best-effort.
func (r *Renderer) record(action audit.Action, m *Mutation, violations []policy.Violation, ruleNames []string) {
	if r.audit == nil {
		return
	}
	r.audit.Append(audit.Record{
		Timestamp:  r.now().UTC(),
		Action:     action,
		File:       m.Path,
		Violations: violations,
		Rules:      ruleNames,
	})
}

// warningSummary joins violation messages into one advisory line.
func warningSummary(violations []policy.Violation) string {
	msgs := make([]string, 0, len(violations))
	for _, v := range violations {
		msgs = append(msgs, v.Message)
	}
	return "Policy warnings for this write: " + strings.Join(msgs, "; ")
}
