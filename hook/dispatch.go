package hook

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/writegate/checks"
	"github.com/c360studio/writegate/config"
	"github.com/c360studio/writegate/oracle"
	"github.com/c360studio/writegate/policy"
)

// ContentReader fetches current on-disk content for a path so comparison
// checks can diff against it. The second return is false when the file
// does not exist or cannot be read, which the checks treat as no prior
// content.
type ContentReader func(path string) (string, bool)

// RelevanceChecker is the oracle surface the semantic check consumes.
type RelevanceChecker interface {
	Relevance(ctx context.Context, purpose, content string) (*oracle.Verdict, error)
}

// Dispatcher runs every applicable check for one mutation and collects
// the violations.
type Dispatcher struct {
	cfg     *config.Config
	toggles config.Toggles
	prior   ContentReader
	oracle  RelevanceChecker
	logger  *slog.Logger
}

// NewDispatcher builds a dispatcher for one evaluation. prior and checker
// may be nil: without prior content comparison checks skip, and without a
// checker the semantic check skips.
func NewDispatcher(cfg *config.Config, toggles config.Toggles, prior ContentReader, checker RelevanceChecker, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:     cfg,
		toggles: toggles,
		prior:   prior,
		oracle:  checker,
		logger:  logger,
	}
}

// Dispatch evaluates the mutation against the global checks and every
// matching path rule. It returns the deduplicated violations and the names
// of the rules involved: every path rule that matched, plus any global
// entry that produced a violation.
func (d *Dispatcher) Dispatch(ctx context.Context, m *Mutation) ([]policy.Violation, []string) {
	prior, hasPrior := "", false
	if d.prior != nil {
		prior, hasPrior = d.prior(m.Path)
	}

	var violations []policy.Violation
	var names []string

	for _, r := range d.cfg.GeneralRules(d.logger) {
		found := d.runRule(ctx, r, m, prior, hasPrior)
		if len(found) > 0 {
			names = append(names, r.Name)
		}
		violations = append(violations, found...)
	}

	for _, r := range policy.SelectRules(d.cfg.PolicyRules(d.logger), m.Path) {
		names = append(names, r.Name)
		violations = append(violations, d.runRule(ctx, r, m, prior, hasPrior)...)
	}

	return policy.Dedupe(violations), names
}

// runRule executes one rule's declared checks, each gated by its toggle.
// An identifier outside the known set is reported and skipped.
func (d *Dispatcher) runRule(ctx context.Context, r policy.Rule, m *Mutation, prior string, hasPrior bool) []policy.Violation {
	var out []policy.Violation
	for _, id := range r.Checks {
		kind, ok := policy.ParseCheckKind(id)
		if !ok {
			d.logger.Warn("Unknown check in policy rule",
				slog.String("rule", r.Name),
				slog.String("check", id))
			continue
		}

		switch kind {
		case policy.CheckNoWriteAllowed:
			if d.toggles.V1 {
				out = append(out, checks.NoWriteAllowed(r, m.Path))
			}
		case policy.CheckCredentialScan:
			if d.toggles.CredentialScan {
				out = append(out, checks.ScanCredentials(m.View, d.cfg.CredentialScanPatterns(), d.cfg.PlaceholderExclusions())...)
			}
		case policy.CheckKeyDeletion:
			if d.toggles.StructuralChecks {
				out = append(out, checks.KeyDeletion(r, m.View, prior, hasPrior)...)
			}
		case policy.CheckSectionPreservation:
			if d.toggles.StructuralChecks {
				out = append(out, checks.SectionPreservation(r, m.View, prior, hasPrior)...)
			}
		case policy.CheckHeadingStructure:
			if d.toggles.StructuralChecks {
				out = append(out, checks.HeadingStructure(r, m.View, prior, hasPrior)...)
			}
		case policy.CheckFrontmatter:
			if d.toggles.StructuralChecks {
				out = append(out, checks.FrontmatterPreservation(r, m.View, prior, hasPrior)...)
			}
		case policy.CheckShebang:
			if d.toggles.StructuralChecks {
				out = append(out, checks.ShebangPreservation(r, m.View, prior, hasPrior)...)
			}
		case policy.CheckSemanticRelevance:
			if d.toggles.V2 {
				out = append(out, d.semanticCheck(ctx, r, m)...)
			}
		}
	}
	return out
}

// semanticCheck consults the relevance oracle for rules that declare a
// purpose. Every oracle failure resolves to zero violations.
func (d *Dispatcher) semanticCheck(ctx context.Context, r policy.Rule, m *Mutation) []policy.Violation {
	if r.Purpose == "" || d.oracle == nil {
		return nil
	}

	content := strings.Join(m.View.NewTexts(), "\n")
	if len(content) < d.toggles.V2Settings.GetMinContentLength() {
		return nil
	}

	verdict, err := d.oracle.Relevance(ctx, r.Purpose, content)
	if err != nil {
		d.logger.Debug("Semantic check unavailable, skipping",
			slog.String("rule", r.Name),
			slog.String("error", err.Error()))
		return nil
	}
	if verdict.Relevant {
		return nil
	}

	msg := fmt.Sprintf("content may not match the file's purpose (%s)", r.Purpose)
	if verdict.Reason != "" {
		msg += ": " + verdict.Reason
	}
	return []policy.Violation{{
		Check:   policy.CheckSemanticRelevance,
		Tier:    policy.TierMedium,
		Message: msg,
	}}
}
