// Package hook evaluates proposed file mutations end to end: it parses
// the triggering event, dispatches the policy checks and renders the
// decision the calling agent reads back.
package hook

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/c360studio/writegate/audit"
	"github.com/c360studio/writegate/config"
	"github.com/c360studio/writegate/oracle"
	"github.com/c360studio/writegate/override"
)

// Engine wires the configuration snapshot, override store and audit log
// into one evaluator. One engine serves one project root.
type Engine struct {
	root      string
	snapshot  *config.Snapshot
	overrides *override.Store
	audit     *audit.Log
	logger    *slog.Logger
}

// NewEngine creates an engine rooted at the project directory.
func NewEngine(root string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		root:      root,
		snapshot:  config.NewSnapshot(root, logger),
		overrides: override.NewStore(root, logger),
		audit:     audit.NewLog(root, logger),
		logger:    logger,
	}
}

// Evaluate renders the decision for one raw hook event. Every internal
// failure resolves to a definite decision; nothing here is fatal to the
// host process.
func (e *Engine) Evaluate(ctx context.Context, raw []byte) Decision {
	return e.evaluate(ctx, raw, false)
}

// Preview evaluates without consuming overrides or writing audit records.
func (e *Engine) Preview(ctx context.Context, raw []byte) Decision {
	return e.evaluate(ctx, raw, true)
}

func (e *Engine) evaluate(ctx context.Context, raw []byte, dryRun bool) Decision {
	cfg, err := e.snapshot.Refresh()
	if err != nil {
		e.logger.Warn("No usable policy configuration, allowing write",
			slog.String("error", err.Error()))
		return Decision{Proceed: true}
	}

	toggles := config.DeriveToggles(cfg.Settings)
	if !toggles.Master {
		return Decision{Proceed: true}
	}

	event, err := ParseEvent(raw)
	if err != nil {
		return e.unparseable(cfg, err)
	}
	m, ok, err := event.Mutation(e.root)
	if err != nil {
		return e.unparseable(cfg, err)
	}
	if !ok {
		return Decision{Proceed: true}
	}

	var checker RelevanceChecker
	if toggles.V2 {
		v2 := cfg.Settings.V2
		checker = oracle.NewClient(v2.GetOllamaURL(), v2.GetModel(), v2.GetTimeout(),
			oracle.WithLogger(e.logger))
	}

	dispatcher := NewDispatcher(cfg, toggles, e.readPrior, checker, e.logger)
	violations, ruleNames := dispatcher.Dispatch(ctx, m)

	renderer := NewRenderer(cfg, e.overrides, e.audit)
	if dryRun {
		renderer = renderer.Preview()
	}
	outcome, decision := renderer.Render(m, violations, ruleNames)

	e.logger.Info("Write evaluated",
		slog.String("file", m.Path),
		slog.String("tool", m.Tool),
		slog.String("outcome", string(outcome)),
		slog.Int("violations", len(violations)))
	return decision
}

// unparseable resolves a malformed event per the configured fail mode.
// Only this branch honors fail_mode: every other failure in the engine
// resolves to the permissive path.
func (e *Engine) unparseable(cfg *config.Config, err error) Decision {
	e.logger.Warn("Unparseable hook event", slog.String("error", err.Error()))
	if cfg.Settings.GetFailMode() == "closed" {
		return Decision{
			Proceed: false,
			Message: "writegate could not parse the write event and fail_mode is closed",
		}
	}
	return Decision{Proceed: true}
}

// readPrior loads current on-disk content for comparison checks. Missing
// or unreadable files report no prior content.
func (e *Engine) readPrior(path string) (string, bool) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(e.root, filepath.FromSlash(path))
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", false
	}
	return string(data), true
}
