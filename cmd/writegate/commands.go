package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/writegate/audit"
	"github.com/c360studio/writegate/config"
	"github.com/c360studio/writegate/hook"
	"github.com/c360studio/writegate/override"
	"github.com/c360studio/writegate/policy"
)

func approveCmd() *cobra.Command {
	var (
		reason string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "approve <path>",
		Short: "Record a one-time approval for a blocked write",
		Long: `Approve records an override so the next write to the given path
proceeds. The approval is single-use: the first write it covers
consumes it. It expires after the policy's override TTL unless --ttl
says otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApprove(args[0], reason, ttl)
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why this write is intended")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "How long the approval stays valid (default from policy)")

	return cmd
}

func runApprove(pathArg, reason string, ttl time.Duration) error {
	logger := setupLogger()
	root, err := resolveRoot()
	if err != nil {
		return err
	}

	cfg, _, err := loadEffectivePolicy(root)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = cfg.Settings.GetOverrideTTL()
	}

	rel := hook.NormalizePath(pathArg, root)
	expires := time.Now().Add(ttl).UTC()

	store := override.NewStore(root, logger)
	if err := store.Add(override.Record{File: rel, Reason: reason, Expires: &expires}); err != nil {
		return fmt.Errorf("record approval: %w", err)
	}

	fmt.Printf("Approved one write to %s\n", rel)
	fmt.Printf("Expires: %s\n", expires.Format(time.RFC3339))
	if reason != "" {
		fmt.Printf("Reason: %s\n", reason)
	}
	return nil
}

func overridesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "List pending override records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverridesList()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all override records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverridesClear()
		},
	})

	return cmd
}

func runOverridesList() error {
	logger := setupLogger()
	root, err := resolveRoot()
	if err != nil {
		return err
	}

	records, err := override.NewStore(root, logger).List()
	if err != nil {
		return fmt.Errorf("read overrides: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No pending overrides.")
		return nil
	}

	now := time.Now()
	fmt.Printf("Pending overrides (%d):\n", len(records))
	for _, rec := range records {
		fmt.Printf("  %s  (%s)\n", rec.File, expiryPhrase(rec.Expires, now))
		if rec.Reason != "" {
			fmt.Printf("    reason: %s\n", rec.Reason)
		}
	}
	return nil
}

func runOverridesClear() error {
	logger := setupLogger()
	root, err := resolveRoot()
	if err != nil {
		return err
	}

	if err := override.NewStore(root, logger).Clear(); err != nil {
		return fmt.Errorf("clear overrides: %w", err)
	}
	fmt.Println("Override collection cleared.")
	return nil
}

// expiryPhrase describes when a record stops matching.
func expiryPhrase(expires *time.Time, now time.Time) string {
	switch {
	case expires == nil:
		return "never expires"
	case !expires.After(now):
		return "expired"
	default:
		return "expires in " + expires.Sub(now).Round(time.Second).String()
	}
}

func auditCmd() *cobra.Command {
	var (
		limit  int
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent policy decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(limit, follow)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")
	cmd.Flags().BoolVar(&follow, "follow", false, "Stream records as they are appended")

	return cmd
}

func runAudit(limit int, follow bool) error {
	logger := setupLogger()
	root, err := resolveRoot()
	if err != nil {
		return err
	}

	log := audit.NewLog(root, logger)

	if follow {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return log.Follow(ctx, func(rec audit.Record) {
			fmt.Println(formatAuditRecord(rec))
		})
	}

	records, err := log.Tail(limit)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No audit records.")
		return nil
	}
	for _, rec := range records {
		fmt.Println(formatAuditRecord(rec))
	}
	return nil
}

// formatAuditRecord renders one decision record as text, violations
// indented under the summary line.
func formatAuditRecord(rec audit.Record) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s  %-13s %s", rec.Timestamp.Format(time.RFC3339), rec.Action, rec.File))
	if len(rec.Rules) > 0 {
		sb.WriteString("  rules: " + strings.Join(rec.Rules, ", "))
	}
	for _, v := range rec.Violations {
		sb.WriteString(fmt.Sprintf("\n    [%s] %s", v.Tier, v.Message))
	}
	return sb.String()
}

func rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules [path]",
		Short: "Show the effective policy and the rules matching a path",
		Long: `Rules prints where the effective policy comes from and which check
categories are on. Given a path it lists the rules whose pattern
matches it, most specific first, exactly as the hook would select them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return runRules(path)
		},
	}
}

func runRules(pathArg string) error {
	logger := setupLogger()
	root, err := resolveRoot()
	if err != nil {
		return err
	}

	cfg, source, err := loadEffectivePolicy(root)
	if err != nil {
		return err
	}

	toggles := config.DeriveToggles(cfg.Settings)
	fmt.Printf("Policy source: %s\n", source)
	fmt.Printf("Enabled: %t\n", toggles.Master)
	fmt.Printf("Fail mode: %s\n", cfg.Settings.GetFailMode())
	fmt.Printf("Checks: credential_scan=%t structural_checks=%t semantic=%t\n",
		toggles.CredentialScan, toggles.StructuralChecks, toggles.V2)
	fmt.Println()

	general := cfg.GeneralRules(logger)
	rules := cfg.PolicyRules(logger)

	if pathArg == "" {
		fmt.Printf("Path rules (%d):\n", len(rules))
		for _, r := range rules {
			printRule(r)
		}
		printGeneralRules(general)
		return nil
	}

	rel := hook.NormalizePath(pathArg, root)
	matched := policy.SelectRules(rules, rel)
	if len(matched) == 0 {
		fmt.Printf("No path rules match %s.\n", rel)
	} else {
		fmt.Printf("Rules for %s (most specific first):\n", rel)
		for _, r := range matched {
			printRule(r)
		}
	}
	printGeneralRules(general)
	return nil
}

func printGeneralRules(general []policy.Rule) {
	if len(general) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("General rules (every write):")
	for _, r := range general {
		printRule(r)
	}
}

func printRule(r policy.Rule) {
	if r.Pattern != "" {
		fmt.Printf("  %s  %s  [%s]\n", r.Name, r.Pattern, r.Tier)
	} else {
		fmt.Printf("  %s  [%s]\n", r.Name, r.Tier)
	}
	fmt.Printf("    checks: %s\n", strings.Join(r.Checks, ", "))
	if r.Message != "" {
		fmt.Printf("    message: %s\n", r.Message)
	}
}

func checkCmd() *cobra.Command {
	var (
		tool        string
		path        string
		contentFile string
		oldText     string
		newText     string
		outputJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Dry-run a proposed write against the policy",
		Long: `Check evaluates a mutation exactly as the hook would, but consumes no
overrides and writes no audit records.

Examples:
  check --path api/.env --content-file secrets.txt
  check --path CLAUDE.md --old "## Notes" --new ""
  cat draft.md | check --path docs/plan.md --content-file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(tool, path, contentFile, oldText, newText, outputJSON)
		},
	}

	cmd.Flags().StringVar(&tool, "tool", hook.ToolWrite, "Tool kind (Write or Edit; --old/--new imply Edit)")
	cmd.Flags().StringVar(&path, "path", "", "File the mutation targets")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "File holding the full replacement content (- for stdin)")
	cmd.Flags().StringVar(&oldText, "old", "", "Text the edit replaces")
	cmd.Flags().StringVar(&newText, "new", "", "Text the edit inserts")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print the raw decision JSON")

	return cmd
}

func runCheck(tool, path, contentFile, oldText, newText string, outputJSON bool) error {
	logger := setupLogger()
	root, err := resolveRoot()
	if err != nil {
		return err
	}

	if path == "" {
		return fmt.Errorf("--path is required")
	}
	if tool == hook.ToolWrite && (oldText != "" || newText != "") {
		tool = hook.ToolEdit
	}

	content := ""
	if contentFile != "" {
		data, err := readContentFile(contentFile)
		if err != nil {
			return err
		}
		content = string(data)
	}

	raw, err := buildCheckEvent(tool, path, content, oldText, newText)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decision := hook.NewEngine(root, logger).Preview(ctx, raw)

	if outputJSON {
		return json.NewEncoder(os.Stdout).Encode(decision)
	}

	if decision.Proceed {
		fmt.Println("Write would proceed.")
		if decision.HookSpecificOutput != nil && decision.HookSpecificOutput.AdditionalContext != "" {
			fmt.Println(decision.HookSpecificOutput.AdditionalContext)
		}
		return nil
	}
	fmt.Println("Write would be blocked.")
	fmt.Println()
	fmt.Println(decision.Message)
	return nil
}

// buildCheckEvent assembles the hook event the dry run feeds the engine.
func buildCheckEvent(tool, path, content, oldText, newText string) ([]byte, error) {
	var input any
	switch tool {
	case hook.ToolWrite:
		input = map[string]string{"file_path": path, "content": content}
	case hook.ToolEdit:
		input = map[string]string{"file_path": path, "old_string": oldText, "new_string": newText}
	default:
		return nil, fmt.Errorf("unsupported tool kind %q (use Write or Edit)", tool)
	}

	raw, err := json.Marshal(map[string]any{"tool_name": tool, "tool_input": input})
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return raw, nil
}

func readContentFile(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content file: %w", err)
	}
	return data, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Seed .writegate/policy.yaml with the packaged default",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func runInit() error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}

	path := config.ProjectPolicyPath(root)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Policy already exists at %s\n", path)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}
	if err := os.WriteFile(path, config.DefaultPolicyText(), 0644); err != nil {
		return fmt.Errorf("write policy: %w", err)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}

// loadEffectivePolicy loads the project policy when present, the
// packaged default otherwise, and names which one applied.
func loadEffectivePolicy(root string) (*config.Config, string, error) {
	path := config.ProjectPolicyPath(root)
	if _, err := os.Stat(path); err == nil {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	cfg, err := config.Default()
	if err != nil {
		return nil, "", err
	}
	return cfg, "packaged default", nil
}
