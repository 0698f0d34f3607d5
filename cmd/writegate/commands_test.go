package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/writegate/audit"
	"github.com/c360studio/writegate/config"
	"github.com/c360studio/writegate/hook"
	"github.com/c360studio/writegate/policy"
)

// useRoot points the global root flag at a temp project for one test.
func useRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := rootPath
	rootPath = dir
	t.Cleanup(func() { rootPath = old })
	return dir
}

func TestBuildCheckEventWrite(t *testing.T) {
	raw, err := buildCheckEvent(hook.ToolWrite, "docs/plan.md", "# Plan\n", "", "")
	if err != nil {
		t.Fatalf("buildCheckEvent: %v", err)
	}

	ev, err := hook.ParseEvent(raw)
	if err != nil {
		t.Fatalf("parse produced event: %v", err)
	}
	m, ok, err := ev.Mutation("")
	if err != nil || !ok {
		t.Fatalf("expected a recognized mutation, got ok=%t err=%v", ok, err)
	}
	if m.Path != "docs/plan.md" {
		t.Errorf("expected path docs/plan.md, got %s", m.Path)
	}
	if !m.View.Full || m.View.Content != "# Plan\n" {
		t.Errorf("expected full replacement with content, got %+v", m.View)
	}
}

func TestBuildCheckEventEdit(t *testing.T) {
	raw, err := buildCheckEvent(hook.ToolEdit, "notes.md", "", "## Old", "## New")
	if err != nil {
		t.Fatalf("buildCheckEvent: %v", err)
	}

	ev, err := hook.ParseEvent(raw)
	if err != nil {
		t.Fatalf("parse produced event: %v", err)
	}
	m, ok, err := ev.Mutation("")
	if err != nil || !ok {
		t.Fatalf("expected a recognized mutation, got ok=%t err=%v", ok, err)
	}
	if m.View.Full {
		t.Fatal("expected partial edit view")
	}
	if len(m.View.Edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(m.View.Edits))
	}
	if m.View.Edits[0].OldText != "## Old" || m.View.Edits[0].NewText != "## New" {
		t.Errorf("unexpected edit pair: %+v", m.View.Edits[0])
	}
}

func TestBuildCheckEventRejectsUnknownTool(t *testing.T) {
	if _, err := buildCheckEvent("Bash", "x.sh", "", "", ""); err == nil {
		t.Fatal("expected error for unsupported tool kind")
	}
}

func TestExpiryPhrase(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(90 * time.Second)

	tests := []struct {
		name    string
		expires *time.Time
		want    string
	}{
		{"no expiry", nil, "never expires"},
		{"expired", &past, "expired"},
		{"pending", &future, "expires in 1m30s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expiryPhrase(tt.expires, now); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatAuditRecord(t *testing.T) {
	rec := audit.Record{
		Timestamp: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Action:    audit.ActionBlocked,
		File:      "api/.env",
		Rules:     []string{"env-files"},
		Violations: []policy.Violation{
			{Check: policy.CheckNoWriteAllowed, Tier: policy.TierCritical, Message: ".env is write-protected"},
		},
	}

	got := formatAuditRecord(rec)
	for _, want := range []string{
		"2026-03-14T10:00:00Z",
		"blocked",
		"api/.env",
		"rules: env-files",
		"[critical] .env is write-protected",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestFormatAuditRecordNoRules(t *testing.T) {
	rec := audit.Record{
		Timestamp: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Action:    audit.ActionLogged,
		File:      "notes.md",
	}

	got := formatAuditRecord(rec)
	if strings.Contains(got, "rules:") {
		t.Errorf("expected no rules segment, got:\n%s", got)
	}
}

func TestRunInitSeedsPolicy(t *testing.T) {
	dir := useRoot(t)

	if err := runInit(); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	path := config.ProjectPolicyPath(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read seeded policy: %v", err)
	}
	if _, err := config.Parse(data); err != nil {
		t.Fatalf("seeded policy does not parse: %v", err)
	}
}

func TestRunInitKeepsExistingPolicy(t *testing.T) {
	dir := useRoot(t)
	path := config.ProjectPolicyPath(dir)

	custom := []byte("settings:\n  enabled: false\n")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, custom, 0644); err != nil {
		t.Fatalf("write custom policy: %v", err)
	}

	if err := runInit(); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read policy: %v", err)
	}
	if !bytes.Equal(data, custom) {
		t.Error("expected existing policy to survive init")
	}
}

func TestLoadEffectivePolicy(t *testing.T) {
	dir := t.TempDir()

	cfg, source, err := loadEffectivePolicy(dir)
	if err != nil {
		t.Fatalf("loadEffectivePolicy without project file: %v", err)
	}
	if source != "packaged default" {
		t.Errorf("expected packaged default source, got %q", source)
	}
	if !cfg.Settings.Enabled {
		t.Error("expected packaged default to be enabled")
	}

	path := config.ProjectPolicyPath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("settings:\n  enabled: false\n"), 0644); err != nil {
		t.Fatalf("write project policy: %v", err)
	}

	cfg, source, err = loadEffectivePolicy(dir)
	if err != nil {
		t.Fatalf("loadEffectivePolicy with project file: %v", err)
	}
	if source != path {
		t.Errorf("expected source %q, got %q", path, source)
	}
	if cfg.Settings.Enabled {
		t.Error("expected project policy to be loaded")
	}
}
