package checks

import (
	"strings"
	"testing"

	"github.com/c360studio/writegate/policy"
)

func TestNoWriteAllowed(t *testing.T) {
	t.Run("default message names the path", func(t *testing.T) {
		r := policy.Rule{Name: "env-lock", Tier: policy.TierCritical}
		v := NoWriteAllowed(r, ".env")
		if v.Check != policy.CheckNoWriteAllowed {
			t.Errorf("check = %q, want %q", v.Check, policy.CheckNoWriteAllowed)
		}
		if v.Tier != policy.TierCritical {
			t.Errorf("tier = %q, want critical", v.Tier)
		}
		if !strings.Contains(v.Message, ".env") {
			t.Errorf("message %q should name the path", v.Message)
		}
	})

	t.Run("rule message wins", func(t *testing.T) {
		r := policy.Rule{Name: "env-lock", Tier: policy.TierHigh, Message: "edit .env.example instead"}
		v := NoWriteAllowed(r, ".env")
		if v.Message != "edit .env.example instead" {
			t.Errorf("message = %q, want rule-supplied text", v.Message)
		}
	})
}

func TestKeyDeletion(t *testing.T) {
	rule := policy.Rule{Name: "registry", Tier: policy.TierHigh}

	tests := []struct {
		name     string
		view     View
		prior    string
		hasPrior bool
		want     []string
	}{
		{
			name:     "full replacement drops a key",
			view:     FullReplacement("api:\n  url: x\n"),
			prior:    "api:\n  url: x\ndatabase:\n  host: y\n",
			hasPrior: true,
			want:     []string{"top-level key would be removed: database"},
		},
		{
			name:     "indented keys are not top-level",
			view:     FullReplacement("api:\n  timeout: 5\n"),
			prior:    "api:\n  url: x\n",
			hasPrior: true,
			want:     nil,
		},
		{
			name: "partial edit drops a key",
			view: PartialEdits([]Edit{
				{OldText: "cache:\n  ttl: 60\n", NewText: "# cache removed\n"},
			}),
			want: []string{"top-level key would be removed: cache"},
		},
		{
			name:     "new file has no prior keys",
			view:     FullReplacement("api:\n  url: x\n"),
			hasPrior: false,
			want:     nil,
		},
		{
			name:     "all keys kept",
			view:     FullReplacement("api: 1\ndatabase: 2\n"),
			prior:    "database: 2\napi: 1\n",
			hasPrior: true,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeyDeletion(rule, tt.view, tt.prior, tt.hasPrior)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d violations, want %d: %+v", len(got), len(tt.want), got)
			}
			for i, v := range got {
				if v.Message != tt.want[i] {
					t.Errorf("violation %d message = %q, want %q", i, v.Message, tt.want[i])
				}
				if v.Check != policy.CheckKeyDeletion || v.Tier != policy.TierHigh {
					t.Errorf("violation %d = %+v, want key_deletion_protection at high", i, v)
				}
			}
		})
	}
}

func TestShebangPreservation(t *testing.T) {
	rule := policy.Rule{Name: "scripts", Tier: policy.TierMedium}

	tests := []struct {
		name     string
		view     View
		prior    string
		hasPrior bool
		want     int
	}{
		{
			name:     "shebang dropped in full replacement",
			view:     FullReplacement("echo hello\n"),
			prior:    "#!/bin/bash\necho hello\n",
			hasPrior: true,
			want:     1,
		},
		{
			name:     "shebang replaced with another interpreter",
			view:     FullReplacement("#!/usr/bin/env python3\nprint()\n"),
			prior:    "#!/bin/bash\necho hello\n",
			hasPrior: true,
			want:     0,
		},
		{
			name:     "no shebang in prior content",
			view:     FullReplacement("echo hello\n"),
			prior:    "echo hello\n",
			hasPrior: true,
			want:     0,
		},
		{
			name: "partial edit removes the first line",
			view: PartialEdits([]Edit{
				{OldText: "#!/bin/sh\nset -e", NewText: "set -e"},
			}),
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShebangPreservation(rule, tt.view, tt.prior, tt.hasPrior)
			if len(got) != tt.want {
				t.Fatalf("got %d violations, want %d: %+v", len(got), tt.want, got)
			}
			if tt.want == 1 && !strings.Contains(got[0].Message, "#!") {
				t.Errorf("message %q should quote the removed line", got[0].Message)
			}
		})
	}
}
