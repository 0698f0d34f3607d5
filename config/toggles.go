package config

import (
	"os"
	"strings"
)

// EnvKillSwitch force-disables every check category when set to a falsy
// value ("false", "0" or empty). When unset, configuration governs.
const EnvKillSwitch = "WRITEGATE_ENABLED"

// Toggles is the read-only snapshot of enabled check categories computed
// fresh for one evaluation. Each field already folds in its parents, so
// callers test a single boolean.
type Toggles struct {
	Master           bool
	V1               bool
	CredentialScan   bool
	StructuralChecks bool
	V2               bool
	V2Settings       V2Settings
}

// DeriveToggles computes the toggle snapshot from settings plus the
// environment kill switch.
func DeriveToggles(s Settings) Toggles {
	master := s.Enabled
	if v, ok := os.LookupEnv(EnvKillSwitch); ok && isFalsy(v) {
		master = false
	}
	t := Toggles{
		Master:     master,
		V2Settings: s.V2,
	}
	t.V1 = master && s.V1.Enabled
	t.CredentialScan = t.V1 && s.V1.CredentialScan
	t.StructuralChecks = t.V1 && s.V1.StructuralChecks
	t.V2 = master && s.V2.Enabled
	return t
}

func isFalsy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false":
		return true
	}
	return false
}
