package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	// ProjectDir is the per-project directory writegate state lives in.
	ProjectDir = ".writegate"
	// PolicyFile is the name of the project-level policy file.
	PolicyFile = "policy.yaml"
)

//go:embed default_policy.yaml
var defaultPolicy []byte

// Default returns the packaged default policy document.
func Default() (*Config, error) {
	cfg, err := Parse(defaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to load packaged default policy: %w", err)
	}
	return cfg, nil
}

// DefaultPolicyText returns the raw packaged policy document, for seeding
// a project-level policy file.
func DefaultPolicyText() []byte {
	return defaultPolicy
}

// ProjectPolicyPath returns the project policy file location under root.
func ProjectPolicyPath(root string) string {
	return filepath.Join(root, ProjectDir, PolicyFile)
}

// Snapshot caches the loaded policy document keyed by source path and
// modification time. Refresh re-checks the source and reparses only when
// the project file appeared, disappeared or changed, so repeated
// evaluations in one process reuse the parsed document.
type Snapshot struct {
	logger *slog.Logger
	path   string

	cached      *Config
	mtime       time.Time
	fromDefault bool
}

// NewSnapshot creates a snapshot rooted at the given project directory.
func NewSnapshot(root string, logger *slog.Logger) *Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshot{logger: logger, path: ProjectPolicyPath(root)}
}

// Refresh returns the current policy document, loading it if the cached
// copy is stale. The project file, when present, replaces the packaged
// default entirely.
func (s *Snapshot) Refresh() (*Config, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if s.cached != nil && s.fromDefault {
			return s.cached, nil
		}
		cfg, err := Default()
		if err != nil {
			return nil, err
		}
		s.logger.Debug("Using packaged default policy")
		s.cached = cfg
		s.fromDefault = true
		return cfg, nil
	}

	if s.cached != nil && !s.fromDefault && info.ModTime().Equal(s.mtime) {
		return s.cached, nil
	}

	cfg, err := LoadFromFile(s.path)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Loaded project policy", slog.String("path", s.path))
	s.cached = cfg
	s.mtime = info.ModTime()
	s.fromDefault = false
	return cfg, nil
}
