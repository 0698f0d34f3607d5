package override

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// File is the name of the override collection under the project directory.
const File = "overrides.json"

// Record is one approval: a path pattern, the approver's reason and an
// optional absolute expiry. A record with no expiry never expires.
type Record struct {
	File    string     `json:"file"`
	Reason  string     `json:"reason"`
	Expires *time.Time `json:"expires,omitempty"`
}

// matches reports whether the record covers path and is unexpired at now.
func (r Record) matches(path string, now time.Time) bool {
	if !Exact(r.File).Matches(path) && !DirectorySuffix(r.File).Matches(path) {
		return false
	}
	return r.Expires == nil || r.Expires.After(now)
}

type document struct {
	Overrides []Record `json:"overrides"`
}

// Store reads, consumes and appends override records persisted as a JSON
// document. All read or parse failures on the grant side resolve to "no
// override"; consumption is best-effort and never surfaces an error.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewStore creates a store rooted at the given project directory.
func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   filepath.Join(root, ".writegate", File),
		logger: logger,
	}
}

// Has reports whether an unexpired override covers path.
func (s *Store) Has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return false
	}
	now := time.Now()
	for _, rec := range doc.Overrides {
		if rec.matches(path, now) {
			return true
		}
	}
	return false
}

// Consume removes every unexpired record covering path. When the
// collection becomes empty the file is deleted. Failures are logged and
// swallowed so a consumption problem can never block the surrounding
// decision.
func (s *Store) Consume(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		s.logger.Warn("Failed to read override collection", slog.String("error", err.Error()))
		return
	}

	now := time.Now()
	remaining := doc.Overrides[:0]
	for _, rec := range doc.Overrides {
		if !rec.matches(path, now) {
			remaining = append(remaining, rec)
		}
	}
	if len(remaining) == len(doc.Overrides) {
		return
	}
	doc.Overrides = remaining

	if len(doc.Overrides) == 0 {
		if err := os.Remove(s.path); err != nil {
			s.logger.Warn("Failed to delete empty override collection", slog.String("error", err.Error()))
		}
		return
	}
	if err := s.write(doc); err != nil {
		s.logger.Warn("Failed to rewrite override collection", slog.String("error", err.Error()))
	}
}

// Add appends a record, creating the collection if needed.
func (s *Store) Add(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return fmt.Errorf("read override collection: %w", err)
	}
	doc.Overrides = append(doc.Overrides, rec)
	if err := s.write(doc); err != nil {
		return fmt.Errorf("write override collection: %w", err)
	}
	return nil
}

// List returns the current records, expired ones included.
func (s *Store) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("read override collection: %w", err)
	}
	return doc.Overrides, nil
}

// Clear deletes the whole collection.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete override collection: %w", err)
	}
	return nil
}

// read loads the collection; a missing file is an empty collection.
func (s *Store) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &document{}, nil
	}
	if err != nil {
		return nil, err
	}
	doc := &document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) write(doc *document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}
