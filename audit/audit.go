// Package audit persists one append-only JSON record per rendered
// decision.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/c360studio/writegate/policy"
)

// File is the name of the audit log under the project directory.
const File = "audit.jsonl"

// Action classifies the decision recorded for one mutation.
type Action string

// Audit actions, one per decision outcome that leaves a trace.
const (
	ActionBlocked      Action = "blocked"
	ActionWarned       Action = "warned"
	ActionLogged       Action = "logged"
	ActionOverrideUsed Action = "override_used"
)

// Record is one audit entry.
type Record struct {
	Timestamp  time.Time          `json:"timestamp"`
	Action     Action             `json:"action"`
	File       string             `json:"file"`
	Violations []policy.Violation `json:"violations"`
	Rules      []string           `json:"rules,omitempty"`
}

// Log appends and reads decision records.
type Log struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewLog creates a log rooted at the given project directory.
func NewLog(root string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		path:   filepath.Join(root, ".writegate", File),
		logger: logger,
	}
}

// Path returns the audit file location.
func (l *Log) Path() string {
	return l.path
}

// Append writes one record as a JSON line. Failures are logged and
// swallowed; auditing must never affect the decision being recorded.
func (l *Log) Append(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if err := l.append(rec); err != nil {
		l.logger.Warn("Failed to append audit record", slog.String("error", err.Error()))
	}
}

func (l *Log) append(rec Record) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return f.Sync()
}

// ReadAll returns every parseable record in append order. Malformed lines
// are skipped. A missing log reads as empty.
func (l *Log) ReadAll() (records []Record, err error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// Tail returns the last n records.
func (l *Log) Tail(n int) ([]Record, error) {
	records, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	if n <= 0 || n >= len(records) {
		return records, nil
	}
	return records[len(records)-n:], nil
}
