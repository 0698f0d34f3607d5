package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Follow invokes fn for each record appended after the call, until ctx is
// done. The log file does not have to exist yet; records stream as soon
// as something writes them.
func (l *Log) Follow(ctx context.Context, fn func(Record)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch audit directory: %w", err)
	}

	// Start at the current end so only new records stream.
	var offset int64
	if info, err := os.Stat(l.path); err == nil {
		offset = info.Size()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != l.path {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				offset = 0
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			offset, err = l.emitFrom(offset, fn)
			if err != nil {
				l.logger.Warn("Failed to read appended audit records", slog.String("error", err.Error()))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("Audit watcher error", slog.String("error", err.Error()))
		}
	}
}

// emitFrom reads complete lines starting at offset, invoking fn per
// parseable record, and returns the new offset. A trailing partial line
// stays unconsumed until the next write event completes it.
func (l *Log) emitFrom(offset int64, fn func(Record)) (int64, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return offset, err
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() < offset {
		// Truncated or recreated underneath us.
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return offset, nil
		}
		if err != nil {
			return offset, err
		}
		offset += int64(len(line))

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		fn(rec)
	}
}
