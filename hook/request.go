package hook

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/c360studio/writegate/checks"
)

// Tool kinds recognized as file mutations. Events naming any other tool
// pass through without inspection.
const (
	ToolWrite     = "Write"
	ToolEdit      = "Edit"
	ToolMultiEdit = "MultiEdit"
)

// Event is one hook invocation as read from the input stream.
type Event struct {
	ToolName  string          `json:"tool_name"`
	ToolInput json.RawMessage `json:"tool_input"`
}

// Mutation is a recognized file mutation extracted from an event.
type Mutation struct {
	// Path is the target file as a forward-slash path, relative to the
	// project root when the target lies under it.
	Path string
	// Tool is the write operation kind, one of the Tool constants.
	Tool string
	// View is the normalized edit view the checks consume.
	View checks.View
}

// ParseEvent decodes a raw hook event.
func ParseEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("parse hook event: %w", err)
	}
	return &ev, nil
}

type writeInput struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

type editInput struct {
	FilePath  string `json:"file_path"`
	OldString string `json:"old_string"`
	NewString string `json:"new_string"`
}

type multiEditInput struct {
	FilePath string      `json:"file_path"`
	Edits    []editEntry `json:"edits"`
}

type editEntry struct {
	OldString string `json:"old_string"`
	NewString string `json:"new_string"`
}

// Mutation extracts the proposed file mutation from the event. The second
// return is false when the event's tool is not a write operation.
func (e *Event) Mutation(root string) (*Mutation, bool, error) {
	switch e.ToolName {
	case ToolWrite:
		var in writeInput
		if err := json.Unmarshal(e.ToolInput, &in); err != nil {
			return nil, false, fmt.Errorf("parse %s input: %w", e.ToolName, err)
		}
		if in.FilePath == "" {
			return nil, false, fmt.Errorf("%s input has no file_path", e.ToolName)
		}
		return &Mutation{
			Path: NormalizePath(in.FilePath, root),
			Tool: e.ToolName,
			View: checks.FullReplacement(in.Content),
		}, true, nil

	case ToolEdit:
		var in editInput
		if err := json.Unmarshal(e.ToolInput, &in); err != nil {
			return nil, false, fmt.Errorf("parse %s input: %w", e.ToolName, err)
		}
		if in.FilePath == "" {
			return nil, false, fmt.Errorf("%s input has no file_path", e.ToolName)
		}
		return &Mutation{
			Path: NormalizePath(in.FilePath, root),
			Tool: e.ToolName,
			View: checks.PartialEdits([]checks.Edit{{OldText: in.OldString, NewText: in.NewString}}),
		}, true, nil

	case ToolMultiEdit:
		var in multiEditInput
		if err := json.Unmarshal(e.ToolInput, &in); err != nil {
			return nil, false, fmt.Errorf("parse %s input: %w", e.ToolName, err)
		}
		if in.FilePath == "" {
			return nil, false, fmt.Errorf("%s input has no file_path", e.ToolName)
		}
		edits := make([]checks.Edit, 0, len(in.Edits))
		for _, ed := range in.Edits {
			edits = append(edits, checks.Edit{OldText: ed.OldString, NewText: ed.NewString})
		}
		return &Mutation{
			Path: NormalizePath(in.FilePath, root),
			Tool: e.ToolName,
			View: checks.PartialEdits(edits),
		}, true, nil

	default:
		return nil, false, nil
	}
}

// NormalizePath rewrites p as a clean forward-slash path, relative to root
// when p lies under it. Paths outside the root keep their absolute form.
func NormalizePath(p, root string) string {
	p = filepath.ToSlash(filepath.Clean(p))
	if root == "" {
		return p
	}
	r := filepath.ToSlash(filepath.Clean(root))
	if p == r {
		return "."
	}
	return strings.TrimPrefix(p, r+"/")
}
