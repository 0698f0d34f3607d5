package hook

import (
	"testing"
)

func TestEventMutation(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantPath  string
		wantFull  bool
		wantEdits int
		wantOK    bool
		wantErr   bool
	}{
		{
			name:     "write is a full replacement",
			raw:      `{"tool_name":"Write","tool_input":{"file_path":"notes.md","content":"hello"}}`,
			wantPath: "notes.md",
			wantFull: true,
			wantOK:   true,
		},
		{
			name:      "edit is one region pair",
			raw:       `{"tool_name":"Edit","tool_input":{"file_path":"a.txt","old_string":"x","new_string":"y"}}`,
			wantPath:  "a.txt",
			wantEdits: 1,
			wantOK:    true,
		},
		{
			name:      "multiedit carries every pair",
			raw:       `{"tool_name":"MultiEdit","tool_input":{"file_path":"a.txt","edits":[{"old_string":"x","new_string":"y"},{"old_string":"p","new_string":"q"}]}}`,
			wantPath:  "a.txt",
			wantEdits: 2,
			wantOK:    true,
		},
		{
			name:   "read passes through",
			raw:    `{"tool_name":"Read","tool_input":{"file_path":"a.txt"}}`,
			wantOK: false,
		},
		{
			name:   "unknown tool passes through",
			raw:    `{"tool_name":"Bash","tool_input":{"command":"rm -rf /"}}`,
			wantOK: false,
		},
		{
			name:    "write input not an object",
			raw:     `{"tool_name":"Write","tool_input":"surprise"}`,
			wantErr: true,
		},
		{
			name:    "write input missing file_path",
			raw:     `{"tool_name":"Write","tool_input":{"content":"hello"}}`,
			wantErr: true,
		},
		{
			name:    "edit input missing entirely",
			raw:     `{"tool_name":"Edit"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.raw))
			if err != nil {
				t.Fatalf("ParseEvent() error = %v", err)
			}

			m, ok, err := ev.Mutation("")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Mutation() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if m.Path != tt.wantPath {
				t.Errorf("path = %q, want %q", m.Path, tt.wantPath)
			}
			if m.View.Full != tt.wantFull {
				t.Errorf("full = %v, want %v", m.View.Full, tt.wantFull)
			}
			if len(m.View.Edits) != tt.wantEdits {
				t.Errorf("edits = %d, want %d", len(m.View.Edits), tt.wantEdits)
			}
		})
	}
}

func TestParseEventRejectsGarbage(t *testing.T) {
	if _, err := ParseEvent([]byte("not json at all")); err == nil {
		t.Fatal("expected error for unparseable event")
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		root string
		want string
	}{
		{"absolute under root", "/work/proj/.env", "/work/proj", ".env"},
		{"nested under root", "/work/proj/docs/plan.md", "/work/proj", "docs/plan.md"},
		{"already relative", "docs/plan.md", "/work/proj", "docs/plan.md"},
		{"dot prefix cleaned", "./notes.md", "", "notes.md"},
		{"root itself", "/work/proj", "/work/proj", "."},
		{"outside root stays absolute", "/etc/passwd", "/work/proj", "/etc/passwd"},
		{"no root", "/work/proj/.env", "", "/work/proj/.env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePath(tt.path, tt.root); got != tt.want {
				t.Errorf("NormalizePath(%q, %q) = %q, want %q", tt.path, tt.root, got, tt.want)
			}
		})
	}
}
