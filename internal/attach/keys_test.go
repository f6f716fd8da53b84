package attach

import (
	"reflect"
	"testing"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
		want  []action
	}{
		{"plain", "ls -la", []action{{kind: actionInput, data: "ls -la"}}},
		{"empty", "", nil},
		{"undo alone", "\x1f", []action{{kind: actionUndo}}},
		{"redo alone", "\x1e", []action{{kind: actionRedo}}},
		{"clear alone", "\x18", []action{{kind: actionClearLine}}},
		{
			name:  "mixed",
			chunk: "ab\x1fcd\x1e\x18e",
			want: []action{
				{kind: actionInput, data: "ab"},
				{kind: actionUndo},
				{kind: actionInput, data: "cd"},
				{kind: actionRedo},
				{kind: actionClearLine},
				{kind: actionInput, data: "e"},
			},
		},
		{"other controls pass through", "\x03\x1b[A\r", []action{{kind: actionInput, data: "\x03\x1b[A\r"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseInput([]byte(tt.chunk))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseInput(%q) = %+v, want %+v", tt.chunk, got, tt.want)
			}
		})
	}
}
