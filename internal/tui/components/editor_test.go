package components

import "testing"

func TestStripControlSequences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello world", "hello world"},
		{"osc with bel", "hi\x1b]11;rgb:1e1e/2121/2626\x07there", "hithere"},
		{"osc with st", "hi\x1b]11;rgb:1e1e/2121/2626\x1b\\there", "hithere"},
		{"csi sequence", "a\x1b[38;5;120mb", "ab"},
		{"bare esc at end", "text\x1b", "text"},
		{"leaked osc reply without esc", "]11;rgb:0000/0000/0000\x07what is Go?", "what is Go?"},
		{"multiline survives", "line one\nline two", "line one\nline two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripControlSequences(tt.input); got != tt.want {
				t.Errorf("stripControlSequences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEditorValueTrimsAndFilters(t *testing.T) {
	e := NewEditor(80, 5)
	e.SetValue("  \x1b]11;rgb:1111/2222/3333\x07ship it  ")
	if got := e.Value(); got != "ship it" {
		t.Errorf("Value() = %q, want filtered and trimmed input", got)
	}
}
