package harness

import (
	"reflect"
	"testing"
)

func TestPromptScanner(t *testing.T) {
	tests := []struct {
		name        string
		prompt      string
		chunks      []string
		want        []string
		wantPending string
	}{
		{
			name:   "single prompt yields preceding text",
			prompt: "> ",
			chunks: []string{"hello\n> "},
			want:   []string{"hello\n"},
		},
		{
			name:   "prompt only",
			prompt: "> ",
			chunks: []string{"> "},
			want:   []string{""},
		},
		{
			name:        "no prompt keeps accumulating",
			prompt:      "> ",
			chunks:      []string{"partial ", "output"},
			want:        nil,
			wantPending: "partial output",
		},
		{
			name:   "output spread over chunks",
			prompt: "> ",
			chunks: []string{"line one\n", "line two\n", "> "},
			want:   []string{"line one\nline two\n"},
		},
		{
			name:   "prompt split across chunks",
			prompt: "corporal> ",
			chunks: []string{"done\ncorp", "oral> "},
			want:   []string{"done\n"},
		},
		{
			name:        "text after prompt stays pending",
			prompt:      "> ",
			chunks:      []string{"a\n> b"},
			want:        []string{"a\n"},
			wantPending: "b",
		},
		{
			name:   "several prompts in one chunk",
			prompt: "$ ",
			chunks: []string{"one\n$ two\n$ "},
			want:   []string{"one\n", "two\n"},
		},
		{
			name:        "empty prompt never matches",
			prompt:      "",
			chunks:      []string{"abc"},
			want:        nil,
			wantPending: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := promptScanner{prompt: tt.prompt}
			var got []string
			for _, chunk := range tt.chunks {
				got = append(got, scanner.Write(chunk)...)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("outputs = %q, want %q", got, tt.want)
			}
			if scanner.Pending() != tt.wantPending {
				t.Errorf("Pending() = %q, want %q", scanner.Pending(), tt.wantPending)
			}
		})
	}
}
