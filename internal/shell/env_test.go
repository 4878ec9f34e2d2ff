package shell

import (
	"reflect"
	"testing"
)

func TestParseEnv(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Env
		wantErr bool
	}{
		{
			name:  "empty uses default prompts",
			input: "",
			want:  Env{"ps1": "> ", "ps2": "> "},
		},
		{
			name:  "custom prompts",
			input: `{"ps1":"$ ","ps2":"... "}`,
			want:  Env{"ps1": "$ ", "ps2": "... "},
		},
		{
			name:  "extra keys and non-string values",
			input: `{"ps1":"$ ","user":"admin","retries":3,"debug":true}`,
			want:  Env{"ps1": "$ ", "ps2": "> ", "user": "admin", "retries": "3", "debug": "true"},
		},
		{
			name:  "dotted keys stay flat",
			input: `{"a.b":"c"}`,
			want:  Env{"ps1": "> ", "ps2": "> ", "a.b": "c"},
		},
		{
			name:    "invalid json",
			input:   `{"ps1":`,
			wantErr: true,
		},
		{
			name:    "not an object",
			input:   `["ps1"]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEnv(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}
