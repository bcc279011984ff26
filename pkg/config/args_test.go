package config

import (
	"reflect"
	"testing"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{name: "empty", input: "", want: nil},
		{name: "whitespace only", input: " \t ", want: nil},
		{name: "plain words", input: "stdio --enable-command-logging", want: []string{"stdio", "--enable-command-logging"}},
		{name: "repeated spaces", input: "  a   b  ", want: []string{"a", "b"}},
		{name: "double quotes", input: `--log-file "my log.txt"`, want: []string{"--log-file", "my log.txt"}},
		{name: "single quotes keep backslash", input: `'a\b'`, want: []string{`a\b`}},
		{name: "escaped space", input: `a\ b c`, want: []string{"a b", "c"}},
		{name: "empty quoted arg", input: `x ""`, want: []string{"x", ""}},
		{name: "unterminated quote", input: `"abc`, wantErr: true},
		{name: "unterminated escape", input: `abc\`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseArgs(%q): %v", tt.input, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseArgs(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}
