package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty", input: "  ", want: nil},
		{name: "simple", input: "mpv --no-video --really-quiet", want: []string{"mpv", "--no-video", "--really-quiet"}},
		{name: "placeholder", input: "ffplay -nodisp -autoexit {file}", want: []string{"ffplay", "-nodisp", "-autoexit", "{file}"}},
		{name: "double quotes", input: `paplay --client-name "talkie reply"`, want: []string{"paplay", "--client-name", "talkie reply"}},
		{name: "single quotes are literal", input: `echo 'a\b'`, want: []string{"echo", `a\b`}},
		{name: "escape inside double quotes", input: `echo "say \"hi\""`, want: []string{"echo", `say "hi"`}},
		{name: "escaped space", input: `mycmd hello\ world`, want: []string{"mycmd", "hello world"}},
		{name: "adjacent quoted parts join", input: `x a'b c'"d"`, want: []string{"x", "ab cd"}},
		{name: "empty quoted argument", input: `x ""`, want: []string{"x", ""}},
		{name: "disabled", input: `# mpv -`, want: nil},
		{name: "unterminated double quote", input: `mycmd "oops`, wantErr: "unterminated quote"},
		{name: "unterminated single quote", input: `mycmd 'oops`, wantErr: "unterminated quote"},
		{name: "unterminated escape", input: `mycmd hello\`, wantErr: "unterminated escape"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCommand(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Argv)
			require.Equal(t, tc.input, got.Raw)
		})
	}
}
