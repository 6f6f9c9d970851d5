// Package transcript normalizes text crossing the voice boundary: recognized
// speech coming in and reply text going out to synthesis.
package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Options controls transcript normalization.
type Options struct {
	CapitalizeFirst bool
}

// Clean collapses whitespace in a recognized transcription.
func Clean(text string, opts Options) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return ""
	}
	if opts.CapitalizeFirst {
		normalized = capitalizeFirst(normalized)
	}
	return normalized
}

// Speakable prepares reply text for synthesis. Markdown emphasis markers are
// read aloud by most voices, so asterisks are removed.
func Speakable(text string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(text, "*", "")), " ")
}

func capitalizeFirst(text string) string {
	r, size := utf8.DecodeRuneInString(text)
	if r == utf8.RuneError || !unicode.IsLower(r) {
		return text
	}
	return string(unicode.ToUpper(r)) + text[size:]
}
