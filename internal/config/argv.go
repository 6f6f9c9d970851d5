package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// FilePlaceholder marks where a command receives the audio file path. Without
// it the path is appended as the last argument.
const FilePlaceholder = "{file}"

var (
	errOpenQuote  = errors.New("unterminated quote")
	errOpenEscape = errors.New("unterminated escape")
)

// ParseCommand splits raw into argv with POSIX shell quoting: single quotes
// are literal, double quotes honour backslash escapes, and a leading '#'
// disables the command.
func ParseCommand(raw string) (CommandConfig, error) {
	argv, err := splitWords(raw)
	if err != nil {
		return CommandConfig{}, fmt.Errorf("%w in command %q", err, raw)
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

func splitWords(raw string) ([]string, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s[0] == '#' {
		return nil, nil
	}

	var (
		words  []string
		word   strings.Builder
		inWord bool
	)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			if inWord {
				words = append(words, word.String())
				word.Reset()
				inWord = false
			}
		case r == '\\':
			if i+1 >= len(runes) {
				return nil, errOpenEscape
			}
			i++
			word.WriteRune(runes[i])
			inWord = true
		case r == '\'':
			end := indexRune(runes, i+1, '\'')
			if end < 0 {
				return nil, errOpenQuote
			}
			word.WriteString(string(runes[i+1 : end]))
			i = end
			inWord = true
		case r == '"':
			i++
			for ; i < len(runes) && runes[i] != '"'; i++ {
				if runes[i] == '\\' && i+1 < len(runes) && strings.ContainsRune(`"\$`+"`", runes[i+1]) {
					i++
				}
				word.WriteRune(runes[i])
			}
			if i >= len(runes) {
				return nil, errOpenQuote
			}
			inWord = true
		default:
			word.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		words = append(words, word.String())
	}
	return words, nil
}

func indexRune(runes []rune, from int, want rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == want {
			return i
		}
	}
	return -1
}
