package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// parseJSONC decodes JSON with comments and trailing commas. Comments and
// dropped commas are blanked in place, so decoder offsets still point into
// the file as written.
func parseJSONC(content string, base Config) (Config, []Warning, error) {
	plain, err := blankJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	dec := json.NewDecoder(strings.NewReader(plain))
	dec.DisallowUnknownFields()

	var payload fileConfig
	if err := dec.Decode(&payload); err != nil {
		return Config{}, nil, locate(content, err)
	}
	if dec.More() {
		line, col := lineCol(content, dec.InputOffset()+1)
		return Config{}, nil, fmt.Errorf("line %d column %d: trailing data after the config object", line, col)
	}

	return finish(payload, base)
}

// blankJSONC replaces comments and trailing commas with spaces. Newlines
// inside comments are kept so line numbers do not shift.
func blankJSONC(content string) (string, error) {
	buf := []byte(content)
	lastComma := -1

	for i := 0; i < len(buf); i++ {
		switch c := buf[i]; {
		case c == '"':
			end, err := skipString(buf, i)
			if err != nil {
				return "", err
			}
			i = end
			lastComma = -1
		case c == '/' && i+1 < len(buf) && buf[i+1] == '/':
			for i < len(buf) && buf[i] != '\n' {
				buf[i] = ' '
				i++
			}
		case c == '/' && i+1 < len(buf) && buf[i+1] == '*':
			end := strings.Index(content[i+2:], "*/")
			if end < 0 {
				line, _ := lineCol(content, int64(i+1))
				return "", fmt.Errorf("line %d: unterminated block comment", line)
			}
			stop := i + 2 + end + 2
			for ; i < stop; i++ {
				if buf[i] != '\n' && buf[i] != '\r' {
					buf[i] = ' '
				}
			}
			i--
		case c == ',':
			lastComma = i
		case c == '}' || c == ']':
			if lastComma >= 0 {
				buf[lastComma] = ' '
			}
			lastComma = -1
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		default:
			lastComma = -1
		}
	}
	return string(buf), nil
}

// skipString returns the index of the closing quote of the string at start.
func skipString(buf []byte, start int) (int, error) {
	for i := start + 1; i < len(buf); i++ {
		switch buf[i] {
		case '\\':
			i++
		case '"':
			return i, nil
		}
	}
	return 0, errors.New("unterminated string")
}

// locate prefixes decode errors that carry an offset with line and column.
func locate(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := lineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// lineCol converts a 1-based byte offset to a line and column.
func lineCol(content string, offset int64) (int, int) {
	if offset < 1 {
		offset = 1
	}
	if offset > int64(len(content)) {
		offset = int64(len(content))
	}
	before := content[:max(offset-1, 0)]
	line := strings.Count(before, "\n") + 1
	col := len(before) - strings.LastIndexByte(before, '\n')
	return line, col
}
