package config

import (
	"fmt"
	"strings"
)

// ParseArgs splits a command-line argument string on whitespace without
// invoking a shell. Single and double quotes group words and a backslash
// escapes the next rune outside single quotes.
func ParseArgs(input string) ([]string, error) {
	var (
		args     []string
		current  strings.Builder
		inWord   bool
		inSingle bool
		inDouble bool
		escaped  bool
	)

	flush := func() {
		if !inWord {
			return
		}
		args = append(args, current.String())
		current.Reset()
		inWord = false
	}

	for _, r := range input {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && !inSingle:
			escaped = true
			inWord = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			inWord = true
		case r == '"' && !inSingle:
			inDouble = !inDouble
			inWord = true
		case isArgSpace(r) && !inSingle && !inDouble:
			flush()
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if escaped {
		return nil, fmt.Errorf("unterminated escape in arguments")
	}
	if inSingle || inDouble {
		return nil, fmt.Errorf("unterminated quote in arguments")
	}
	flush()

	return args, nil
}

func isArgSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
