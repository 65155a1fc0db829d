package shell

import (
	"fmt"
	"strings"
)

// tokenize splits a command line into fields. Single and double quotes
// group words containing spaces; a backslash escapes the next character
// outside single quotes. Quote characters themselves are stripped.
func tokenize(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		escaped bool
		pending bool
	)

	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			pending = true
			escaped = false

		case r == '\\' && quote != '\'':
			escaped = true

		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}

		case r == '\'' || r == '"':
			quote = r
			pending = true

		case r == ' ' || r == '\t':
			if pending {
				args = append(args, current.String())
				current.Reset()
				pending = false
			}

		default:
			current.WriteRune(r)
			pending = true
		}
	}

	if escaped {
		return nil, fmt.Errorf("trailing backslash")
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if pending {
		args = append(args, current.String())
	}
	return args, nil
}
