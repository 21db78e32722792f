package log

import (
	"fmt"
	"strings"
)

// token is a single key=value pair of a config line such as
// `file=/tmp/foxshot.log,level=info`. Values wrapped in [] may contain
// commas, inside records the opening bracket when that happened.
type token struct {
	key, value string
	inside     rune
}

func tokenize(line string) ([]token, error) {
	var (
		tokens []token
		rest   = line
	)
	for rest != "" {
		var tk token
		eq := strings.IndexAny(rest, "=,")
		if eq < 0 || rest[eq] == ',' {
			// a bare key, e.g. `file`
			end := eq
			if end < 0 {
				end = len(rest)
			}
			tk.key = rest[:end]
			tokens = append(tokens, tk)
			if end == len(rest) {
				break
			}
			rest = rest[end+1:]
			continue
		}

		tk.key = rest[:eq]
		rest = rest[eq+1:]

		switch {
		case strings.HasPrefix(rest, "["):
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("key `%s` has an unclosed `[`", tk.key)
			}
			tk.value, tk.inside = rest[1:end], '['
			rest = rest[end+1:]
			if rest != "" && rest[0] != ',' {
				return nil, fmt.Errorf("key `%s` has trailing data after `]`", tk.key)
			}
			rest = strings.TrimPrefix(rest, ",")
		default:
			end := strings.IndexByte(rest, ',')
			if end < 0 {
				end = len(rest)
			}
			tk.value = rest[:end]
			if end < len(rest) {
				rest = rest[end+1:]
			} else {
				rest = ""
			}
		}

		if tk.value == "" {
			return nil, fmt.Errorf("key `%s=` with no value", tk.key)
		}
		tokens = append(tokens, tk)
	}

	return tokens, nil
}
