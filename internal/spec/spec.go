// Package spec parses the descriptor grammar shared by the capability
// factories and the algorithm parser: "Name" or "Name(key=value,flag,...)",
// with nesting-aware separators so bracketed values survive intact.
package spec

import (
	"errors"
	"fmt"
	"strings"
)

// Parse splits a capability spec into its name and argument map. A bare
// argument with no "=" is a flag and maps to "true". "Name" alone and
// "Name()" both yield a nil argument map.
func Parse(s string) (string, map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, errors.New("spec: empty descriptor")
	}

	open := strings.IndexByte(s, '(')
	if open < 0 {
		return s, nil, nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", nil, fmt.Errorf("spec: unterminated argument list in %q", s)
	}

	name := s[:open]
	if name == "" {
		return "", nil, fmt.Errorf("spec: missing name in %q", s)
	}

	body := s[open+1 : len(s)-1]
	if body == "" {
		return name, nil, nil
	}

	args := make(map[string]string)
	for _, kv := range Split(body, ',') {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			value = "true"
		}
		args[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return name, args, nil
}

// Split splits s on sep at bracket nesting depth zero. Parens, brackets,
// braces and angle brackets all open a nested region the separator does
// not terminate.
func Split(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
