package terminalconsole

import (
	"strconv"
	"strings"
)

const (
	LookupPrefix = "tca"

	// KeyDisableAnsi resolves to "true" if ANSI escape sequences are unsupported or disabled, e.g. for
	//	disable_ansi: ${tca:disableAnsi}
	KeyDisableAnsi = "disableAnsi"
)

// Lookup resolves a session property by key.
func (s *Session) Lookup(key string) (string, bool) {
	switch key {
	case KeyDisableAnsi:
		return strconv.FormatBool(!s.AnsiSupported()), true
	}
	return "", false
}

// Expand replaces every ${tca:key} reference in str by the value of Lookup(key). References to unknown keys or
// other prefixes are kept as they are.
func (s *Session) Expand(str string) string {
	start := strings.Index(str, "${")
	if start == -1 {
		return str
	}

	var b strings.Builder
	b.Grow(len(str))

	for start != -1 {
		end := strings.IndexByte(str[start:], '}')
		if end == -1 {
			break
		}
		end += start

		b.WriteString(str[:start])

		reference := str[start : end+1]
		value, ok := "", false
		if prefix, key, found := strings.Cut(str[start+2:end], ":"); found && prefix == LookupPrefix {
			value, ok = s.Lookup(key)
		}
		if ok {
			b.WriteString(value)
		} else {
			b.WriteString(reference)
		}

		str = str[end+1:]
		start = strings.Index(str, "${")
	}

	b.WriteString(str)
	return b.String()
}
