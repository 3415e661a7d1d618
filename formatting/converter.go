package formatting

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var markerLen = utf8.RuneLen(ColorChar)

var resetBytes = []byte(ANSI_RESET)

// room for a handful of escape sequences before the output buffer has to grow
const ansiSlack = 32

// Convert replaces every formatting code in s by its ANSI escape sequence if ansi is true, or removes the codes if
// it's false. A marker which isn't followed by a known code character is kept as regular text.
//
// Once a color or style has been emitted, the result always ends with a reset sequence so that the styling does
// not leak into whatever the terminal prints next. An explicit reset code at the very end already satisfies that.
func Convert(s string, ansi bool) string {
	next := strings.IndexRune(s, ColorChar)
	if next == -1 || next+markerLen >= len(s) {
		return s
	}

	size := len(s)
	if ansi {
		size += ansiSlack
	}

	return string(appendConvert(make([]byte, 0, size), s, next, ansi))
}

// Strip removes every formatting code from s.
func Strip(s string) string {
	return Convert(s, false)
}

// AppendConvert appends the converted form of s to dst and returns the extended buffer.
func AppendConvert(dst []byte, s string, ansi bool) []byte {
	next := strings.IndexRune(s, ColorChar)
	if next == -1 {
		return append(dst, s...)
	}
	return appendConvert(dst, s, next, ansi)
}

// ContainsCodes reports whether s has at least one valid formatting code.
func ContainsCodes(s string) bool {
	for next := strings.IndexRune(s, ColorChar); next != -1; next = indexMarker(s, next+markerLen) {
		if next+markerLen < len(s) {
			if _, ok := ParseCode(s[next+markerLen]); ok {
				return true
			}
		}
	}
	return false
}

func indexMarker(s string, from int) int {
	if from >= len(s) {
		return -1
	}
	idx := strings.IndexRune(s[from:], ColorChar)
	if idx == -1 {
		return -1
	}
	return from + idx
}

// appendConvert expects next to be the index of the first marker in s.
func appendConvert(dst []byte, s string, next int, ansi bool) []byte {
	var state State
	styled := false

	// everything in s[pos:next] still has to be copied over
	pos := 0

	for next != -1 {
		codeAt := next + markerLen
		if codeAt >= len(s) {
			break
		}

		code, ok := ParseCode(s[codeAt])
		if !ok {
			next = indexMarker(s, codeAt)
			continue
		}

		dst = append(dst, s[pos:next]...)
		if ansi {
			dst = append(dst, code.SGR()...)
		}
		state.Apply(code)
		styled = styled || !state.IsDefault()

		pos = codeAt + 1
		next = indexMarker(s, pos)
	}

	dst = append(dst, s[pos:]...)

	if ansi && styled && !bytes.HasSuffix(dst, resetBytes) {
		dst = append(dst, resetBytes...)
	}

	return dst
}
