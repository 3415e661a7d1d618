package consolelog

import (
	"log/slog"

	"github.com/fatih/color"
)

// colors are forced on: whether they're wanted is decided by the session, not by fatih/color's own tty check
var (
	errorColor = forced(color.New(color.FgHiRed, color.Bold))
	warnColor  = forced(color.New(color.FgHiYellow))
	infoColor  = forced(color.New(color.FgHiGreen))
	debugColor = forced(color.New(color.FgCyan))
)

func forced(c *color.Color) *color.Color {
	c.EnableColor()
	return c
}

// LevelColor returns the color %highlight uses for a level.
func LevelColor(level slog.Level) *color.Color {
	switch {
	case level >= slog.LevelError:
		return errorColor
	case level >= slog.LevelWarn:
		return warnColor
	case level >= slog.LevelInfo:
		return infoColor
	default:
		return debugColor
	}
}

func highlightConverter(sub []converter, ansi bool) converter {
	if !ansi {
		return func(dst []byte, r *Record) []byte {
			return appendAll(dst, sub, r)
		}
	}

	return func(dst []byte, r *Record) []byte {
		start := len(dst)
		dst = appendAll(dst, sub, r)
		text := string(dst[start:])
		return append(dst[:start], LevelColor(r.Level).Sprint(text)...)
	}
}
