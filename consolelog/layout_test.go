package consolelog

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karolba/tconsole/formatting"
)

var testTime = time.Date(2024, 5, 17, 13, 37, 0, 0, time.UTC)

func testRecord(level slog.Level, message string, attrs ...Attr) *Record {
	return &Record{Time: testTime, Level: level, Message: message, Attrs: attrs}
}

func TestLayoutDefaultPattern(t *testing.T) {
	plain := MustCompile(DefaultPattern, LayoutOptions{DisableAnsi: true})
	assert.Equal(t, "[13:37:00 INFO]: Hello world\n", plain.Format(testRecord(slog.LevelInfo, "§cHello §lworld")))

	colored := MustCompile(DefaultPattern, LayoutOptions{})
	assert.Equal(t,
		"[13:37:00 "+LevelColor(slog.LevelInfo).Sprint("INFO")+"]: "+
			formatting.Red.SGR()+"Hello "+formatting.Bold.SGR()+"world"+formatting.ANSI_RESET+"\n",
		colored.Format(testRecord(slog.LevelInfo, "§cHello §lworld")))
}

func TestLayoutConversions(t *testing.T) {
	testCases := []struct {
		name    string
		pattern string
		record  *Record
		want    string
	}{
		{"literal only", "just text", testRecord(slog.LevelInfo, "x"), "just text"},
		{"aliases", "%p %level|%m %msg %message", testRecord(slog.LevelWarn, "m"), "WARN WARN|m m m"},
		{"percent", "100%% %m", testRecord(slog.LevelInfo, "done"), "100% done"},
		{"default date", "%d", testRecord(slog.LevelInfo, ""), "13:37:00"},
		{"custom date", "%d{2006-01-02T15:04}", testRecord(slog.LevelInfo, ""), "2024-05-17T13:37"},
		{"empty date option", "%d{}", testRecord(slog.LevelInfo, ""), "13:37:00"},
		{"newline", "a%nb", testRecord(slog.LevelInfo, ""), "a\nb"},
		{"closing brace at top level is text", "{%m}", testRecord(slog.LevelInfo, "x"), "{x}"},
		{"level offsets", "%level", testRecord(slog.LevelError+2, ""), "ERROR+2"},
		{"attrs", "%m%attrs", testRecord(slog.LevelInfo, "req",
			Attr{"method", "GET"}, Attr{"path", "/a b"}, Attr{"empty", ""}, Attr{"http.status", "200"}),
			`req method=GET path="/a b" empty="" http.status=200`},
		{"no attrs", "%m%attrs.", testRecord(slog.LevelInfo, "req"), "req."},
		{"strip option", "%fmt{%m}{strip}", testRecord(slog.LevelInfo, "§aok"), "ok"},
		{"formatting a literal", "%minecraftFormatting{§9>} %m", testRecord(slog.LevelInfo, "§aok"),
			formatting.Blue.SGR() + ">" + formatting.ANSI_RESET + " §aok"},
		{"nested", "%highlight{<%fmt{%m}{strip}>}", testRecord(slog.LevelError, "§cboom"),
			LevelColor(slog.LevelError).Sprint("<boom>")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			layout, err := Compile(tc.pattern, LayoutOptions{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, layout.Format(tc.record))
			assert.Equal(t, tc.pattern, layout.String())
		})
	}
}

func TestLayoutHighlightColors(t *testing.T) {
	layout := MustCompile("%highlight{%level}", LayoutOptions{})

	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		got := layout.Format(testRecord(level, ""))
		assert.Equal(t, LevelColor(level).Sprint(level.String()), got)
		assert.Contains(t, got, "\x1b[", "colors are forced on for %s", level)
	}

	assert.NotEqual(t, LevelColor(slog.LevelInfo), LevelColor(slog.LevelWarn))
	assert.Equal(t, LevelColor(slog.LevelWarn), LevelColor(slog.LevelWarn+1))

	disabled := MustCompile("%highlight{%level}", LayoutOptions{DisableAnsi: true})
	assert.Equal(t, "ERROR", disabled.Format(testRecord(slog.LevelError, "")))
}

func TestLayoutErrors(t *testing.T) {
	for _, pattern := range []string{
		"%",
		"abc %",
		"%{x}",
		"%unknown",
		"%highlight",
		"%highlight %m",
		"%highlight{%m",
		"%fmt{%m}{bogus}",
		"%d{15:04",
		"%fmt{%m}{strip",
	} {
		_, err := Compile(pattern, LayoutOptions{})
		assert.Error(t, err, pattern)
	}

	assert.Panics(t, func() { MustCompile("%nope", LayoutOptions{}) })
}
