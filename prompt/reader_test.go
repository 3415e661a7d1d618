package prompt

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karolba/tconsole/terminalconsole"
)

func noEnv(string) (string, bool) { return "", false }

func newReader(t *testing.T, input string, ansi bool) (*Reader, *terminalconsole.Session, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	terminal := terminalconsole.NewTerminal(strings.NewReader(input), &out)
	session := terminalconsole.New(
		terminalconsole.WithTerminal(terminal),
		terminalconsole.WithLookupEnv(noEnv),
		terminalconsole.WithAnsiOverride(&ansi),
	)
	reader, err := New(session, "§7> ")
	require.NoError(t, err)
	return reader, session, &out
}

func TestNewWithoutTerminal(t *testing.T) {
	session := terminalconsole.New(terminalconsole.WithEnabled(false))
	_, err := New(session, "> ")
	assert.ErrorIs(t, err, ErrNoTerminal)
}

func TestPromptFormatting(t *testing.T) {
	plain, _, _ := newReader(t, "", false)
	assert.Equal(t, "> ", plain.prompt)

	colored, _, _ := newReader(t, "", true)
	assert.Equal(t, "\x1b[0;37m> \x1b[m", colored.prompt)
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"carriage return", "hello\r", "hello"},
		{"newline", "hello\n", "hello"},
		{"backspace", "hellp\x7fo\r", "hello"},
		{"ctrl-h", "hellp\x08o\r", "hello"},
		{"backspace on empty line", "\x7f\x7fok\r", "ok"},
		{"ctrl-u", "abc\x15xyz\r", "xyz"},
		{"ctrl-w", "foo bar\x17baz\r", "foo baz"},
		{"ctrl-w with trailing spaces", "foo bar  \x17\r", "foo "},
		{"cursor keys are ignored", "a\x1b[Db\x1bOAc\x1b[1;5Cd\r", "abcd"},
		{"ctrl-d inside a line is ignored", "a\x04b\r", "ab"},
		{"other control characters are ignored", "a\x01\x02b\r", "ab"},
		{"unicode", "zażółć 世界\r", "zażółć 世界"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, _, _ := newReader(t, tt.input, false)
			line, err := reader.ReadLine()
			require.NoError(t, err)
			assert.Equal(t, tt.want, line)
			assert.Empty(t, reader.Line())
		})
	}
}

func TestReadLineEchoes(t *testing.T) {
	reader, _, out := newReader(t, "hi\r", false)

	line, err := reader.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "hi", line)
	assert.Equal(t, "\r\x1b[2K> hi\n", out.String())
}

func TestReadLineAfterLogOutputDrawsPromptOnce(t *testing.T) {
	reader, session, out := newReader(t, "one\rtwo\r", false)
	sink := session.Sink()
	require.NoError(t, sink.Attach(reader))

	first, err := reader.ReadLine()
	require.NoError(t, err)
	_, err = sink.WriteString("log\n")
	require.NoError(t, err)
	second, err := reader.ReadLine()
	require.NoError(t, err)

	assert.Equal(t, "one", first)
	assert.Equal(t, "two", second)
	assert.NotContains(t, out.String(), "> > ")
	assert.Equal(t, "\r\x1b[2K> one\n\r\x1b[2Klog\n> \r\x1b[2K> two\n", out.String())
}

func TestReadLineSequence(t *testing.T) {
	reader, _, _ := newReader(t, "one\rtwo\n", false)

	first, err := reader.ReadLine()
	require.NoError(t, err)
	second, err := reader.ReadLine()
	require.NoError(t, err)
	_, err = reader.ReadLine()

	assert.Equal(t, "one", first)
	assert.Equal(t, "two", second)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLineInterrupted(t *testing.T) {
	reader, _, out := newReader(t, "abc\x03", false)

	_, err := reader.ReadLine()
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Empty(t, reader.Line())
	assert.True(t, strings.HasSuffix(out.String(), "^C\n"))
}

func TestReadLineEndOfInput(t *testing.T) {
	reader, _, _ := newReader(t, "\x04", false)
	_, err := reader.ReadLine()
	assert.ErrorIs(t, err, io.EOF)

	reader, _, _ = newReader(t, "unterminated", false)
	_, err = reader.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestClearAndRedraw(t *testing.T) {
	reader, session, out := newReader(t, "", false)
	reader.buffer = []rune("abc")

	require.NoError(t, session.Do(func(io.Writer) error {
		require.NoError(t, reader.Clear())
		return reader.Redraw()
	}))
	assert.Equal(t, "\r\x1b[2K> abc", out.String())
}

func TestClearWrappedLine(t *testing.T) {
	reader, session, out := newReader(t, "", false)

	// 2 cells of prompt and 78 of input fill exactly one row of the default width
	reader.buffer = []rune(strings.Repeat("x", 78))
	require.NoError(t, session.Do(func(io.Writer) error { return reader.Clear() }))
	assert.Equal(t, "\r\x1b[2K", out.String())

	out.Reset()
	reader.buffer = []rune(strings.Repeat("x", 200))
	require.NoError(t, session.Do(func(io.Writer) error { return reader.Clear() }))
	assert.Equal(t, "\x1b[2K\x1b[A\x1b[2K\x1b[A\r\x1b[2K", out.String())
}

func TestSetPrompt(t *testing.T) {
	reader, _, out := newReader(t, "", false)
	reader.buffer = []rune("typed")

	require.NoError(t, reader.SetPrompt("§a$ "))
	assert.Equal(t, "\r\x1b[2K$ typed", out.String())
}

func TestSinkRedrawsReader(t *testing.T) {
	reader, session, out := newReader(t, "", true)
	reader.buffer = []rune("partial")

	sink := session.Sink()
	require.NoError(t, sink.Attach(reader))

	_, err := sink.WriteString("[12:00:00 INFO]: log line\n")
	require.NoError(t, err)

	assert.Equal(t, "\r\x1b[2K[12:00:00 INFO]: log line\n\x1b[0;37m> \x1b[mpartial", out.String())
}

func TestVisibleWidth(t *testing.T) {
	assert.Equal(t, 0, visibleWidth(""))
	assert.Equal(t, 2, visibleWidth("\x1b[0;31;1m> \x1b[m"))
	assert.Equal(t, 4, visibleWidth("世界"))
	assert.Equal(t, 9, visibleWidth("a\tb"))
	assert.Equal(t, 5, visibleWidth("\x1b]0;title\x07hello"))
}

func TestReadLineOnPty(t *testing.T) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	defer ptmx.Close()
	defer tty.Close()

	terminal, err := terminalconsole.OpenTerminal(tty, tty)
	require.NoError(t, err)
	session := terminalconsole.New(terminalconsole.WithTerminal(terminal), terminalconsole.WithLookupEnv(noEnv))

	reader, err := New(session, "> ")
	require.NoError(t, err)

	go func() {
		// drain the echo so the tty never blocks
		_, _ = io.Copy(io.Discard, ptmx)
	}()

	_, err = ptmx.WriteString("typed\r")
	require.NoError(t, err)

	line, err := reader.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "typed", line)
	assert.False(t, terminal.IsRaw())
}
