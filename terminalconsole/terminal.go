package terminalconsole

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

const defaultWidth = 80

var ErrNotATerminal = errors.New("not a terminal")

// Terminal is an acquired interactive terminal: its input, and a buffered writer for its output.
type Terminal struct {
	in     io.Reader
	out    io.Writer
	writer *bufio.Writer

	// -1 if the stream isn't backed by a terminal file descriptor
	inFd  int
	outFd int

	// in raw mode the terminal won't translate "\n" into "\r\n" by itself anymore
	raw atomic.Bool
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func terminalFd(stream any) int {
	if f, ok := stream.(*os.File); ok && f != nil && isTerminal(f.Fd()) {
		return int(f.Fd())
	}
	return -1
}

// OpenTerminal acquires out (and in, if it is a terminal too) for interactive use. It fails with ErrNotATerminal
// if out is redirected to something that isn't a terminal.
func OpenTerminal(in, out *os.File) (*Terminal, error) {
	if out == nil || !isTerminal(out.Fd()) {
		return nil, ErrNotATerminal
	}

	if _, err := term.GetState(int(out.Fd())); err != nil {
		return nil, fmt.Errorf("could not get the terminal state of %s: %w", out.Name(), err)
	}

	var reader io.Reader
	if in != nil {
		reader = in
	}
	return NewTerminal(reader, out), nil
}

// NewTerminal wraps arbitrary streams as a terminal, for example the channel of an SSH session. File descriptors
// are only used for raw mode and size queries when in or out are terminal files.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{
		in:    in,
		out:   out,
		inFd:  terminalFd(in),
		outFd: terminalFd(out),
	}
	t.writer = bufio.NewWriter(crlfWriter{t})
	return t
}

func (t *Terminal) Reader() io.Reader {
	return t.in
}

// Writer returns the buffered terminal output. It must only be used while holding the owning session's lock,
// see Session.Do.
func (t *Terminal) Writer() *bufio.Writer {
	return t.writer
}

func (t *Terminal) Flush() error {
	return t.writer.Flush()
}

// IsRaw reports whether MakeRaw is currently in effect.
func (t *Terminal) IsRaw() bool {
	return t.raw.Load()
}

// Width returns the number of columns of the terminal, or 80 if that can't be determined.
func (t *Terminal) Width() int {
	if t.outFd < 0 {
		return defaultWidth
	}
	width, _, err := term.GetSize(t.outFd)
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// MakeRaw puts the input side of the terminal into raw mode. The returned function restores the previous state.
// Terminals without an input file descriptor are left alone.
func (t *Terminal) MakeRaw() (restore func() error, err error) {
	if t.inFd < 0 {
		return func() error { return nil }, nil
	}

	state, err := term.MakeRaw(t.inFd)
	if err != nil {
		return nil, fmt.Errorf("could not put the terminal into raw mode: %w", err)
	}
	t.raw.Store(true)

	return func() error {
		t.raw.Store(false)
		return term.Restore(t.inFd, state)
	}, nil
}

var crlf = []byte("\r\n")

type crlfWriter struct{ t *Terminal }

func (w crlfWriter) Write(p []byte) (n int, err error) {
	if !w.t.raw.Load() {
		return w.t.out.Write(p)
	}

	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i == -1 {
			m, err := w.t.out.Write(p)
			return n + m, err
		}

		// don't double an already present carriage return
		line := p[:i]
		if i > 0 && p[i-1] == '\r' {
			line = p[:i-1]
		}

		m, err := w.t.out.Write(line)
		n += m
		if err != nil {
			return n, err
		}
		if _, err := w.t.out.Write(crlf); err != nil {
			return n, err
		}
		n += i + 1 - len(line)
		p = p[i+1:]
	}
	return n, nil
}
