// Package prompt is a minimal interactive input line for a terminalconsole.Session. It supports appending,
// deleting from the end and submitting lines, and cooperates with the session's Sink so that log output printed
// while the user is typing doesn't garble the prompt.
package prompt

import (
	"bufio"
	"errors"
	"io"
	"unicode"

	"github.com/mattn/go-runewidth"

	"github.com/karolba/tconsole/formatting"
	"github.com/karolba/tconsole/terminalconsole"
)

var (
	ErrInterrupted = errors.New("interrupted")
	ErrNoTerminal  = errors.New("the session has no interactive terminal")
)

const (
	ctrlC     = 0x03
	ctrlD     = 0x04
	backspace = 0x08
	ctrlU     = 0x15
	ctrlW     = 0x17
	escape    = 0x1b
	del       = 0x7f
)

// https://terminalguide.namepad.de/seq/csi_ck-2/ and https://terminalguide.namepad.de/seq/csi_ca/
const (
	eraseLine    = "\033[2K"
	cursorUpOnce = "\033[A"
)

// Reader implements terminalconsole.InputLine.
type Reader struct {
	session  *terminalconsole.Session
	terminal *terminalconsole.Terminal
	in       *bufio.Reader

	// guarded by the session's lock
	prompt string
	buffer []rune
}

// New creates an input line for the session's terminal. The prompt may contain § formatting codes.
func New(session *terminalconsole.Session, prompt string) (*Reader, error) {
	terminal := session.Terminal()
	if terminal == nil || terminal.Reader() == nil {
		return nil, ErrNoTerminal
	}

	return &Reader{
		session:  session,
		terminal: terminal,
		in:       bufio.NewReader(terminal.Reader()),
		prompt:   formatting.Convert(prompt, session.AnsiSupported()),
	}, nil
}

func (r *Reader) Terminal() *terminalconsole.Terminal {
	return r.terminal
}

// SetPrompt replaces the prompt and redraws the input line.
func (r *Reader) SetPrompt(prompt string) error {
	rendered := formatting.Convert(prompt, r.session.AnsiSupported())
	return r.session.Do(func(io.Writer) error {
		if err := r.Clear(); err != nil {
			return err
		}
		r.prompt = rendered
		return r.Redraw()
	})
}

// Line returns what has been typed so far.
func (r *Reader) Line() (line string) {
	_ = r.session.Do(func(io.Writer) error {
		line = string(r.buffer)
		return nil
	})
	return line
}

// rows returns how many terminal lines the prompt and the input take up
func (r *Reader) rows() int {
	cells := visibleWidth(r.prompt) + runewidth.StringWidth(string(r.buffer))
	if cells == 0 {
		return 1
	}
	return (cells-1)/r.terminal.Width() + 1
}

// Clear erases the prompt and the input, leaving the cursor at the start of the first line they occupied.
func (r *Reader) Clear() error {
	w := r.terminal.Writer()
	for i := 1; i < r.rows(); i++ {
		if _, err := w.WriteString(eraseLine + cursorUpOnce); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r" + eraseLine)
	return err
}

func (r *Reader) Redraw() error {
	w := r.terminal.Writer()
	if _, err := w.WriteString(r.prompt); err != nil {
		return err
	}
	_, err := w.WriteString(string(r.buffer))
	return err
}

func (r *Reader) edit(fn func()) error {
	return r.session.Do(func(io.Writer) error {
		if err := r.Clear(); err != nil {
			return err
		}
		fn()
		return r.Redraw()
	})
}

// ReadLine shows the prompt and reads a line with the terminal in raw mode. It returns ErrInterrupted on Ctrl-C
// and io.EOF on Ctrl-D at the start of a line.
func (r *Reader) ReadLine() (string, error) {
	restore, err := r.terminal.MakeRaw()
	if err != nil {
		return "", err
	}
	defer func() { _ = restore() }()

	// an attached prompt may still be on screen from a redraw after the previous line
	if err := r.edit(func() {}); err != nil {
		return "", err
	}

	for {
		ch, _, err := r.in.ReadRune()
		if err != nil {
			return "", err
		}

		switch ch {
		case '\r', '\n':
			var line string
			err := r.session.Do(func(w io.Writer) error {
				line = string(r.buffer)
				r.buffer = r.buffer[:0]
				_, err := io.WriteString(w, "\n")
				return err
			})
			return line, err

		case ctrlC:
			_ = r.session.Do(func(w io.Writer) error {
				r.buffer = r.buffer[:0]
				_, err := io.WriteString(w, "^C\n")
				return err
			})
			return "", ErrInterrupted

		case ctrlD:
			if len(r.buffer) == 0 {
				_ = r.session.Do(func(w io.Writer) error {
					_, err := io.WriteString(w, "\n")
					return err
				})
				return "", io.EOF
			}

		case backspace, del:
			err = r.edit(func() {
				if len(r.buffer) > 0 {
					r.buffer = r.buffer[:len(r.buffer)-1]
				}
			})

		case ctrlU:
			err = r.edit(func() { r.buffer = r.buffer[:0] })

		case ctrlW:
			err = r.edit(r.deleteWord)

		case escape:
			err = r.skipEscapeSequence()

		default:
			if !unicode.IsPrint(ch) {
				continue
			}
			err = r.session.Do(func(w io.Writer) error {
				r.buffer = append(r.buffer, ch)
				_, err := io.WriteString(w, string(ch))
				return err
			})
		}

		if err != nil {
			return "", err
		}
	}
}

func (r *Reader) deleteWord() {
	end := len(r.buffer)
	for end > 0 && r.buffer[end-1] == ' ' {
		end--
	}
	for end > 0 && r.buffer[end-1] != ' ' {
		end--
	}
	r.buffer = r.buffer[:end]
}

// skipEscapeSequence drops cursor keys and the like, there's no cursor movement within the line.
func (r *Reader) skipEscapeSequence() error {
	introducer, err := r.in.ReadByte()
	if err != nil {
		return err
	}

	switch introducer {
	case 'O':
		_, err = r.in.ReadByte()
		return err
	case '[':
		// parameters and intermediates until the final byte
		for {
			b, err := r.in.ReadByte()
			if err != nil {
				return err
			}
			if b >= 0x40 && b <= 0x7e {
				return nil
			}
		}
	}
	return nil
}
