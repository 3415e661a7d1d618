package terminalconsole

import (
	"errors"
	"io"
)

// InputLine is an interactive prompt that has to be cleared before and redrawn after every log line.
//
// Clear and Redraw are called with the session's lock held; they write through Terminal().Writer() and must not
// call back into the session.
type InputLine interface {
	// Terminal returns the terminal the input line was created for.
	Terminal() *Terminal

	// Clear erases the prompt and the current input from the screen.
	Clear() error

	// Redraw prints the prompt and the current input again.
	Redraw() error
}

var ErrForeignTerminal = errors.New("input line was not created with the session's terminal")

// Sink writes complete, already formatted log lines to the session's terminal.
type Sink struct {
	session *Session
}

func (s *Session) Sink() *Sink {
	return &Sink{session: s}
}

// Attach installs the input line that gets redrawn around every write. Passing nil detaches the current one.
// Input lines created for a different terminal are rejected with ErrForeignTerminal and the current attachment is
// kept.
func (k *Sink) Attach(line InputLine) error {
	if line == nil {
		k.Detach()
		return nil
	}

	terminal := k.session.Terminal()
	if terminal == nil || line.Terminal() != terminal {
		return ErrForeignTerminal
	}

	k.session.mu.Lock()
	defer k.session.mu.Unlock()
	k.session.reader = line
	return nil
}

// Detach removes the current input line, if any. Call it as soon as the input line stops accepting input.
func (k *Sink) Detach() {
	k.session.mu.Lock()
	defer k.session.mu.Unlock()
	k.session.reader = nil
}

// InputLine returns the currently attached input line or nil.
func (k *Sink) InputLine() InputLine {
	k.session.mu.Lock()
	defer k.session.mu.Unlock()
	return k.session.reader
}

func (k *Sink) Write(p []byte) (int, error) {
	return k.emit(func(w io.Writer) (int, error) {
		return w.Write(p)
	})
}

func (k *Sink) WriteString(line string) (int, error) {
	return k.emit(func(w io.Writer) (int, error) {
		return io.WriteString(w, line)
	})
}

func (k *Sink) emit(write func(w io.Writer) (int, error)) (n int, err error) {
	s := k.session
	terminal := s.Terminal()

	s.mu.Lock()
	defer s.mu.Unlock()

	if terminal == nil {
		return write(s.stdout)
	}

	if s.reader == nil {
		n, err = write(terminal.writer)
		if err != nil {
			return n, err
		}
		return n, terminal.Flush()
	}

	// write and redraw even if clearing failed, the log line would be lost otherwise
	err = s.reader.Clear()

	n, writeErr := write(terminal.writer)
	if writeErr == nil {
		writeErr = terminal.Flush()
	}
	if err == nil {
		err = writeErr
	}

	// redraw even if writing failed, the prompt would be gone otherwise
	if redrawErr := s.reader.Redraw(); err == nil {
		err = redrawErr
	}
	if flushErr := terminal.Flush(); err == nil {
		err = flushErr
	}

	return n, err
}
