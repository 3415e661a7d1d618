// Package terminalconsole prints log output to an interactive terminal without corrupting a live input line.
//
// A Session acquires the terminal at most once per process and decides whether ANSI escape sequences may be used.
// Its Sink is the io.Writer log handlers write to: when an InputLine (an interactive prompt) is attached, every
// write clears the prompt, prints the log line and redraws the prompt, all under the session's lock.
package terminalconsole

import (
	"errors"
	"io"
	"log"
	"os"
	"strconv"
	"sync"
)

const (
	// EnvTerminal disables terminal acquisition when set to a false value.
	EnvTerminal = "TCONSOLE_TERMINAL"
	// EnvAnsi forces AnsiSupported to report the given boolean.
	EnvAnsi = "TCONSOLE_ANSI"
)

// DefaultIncompatibleEnv lists environment variables set by launchers which mishandle carriage returns and
// escape sequences (e.g. the Eclipse console via ForgeGradle, or Emacs' shell-mode).
var DefaultIncompatibleEnv = []string{"FORGE_FORCE_FRAME_RECALC", "INSIDE_EMACS"}

type Session struct {
	// mu serializes everything that is written to the terminal, and guards reader
	mu     sync.Mutex
	reader InputLine

	init     sync.Once
	terminal *Terminal

	enabled         bool
	ansiOverride    *bool
	incompatibleEnv []string
	lookupEnv       func(string) (string, bool)
	acquire         func() (*Terminal, error)
	stdout          io.Writer
	logger          *log.Logger
}

type Option func(*Session)

// WithEnabled turns terminal acquisition on or off. It is on by default.
func WithEnabled(enabled bool) Option {
	return func(s *Session) { s.enabled = enabled }
}

// WithAnsiOverride makes AnsiSupported report *override regardless of whether a terminal was acquired.
// A nil override keeps auto-detection.
func WithAnsiOverride(override *bool) Option {
	return func(s *Session) { s.ansiOverride = override }
}

// WithIncompatibleEnv replaces DefaultIncompatibleEnv.
func WithIncompatibleEnv(names ...string) Option {
	return func(s *Session) { s.incompatibleEnv = names }
}

func WithLookupEnv(lookupEnv func(string) (string, bool)) Option {
	return func(s *Session) { s.lookupEnv = lookupEnv }
}

// WithAcquire replaces the default OpenTerminal(os.Stdin, os.Stdout).
func WithAcquire(acquire func() (*Terminal, error)) Option {
	return func(s *Session) { s.acquire = acquire }
}

// WithTerminal uses an already opened terminal.
func WithTerminal(t *Terminal) Option {
	return WithAcquire(func() (*Terminal, error) { return t, nil })
}

// WithStdout sets where output goes when no terminal is available. Defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(s *Session) { s.stdout = w }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

func New(opts ...Option) *Session {
	s := &Session{
		enabled:         true,
		incompatibleEnv: DefaultIncompatibleEnv,
		lookupEnv:       os.LookupEnv,
		acquire: func() (*Terminal, error) {
			return OpenTerminal(os.Stdin, os.Stdout)
		},
		stdout: os.Stdout,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnvOptions reads EnvTerminal and EnvAnsi. Unparseable values are ignored.
func EnvOptions(lookupEnv func(string) (string, bool)) []Option {
	opts := []Option{WithLookupEnv(lookupEnv)}

	if value, ok := lookupEnv(EnvTerminal); ok {
		if enabled, err := strconv.ParseBool(value); err == nil {
			opts = append(opts, WithEnabled(enabled))
		}
	}
	if value, ok := lookupEnv(EnvAnsi); ok {
		if ansi, err := strconv.ParseBool(value); err == nil {
			opts = append(opts, WithAnsiOverride(&ansi))
		}
	}

	return opts
}

// Default is the process-wide session, configured from the environment. It is created on first use and lives until
// the process exits; the terminal it owns is never released or acquired again.
var Default = sync.OnceValue(func() *Session {
	return New(EnvOptions(os.LookupEnv)...)
})

func (s *Session) unsupportedEnvironment() (marker string, found bool) {
	for _, name := range s.incompatibleEnv {
		if _, ok := s.lookupEnv(name); ok {
			return name, true
		}
	}
	if value, _ := s.lookupEnv("TERM"); value == "dumb" {
		return "TERM=dumb", true
	}
	return "", false
}

func (s *Session) initialize() {
	s.init.Do(func() {
		marker, unsupported := "terminal disabled", !s.enabled
		if !unsupported {
			marker, unsupported = s.unsupportedEnvironment()
		}
		if unsupported {
			s.logger.Printf("Warning: disabling terminal, you're running in an unsupported environment (%s)\n", marker)
			return
		}

		terminal, err := s.acquire()
		if errors.Is(err, ErrNotATerminal) {
			return
		}
		if err != nil {
			s.logger.Printf("Failed to initialize terminal, falling back to standard output: %v\n", err)
			return
		}

		s.terminal = terminal
	})
}

// Terminal returns the session's terminal, acquiring it on first use. It returns nil if terminal support is
// disabled, the environment is unsupported, or acquiring the terminal failed.
func (s *Session) Terminal() *Terminal {
	s.initialize()
	return s.terminal
}

// AnsiSupported reports whether ANSI escape sequences may be written. Unless overridden, that is exactly when a
// terminal could be acquired.
func (s *Session) AnsiSupported() bool {
	if s.ansiOverride != nil {
		return *s.ansiOverride
	}
	return s.Terminal() != nil
}

// Do runs fn with exclusive access to the terminal output and flushes afterwards. Without a terminal, fn gets the
// fallback standard output. fn must not call back into the session.
func (s *Session) Do(fn func(w io.Writer) error) error {
	terminal := s.Terminal()

	s.mu.Lock()
	defer s.mu.Unlock()

	if terminal == nil {
		return fn(s.stdout)
	}

	if err := fn(terminal.writer); err != nil {
		return err
	}
	return terminal.Flush()
}
