package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"

	"github.com/karolba/tconsole/config"
	"github.com/karolba/tconsole/consolelog"
	"github.com/karolba/tconsole/formatting"
	"github.com/karolba/tconsole/prompt"
	"github.com/karolba/tconsole/terminalconsole"
)

type app struct {
	cfg     config.Config
	verbose bool

	session *terminalconsole.Session
	sink    *terminalconsole.Sink
	logger  *slog.Logger

	// out is where log lines and banners go: the sink itself, or async in front of it
	out   io.Writer
	async *consolelog.AsyncWriter

	// nil without an interactive terminal, lines are read from stdin then
	reader *prompt.Reader
	stdin  *bufio.Reader

	childrenMu sync.Mutex
	children   []*child
}

func newApp(cfg config.Config, session *terminalconsole.Session, stdin io.Reader, verbose bool) (*app, error) {
	disableAnsi, err := cfg.DisableAnsi(session.Expand)
	if err != nil {
		return nil, err
	}
	disableAnsi = disableAnsi || !session.AnsiSupported()
	color.NoColor = disableAnsi

	layout, err := consolelog.Compile(cfg.Layout.Pattern, consolelog.LayoutOptions{DisableAnsi: disableAnsi})
	if err != nil {
		return nil, fmt.Errorf("invalid layout pattern: %w", err)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		verbose: verbose,
		session: session,
		sink:    session.Sink(),
		stdin:   bufio.NewReader(stdin),
	}

	a.out = a.sink
	if cfg.Async {
		a.async = consolelog.NewAsyncWriter(a.sink)
		a.out = a.async
	}

	a.logger = slog.New(consolelog.NewHandler(a.out, &consolelog.HandlerOptions{
		Level:  level,
		Layout: layout,
	}))

	if terminal := session.Terminal(); terminal != nil && terminal.Reader() != nil {
		if a.reader, err = prompt.New(session, cfg.Prompt); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// print writes a line that isn't a log record, e.g. a banner.
func (a *app) print(line string) {
	_, _ = io.WriteString(a.out, line+"\n")
}

// close stops every child and waits until all log lines have been written.
func (a *app) close() error {
	a.stopChildren()
	a.sink.Detach()

	if a.async != nil {
		return a.async.Close()
	}
	return nil
}

// readLine reads the next line from the prompt, or from stdin if there's no terminal.
func (a *app) readLine() (string, error) {
	if a.reader != nil {
		return a.reader.ReadLine()
	}

	line, err := a.stdin.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimRight(line, "\r\n"), err
}

func (a *app) attachPrompt() {
	if a.reader == nil {
		return
	}
	if err := a.sink.Attach(a.reader); err != nil {
		a.logger.Warn("Could not attach the prompt", "error", err)
	}
}

func isEndOfInput(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, prompt.ErrInterrupted)
}

// interactive runs built-in commands until exit is typed or the input ends.
func (a *app) interactive() (exitCode int) {
	a.print(bold("tconsole") + ", type " + yellow("help") + " for a list of commands")
	a.attachPrompt()

	for {
		line, err := a.readLine()
		if isEndOfInput(err) {
			return 0
		}
		if err != nil {
			a.logger.Error("Could not read input", "error", err)
			return 1
		}

		if a.execute(line) {
			return 0
		}
	}
}

// runCommand runs a single child in the foreground: its output is logged and input lines are sent to it.
func (a *app) runCommand(command []string) (exitCode int) {
	c, err := a.start(command, stdoutIsTty() && a.session.Terminal() != nil)
	if err != nil {
		a.logger.Error("Could not start the command", "error", err)
		return 1
	}

	a.attachPrompt()

	go func() {
		for {
			line, err := a.readLine()
			if errors.Is(err, prompt.ErrInterrupted) {
				c.signal(unix.SIGINT)
				continue
			}
			if err != nil {
				_ = c.closeStdin()
				return
			}
			if err := c.sendLine(line); err != nil {
				return
			}
		}
	}()

	exitCode, err = c.wait()
	if err != nil {
		a.logger.Error("Could not wait for the command", "error", err, "pid", c.pid())
		return 1
	}
	return exitCode
}

// start launches a child and keeps track of it until it exits.
func (a *app) start(command []string, interactive bool) (*child, error) {
	c, err := startChild(command, a.logger, interactive)
	if err != nil {
		return nil, err
	}

	if a.verbose {
		a.print(bold("+ " + c.quotedCommand()))
	}

	a.childrenMu.Lock()
	a.children = append(a.children, c)
	a.childrenMu.Unlock()

	go func() {
		<-c.done

		a.childrenMu.Lock()
		a.children = slices.DeleteFunc(a.children, func(other *child) bool { return other == c })
		a.childrenMu.Unlock()
	}()

	return c, nil
}

func (a *app) runningChildren() []*child {
	a.childrenMu.Lock()
	defer a.childrenMu.Unlock()
	return slices.Clone(a.children)
}

func (a *app) stopChildren() {
	var wg sync.WaitGroup

	for _, c := range a.runningChildren() {
		c.signal(unix.SIGTERM)

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.wait()
		}()
	}

	wg.Wait()
}

// execute runs a built-in command. It returns true if the console should exit.
func (a *app) execute(line string) (exit bool) {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	name := strings.ToLower(fields[0])
	rest := strings.TrimSpace(line[len(fields[0]):])

	switch name {
	case "help", "?":
		a.help()
	case "say":
		a.logger.Info(rest)
	case "spam":
		a.spam(fields[1:])
	case "status":
		a.logStatus()
	case "run":
		a.runInBackground(fields[1:])
	case "ansi":
		a.showAnsi()
	case "exit", "quit", "stop":
		return true
	default:
		a.logger.Warn("Unknown command, type \"help\" for a list of commands", "command", name)
	}
	return false
}

var commands = [][2]string{
	{"help", "show this list"},
	{"say <text>", "log a message, § formatting codes are allowed"},
	{"spam <goroutines> <count>", "log from many goroutines at once"},
	{"status", "show process, memory and console status"},
	{"run <command> [arguments]", "run a command in the background and log its output"},
	{"ansi", "show whether ANSI escape sequences are used, and every formatting code"},
	{"exit", "exit the console"},
}

func (a *app) help() {
	for _, command := range commands {
		a.logger.Info(formatting.Gold.Format() + command[0] + formatting.Reset.Format() + " - " + command[1])
	}
}

func (a *app) spam(arguments []string) {
	if len(arguments) != 2 {
		a.logger.Warn("Usage: spam <goroutines> <count>")
		return
	}

	goroutines, goroutinesErr := strconv.Atoi(arguments[0])
	count, countErr := strconv.Atoi(arguments[1])
	if err := errors.Join(goroutinesErr, countErr); err != nil || goroutines < 1 || count < 1 {
		a.logger.Warn("spam needs two positive numbers", "goroutines", arguments[0], "count", arguments[1])
		return
	}

	started := time.Now()

	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// skip black, it's unreadable on most terminals
			code := formatting.Code(1 + g%int(formatting.White))
			for i := range count {
				a.logger.Info(fmt.Sprintf("%sMessage %d of %d", code.Format(), i+1, count), "goroutine", g)
			}
		}()
	}
	wg.Wait()

	a.logger.Info("Done", "lines", goroutines*count, "took", time.Since(started).Round(time.Millisecond))
}

func (a *app) runInBackground(command []string) {
	if len(command) == 0 {
		a.logger.Warn("Usage: run <command> [arguments]")
		return
	}

	// background children don't get the prompt's input, so there's no point in giving them a pty
	c, err := a.start(command, false)
	if err != nil {
		a.logger.Error("Could not start the command", "error", err)
		return
	}
	_ = c.closeStdin()

	a.logger.Info("Started "+c.quotedCommand(), "pid", c.pid())

	go func() {
		exitCode, err := c.wait()
		switch {
		case err != nil:
			a.logger.Error("Could not wait for "+c.quotedCommand(), "pid", c.pid(), "error", err)
		case exitCode != 0:
			a.logger.Warn("Finished "+c.quotedCommand(), "pid", c.pid(), "exit_code", exitCode)
		default:
			a.logger.Info("Finished "+c.quotedCommand(), "pid", c.pid(), "exit_code", exitCode)
		}
	}()
}

func (a *app) showAnsi() {
	disableAnsi, _ := a.session.Lookup(terminalconsole.KeyDisableAnsi)
	a.logger.Info("Console",
		"terminal", a.session.Terminal() != nil,
		"ansi", a.session.AnsiSupported(),
		terminalconsole.KeyDisableAnsi, disableAnsi)

	var sample strings.Builder
	for code := formatting.Black; code <= formatting.Reset; code++ {
		sample.WriteString(code.Format() + code.String() + formatting.Reset.Format() + " ")
	}
	a.logger.Info(strings.TrimSpace(sample.String()))
}
