package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alessio/shellescape"
	"github.com/creack/pty"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"
)

// child is a process whose output gets logged line by line: stdout at INFO, stderr at WARN.
type child struct {
	cmd       *exec.Cmd
	startedAt time.Time
	logger    *slog.Logger

	stdin io.WriteCloser

	// closed once the process exited and both of its streams have been drained
	done chan struct{}
	err  error

	streams     sync.WaitGroup
	ptys        []*os.File
	winchSignal chan os.Signal
}

func (c *child) quotedCommand() string {
	return shellescape.QuoteCommand(c.cmd.Args)
}

func (c *child) pid() int {
	return c.cmd.Process.Pid
}

func (c *child) isAlive() bool {
	select {
	case <-c.done:
		return false
	default:
	}

	p, err := process.NewProcess(int32(c.pid()))
	if err != nil {
		return false
	}

	statuses, err := p.Status()
	if err != nil {
		return false
	}

	return !slices.Contains(statuses, process.Zombie)
}

// wait returns the exit code of the process, or -1 if it couldn't be waited for.
func (c *child) wait() (exitCode int, err error) {
	<-c.done

	var exitErr *exec.ExitError
	if errors.As(c.err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if c.err != nil {
		return -1, c.err
	}
	return 0, nil
}

func (c *child) signal(sig os.Signal) {
	_ = c.cmd.Process.Signal(sig)
}

// sendLine writes a line to the standard input of the process.
func (c *child) sendLine(line string) error {
	_, err := io.WriteString(c.stdin, line+"\n")
	return err
}

func (c *child) closeStdin() error {
	if len(c.ptys) > 0 {
		// the pty is the child's stdin and stdout at the same time, so only send an end-of-file
		_, err := c.stdin.Write([]byte{4})
		return err
	}
	return c.stdin.Close()
}

func isEndOfStream(err error) bool {
	// reading from a pty whose other end has been closed fails with EIO on linux
	return err == io.EOF || errors.Is(err, fs.ErrClosed) || errors.Is(err, unix.EIO)
}

func (c *child) logContinuously(stream io.Reader, level slog.Level) {
	defer c.streams.Done()

	reader := bufio.NewReader(stream)
	for {
		line, err := reader.ReadString('\n')

		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			c.logger.Log(context.Background(), level, line)
		}

		if err != nil {
			if !isEndOfStream(err) {
				log.Printf("Warning: error reading the output of %s: %v\n", c.quotedCommand(), err)
			}
			return
		}
	}
}

// disableEcho keeps lines sent to the child's terminal from showing up in its output.
func disableEcho(tty *os.File) error {
	termios, err := unix.IoctlGetTermios(int(tty.Fd()), ioctlReadTermios)
	if err != nil {
		return err
	}
	termios.Lflag &^= unix.ECHO
	return unix.IoctlSetTermios(int(tty.Fd()), ioctlWriteTermios, termios)
}

func resizePtys(ptys []*os.File) {
	size, err := pty.GetsizeFull(os.Stdout)
	if err != nil {
		return
	}
	for _, p := range ptys {
		_ = pty.Setsize(p, size)
	}
}

// startInteractive connects the child to two ptys, so that it behaves like it would in a terminal while its stdout
// and stderr stay distinguishable.
func (c *child) startInteractive() (stdout, stderr io.Reader, err error) {
	stdoutPty, stdoutTty, err := pty.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't open a pty for %v's stdout: %w", c.cmd.Args, err)
	}
	stderrPty, stderrTty, err := pty.Open()
	if err != nil {
		_ = stdoutPty.Close()
		_ = stdoutTty.Close()
		return nil, nil, fmt.Errorf("couldn't open a pty for %v's stderr: %w", c.cmd.Args, err)
	}

	// the parent doesn't need the terminal sides once the child has them
	defer func() {
		_ = stdoutTty.Close()
		_ = stderrTty.Close()
	}()

	c.ptys = []*os.File{stdoutPty, stderrPty}
	resizePtys(c.ptys)

	if err := disableEcho(stdoutTty); err != nil {
		log.Printf("Warning: could not disable echo for %v: %v\n", c.cmd.Args, err)
	}

	c.cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}
	c.cmd.Stdin = stdoutTty
	c.cmd.Stdout = stdoutTty
	c.cmd.Stderr = stderrTty

	if err := c.cmd.Start(); err != nil {
		_ = stdoutPty.Close()
		_ = stderrPty.Close()
		return nil, nil, fmt.Errorf("could not start process %v: %w", c.cmd.Args, err)
	}

	c.winchSignal = make(chan os.Signal, 1)
	signal.Notify(c.winchSignal, unix.SIGWINCH)
	go func() {
		for range c.winchSignal {
			resizePtys(c.ptys)
		}
	}()

	c.stdin = stdoutPty
	return stdoutPty, stderrPty, nil
}

func (c *child) startNonInteractive() (stdout, stderr io.Reader, err error) {
	stdin, err := c.cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("could not create a pipe for %v's stdin: %w", c.cmd.Args, err)
	}
	stdoutPipe, err := c.cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("could not create a pipe for %v's stdout: %w", c.cmd.Args, err)
	}
	stderrPipe, err := c.cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("could not create a pipe for %v's stderr: %w", c.cmd.Args, err)
	}

	if err := c.cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("could not start process %v: %w", c.cmd.Args, err)
	}

	c.stdin = stdin
	return stdoutPipe, stderrPipe, nil
}

// startChild runs command in the background. Interactive children get a pty instead of pipes.
func startChild(command []string, logger *slog.Logger, interactive bool) (*child, error) {
	if len(command) == 0 {
		return nil, errors.New("no command given")
	}

	c := &child{
		cmd:  exec.Command(command[0], command[1:]...),
		done: make(chan struct{}),
	}

	var stdout, stderr io.Reader
	var err error
	if interactive {
		stdout, stderr, err = c.startInteractive()
	} else {
		stdout, stderr, err = c.startNonInteractive()
	}
	if err != nil {
		return nil, err
	}

	c.startedAt = time.Now()
	c.logger = logger.With("pid", c.pid())

	c.streams.Add(2)
	go c.logContinuously(stdout, slog.LevelInfo)
	go c.logContinuously(stderr, slog.LevelWarn)

	go func() {
		// the pipes from StdoutPipe and StderrPipe must be drained before calling Wait
		c.streams.Wait()
		c.err = c.cmd.Wait()

		if c.winchSignal != nil {
			signal.Stop(c.winchSignal)
			close(c.winchSignal)
		}
		for _, p := range c.ptys {
			_ = p.Close()
		}
		close(c.done)
	}()

	return c, nil
}
