package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	flag "github.com/spf13/pflag"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/karolba/tconsole/terminalconsole"
)

func resetTermStateBeforeExit(originalTermState *term.State) {
	if originalTermState != nil {
		err := term.Restore(int(os.Stdin.Fd()), originalTermState)
		if err != nil {
			log.Printf("Warning: could not restore terminal state on exit: %v\n", err)
		}
	}

	if stdoutIsTty() {
		fmt.Print("\x1b[?25h") // make the cursor visible
		fmt.Print("\x1b[?0c")  // restore the cursor to its default shape
	}
}

func start(args Args) (exitCode int) {
	cfg, err := args.loadConfig()
	if err != nil {
		log.Fatalf("Error: %v\n", err)
	}

	sessionOptions, err := cfg.SessionOptions()
	if err != nil {
		log.Fatalf("Error: %v\n", err)
	}
	session := terminalconsole.New(sessionOptions...)

	var originalTermState *term.State
	if session.Terminal() != nil && stdinIsTty() {
		originalTermState, err = term.GetState(int(os.Stdin.Fd()))
		if err != nil {
			log.Printf("Warning: could not get terminal state for stdin: %v\n", err)
		}
	}

	console, err := newApp(cfg, session, os.Stdin, args.verbose)
	if err != nil {
		log.Fatalf("Error: %v\n", err)
	}

	defer resetTermStateBeforeExit(originalTermState)

	signalledToExit := make(chan os.Signal, 1)
	signal.Notify(signalledToExit, unix.SIGINT, unix.SIGTERM)
	go func() {
		sig := <-signalledToExit
		console.logger.Warn("Exiting", "signal", sig)
		_ = console.close()
		resetTermStateBeforeExit(originalTermState)
		os.Exit(1)
	}()

	if len(args.command) > 0 {
		exitCode = console.runCommand(args.command)
	} else {
		exitCode = console.interactive()
	}

	if err := console.close(); err != nil {
		log.Printf("Warning: could not write every log line: %v\n", err)
	}
	return exitCode
}

func main() {
	log.SetFlags(0)
	log.SetPrefix(fmt.Sprintf("%s: ", os.Args[0]))

	args, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	if args.version {
		fmt.Println(version())
		os.Exit(0)
	}

	os.Exit(start(args))
}
