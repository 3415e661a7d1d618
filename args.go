package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/karolba/tconsole/config"
)

type Args struct {
	configPath string
	pattern    string
	level      string
	ansi       string
	prompt     string
	noTerminal bool
	async      bool
	verbose    bool
	version    bool

	// command to run as a child process, empty for the interactive console
	command []string

	changed func(name string) bool
}

func usage(flags *flag.FlagSet) func() {
	return func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [-v] [-c config.yaml] [--level level] [--pattern pattern]\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "       %s [-v] [-c config.yaml] [--level level] [--pattern pattern] -- command [arguments]\n\n", os.Args[0])
		flags.PrintDefaults()
	}
}

func parseArgs(arguments []string) (Args, error) {
	var args Args

	flags := flag.NewFlagSet("tconsole", flag.ContinueOnError)
	flags.Usage = usage(flags)
	flags.SetInterspersed(false)

	flags.StringVarP(&args.configPath, "config", "c", "", "Read settings from a YAML `file`")
	flags.StringVar(&args.pattern, "pattern", "", "Log layout `pattern`, e.g. \"[%d %level]: %msg%n\"")
	flags.StringVar(&args.level, "level", "", "Minimum `level` to log: debug, info, warn or error")
	flags.StringVar(&args.ansi, "ansi", "", "Use ANSI escape sequences: `auto`, true or false")
	flags.StringVar(&args.prompt, "prompt", "", "Input `prompt`, may contain § formatting codes")
	flags.BoolVar(&args.noTerminal, "no-terminal", false, "Don't use the terminal, write plain lines to standard output")
	flags.BoolVar(&args.async, "async", false, "Write log lines from a background goroutine")
	flags.BoolVarP(&args.verbose, "verbose", "v", false, "Print the full command line of started commands")
	flags.BoolVar(&args.version, "version", false, "Show program version")

	if err := flags.Parse(arguments); err != nil {
		return args, err
	}

	args.command = flags.Args()
	args.changed = flags.Changed
	return args, nil
}

// apply overrides cfg with every flag given on the command line.
func (args Args) apply(cfg *config.Config) error {
	if args.changed("pattern") {
		cfg.Layout.Pattern = args.pattern
	}
	if args.changed("level") {
		cfg.Level = args.level
	}
	if args.changed("ansi") {
		cfg.Terminal.Ansi = strings.ToLower(args.ansi)
	}
	if args.changed("prompt") {
		cfg.Prompt = args.prompt
	}
	if args.changed("async") {
		cfg.Async = args.async
	}
	if args.noTerminal {
		cfg.Terminal.Enabled = false
	}
	return cfg.Validate()
}

func (args Args) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if args.configPath != "" {
		var err error
		if cfg, err = config.Load(args.configPath); err != nil {
			return cfg, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, args.apply(&cfg)
}

func version() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "tconsole - version unknown"
	}

	vcs, revision, modified := "", "(unknown)", false
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs":
			vcs = setting.Value
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}

	if len(revision) == 40 {
		// if we have a long hash, get the shorter one
		revision = revision[0:7]
	}

	gitRev := ""
	if vcs == "git" && !modified {
		gitRev = fmt.Sprintf(", git rev: %s", revision)
	} else if vcs == "git" && modified {
		gitRev = fmt.Sprintf(", git rev: %s (with local changes)", revision)
	}

	return fmt.Sprintf("tconsole %s%s, %s", buildInfo.Main.Version, gitRev, buildInfo.GoVersion)
}
