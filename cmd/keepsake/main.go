// Command keepsake stores JSON documents in namespaced collections on a
// local bolt, sqlite or in-memory backend.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"keepsake/internal/backend"
	"keepsake/internal/config"
	"keepsake/internal/logging"

	"golang.org/x/term"
)

func main() {
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, isTTY))
}

// run parses flags, opens the configured backend and dispatches one
// subcommand. It returns the process exit code.
func run(args []string, stdout, stderr io.Writer, isTTY bool) int {
	fs := flag.NewFlagSet("keepsake", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	dataDir := fs.String("data-dir", "", "data directory (overrides config)")
	backendName := fs.String("backend", "", "storage backend: bolt, sqlite or memory (overrides config)")
	logLevel := fs.String("log-level", "", "log level (overrides config)")

	reg := NewCommandRegistry()
	registerCommands(reg)
	fs.Usage = func() {
		_, _ = fmt.Fprintln(stderr, "usage: keepsake [flags] <command> [args]")
		fs.PrintDefaults()
		_, _ = fmt.Fprint(stderr, reg.HelpText())
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	// Load config (TOML file with defaults)
	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	// CLI flags override config file values
	if *dataDir != "" {
		cfg.Store.DataDir = *dataDir
	}
	if *backendName != "" {
		cfg.Store.Backend = *backendName
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	logging.InitWriter(stderr, cfg.Log.Level, cfg.Log.Format)

	st, err := backend.Open(cfg.Store)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "store: %v\n", err)
		return 1
	}
	defer st.Close()

	err = reg.Dispatch(fs.Args(), CommandContext{Store: st, Out: stdout, Indent: isTTY})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "keepsake: %v\n", err)
		if errors.Is(err, errNotFound) {
			return 3
		}
		return 1
	}
	return 0
}
