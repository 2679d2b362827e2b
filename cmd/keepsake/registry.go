package main

import (
	"fmt"
	"io"
	"strings"

	"keepsake/internal/kv"
)

// CommandContext holds the state available to command handlers.
type CommandContext struct {
	Store  kv.Store
	Out    io.Writer
	Indent bool // pretty-print JSON output
	Args   []string
}

// CommandHandler runs one subcommand.
type CommandHandler func(ctx CommandContext) error

// Command describes a registered subcommand.
type Command struct {
	Usage   string // full usage for help (e.g., "get <ns> <id>..."); defaults to command name
	Help    string
	MinArgs int
	MaxArgs int // -1 for no limit
	Handler CommandHandler
}

// CommandRegistry maps subcommand names to handlers and produces help text
// in registration order.
type CommandRegistry struct {
	commands map[string]Command
	order    []string
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]Command),
	}
}

// Register adds a command. Registering the same name twice overwrites the
// previous entry. Panics if cmd.Handler is nil.
func (r *CommandRegistry) Register(name string, cmd Command) {
	if cmd.Handler == nil {
		panic("keepsake: Register called with nil handler for " + name)
	}
	if _, exists := r.commands[name]; !exists {
		r.order = append(r.order, name)
	}
	r.commands[name] = cmd
}

// Dispatch runs the command named by args[0] with the remaining arguments.
func (r *CommandRegistry) Dispatch(args []string, ctx CommandContext) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given (try help)")
	}
	name := args[0]
	cmd, ok := r.commands[name]
	if !ok {
		return fmt.Errorf("unknown command: %s (try help)", name)
	}
	rest := args[1:]
	if len(rest) < cmd.MinArgs || (cmd.MaxArgs >= 0 && len(rest) > cmd.MaxArgs) {
		return fmt.Errorf("usage: %s", usage(name, cmd))
	}
	ctx.Args = rest
	return cmd.Handler(ctx)
}

// HelpText lists all registered commands in registration order.
func (r *CommandRegistry) HelpText() string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range r.order {
		cmd := r.commands[name]
		_, _ = fmt.Fprintf(&b, "  %-24s %s\n", usage(name, cmd), cmd.Help)
	}
	return b.String()
}

func usage(name string, cmd Command) string {
	if cmd.Usage != "" {
		return cmd.Usage
	}
	return name
}
