// Package cli is the interactive shell for one exploration session.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"habitat/internal/model"
	"habitat/internal/session"
	"habitat/internal/ui"
)

// ErrExit is returned by Execute when the user asks to leave.
var ErrExit = errors.New("exit requested")

// Runner executes parsed commands.
type Runner interface {
	CommandRun(ctx context.Context, cmd model.Command) (interface{}, error)
}

// CLI reads commands, runs them and renders their results.
type CLI struct {
	runner Runner
	rl     *readline.Instance
	out    io.Writer
	ui     *ui.TreeUI
	showID bool
}

// NewCLI creates a shell. rl may be nil when commands are fed to Execute directly.
func NewCLI(runner Runner, rl *readline.Instance, out io.Writer, useColor bool) *CLI {
	return &CLI{
		runner: runner,
		rl:     rl,
		out:    out,
		ui:     ui.NewTreeUI(out, useColor),
		showID: true,
	}
}

// NewReadline creates a readline instance with history and completion for
// every known command.
func NewReadline(historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          "habitat> ",
		HistoryFile:     historyFile,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

func completer() *readline.PrefixCompleter {
	scopes := make(map[string][]readline.PrefixCompleterInterface)
	var order []string
	for _, h := range commandHelps {
		if _, ok := scopes[h.Scope]; !ok {
			order = append(order, h.Scope)
		}
		scopes[h.Scope] = append(scopes[h.Scope], readline.PcItem(h.Operation))
	}
	items := make([]readline.PrefixCompleterInterface, 0, len(order)+3)
	for _, s := range order {
		items = append(items, readline.PcItem(s, scopes[s]...))
	}
	items = append(items, readline.PcItem("help"), readline.PcItem("exit"), readline.PcItem("quit"))
	return readline.NewPrefixCompleter(items...)
}

// Run reads lines until EOF, interrupt or exit.
func (c *CLI) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "Type 'help' for a list of commands or 'exit' to quit.")
	for {
		line, err := c.rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if len(line) == 0 {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		if err := c.Execute(ctx, line); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			c.ui.Error(err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Execute runs one input line.
func (c *CLI) Execute(ctx context.Context, line string) error {
	args := ParseArgs(strings.TrimSpace(line))
	if len(args) == 0 {
		return nil
	}
	switch strings.ToLower(args[0]) {
	case "exit", "quit":
		return ErrExit
	case "help":
		c.printHelp(args[1:])
		return nil
	}

	cmd := parseCommand(args)
	result, err := c.runner.CommandRun(ctx, cmd)
	if err != nil {
		return err
	}
	c.render(cmd, result)
	return nil
}

// ParseArgs splits input on spaces, keeping double-quoted text together.
func ParseArgs(input string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false
	quoted := false

	for _, char := range input {
		switch char {
		case '"':
			inQuotes = !inQuotes
			quoted = true
		case ' ', '\t':
			if inQuotes {
				current.WriteRune(char)
				continue
			}
			if current.Len() > 0 || quoted {
				args = append(args, current.String())
				current.Reset()
				quoted = false
			}
		default:
			current.WriteRune(char)
		}
	}
	if current.Len() > 0 || quoted {
		args = append(args, current.String())
	}
	return args
}

func parseCommand(args []string) model.Command {
	cmd := model.Command{Scope: strings.ToLower(args[0]), Args: []string{}}
	if len(args) > 1 {
		cmd.Operation = strings.ToLower(args[1])
		cmd.Args = args[2:]
	}
	return cmd
}

func (c *CLI) render(cmd model.Command, result interface{}) {
	switch r := result.(type) {
	case nil:
		c.ui.Success("ok")
	case model.Frame:
		c.ui.FrameStatus(r)
		c.ui.TreeView(r.Nodes, c.showID)
	case []model.Node:
		c.ui.TreeView(r, c.showID)
	case []model.HoleInfo:
		current := ""
		if h, err := c.runner.CommandRun(context.Background(), model.Command{Scope: "hole", Operation: "current"}); err == nil {
			current, _ = h.(string)
		}
		c.ui.HoleList(r, current)
	case session.Detail:
		c.ui.NodeDetail(r.Node, r.Path, r.Children)
	case session.ClickOutcome:
		if len(r.Created) == 0 {
			c.ui.Success(fmt.Sprintf("%s: %s", r.Node.Label, r.Action))
			return
		}
		c.ui.Success(fmt.Sprintf("%s: %d new topics", r.Node.Label, len(r.Created)))
		c.ui.NodeDetail(r.Node, nil, r.Created)
	default:
		c.ui.Success(fmt.Sprintf("%s %s: %v", cmd.Scope, cmd.Operation, r))
	}
}
