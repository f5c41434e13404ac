package cli

import (
	"fmt"
)

// CommandHelp represents the structure of help information for a specific command.
type CommandHelp struct {
	Scope     string
	Operation string
	ShortDesc string
	Syntax    string
	Examples  []string
}

var commandHelps = []CommandHelp{
	{Scope: "node", Operation: "click", ShortDesc: "Activate a node, expanding it if it has no children", Syntax: "node click <id>", Examples: []string{"node click 0"}},
	{Scope: "node", Operation: "open", ShortDesc: "Show a node with its path and children", Syntax: "node open <id>"},
	{Scope: "node", Operation: "drag", ShortDesc: "Move a node by a screen-space delta", Syntax: "node drag <id> <dx> <dy>", Examples: []string{"node drag 3 40 -10"}},
	{Scope: "node", Operation: "center", ShortDesc: "Center the view on a node", Syntax: "node center <id>"},
	{Scope: "node", Operation: "list", ShortDesc: "Show the live tree", Syntax: "node list"},

	{Scope: "view", Operation: "pan", ShortDesc: "Pan the canvas", Syntax: "view pan <dx> <dy>"},
	{Scope: "view", Operation: "zoom", ShortDesc: "Zoom about the center or a screen point", Syntax: "view zoom <scale> | view zoom <x> <y> <scale>", Examples: []string{"view zoom 1.5", "view zoom 100 200 0.8"}},
	{Scope: "view", Operation: "reset", ShortDesc: "Reset zoom and center on the focus node", Syntax: "view reset"},
	{Scope: "view", Operation: "resize", ShortDesc: "Set the viewport size in pixels", Syntax: "view resize <width> <height>"},
	{Scope: "view", Operation: "show", ShortDesc: "Show the current frame", Syntax: "view show"},

	{Scope: "physics", Operation: "on", ShortDesc: "Start the repulsion loop", Syntax: "physics on"},
	{Scope: "physics", Operation: "off", ShortDesc: "Stop the repulsion loop", Syntax: "physics off"},
	{Scope: "physics", Operation: "step", ShortDesc: "Run repulsion ticks now", Syntax: "physics step [ticks]"},
	{Scope: "physics", Operation: "status", ShortDesc: "Report whether the loop runs", Syntax: "physics status"},

	{Scope: "hole", Operation: "burrow", ShortDesc: "Save this hole and start a new one from the current topic", Syntax: "hole burrow"},
	{Scope: "hole", Operation: "list", ShortDesc: "List saved holes", Syntax: "hole list"},
	{Scope: "hole", Operation: "open", ShortDesc: "Save this hole and open another", Syntax: "hole open <key>"},
	{Scope: "hole", Operation: "save", ShortDesc: "Save the live tree", Syntax: "hole save"},
	{Scope: "hole", Operation: "delete", ShortDesc: "Delete a saved hole", Syntax: "hole delete <key>"},
	{Scope: "hole", Operation: "export", ShortDesc: "Write a hole to a file", Syntax: "hole export <filename> [json|xml|dot] [key]", Examples: []string{"hole export start.dot", "hole export ants.xml xml ants"}},
	{Scope: "hole", Operation: "import", ShortDesc: "Load a hole from a json or xml file", Syntax: "hole import <filename>"},
	{Scope: "hole", Operation: "current", ShortDesc: "Print the live hole key", Syntax: "hole current"},
}

func (c *CLI) printHelp(args []string) {
	switch len(args) {
	case 0:
		c.showGeneralHelp()
	case 1:
		c.showScopeHelp(args[0])
	case 2:
		c.showOperationHelp(args[0], args[1])
	default:
		fmt.Fprintln(c.out, "Invalid help command. Use 'help [scope] [operation]'")
	}
}

func (c *CLI) showGeneralHelp() {
	fmt.Fprintln(c.out, "Command syntax: <scope> <operation> [arguments]")
	currentScope := ""
	for _, h := range commandHelps {
		if h.Scope != currentScope {
			fmt.Fprintf(c.out, "\n%s:\n", h.Scope)
			currentScope = h.Scope
		}
		fmt.Fprintf(c.out, "  %-10s %s\n", h.Operation, h.ShortDesc)
	}
}

func (c *CLI) showScopeHelp(scope string) {
	found := false
	for _, h := range commandHelps {
		if h.Scope == scope {
			if !found {
				fmt.Fprintf(c.out, "Commands for %s:\n", scope)
				found = true
			}
			fmt.Fprintf(c.out, "  %-10s %s\n", h.Operation, h.ShortDesc)
		}
	}
	if !found {
		fmt.Fprintf(c.out, "No help found for %s\n", scope)
	}
}

func (c *CLI) showOperationHelp(scope, operation string) {
	for _, h := range commandHelps {
		if h.Scope == scope && h.Operation == operation {
			fmt.Fprintf(c.out, "%s\nSyntax: %s\n", h.ShortDesc, h.Syntax)
			for _, ex := range h.Examples {
				fmt.Fprintf(c.out, "  %s\n", ex)
			}
			return
		}
	}
	fmt.Fprintf(c.out, "No help found for %s %s\n", scope, operation)
}
