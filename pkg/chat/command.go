package chat

import (
	"fmt"
	"io"
	"strings"
)

type command int

const (
	commandNone command = iota
	commandUnknown
	commandQuit
	commandSession
	commandScreens
	commandTheme
	commandBackend
	commandMCP
	commandList
)

type commandInfo struct {
	name    string
	aliases []string
	cmd     command
	help    string
}

var knownCommands = []commandInfo{
	{"quit", []string{"q", "exit"}, commandQuit, "quit this program."},
	{"session", nil, commandSession, "switch sessions; `/session last` picks the newest, `/session <id>` a specific one."},
	{"screens", nil, commandScreens, "list the screens of the design."},
	{"theme", nil, commandTheme, "show the theme variables."},
	{"backend", []string{"backends"}, commandBackend, "choose the model backend."},
	{"mcp", nil, commandMCP, "list the configured MCP servers."},
	{"help", []string{"commands", "?"}, commandList, "show this list."},
}

// parseCommand recognizes a slash command. Lines that do not start with a
// slash are requests for the agent.
func parseCommand(line string) (command, []string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return commandNone, nil
	}
	words := strings.Fields(line[1:])
	if len(words) == 0 {
		return commandUnknown, nil
	}
	name := strings.ToLower(words[0])
	for _, c := range knownCommands {
		if c.name == name {
			return c.cmd, words[1:]
		}
		for _, a := range c.aliases {
			if a == name {
				return c.cmd, words[1:]
			}
		}
	}
	return commandUnknown, words
}

func printCommands(w io.Writer) {
	fmt.Fprintln(w, "List of possible commands:")
	for _, c := range knownCommands {
		names := append([]string{c.name}, c.aliases...)
		fmt.Fprintf(w, "- /%s: %s\n", strings.Join(names, ", /"), c.help)
	}
	fmt.Fprintln(w, "Mention a screen with @ followed by its label.")
}
