package tui

import (
	"errors"
	"strconv"
	"strings"
)

// Command names understood by the ':' prompt and '/' lines in the composer.
const (
	CmdRoom   = "room"
	CmdUsers  = "users"
	CmdDM     = "dm"
	CmdLogout = "logout"
	CmdHelp   = "help"
	CmdQuit   = "quit"
)

var aliases = map[string]string{
	"r":     CmdRoom,
	"river": CmdRoom,
	"u":     CmdUsers,
	"who":   CmdUsers,
	"pm":    CmdDM,
	"msg":   CmdDM,
	"h":     CmdHelp,
	"?":     CmdHelp,
	"q":     CmdQuit,
	"exit":  CmdQuit,
}

// ErrBadNumber is returned when a Nyx number cannot be parsed.
var ErrBadNumber = errors.New("expected a Nyx number, e.g. dm 7")

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':' or '/').
// Aliases resolve to their command name.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if alias, ok := aliases[cmd.Name]; ok {
		cmd.Name = alias
	}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// ParseNumber reads a Nyx number written as "7", "#7" or "Nyx 7".
func ParseNumber(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "nyx")
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, ErrBadNumber
	}
	return n, nil
}
