package tui

import "strings"

// Command is a parsed ':' chat action, e.g. ":rename Vendor support" or
// ":attach https://cdn.example/invoice.pdf".
type Command struct {
	Name string
	Args string
}

// Fields splits Args on whitespace, for commands that take several values.
func (c Command) Fields() []string {
	return strings.Fields(c.Args)
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}
