// Package generate runs the one-shot content generation helper behind the
// /write and /append commands.
package generate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUsage is returned for a generation command missing its filename or
// prompt.
var ErrUsage = errors.New("invalid generation command")

// Op is the file operation applied to generated content.
type Op int

const (
	OpWrite Op = iota
	OpAppend
)

// Name returns the slash command for the operation.
func (o Op) Name() string {
	if o == OpAppend {
		return "/append"
	}
	return "/write"
}

// Verb describes the completed operation, e.g. "written to".
func (o Op) Verb() string {
	if o == OpAppend {
		return "appended to"
	}
	return "written to"
}

// Usage returns the help line shown on a malformed command.
func (o Op) Usage() string {
	return fmt.Sprintf("Usage: %s <filename> <prompt to generate content>", o.Name())
}

// Command is a parsed /write or /append request.
type Command struct {
	Op       Op
	Filename string
	Prompt   string
}

// IsCommand reports whether message is a generation command. The check is
// case-insensitive and ignores surrounding whitespace.
func IsCommand(message string) bool {
	_, _, ok := matchOp(message)
	return ok
}

// ParseCommand splits message into a filename, which runs up to the first
// space, and a prompt, which is the trimmed rest. When the message is a
// generation command with either part missing, the returned Command still
// carries Op so the caller can print its usage.
func ParseCommand(message string) (Command, error) {
	op, rest, ok := matchOp(message)
	if !ok {
		return Command{}, fmt.Errorf("%w: not a /write or /append command", ErrUsage)
	}

	cmd := Command{Op: op}
	name, prompt, found := strings.Cut(rest, " ")
	cmd.Filename = strings.TrimSpace(name)
	if found {
		cmd.Prompt = strings.TrimSpace(prompt)
	}
	if cmd.Filename == "" || cmd.Prompt == "" {
		return cmd, fmt.Errorf("%w: %s", ErrUsage, op.Usage())
	}
	return cmd, nil
}

// matchOp returns the operation and the text after "/write " or "/append ".
// A bare "/write" or "/append" also matches, with empty rest.
func matchOp(message string) (Op, string, bool) {
	trimmed := strings.TrimSpace(message)
	for _, op := range []Op{OpWrite, OpAppend} {
		name := op.Name()
		if len(trimmed) < len(name) || !strings.EqualFold(trimmed[:len(name)], name) {
			continue
		}
		rest := trimmed[len(name):]
		if rest == "" {
			return op, "", true
		}
		if rest[0] == ' ' {
			return op, strings.TrimLeft(rest, " "), true
		}
	}
	return 0, "", false
}
