package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/murkland/tamahost/hal"
)

var ErrUnknownCommand = errors.New("unknown command")

type commandKind int

const (
	commandTap commandKind = iota
	commandHold
	commandRelease
	commandSave
	commandLoad
	commandQuit
)

type command struct {
	kind   commandKind
	button hal.Button
	tag    string
}

// KeyFunc resolves an input key to a button.
type KeyFunc func(key string) (hal.Button, bool)

// parseCommand reads one input line:
//
//	<key>       tap a button for one frame
//	+<key>      hold a button
//	-<key>      release a button
//	save [tag]  save state
//	load [tag]  restore state
//	quit
func parseCommand(line string, keys KeyFunc) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, fmt.Errorf("%w: empty", ErrUnknownCommand)
	}

	switch fields[0] {
	case "save", "load":
		cmd := command{kind: commandSave}
		if fields[0] == "load" {
			cmd.kind = commandLoad
		}
		if len(fields) > 1 {
			cmd.tag = fields[1]
		}
		return cmd, nil
	case "quit":
		return command{kind: commandQuit}, nil
	}

	if len(fields) != 1 {
		return command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, line)
	}

	key := fields[0]
	kind := commandTap
	switch key[0] {
	case '+':
		kind = commandHold
		key = key[1:]
	case '-':
		kind = commandRelease
		key = key[1:]
	}

	button, ok := keys(key)
	if !ok {
		return command{}, fmt.Errorf("%w: unbound key %q", ErrUnknownCommand, key)
	}
	return command{kind: kind, button: button}, nil
}
