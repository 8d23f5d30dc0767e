package domain

import (
	"bytes"
	"encoding/json"
)

// Command types accepted on a per-channel route.
const (
	CommandMessage = "message"
	CommandTyping  = "typing"
)

// TypingStart is the typing action that begins an indicator; any other
// action stops it.
const TypingStart = "start"

// Command is a UI-issued request on a channel route.
type Command struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Action  string `json:"action,omitempty"`
	Channel string `json:"channel,omitempty"`
}

// DecodeCommand parses a route payload. A bare JSON string is a legacy
// message payload and decodes to a message command. Anything that is not
// an object or a string returns ErrMalformedCommand.
func DecodeCommand(payload json.RawMessage) (Command, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Command{}, ErrMalformedCommand
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return Command{}, ErrMalformedCommand
		}
		return Command{Type: CommandMessage, Message: text}, nil
	case '{':
		var cmd Command
		if err := json.Unmarshal(trimmed, &cmd); err != nil {
			return Command{}, ErrMalformedCommand
		}
		return cmd, nil
	default:
		return Command{}, ErrMalformedCommand
	}
}

// Recognized reports whether the command carries a type the router acts on.
func (c Command) Recognized() bool {
	return c.Type == CommandMessage || c.Type == CommandTyping
}
