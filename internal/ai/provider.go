// Package ai talks to hosted large language models. Callers hand a Provider the full conversation on every
// call; providers keep no conversation state of their own.
package ai

import (
	"context"
	"strings"
)

// Role tags who authored a Message.
type Role string

const (
	// RoleInstruction is the hidden system prompt that opens a conversation.
	RoleInstruction Role = "instruction"
	// RolePlayer is text typed by the player.
	RolePlayer Role = "player"
	// RoleModel is text generated by the model.
	RoleModel Role = "model"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is one generation call. Messages holds the prior conversation with the new player turn last.
type Request struct {
	Messages  []Message
	MaxTokens int
}

// Provider generates the next model turn for a conversation. Implementations must be safe for concurrent use and
// return a *GenerationFailure for every error.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// instruction concatenates the instruction turns of msgs and returns the remaining turns.
func instruction(msgs []Message) (string, []Message) {
	var (
		parts []string
		rest  = make([]Message, 0, len(msgs))
	)
	for _, m := range msgs {
		if m.Role == RoleInstruction {
			parts = append(parts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(parts, "\n\n"), rest
}
