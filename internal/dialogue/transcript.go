// Package dialogue keeps one ongoing conversation with a text generation provider.
package dialogue

import (
	"slices"

	"github.com/myrjola/whodunit/internal/ai"
)

// Transcript is an immutable conversation history. The first turn is always the instruction turn and the rest
// alternate between player and model.
type Transcript struct {
	turns []ai.Message
}

// NewTranscript starts a transcript with the instruction turn systemPrompt.
func NewTranscript(systemPrompt string) Transcript {
	return Transcript{turns: []ai.Message{{Role: ai.RoleInstruction, Content: systemPrompt}}}
}

// Append returns a new transcript extended with turns. t is left untouched.
func (t Transcript) Append(turns ...ai.Message) Transcript {
	next := make([]ai.Message, 0, len(t.turns)+len(turns))
	next = append(next, t.turns...)
	next = append(next, turns...)
	return Transcript{turns: next}
}

// Turns returns a copy of the turns in order.
func (t Transcript) Turns() []ai.Message {
	return slices.Clone(t.turns)
}

func (t Transcript) Len() int {
	return len(t.turns)
}

// Exchanges counts the completed player and model turn pairs.
func (t Transcript) Exchanges() int {
	if len(t.turns) == 0 {
		return 0
	}
	return (len(t.turns) - 1) / 2 //nolint:mnd // one player and one model turn per exchange
}

// BuildRequest is the provider request that continues t with playerText.
func BuildRequest(t Transcript, playerText string, tokenLimit int) ai.Request {
	return ai.Request{
		Messages:  t.Append(ai.Message{Role: ai.RolePlayer, Content: playerText}).turns,
		MaxTokens: tokenLimit,
	}
}
