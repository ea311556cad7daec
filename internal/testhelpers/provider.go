package testhelpers

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/myrjola/whodunit/internal/ai"
)

// FailMarker makes the fake providers fail when the newest player turn contains it.
const FailMarker = "[fail]"

// Reply is the deterministic text the fake providers generate for a conversation of n messages ending in input.
func Reply(n int, input string) string {
	return fmt.Sprintf("reply %d to: %s", n, input)
}

// ScriptedProvider is an in-process ai.Provider that records every request.
//
// By default it answers with Reply and fails with a retryable ai.GenerationFailure on FailMarker. Set Respond to
// script something else. When Gate is non-nil every call blocks until Gate yields or the context is done.
type ScriptedProvider struct {
	Respond func(req ai.Request) (string, error)
	Gate    chan struct{}

	mu       sync.Mutex
	requests []ai.Request
}

func (p *ScriptedProvider) Complete(ctx context.Context, req ai.Request) (string, error) {
	p.mu.Lock()
	p.requests = append(p.requests, ai.Request{Messages: slices.Clone(req.Messages), MaxTokens: req.MaxTokens})
	respond := p.Respond
	p.mu.Unlock()

	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return "", &ai.GenerationFailure{Retryable: true, Message: "gate not opened", Err: ctx.Err()}
		}
	}
	if respond != nil {
		return respond(req)
	}
	if len(req.Messages) == 0 {
		return "", &ai.GenerationFailure{Message: "no messages"}
	}
	last := req.Messages[len(req.Messages)-1].Content
	if strings.Contains(last, FailMarker) {
		return "", &ai.GenerationFailure{Retryable: true, Message: "scripted failure"}
	}
	return Reply(len(req.Messages), last), nil
}

// Requests returns the requests received so far.
func (p *ScriptedProvider) Requests() []ai.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.requests)
}

// LastRequest returns the most recent request. It panics when nothing was requested.
func (p *ScriptedProvider) LastRequest() ai.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}
