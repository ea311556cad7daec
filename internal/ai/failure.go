package ai

import (
	"context"
	"net/http"
	"time"

	"github.com/myrjola/whodunit/internal/errors"
)

// GenerationFailure is the single error kind a Provider returns.
type GenerationFailure struct {
	// Retryable is set for transient conditions such as rate limits, upstream 5xx and timeouts.
	Retryable bool
	Message   string
	Err       error
}

func (f *GenerationFailure) Error() string {
	if f.Err == nil {
		return "generation failed: " + f.Message
	}
	return "generation failed: " + f.Message + ": " + f.Err.Error()
}

func (f *GenerationFailure) Unwrap() error {
	return f.Err
}

// AsGenerationFailure reports whether err wraps a *GenerationFailure.
func AsGenerationFailure(err error) (*GenerationFailure, bool) {
	var f *GenerationFailure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func failure(err error, msg string, retryable bool) *GenerationFailure {
	return &GenerationFailure{Retryable: retryable, Message: msg, Err: err}
}

// retryableStatus reports whether an upstream HTTP status is worth retrying.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// contextFailure translates context errors into failures. It returns nil for other errors.
func contextFailure(err error) *GenerationFailure {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return failure(err, "provider timed out", true)
	case errors.Is(err, context.Canceled):
		return failure(err, "request canceled", false)
	default:
		return nil
	}
}

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds every call to p. A non-positive timeout returns p unchanged.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return &timeoutProvider{next: p, timeout: timeout}
}

func (t *timeoutProvider) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.next.Complete(ctx, req)
	if err != nil {
		if _, ok := AsGenerationFailure(err); ok {
			return "", err
		}
		if f := contextFailure(err); f != nil {
			return "", f
		}
		return "", failure(err, "provider error", false)
	}
	return out, nil
}
