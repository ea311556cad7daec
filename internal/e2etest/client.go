package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/justinas/nosurf"
	"github.com/myrjola/whodunit/internal/errors"
)

// Client plays the game against the JSON API like a browser would: it keeps cookies and echoes the CSRF token.
type Client struct {
	client    *http.Client
	url       string
	csrfToken string
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the response body into out.
func (r *Response) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return errors.Wrap(err, "decode response body", slog.String("body", string(r.Body)))
	}
	return nil
}

// NewClient creates a client with its own cookie jar.
func NewClient(url string) (*Client, error) {
	jar, err := newUnsafeCookieJar()
	if err != nil {
		return nil, errors.Wrap(err, "create unsafe cookie jar")
	}
	return &Client{
		client: &http.Client{Jar: jar},
		url:    url,
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.url+urlPath,
			nil,
		); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = c.client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				if err = resp.Body.Close(); err != nil {
					return errors.Wrap(err, "close response body")
				}
				return nil
			}
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Get fetches a URL and returns the response.
func (c *Client) Get(ctx context.Context, urlPath string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+urlPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	return c.do(req)
}

// PostJSON posts body as JSON with the CSRF token obtained by [Client.NewSession], if any.
func (c *Client) PostJSON(ctx context.Context, urlPath string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request body")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+urlPath, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.csrfToken != "" {
		req.Header.Set(nosurf.HeaderName, c.csrfToken)
	}
	return c.do(req)
}

// NewSession starts a game and remembers the CSRF token for the following requests.
func (c *Client) NewSession(ctx context.Context) (string, error) {
	resp, err := c.PostJSON(ctx, "/api/new-session", struct{}{})
	if err != nil {
		return "", errors.Wrap(err, "post new session")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.New("unexpected status code",
			slog.Int("status", resp.StatusCode), slog.String("body", string(resp.Body)))
	}
	var created struct {
		SessionID string `json:"sessionId"`
		CSRFToken string `json:"csrfToken"`
	}
	if err = resp.Decode(&created); err != nil {
		return "", err
	}
	c.csrfToken = created.CSRFToken
	return created.SessionID, nil
}

// SetCSRFToken overrides the token sent with [Client.PostJSON]. An empty token sends none.
func (c *Client) SetCSRFToken(token string) {
	c.csrfToken = token
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
