// Package charapi is a small client for the Cosmotrix character chat API.
//
// The API exposes a characters index, one chat endpoint per character with
// thread based memory, a conversation history lookup and a health probe:
//
//	GET  /api/characters
//	POST /api/characters/<id>
//	GET  /api/conversation?thread_id=<id>
//	GET  /api/health
//
// Every method returns a typed [*Error] on failure so callers can tell
// transport problems from non-200 answers and undecodable bodies.
package charapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/3cpo-dev/charcheck/pkg/api"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "charcheck"

	// maxErrorBodySize caps how much of a non-200 body is kept for diagnostics.
	maxErrorBodySize = 4096
	maxBodySize      = 10 * 1024 * 1024
)

// Client talks to one deployment of the character API. The underlying
// http.Client is shared by all calls so connections are reused.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	token      string
	userAgent  string
}

// NewClient creates a client for baseURL, e.g. "http://localhost:3000".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// BaseURL returns the deployment the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Characters fetches the characters index.
func (c *Client) Characters(ctx context.Context) (*api.CharactersResponse, error) {
	var out api.CharactersResponse
	if err := c.do(ctx, http.MethodGet, []string{"api", "characters"}, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends req to the chat endpoint of the given character.
func (c *Client) Chat(ctx context.Context, character string, req *api.ChatRequest) (*api.ChatResponse, error) {
	if character == "" {
		return nil, newError(CodeBadRequest, "character is required", 0, nil)
	}
	if req == nil || len(req.Messages) == 0 {
		return nil, newError(CodeBadRequest, "at least one message is required", 0, nil)
	}
	var out api.ChatResponse
	if err := c.do(ctx, http.MethodPost, []string{"api", "characters", character}, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Conversation fetches the stored history of a thread.
func (c *Client) Conversation(ctx context.Context, threadID string) (*api.ConversationResponse, error) {
	if threadID == "" {
		return nil, newError(CodeBadRequest, "thread_id is required", 0, nil)
	}
	q := url.Values{}
	q.Set("thread_id", threadID)
	var out api.ConversationResponse
	if err := c.do(ctx, http.MethodGet, []string{"api", "conversation"}, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health probes the service health endpoint.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	if err := c.do(ctx, http.MethodGet, []string{"api", "health"}, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) endpoint(segments []string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", newError(CodeInvalidURL, "invalid base URL", 0, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", newError(CodeInvalidURL, fmt.Sprintf("base URL %q needs a scheme and host", c.baseURL), 0, nil)
	}
	// Preserve any base path of the deployment (e.g. /staging).
	u.Path = path.Join(append([]string{"/", u.Path}, segments...)...)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method string, segments []string, query url.Values, body, out any) error {
	target, err := c.endpoint(segments, query)
	if err != nil {
		return err
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return newError(CodeBadRequest, "failed to encode request", 0, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return newError(CodeBadRequest, "failed to create request", 0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("method", method).Str("url", target).Msg("api request failed")
		return newError(CodeTransport, fmt.Sprintf("%s %s", method, target), 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	log.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &Error{
			Code:    CodeHTTPStatus,
			Message: errorMessage(raw, resp.Status),
			Status:  resp.StatusCode,
			Body:    string(raw),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return newError(CodeTransport, "failed to read response", resp.StatusCode, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{
			Code:    CodeDecode,
			Message: "invalid JSON response",
			Status:  resp.StatusCode,
			Body:    truncate(string(raw), maxErrorBodySize),
			Cause:   err,
		}
	}
	return nil
}

// errorMessage prefers the JSON "error" field and falls back to the raw text.
func errorMessage(raw []byte, status string) string {
	var envelope api.ErrorBody
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return status
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// IsCanceled reports whether err was caused by context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
