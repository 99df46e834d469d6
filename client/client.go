// Package client calls the generation endpoint and tracks the progress of a
// request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"top_criteria_generator/catalog"
	"top_criteria_generator/schema"
)

// DefaultPath is the endpoint Generate posts to.
const DefaultPath = "/generate"

// Status is the coarse state of the tracker.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Progress milestones reported while a request is in flight.
const (
	ProgressPreparing  = 10
	ProgressAnalyzing  = 25
	ProgressProcessing = 75
	ProgressDone       = 100
)

// State is a point-in-time view of the tracker.
type State struct {
	Status   Status
	Progress int
	Message  string
	Err      string
	// Duration is the server-reported generation time once completed.
	Duration time.Duration
}

var idleState = State{Status: StatusIdle, Message: "Ready to generate"}

// Request is the body of a generation call.
type Request struct {
	PageContent catalog.PageContent `json:"pageContent"`
	Casinos     []catalog.Casino    `json:"casinos"`
	Criteria    string              `json:"criteria"`
}

// Result is a successful generation.
type Result struct {
	Snapshot   *schema.Snapshot
	TokensUsed int64
	Duration   time.Duration
	Warnings   []string
	RunID      string
	Model      string
}

// Client posts generation requests. It never retries; a failed request is
// reported once and the caller decides what to do.
type Client struct {
	baseURL string
	path    string
	http    *http.Client
	onState func(State)

	mu    sync.Mutex
	state State
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has no timeout of its own
// so the caller's context governs.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithPath overrides DefaultPath, e.g. "/api/ai-generate".
func WithPath(p string) Option {
	return func(c *Client) { c.path = p }
}

// WithObserver is called on every state change, outside the client's lock.
func WithObserver(fn func(State)) Option {
	return func(c *Client) { c.onState = fn }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    DefaultPath,
		http:    &http.Client{},
		state:   idleState,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current tracker state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset returns the tracker to idle.
func (c *Client) Reset() { c.set(idleState) }

func (c *Client) set(s State) {
	c.mu.Lock()
	c.state = s
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (c *Client) progress(p int, msg string) {
	c.set(State{Status: StatusGenerating, Progress: p, Message: msg})
}

type wireResponse struct {
	Success    bool             `json:"success"`
	Data       *schema.Snapshot `json:"data"`
	TokensUsed int64            `json:"tokensUsed"`
	Duration   int64            `json:"duration"`
	Warnings   []string         `json:"warnings"`
	RunID      string           `json:"runId"`
	Model      string           `json:"model"`
	Error      string           `json:"error"`
	Code       string           `json:"code"`
	Details    []string         `json:"details"`
	Hint       string           `json:"hint"`
	Provider   string           `json:"provider"`
}

// Generate performs one request. Failures are *APIError.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	c.progress(ProgressPreparing, "Preparing generation...")
	body, err := json.Marshal(req)
	if err != nil {
		return nil, c.fail(&APIError{Code: CodeEncoding, Message: err.Error()})
	}

	c.progress(ProgressAnalyzing, "Analyzing casino data...")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(&APIError{Code: CodeTransport, Message: err.Error()})
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.fail(&APIError{Code: CodeTransport, Message: err.Error(), Err: err})
	}
	defer resp.Body.Close()

	c.progress(ProgressProcessing, "Processing response...")
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(&APIError{Status: resp.StatusCode, Code: CodeTransport, Message: err.Error(), Err: err})
	}
	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, c.fail(&APIError{
			Status:  resp.StatusCode,
			Code:    CodeTransport,
			Message: fmt.Sprintf("unreadable response (HTTP %d): %v", resp.StatusCode, err),
			Err:     err,
		})
	}
	if resp.StatusCode != http.StatusOK || !wire.Success {
		msg := wire.Error
		if msg == "" {
			msg = fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)
		}
		return nil, c.fail(&APIError{Status: resp.StatusCode, Code: wire.Code, Message: msg, Details: wire.Details, Hint: wire.Hint, Provider: wire.Provider})
	}
	if wire.Data == nil {
		return nil, c.fail(&APIError{Status: resp.StatusCode, Code: CodeTransport, Message: "response carried no data"})
	}

	res := &Result{
		Snapshot:   wire.Data,
		TokensUsed: wire.TokensUsed,
		Duration:   time.Duration(wire.Duration) * time.Millisecond,
		Warnings:   wire.Warnings,
		RunID:      wire.RunID,
		Model:      wire.Model,
	}
	c.set(State{Status: StatusCompleted, Progress: ProgressDone, Message: "Generation completed successfully", Duration: res.Duration})
	return res, nil
}

func (c *Client) fail(e *APIError) error {
	c.set(State{Status: StatusError, Message: "Generation failed", Err: e.Message})
	return e
}

// Codes set by the client itself; server codes are passed through.
const (
	CodeTransport = "transport_error"
	CodeEncoding  = "encoding_error"
)

// ErrorClass groups failures by who can fix them.
type ErrorClass string

const (
	ClassInput         ErrorClass = "input"
	ClassConfiguration ErrorClass = "configuration"
	ClassModel         ErrorClass = "model"
	ClassValidation    ErrorClass = "validation"
)

// APIError is a failed generation call.
type APIError struct {
	// Status is zero when no response was received.
	Status   int
	Code     string
	Message  string
	Details  []string
	Hint     string
	Provider string // set on model invocation failures
	Err      error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return "generate: " + e.Message
	}
	return fmt.Sprintf("generate: HTTP %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Class maps the error to one of the four failure classes. Transport failures
// and unrecognised server errors count as model failures.
func (e *APIError) Class() ErrorClass {
	switch e.Code {
	case "invalid_request", CodeEncoding:
		return ClassInput
	case "configuration_error":
		return ClassConfiguration
	case "content_validation_error":
		return ClassValidation
	case "model_invocation_error", CodeTransport:
		return ClassModel
	}
	if e.Status >= 400 && e.Status < 500 {
		return ClassInput
	}
	return ClassModel
}

// IsClass reports whether err is an *APIError of class c.
func IsClass(err error, c ErrorClass) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Class() == c
}
