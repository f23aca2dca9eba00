// Package llm talks to the Gemini generateContent endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"

	// DefaultTimeout is the ceiling for a single generateContent call.
	DefaultTimeout = 30 * time.Second
)

// Generation parameters are fixed; callers cannot tune them.
const (
	temperature     = 0.4
	topK            = 32
	topP            = 1.0
	maxOutputTokens = 2048
)

// Diagnostics text must never be silently suppressed, so every category is unblocked.
var safetySettings = []SafetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

// Finish reasons that mean the candidate was suppressed by a filter.
var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
	"SPII":               true,
}

// Client handles Gemini API calls.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (tests, proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithModel selects the Gemini model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a Gemini client. The API key is sent as a query parameter.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key required")
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the model name.
func (c *Client) Model() string {
	return c.model
}

// Generate submits a single prompt and returns the first candidate's text.
// The call is abandoned after DefaultTimeout and is never retried.
func (c *Client) Generate(ctx context.Context, prompt string) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := GenerateRequest{
		Contents: []Content{{Parts: []Part{{Text: prompt}}}},
		GenerationConfig: &GenerationConfig{
			Temperature:     temperature,
			TopK:            topK,
			TopP:            topP,
			MaxOutputTokens: maxOutputTokens,
		},
		SafetySettings: safetySettings,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, body),
		}
	}

	var result GenerateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	return completionFrom(&result, c.model)
}

// completionFrom inspects the envelope and pulls out the first candidate's text.
func completionFrom(resp *GenerateResponse, model string) (*Completion, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: prompt blockReason=%s", ErrBlocked, resp.PromptFeedback.BlockReason)
		}
		return nil, ErrNoCandidates
	}

	candidate := &resp.Candidates[0]
	if isBlocked(candidate) {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, describeCandidate(candidate))
	}

	var b strings.Builder
	for _, p := range candidate.Content.Parts {
		b.WriteString(p.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, describeCandidate(candidate))
	}

	return &Completion{
		Text:         text,
		FinishReason: candidate.FinishReason,
		Model:        model,
		Usage:        resp.UsageMetadata,
	}, nil
}

func isBlocked(c *Candidate) bool {
	if blockedFinishReasons[c.FinishReason] {
		return true
	}
	for _, r := range c.SafetyRatings {
		if r.Blocked {
			return true
		}
	}
	return false
}

// describeCandidate summarises finish reason and blocked safety ratings for logs.
func describeCandidate(c *Candidate) string {
	if c == nil {
		return "no candidate"
	}
	parts := []string{"finishReason=" + c.FinishReason}
	for _, r := range c.SafetyRatings {
		if r.Blocked {
			parts = append(parts, fmt.Sprintf("%s=%s (blocked)", r.Category, r.Probability))
		}
	}
	return strings.Join(parts, ", ")
}

// errorMessage extracts error.message from an error body, falling back to the status text.
func errorMessage(status int, body []byte) string {
	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return "API error: " + http.StatusText(status)
}

// classifyTransportError separates the request ceiling and caller cancellation
// from genuine transport failures.
func classifyTransportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("gemini request cancelled: %w", context.Canceled)
	default:
		return &NetworkError{Err: err}
	}
}
