package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultAITimeout = 8 * time.Second
	maxResponseBytes = 1 << 20
)

// Suggestion is the categorization service's structured reading of raw
// task text. Category and priority are raw strings here; the pipeline
// rejects values outside the enumerated sets.
type Suggestion struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Priority string `json:"priority"`
	DueDate  string `json:"due_date"`
	Notes    string `json:"notes"`
}

// Summary is the summarization service's response.
type Summary struct {
	Text string `json:"summary"`
	Note string `json:"note"`
}

// Client talks to the external AI categorization and summarization
// services over HTTP. Every call carries a bounded timeout so a hanging
// service falls through to the next tier instead of blocking the caller.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// WithTimeout bounds each service round-trip.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.client.Timeout = d }
}

// NewClient creates an AI service client rooted at baseURL.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultAITimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type categorizeRequest struct {
	Text string `json:"text"`
}

type summarizeRequest struct {
	Text string `json:"text"`
}

// Categorize sends raw task text to the categorization endpoint.
func (c *Client) Categorize(ctx context.Context, text string) (Suggestion, error) {
	var out Suggestion
	if err := c.post(ctx, "/v1/categorize", categorizeRequest{Text: text}, &out); err != nil {
		return Suggestion{}, err
	}
	return out, nil
}

// Summarize sends raw text to the summarization endpoint.
func (c *Client) Summarize(ctx context.Context, text string) (Summary, error) {
	var out Summary
	if err := c.post(ctx, "/v1/summarize", summarizeRequest{Text: text}, &out); err != nil {
		return Summary{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("ai service not configured")
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ai service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ai service returned %d: %s", resp.StatusCode, truncateForLog(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncateForLog(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
