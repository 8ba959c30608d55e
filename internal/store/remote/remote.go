// Package remote adapts the server task API to the shared store contract.
// It attaches the bearer credential supplied by the session provider on
// every request and never issues or refreshes that credential itself.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Utre17/tasksmart/internal/models"
	"github.com/Utre17/tasksmart/internal/store"
)

const defaultTimeout = 15 * time.Second

// TokenSource supplies the current bearer credential. The session provider
// implements this; the adapter re-reads it on every call so a mid-session
// sign-in is picked up without rebuilding the client.
type TokenSource interface {
	Token() string
}

// Client is the HTTP adapter for the durable task store.
type Client struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New constructs the adapter rooted at baseURL.
func New(baseURL string, tokens TokenSource, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type taskEnvelope struct {
	Task models.Task `json:"task"`
}

type listEnvelope struct {
	Tasks []models.Task `json:"tasks"`
}

type countEnvelope struct {
	Removed int `json:"removed"`
}

type errorEnvelope struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

// RegisterResult is the account created by Register.
type RegisterResult struct {
	Account string `json:"account"`
	Token   string `json:"token"`
}

// List fetches all tasks owned by the calling principal.
func (c *Client) List(ctx context.Context) ([]models.Task, error) {
	var out listEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Create inserts a new task.
func (c *Client) Create(ctx context.Context, draft models.Draft) (models.Task, error) {
	return c.CreateWithFingerprint(ctx, draft, "")
}

// CreateWithFingerprint inserts a new task carrying a content fingerprint
// the server may use to skip duplicates on migration retries.
func (c *Client) CreateWithFingerprint(ctx context.Context, draft models.Draft, fingerprint string) (models.Task, error) {
	body := struct {
		models.Draft
		Fingerprint string `json:"fingerprint,omitempty"`
	}{Draft: draft, Fingerprint: fingerprint}

	var out taskEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/tasks", body, http.StatusCreated, &out); err != nil {
		return models.Task{}, err
	}
	return out.Task, nil
}

// Update merges partial changes into an existing task.
func (c *Client) Update(ctx context.Context, id int64, changes models.Changes) (models.Task, error) {
	var out taskEnvelope
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/tasks/%d", id), changes, http.StatusOK, &out); err != nil {
		return models.Task{}, err
	}
	return out.Task, nil
}

// Complete flips the completed flag.
func (c *Client) Complete(ctx context.Context, id int64, completed bool) (models.Task, error) {
	body := struct {
		Completed bool `json:"completed"`
	}{Completed: completed}

	var out taskEnvelope
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/tasks/%d/complete", id), body, http.StatusOK, &out); err != nil {
		return models.Task{}, err
	}
	return out.Task, nil
}

// Delete removes a task.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", id), nil, http.StatusOK, nil)
}

// ClearCompleted bulk-deletes completed tasks and returns the count.
func (c *Client) ClearCompleted(ctx context.Context) (int, error) {
	var out countEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/tasks/clear-completed", nil, http.StatusOK, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// Register creates a server account and returns its bearer token. It is
// the one unauthenticated call the adapter makes.
func (c *Client) Register(ctx context.Context, name string) (RegisterResult, error) {
	body := struct {
		Name string `json:"name"`
	}{Name: name}

	var out RegisterResult
	if err := c.do(ctx, http.MethodPost, "/api/register", body, http.StatusCreated, &out); err != nil {
		return RegisterResult{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, wantStatus int, out any) error {
	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return store.Retryable(fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.mapError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return store.Retryable(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// mapError translates HTTP failures into the shared store error taxonomy:
// 404 and 401 map to their sentinels, validation errors keep their field,
// everything else is tagged retryable.
func (c *Client) mapError(resp *http.Response) error {
	var envelope errorEnvelope
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &envelope)
	if envelope.Error == "" {
		envelope.Error = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return store.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", store.ErrUnauthorized, envelope.Error)
	case resp.StatusCode == http.StatusBadRequest && envelope.Field != "":
		return &models.ValidationError{Field: envelope.Field, Reason: envelope.Error}
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("rejected: %s", envelope.Error)
	default:
		return store.Retryable(fmt.Errorf("server returned %d: %s", resp.StatusCode, envelope.Error))
	}
}
