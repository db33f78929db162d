// Package api is the REST client for the task backend. Every mutation
// carries a bearer token read from the persisted auth state.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tasksync/internal/model"
)

var (
	ErrUnauthorized = fmt.Errorf("tasks api unauthorized")
	ErrNotFound     = fmt.Errorf("tasks api not found")
	ErrNoToken      = fmt.Errorf("tasks api: no auth token")
)

// TokenSource yields the current bearer token; an empty string means the
// user is not signed in and mutations must fail hard.
type TokenSource func() string

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      TokenSource
}

type errorBody struct {
	Error string `json:"error"`
}

func NewClient(httpClient *http.Client, baseURL string, token TokenSource) *Client {
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      token,
	}
}

func (c *Client) CreateTask(ctx context.Context, t model.Task) (*model.Task, error) {
	var out model.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTask(ctx context.Context, taskID string, t model.Task) (*model.Task, error) {
	var out model.Task
	if err := c.do(ctx, http.MethodPut, "/api/tasks/"+taskID, t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+taskID, nil, nil)
}

func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var out struct {
		Tasks []model.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

func (c *Client) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	var out model.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+taskID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthz probes the server health endpoint; it is the connectivity
// observer's reachability check and needs no token.
func (c *Client) Healthz(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("healthz status %d", resp.StatusCode)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	token := strings.TrimSpace(c.token())
	if token == "" {
		return ErrNoToken
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if !strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = "Bearer " + token
	}
	req.Header.Set("Authorization", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	var eb errorBody
	_ = json.NewDecoder(resp.Body).Decode(&eb)
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		if strings.TrimSpace(eb.Error) != "" {
			return fmt.Errorf("tasks api %d: %s", resp.StatusCode, eb.Error)
		}
		return fmt.Errorf("tasks api status %d", resp.StatusCode)
	}
}
