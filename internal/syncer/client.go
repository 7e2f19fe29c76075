package syncer

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

	"github.com/haasonsaas/whiteboard/internal/canvas"
)

// APIError is a non-2xx response from the whiteboard API.
type APIError struct {
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request %s failed: %d %s (%s)", e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("request %s failed: %d %s", e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// SessionInfo is a session as returned by the API.
type SessionInfo struct {
	ID        string           `json:"id"`
	Name      string           `json:"name,omitempty"`
	URL       string           `json:"url,omitempty"`
	Elements  []canvas.Element `json:"elements,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt,omitempty"`
}

// Snapshot is the textual summary of a session.
type Snapshot struct {
	SessionID    string           `json:"sessionId"`
	SessionName  string           `json:"sessionName,omitempty"`
	Description  string           `json:"description"`
	ElementCount int              `json:"elementCount"`
	Elements     []canvas.Element `json:"elements"`
	Connections  []struct {
		Source  string   `json:"source"`
		Targets []string `json:"targets"`
	} `json:"connections"`
}

type elementsResponse struct {
	Elements    []canvas.Element `json:"elements"`
	SessionID   string           `json:"sessionId"`
	SessionName string           `json:"sessionName"`
}

type elementsRequest struct {
	Elements []canvas.Element `json:"elements"`
}

// Client talks to the whiteboard REST API. It implements Remote.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API rooted at baseURL, for example
// http://localhost:8080/api.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateSession creates a session, optionally named.
func (c *Client) CreateSession(ctx context.Context, name string) (*SessionInfo, error) {
	var out SessionInfo
	payload := map[string]string{}
	if name != "" {
		payload["name"] = name
	}
	if err := c.do(ctx, http.MethodPost, "/sessions", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSessions returns the most recently updated sessions.
func (c *Client) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	var out []SessionInfo
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession resolves a session by id or name.
func (c *Client) GetSession(ctx context.Context, token string) (*SessionInfo, error) {
	var out SessionInfo
	if err := c.do(ctx, http.MethodGet, sessionPath(token), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession removes a session.
func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(token), nil, nil)
}

// Snapshot fetches the session summary.
func (c *Client) Snapshot(ctx context.Context, token string) (*Snapshot, error) {
	var out Snapshot
	if err := c.do(ctx, http.MethodGet, sessionPath(token)+"/snapshot", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchElements returns the stored element sequence.
func (c *Client) FetchElements(ctx context.Context, token string) ([]canvas.Element, error) {
	var out elementsResponse
	if err := c.do(ctx, http.MethodGet, sessionPath(token)+"/elements", nil, &out); err != nil {
		return nil, err
	}
	if out.Elements == nil {
		out.Elements = []canvas.Element{}
	}
	return out.Elements, nil
}

// MergeElements upserts elements by id.
func (c *Client) MergeElements(ctx context.Context, token string, elements []canvas.Element) error {
	if elements == nil {
		elements = []canvas.Element{}
	}
	return c.do(ctx, http.MethodPost, sessionPath(token)+"/elements", elementsRequest{Elements: elements}, nil)
}

// ReplaceElements overwrites the stored sequence.
func (c *Client) ReplaceElements(ctx context.Context, token string, elements []canvas.Element) error {
	if elements == nil {
		elements = []canvas.Element{}
	}
	return c.do(ctx, http.MethodPut, sessionPath(token)+"/elements", elementsRequest{Elements: elements}, nil)
}

func sessionPath(token string) string {
	return "/sessions/" + url.PathEscape(token)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Path: path, StatusCode: resp.StatusCode}
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("%w (read body: %v)", apiErr, readErr)
		}
		var parsed struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != "" {
			apiErr.Message = parsed.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
