package client

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

	"github.com/zhouzirui/eddez/backend/internal/model/chat"
	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
	"github.com/zhouzirui/eddez/backend/internal/model/settings"
	"github.com/zhouzirui/eddez/backend/internal/model/user"
)

const maxResponseBytes = 8 << 20

// APIError is a non-2xx answer from the proxy server.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to the proxy server's REST routes.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL (for example
// "http://localhost:8080"). A nil httpClient gets a 60 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// HTTPClient returns a copy of the underlying client with its own timeout so
// gateway endpoints share the transport without touching c's settings. A
// non-positive timeout keeps the current one.
func (c *Client) HTTPClient(timeout time.Duration) *http.Client {
	hc := *c.http
	if timeout > 0 {
		hc.Timeout = timeout
	}
	return &hc
}

// CompletionURL is the proxy's chat-completion route.
func (c *Client) CompletionURL() string { return c.baseURL + "/api/chat-completion" }

// PushURL is the websocket push channel.
func (c *Client) PushURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/api/ws"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/api/ws"
	default:
		return c.baseURL + "/api/ws"
	}
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *Client) ListKnowledge(ctx context.Context) ([]knowledge.Item, error) {
	var items []knowledge.Item
	if err := c.do(ctx, http.MethodGet, "/api/knowledge-base", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) ReplaceKnowledge(ctx context.Context, items []knowledge.Item) error {
	return c.do(ctx, http.MethodPost, "/api/knowledge-base", items, nil)
}

func (c *Client) ListSessions(ctx context.Context, userID string) ([]chat.Session, error) {
	var sessions []chat.Session
	path := "/api/sessions?user=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) SaveSession(ctx context.Context, userID string, session chat.Session) error {
	body := map[string]any{"user": userID, "session": session}
	return c.do(ctx, http.MethodPost, "/api/sessions", body, nil)
}

func (c *Client) DeleteSession(ctx context.Context, userID, sessionID string) error {
	path := "/api/sessions/" + url.PathEscape(userID) + "/" + url.PathEscape(sessionID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) GetSettings(ctx context.Context, userID string) (settings.UserSettings, error) {
	var prefs settings.UserSettings
	path := "/api/settings?user=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &prefs); err != nil {
		return settings.UserSettings{}, err
	}
	return prefs.WithDefaults(), nil
}

func (c *Client) SaveSettings(ctx context.Context, userID string, prefs settings.UserSettings) error {
	body := map[string]any{"user": userID, "settings": prefs}
	return c.do(ctx, http.MethodPost, "/api/settings", body, nil)
}

type authResponse struct {
	Success bool      `json:"success"`
	User    user.User `json:"user"`
}

// Signup creates an account and returns the stored user.
func (c *Client) Signup(ctx context.Context, email, password, name string) (user.User, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", body, &resp); err != nil {
		return user.User{}, err
	}
	return resp.User, nil
}

// Login verifies credentials and returns the user with its role.
func (c *Client) Login(ctx context.Context, email, password string) (user.User, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return user.User{}, err
	}
	return resp.User, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]user.User, error) {
	var users []user.User
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.Unmarshal(raw, &envelope)
		return &APIError{Status: resp.StatusCode, Message: envelope.Error, Code: envelope.Code}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
