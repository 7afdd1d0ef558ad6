// Package rutifyclient is a Go client for the rutify relay HTTP and
// websocket API.
package rutifyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "http://localhost:3000"

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rutify: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: normalizeBaseURL(baseURL),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithToken returns a copy that sends token as its bearer.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = strings.TrimSpace(token)
	return &cp
}

func (c *Client) BaseURL() string { return c.baseURL }

type Notification struct {
	Message string `json:"message"`
	Title   string `json:"title,omitempty"`
	Device  string `json:"device,omitempty"`
}

type StoredNotification struct {
	ID         int64     `json:"id"`
	Message    string    `json:"message"`
	Title      string    `json:"title"`
	Device     string    `json:"device"`
	ReceivedAt time.Time `json:"received_at"`
}

type Stats struct {
	TodayCount  int64 `json:"today_count"`
	TotalCount  int64 `json:"total_count"`
	DeviceCount int64 `json:"device_count"`
	IsRunning   bool  `json:"is_running"`
	Subscribers int   `json:"subscribers"`
}

type User struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	JWTToken  string    `json:"jwt_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CreateTokenOptions struct {
	Usage          string  `json:"usage"`
	ExpiresInHours *int64  `json:"expires_in_hours,omitempty"`
	DeviceInfo     *string `json:"device_info,omitempty"`
}

type IssuedToken struct {
	Token     string    `json:"token"`
	TokenID   int64     `json:"token_id"`
	Usage     string    `json:"usage"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type TokenInfo struct {
	ID         int64      `json:"id"`
	Usage      string     `json:"usage"`
	TokenType  string     `json:"token_type"`
	DeviceInfo *string    `json:"device_info"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

type envelope[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
	Meta   *struct {
		Total int64 `json:"total"`
	} `json:"meta,omitempty"`
}

func (c *Client) Send(ctx context.Context, n Notification) error {
	return c.do(ctx, http.MethodPost, "/notify", n, nil)
}

func (c *Client) Register(ctx context.Context, username, password, email string) (*User, error) {
	var out User
	body := map[string]string{"username": username, "password": password, "email": email}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var out Session
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Profile(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateToken(ctx context.Context, opts CreateTokenOptions) (*IssuedToken, error) {
	var out IssuedToken
	if err := c.do(ctx, http.MethodPost, "/auth/tokens", opts, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTokens(ctx context.Context) ([]TokenInfo, error) {
	var out []TokenInfo
	if err := c.do(ctx, http.MethodGet, "/auth/tokens", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RevokeToken(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/auth/tokens/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) ListNotifications(ctx context.Context) ([]StoredNotification, int64, error) {
	var out envelope[[]StoredNotification]
	if err := c.do(ctx, http.MethodGet, "/api/notifies", nil, &out); err != nil {
		return nil, 0, err
	}
	total := int64(len(out.Data))
	if out.Meta != nil {
		total = out.Meta.Total
	}
	return out.Data, total, nil
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out envelope[Stats]
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) DeleteNotification(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/notifies/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) DeleteAllNotifications(ctx context.Context) (int64, error) {
	var out envelope[struct {
		DeletedCount int64 `json:"deleted_count"`
	}]
	if err := c.do(ctx, http.MethodDelete, "/api/notifies", nil, &out); err != nil {
		return 0, err
	}
	return out.Data.DeletedCount, nil
}

// Health reports whether the relay answers on /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Logout ends the session the client is carrying.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// LogoutAll ends every session of the logged-in user and returns how many were open.
func (c *Client) LogoutAll(ctx context.Context) (int64, error) {
	var out envelope[struct {
		DeletedCount int64 `json:"deleted_count"`
	}]
	if err := c.do(ctx, http.MethodPost, "/auth/logout/all", nil, &out); err != nil {
		return 0, err
	}
	return out.Data.DeletedCount, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, joinURL(c.baseURL, path), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		var e struct {
			Errors string `json:"errors"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Errors != "" {
			msg = e.Errors
		}
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func joinURL(base, path string) string {
	return normalizeBaseURL(base) + path
}

func normalizeBaseURL(in string) string {
	return strings.TrimRight(strings.TrimSpace(in), "/")
}

func websocketURL(base, token string) (string, error) {
	u, err := url.Parse(normalizeBaseURL(base))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}
