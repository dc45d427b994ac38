// Package client is a typed client for the Pokedex HTTP API.
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
)

const DefaultBaseURL = "http://localhost:8080"

var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: %s (%s)", e.Message, e.Code)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

type Notification struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Tokens struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type Pokemon struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Types     []string `json:"types"`
	Abilities []string `json:"abilities"`
	Image     string   `json:"image"`
	Owned     bool     `json:"owned"`
}

type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	User      string    `json:"user"`
	Types     []string  `json:"types"`
	Abilities []string  `json:"abilities"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
}

// CatalogMeta is the load state reported next to a catalog listing.
type CatalogMeta struct {
	Status    string `json:"status"`
	Seq       uint64 `json:"seq"`
	Total     int    `json:"total"`
	LastError string `json:"last_error"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 3 * time.Minute},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// WithToken returns a copy of c that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type responseMeta struct {
	CatalogMeta
	Notifications []Notification `json:"notifications"`
}

// do sends body as JSON and decodes the envelope's data into out. Any
// notifications the server attached are returned.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (responseMeta, error) {
	var meta responseMeta

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return meta, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return meta, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return meta, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return meta, nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return meta, &APIError{StatusCode: resp.StatusCode}
		}
		return meta, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if len(env.Meta) > 0 {
		_ = json.Unmarshal(env.Meta, &meta)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return meta, &APIError{StatusCode: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return meta, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return meta, nil
}

func (c *Client) Register(ctx context.Context, email, password, displayName string) (User, error) {
	var u User
	_, err := c.do(ctx, http.MethodPost, "/v1/users/register", map[string]string{
		"email":        email,
		"password":     password,
		"display_name": displayName,
	}, &u)
	return u, err
}

func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (Tokens, error) {
	var t Tokens
	_, err := c.do(ctx, http.MethodPost, "/v1/auth/login", map[string]any{
		"email":       email,
		"password":    password,
		"remember_me": rememberMe,
	}, &t)
	return t, err
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	var t Tokens
	_, err := c.do(ctx, http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": refreshToken}, &t)
	return t, err
}

func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/auth/logout", map[string]string{"refresh_token": refreshToken}, nil)
	return err
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	_, err := c.do(ctx, http.MethodGet, "/v1/me", nil, &u)
	return u, err
}

func (c *Client) Rename(ctx context.Context, displayName string) (User, []Notification, error) {
	var u User
	meta, err := c.do(ctx, http.MethodPatch, "/v1/me/display-name", map[string]string{"display_name": displayName}, &u)
	return u, meta.Notifications, err
}

func (c *Client) Unname(ctx context.Context) (User, []Notification, error) {
	var u User
	meta, err := c.do(ctx, http.MethodDelete, "/v1/me/display-name", nil, &u)
	return u, meta.Notifications, err
}

// List returns the catalog filtered by query.
func (c *Client) List(ctx context.Context, query string) ([]Pokemon, CatalogMeta, error) {
	path := "/v1/pokemon"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var out []Pokemon
	meta, err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, meta.CatalogMeta, err
}

func (c *Client) Reload(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/pokemon/reload", nil, nil)
	return err
}

func (c *Client) Collection(ctx context.Context) ([]Record, error) {
	var out []Record
	_, err := c.do(ctx, http.MethodGet, "/v1/collection", nil, &out)
	return out, err
}

func (c *Client) Add(ctx context.Context, name string) (Record, []Notification, error) {
	var rec Record
	meta, err := c.do(ctx, http.MethodPost, "/v1/collection", map[string]string{"name": name}, &rec)
	return rec, meta.Notifications, err
}

func (c *Client) Remove(ctx context.Context, name string) ([]Notification, error) {
	meta, err := c.do(ctx, http.MethodDelete, "/v1/collection/"+url.PathEscape(name), nil, nil)
	return meta.Notifications, err
}
