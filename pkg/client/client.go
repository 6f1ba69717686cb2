// Package client is a small Go client for the Planora HTTP API. Failed
// requests keep their raw response body so callers can normalize it into
// field errors and display messages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/planora/planora/internal/fielderrors"
)

// APIError is a non-2xx response. It retains the body for the
// fielderrors extractors.
type APIError struct {
	StatusCode int
	Body       []byte
}

// Error returns the most specific message the response carried.
func (e *APIError) Error() string {
	return fielderrors.Message(e.Body, fmt.Sprintf("request failed with status %d", e.StatusCode))
}

// ResponseBody returns the raw response body.
func (e *APIError) ResponseBody() []byte {
	return e.Body
}

// FieldErrors returns the per-field validation messages, keyed by
// camelCase field name. Empty for non-validation failures.
func (e *APIError) FieldErrors() map[string]string {
	return fielderrors.Fields(e.Body)
}

// Client talks to a Planora server.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New creates a client for the server at baseURL. The client keeps
// cookies, which is how the anonymous identity behind the pending-invite
// slot survives across requests.
func New(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
	}
}

// SetToken attaches a session token to subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// User is a user account as returned by the API.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
	CreatedAt int64  `json:"createdAt"`
}

// Session is the result of a successful registration or login.
type Session struct {
	User         User   `json:"user"`
	Token        string `json:"token"`
	JoinedRoomID string `json:"joinedRoomId"`
}

// Room is a room as returned by the API.
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatarUrl"`
	InviteCode  string `json:"inviteCode"`
	CreatedBy   string `json:"createdBy"`
	CreatedAt   int64  `json:"createdAt"`
	MemberCount int    `json:"memberCount"`
}

// JoinResult is the outcome of redeeming an invite code.
type JoinResult struct {
	Room          Room `json:"room"`
	AlreadyMember bool `json:"alreadyMember"`
}

// Register creates an account and stores its session token on the client.
func (c *Client) Register(ctx context.Context, email, name, password string) (*Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/api/auth/register",
		map[string]string{"email": email, "name": name, "password": password}, &session)
	if err != nil {
		return nil, err
	}
	c.token = session.Token
	return &session, nil
}

// Login authenticates and stores the session token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, &session)
	if err != nil {
		return nil, err
	}
	c.token = session.Token
	return &session, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateRoom makes a new room owned by the caller.
func (c *Client) CreateRoom(ctx context.Context, name, description string) (*Room, error) {
	var room Room
	err := c.do(ctx, http.MethodPost, "/api/rooms",
		map[string]string{"name": name, "description": description}, &room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// Rooms lists the caller's rooms.
func (c *Client) Rooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// Join redeems an invite code.
func (c *Client) Join(ctx context.Context, code string) (*JoinResult, error) {
	var result JoinResult
	err := c.do(ctx, http.MethodPost, "/api/join", map[string]string{"code": code}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// StagePendingInvite stores an invite code to be redeemed after the next
// successful authentication. Returns the canonical form of the code.
func (c *Client) StagePendingInvite(ctx context.Context, code string) (string, error) {
	var resp struct {
		Code string `json:"code"`
	}
	err := c.do(ctx, http.MethodPut, "/api/pending-invite", map[string]string{"code": code}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Code, nil
}

// PendingInvite returns the staged invite code, empty when none.
func (c *Client) PendingInvite(ctx context.Context) (string, error) {
	var resp struct {
		Code string `json:"code"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/pending-invite", nil, &resp); err != nil {
		return "", err
	}
	return resp.Code, nil
}

// ClearPendingInvite empties the staged invite slot.
func (c *Client) ClearPendingInvite(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/pending-invite", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: raw}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
