package zonda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/entity"
)

// APIError is a non-2xx response from the Zonda backend. The sync dispatcher
// keys user-facing messaging off StatusCode.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("zonda api error [%d]: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("zonda api error [%d]", e.StatusCode)
}

// Client talks to the Zonda ERP backend. The bearer token is set after login
// and replayed on every subsequent request.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the given base URL. The timeout is the
// fixed request ceiling; exceeding it surfaces like any connectivity failure.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetToken arms the client with the session bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// ClearToken drops the session token (logout).
func (c *Client) ClearToken() {
	c.SetToken("")
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// LoginRequest is the credentials body for POST login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates the technician and arms the client with the returned
// token.
func (c *Client) Login(ctx context.Context, email, password string) (*entity.User, error) {
	var user entity.User
	if err := c.doRequest(ctx, http.MethodPost, "/login", LoginRequest{Email: email, Password: password}, &user); err != nil {
		return nil, err
	}
	c.SetToken(user.Token)
	return &user, nil
}

// OrdersResponse is the payload of GET orders/{userId}/{date}.
type OrdersResponse struct {
	Orders  []entity.Order  `json:"orders"`
	Reports []entity.Report `json:"reports"`
}

// FetchOrders retrieves the technician's orders and server-side reports for
// one calendar day.
func (c *Client) FetchOrders(ctx context.Context, userID, date string) (*OrdersResponse, error) {
	var resp OrdersResponse
	path := fmt.Sprintf("/orders/%s/%s", userID, date)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PushReport uploads one report to POST /reports/handle.
func (c *Client) PushReport(ctx context.Context, report entity.Report) error {
	return c.doRequest(ctx, http.MethodPost, "/reports/handle", report, nil)
}

// Ping probes the backend for reachability.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// doRequest executes a JSON request against the backend, adding the bearer
// token when present and decoding the response into result. Non-2xx
// responses become *APIError carrying the server's {message} when it sends
// one.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var serverErr struct {
			Message string `json:"message"`
		}
		if data, err := io.ReadAll(resp.Body); err == nil {
			if json.Unmarshal(data, &serverErr) == nil {
				apiErr.Message = serverErr.Message
			}
		}
		return apiErr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
