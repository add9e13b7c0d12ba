// Package client provides an HTTP and WebSocket client for the legalchat server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/legalchat/internal/metrics"
	"github.com/raphaelgruber/legalchat/internal/models"
)

// Client talks to a legalchat server.
type Client struct {
	baseURL    string
	appSecret  string
	httpClient *http.Client
}

// New creates a client.
// If baseURL is empty, uses LEGALCHAT_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via LEGALCHAT_CLIENT_TIMEOUT env var (default 5m, research is slow).
// appSecret signs message payloads when the server checks signatures.
func New(baseURL, appSecret string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("LEGALCHAT_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}

	timeout := 5 * time.Minute
	if t := os.Getenv("LEGALCHAT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		appSecret: appSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// do sends a request and decodes a JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, payload any, result any) error {
	var (
		body    io.Reader
		reqBody []byte
	)
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		if c.appSecret != "" {
			req.Header.Set("X-Hub-Signature-256", sign(c.appSecret, reqBody))
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server error: %s - %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// SendResult is the server's answer to one message. Response is nil for duplicates.
type SendResult struct {
	Response  *models.Response
	Duplicate bool
}

// Send posts one inbound message.
func (c *Client) Send(ctx context.Context, in models.Inbound) (*SendResult, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/v1/messages", in, &raw); err != nil {
		return nil, err
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &status); err == nil && status.Status == "duplicate" {
		return &SendResult{Duplicate: true}, nil
	}

	var resp models.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &SendResult{Response: &resp}, nil
}

// History fetches the stored state of a conversation.
func (c *Client) History(ctx context.Context, id models.ConversationID) (*models.ConversationState, error) {
	var state models.ConversationState
	if err := c.do(ctx, http.MethodGet, "/v1/conversations/"+url.PathEscape(string(id)), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Stats fetches the server's runtime statistics.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Frame is one server-to-client WebSocket message.
type Frame struct {
	Type     string           `json:"type"`
	Response *models.Response `json:"response,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Converse opens a WebSocket session, sends each message received from in
// and passes the server's answer to onFrame. It returns when in is closed,
// ctx is cancelled or onFrame returns an error.
func (c *Client) Converse(
	ctx context.Context,
	in <-chan models.Inbound,
	onFrame func(Frame) error,
) error {
	wsEndpoint := c.baseURL
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/v1/ws")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	// Handle context cancellation in a separate goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var msg models.Inbound
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-in:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
			msg = m
		}

		if err := conn.WriteJSON(msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("send message: %w", err)
		}

		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if err := onFrame(frame); err != nil {
			return err
		}
	}
}
