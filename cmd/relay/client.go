package main

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

	"github.com/zulandar/chatrelay/internal/messaging"
)

const defaultServer = "http://127.0.0.1:8080"

// relayClient talks to a running relay over its JSON API.
type relayClient struct {
	base string
	http *http.Client
}

func newRelayClient(base string) *relayClient {
	return &relayClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// apiResponse is the envelope every relay endpoint answers with.
type apiResponse struct {
	Status     string              `json:"status"`
	Message    string              `json:"message"`
	Data       json.RawMessage     `json:"data"`
	Errors     map[string][]string `json:"errors"`
	RetryAfter int                 `json:"retry_after"`
}

// apiError is a non-2xx answer from the relay.
type apiError struct {
	StatusCode int
	Response   apiResponse
}

func (e *apiError) Error() string {
	if e.Response.Message == "" {
		return fmt.Sprintf("relay: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("relay: HTTP %d: %s", e.StatusCode, e.Response.Message)
}

// sendRequest is the JSON body for POST /api/chat/send.
type sendRequest struct {
	Content  string  `json:"content"`
	Channel  string  `json:"channel,omitempty"`
	UserName string  `json:"user_name,omitempty"`
	UserID   *string `json:"user_id,omitempty"`
}

func (c *relayClient) Send(ctx context.Context, req sendRequest) (messaging.Payload, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return messaging.Payload{}, fmt.Errorf("relay: encode message: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/chat/send", bytes.NewReader(body))
	if err != nil {
		return messaging.Payload{}, fmt.Errorf("relay: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	var p messaging.Payload
	if err := c.do(httpReq, &p); err != nil {
		return messaging.Payload{}, err
	}
	return p, nil
}

func (c *relayClient) History(ctx context.Context, channel string, limit int) ([]messaging.Payload, error) {
	u := c.base + "/api/chat/messages/" + url.PathEscape(channel)
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("relay: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	var msgs []messaging.Payload
	if err := c.do(httpReq, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// do sends req and decodes the envelope's data into out.
func (c *relayClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("relay: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("relay: read response: %w", err)
	}
	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &apiError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("relay: decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &apiError{StatusCode: resp.StatusCode, Response: env}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("relay: decode data: %w", err)
	}
	return nil
}
