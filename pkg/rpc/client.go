package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	verrors "github.com/dshills/vizier/pkg/errors"
)

// Client calls remote methods over HTTP JSON-RPC.
type Client struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	mu         sync.Mutex
	closed     bool
}

// Config holds configuration for the HTTP transport
type Config struct {
	BaseURL string
	Headers map[string]string
	Timeout time.Duration
}

// NewClient creates a new HTTP JSON-RPC client
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL cannot be empty")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: config.BaseURL,
		headers: config.Headers,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Call invokes method with params and decodes the result into result.
// A nil result discards the response payload.
//
// Remote validation failures are returned as *errors.ValidationError and
// remote not-found failures as errors.ErrNotFound.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	body, err := c.sendRequest(ctx, method, params)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}

	if errObj := gjson.GetBytes(body, "error"); errObj.Exists() {
		return decodeError(errObj)
	}

	if result == nil {
		return nil
	}
	raw := gjson.GetBytes(body, "result")
	if !raw.Exists() {
		return fmt.Errorf("%s: response has neither result nor error", method)
	}
	if err := json.Unmarshal([]byte(raw.Raw), result); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", method, err)
	}
	return nil
}

// sendRequest sends a JSON-RPC request via HTTP POST and returns the raw response body
func (c *Client) sendRequest(ctx context.Context, method string, params interface{}) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("client is closed")
	}
	c.mu.Unlock()

	req, err := newRequest(method, params)
	if err != nil {
		return nil, err
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP request failed with status %d: %s (body: %s)", httpResp.StatusCode, httpResp.Status, string(body))
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON-RPC response (body: %s)", string(body))
	}
	if got := gjson.GetBytes(body, "id").String(); got != fmt.Sprint(req.ID) {
		return nil, fmt.Errorf("response id mismatch: sent %v, got %s", req.ID, got)
	}

	return body, nil
}

// Close releases idle connections. Further calls fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
	return nil
}

func decodeError(errObj gjson.Result) error {
	code := int(errObj.Get("code").Int())
	message := errObj.Get("message").String()

	switch code {
	case CodeValidation:
		return verrors.NewValidation(errObj.Get("data.code").String(), "%s", message)
	case CodeNotFound:
		return fmt.Errorf("%s: %w", message, verrors.ErrNotFound)
	}

	rpcErr := &Error{Code: code, Message: message}
	if data := errObj.Get("data"); data.Exists() {
		rpcErr.Data = data.Value()
	}
	return rpcErr
}
