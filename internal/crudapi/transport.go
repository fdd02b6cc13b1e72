// Package crudapi is a client for the remote CRUD API that owns auth state
// and canonical persistence. Every response is a JSON envelope:
//
//	{"success": true, "data": {...}}
//	{"success": false, "error": {"code": "...", "message": "..."}}
package crudapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// Call is one request to the remote API.
type Call struct {
	// Operation names the client method for errors and metrics (e.g., "Create").
	Operation string
	Method    string
	Resource  string
	// ID is appended to the resource path when set.
	ID    string
	Query url.Values
	Body  []byte
}

// Path returns the request path relative to the base URL.
func (c Call) Path() string {
	p := "/" + strings.Trim(c.Resource, "/")
	if c.ID != "" {
		p += "/" + url.PathEscape(c.ID)
	}
	return p
}

// Idempotent reports whether sending the call twice has the same effect as
// sending it once. Only creates are not.
func (c Call) Idempotent() bool {
	return c.Method != http.MethodPost && c.Method != http.MethodPatch
}

// Transport sends a call and returns the raw response body of a 2xx reply.
type Transport interface {
	Send(ctx context.Context, call Call) ([]byte, error)
}

// HTTPTransport sends calls over HTTP with bearer-token auth.
type HTTPTransport struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

var defaultHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// Send performs the HTTP request. Non-2xx replies become *APIError, with the
// envelope's error code and message when the body carries one.
func (t *HTTPTransport) Send(ctx context.Context, call Call) ([]byte, error) {
	if t.BaseURL == "" {
		return nil, &APIError{Kind: ErrorKindInvalidData, Operation: call.Operation, Resource: call.Resource, Err: errors.New("base url is not configured")}
	}

	endpoint := strings.TrimRight(t.BaseURL, "/") + call.Path()
	if len(call.Query) > 0 {
		endpoint += "?" + call.Query.Encode()
	}

	var body io.Reader
	if call.Body != nil {
		body = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", call.Operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if call.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.Token)
	}

	client := t.HTTPClient
	if client == nil {
		client = defaultHTTPClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, &APIError{Kind: ErrorKindNetwork, Operation: call.Operation, Resource: call.Resource, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logger.Error().Err(err).Msg("failed to close response body")
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &APIError{Kind: ErrorKindNetwork, Operation: call.Operation, Resource: call.Resource, StatusCode: resp.StatusCode, Err: err}
	}

	t.Logger.Debug().
		Str("method", call.Method).
		Str("path", call.Path()).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("crud api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Kind:       kindForStatus(resp.StatusCode),
			Operation:  call.Operation,
			Resource:   call.Resource,
			StatusCode: resp.StatusCode,
		}
		var env Envelope
		if json.Unmarshal(data, &env) == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		} else {
			apiErr.Err = fmt.Errorf("status: %s", resp.Status)
		}
		return nil, apiErr
	}
	return data, nil
}
