package crudapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Envelope is the response wrapper used by the remote API, and by this
// service's own HTTP API.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody is the error half of an Envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Pipeline   PipelineConfig
}

// Client performs CRUD operations against named resources.
type Client struct {
	transport Transport
	logger    zerolog.Logger
}

// NewClient builds a client over an HTTPTransport wrapped in the configured
// middleware pipeline.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	base := &HTTPTransport{
		BaseURL:    cfg.BaseURL,
		Token:      cfg.Token,
		HTTPClient: cfg.HTTPClient,
		Logger:     logger,
	}
	return NewClientWithTransport(NewPipeline(base, cfg.Pipeline), logger)
}

// NewClientWithTransport builds a client over an arbitrary transport.
func NewClientWithTransport(t Transport, logger zerolog.Logger) *Client {
	return &Client{transport: t, logger: logger}
}

// Create posts in to the resource collection and decodes the created item into out.
func (c *Client) Create(ctx context.Context, resource string, in, out any) error {
	return c.do(ctx, Call{Operation: "Create", Method: http.MethodPost, Resource: resource}, in, out)
}

// Get fetches one item by id.
func (c *Client) Get(ctx context.Context, resource, id string, out any) error {
	return c.do(ctx, Call{Operation: "Get", Method: http.MethodGet, Resource: resource, ID: id}, nil, out)
}

// List fetches the resource collection filtered by query.
func (c *Client) List(ctx context.Context, resource string, query url.Values, out any) error {
	return c.do(ctx, Call{Operation: "List", Method: http.MethodGet, Resource: resource, Query: query}, nil, out)
}

// Update replaces one item by id.
func (c *Client) Update(ctx context.Context, resource, id string, in, out any) error {
	return c.do(ctx, Call{Operation: "Update", Method: http.MethodPut, Resource: resource, ID: id}, in, out)
}

// Delete removes one item by id.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	return c.do(ctx, Call{Operation: "Delete", Method: http.MethodDelete, Resource: resource, ID: id}, nil, nil)
}

func (c *Client) do(ctx context.Context, call Call, in, out any) error {
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", call.Operation, err)
		}
		call.Body = body
	}

	data, err := c.transport.Send(ctx, call)
	if err != nil {
		return err
	}

	// Some deployments answer DELETE with 204 and no body.
	if len(data) == 0 {
		return nil
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &APIError{Kind: ErrorKindInvalidData, Operation: call.Operation, Resource: call.Resource, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if !env.Success {
		apiErr := &APIError{Kind: ErrorKindUpstream, Operation: call.Operation, Resource: call.Resource}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			if env.Error.Code == "not_found" {
				apiErr.Kind = ErrorKindNotFound
			}
		}
		return apiErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &APIError{Kind: ErrorKindInvalidData, Operation: call.Operation, Resource: call.Resource, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}
