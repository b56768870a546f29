// Package client calls JSON-RPC methods served over HTTP.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/mnehpets/onerpc/jsonrpc"
)

// ErrNoReply is returned by Call when the server answers a request with no
// content.
var ErrNoReply = errors.New("client: server sent no reply")

// Client posts JSON-RPC messages to URL.
type Client struct {
	URL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Codec defaults to jsonrpc.JSON.
	Codec jsonrpc.Codec
}

// New creates a Client for url using the JSON codec.
func New(url string) *Client {
	return &Client{URL: url}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) codec() jsonrpc.Codec {
	if c.Codec != nil {
		return c.Codec
	}
	return jsonrpc.JSON
}

// NewID returns a fresh text request id.
func NewID() jsonrpc.ID {
	return jsonrpc.StringID(uuid.NewString())
}

// Call invokes method with params and waits for its response. A failure
// response is returned as a *jsonrpc.Response whose Err is set, not as an
// error; the error result is reserved for transport problems.
func (c *Client) Call(ctx context.Context, method string, params any) (*jsonrpc.Response, error) {
	id := NewID()
	reply, err := c.Send(ctx, jsonrpc.NewRequest(method, params, id))
	if err != nil {
		return nil, err
	}
	resp, ok := reply.(*jsonrpc.Response)
	if !ok || resp == nil {
		return nil, ErrNoReply
	}
	return resp, nil
}

// Notify sends a notification. The server sends nothing back.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	_, err := c.Send(ctx, jsonrpc.NewNotification(method, params))
	return err
}

// Batch sends batch as one message. Requests without an id are sent as
// notifications; the returned responses are in the server's order, which
// matches the order of the non-notification requests.
func (c *Client) Batch(ctx context.Context, batch jsonrpc.Batch) (jsonrpc.BatchResponse, error) {
	reply, err := c.Send(ctx, batch)
	if err != nil {
		return nil, err
	}
	switch r := reply.(type) {
	case nil:
		return nil, nil
	case jsonrpc.BatchResponse:
		return r, nil
	case *jsonrpc.Response:
		// Servers answer a batch they cannot read with a single error.
		return jsonrpc.BatchResponse{r}, nil
	default:
		return nil, fmt.Errorf("client: unexpected reply %T", reply)
	}
}

// Send posts call and returns the decoded reply, or nil when the server
// answers 204 No Content.
func (c *Client) Send(ctx context.Context, call jsonrpc.Call) (jsonrpc.Reply, error) {
	codec := c.codec()
	payload, err := codec.Encode(call)
	if err != nil {
		return nil, fmt.Errorf("client: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	req.Header.Set("Content-Type", codec.ContentType())
	req.Header.Set("Accept", codec.ContentType())

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	raw, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("client: decode reply: %w", err)
	}
	return jsonrpc.ParseReply(raw)
}

// StatusError is returned when the server answers with an unexpected HTTP
// status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
