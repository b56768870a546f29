package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehpets/onerpc/endpoint"
	"github.com/mnehpets/onerpc/jsonrpc"
)

func startServer(t *testing.T, notified *atomic.Int32, opts ...jsonrpc.EndpointOption) string {
	t.Helper()
	reg := jsonrpc.NewRegistry(map[string]jsonrpc.Capability{
		"subtract": jsonrpc.Func(func(a, b int) int { return a - b }, "minuend", "subtrahend"),
		"notify": jsonrpc.Func(func() {
			notified.Add(1)
		}),
		"fail": jsonrpc.Func(func() error {
			return errors.New("nope")
		}),
	})
	srv := httptest.NewServer(jsonrpc.NewEndpoint(reg, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestCall(t *testing.T) {
	var notified atomic.Int32
	c := New(startServer(t, &notified))

	resp, err := c.Call(t.Context(), "subtract", []any{42, 23})
	require.NoError(t, err)
	assert.False(t, resp.IsError())
	assert.Equal(t, json.Number("19"), resp.Result())

	resp, err = c.Call(t.Context(), "subtract", map[string]any{"subtrahend": 23, "minuend": 42})
	require.NoError(t, err)
	assert.Equal(t, json.Number("19"), resp.Result())
}

func TestCallFailureIsResponse(t *testing.T) {
	var notified atomic.Int32
	c := New(startServer(t, &notified))

	resp, err := c.Call(t.Context(), "fail", nil)
	require.NoError(t, err)
	require.True(t, resp.IsError())
	assert.Equal(t, jsonrpc.CodeInternalError, resp.Err().Code)
	assert.Equal(t, "errorString: nope", resp.Err().Data)

	resp, err = c.Call(t.Context(), "missing", nil)
	require.NoError(t, err)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, resp.Err().Code)
}

func TestCallIDsAreUnique(t *testing.T) {
	a, b := NewID(), NewID()
	assert.False(t, a.Equal(b))
	_, ok := a.Raw().(string)
	assert.True(t, ok)
}

func TestNotify(t *testing.T) {
	var notified atomic.Int32
	c := New(startServer(t, &notified))

	require.NoError(t, c.Notify(t.Context(), "notify", nil))
	assert.Equal(t, int32(1), notified.Load())
}

func TestBatch(t *testing.T) {
	var notified atomic.Int32
	c := New(startServer(t, &notified, jsonrpc.WithConcurrentBatches(true)))

	responses, err := c.Batch(t.Context(), jsonrpc.Batch{
		jsonrpc.NewRequest("subtract", []any{10, 1}, jsonrpc.Int64ID(1)),
		jsonrpc.NewNotification("notify", nil),
		jsonrpc.NewRequest("subtract", []any{10, 2}, jsonrpc.Int64ID(2)),
	})
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, json.Number("9"), responses[0].Result())
	assert.Equal(t, json.Number("8"), responses[1].Result())
	assert.Equal(t, int32(1), notified.Load())
}

func TestBatchOfNotifications(t *testing.T) {
	var notified atomic.Int32
	c := New(startServer(t, &notified))

	responses, err := c.Batch(t.Context(), jsonrpc.Batch{
		jsonrpc.NewNotification("notify", nil),
		jsonrpc.NewNotification("notify", nil),
	})
	require.NoError(t, err)
	assert.Nil(t, responses)
	assert.Equal(t, int32(2), notified.Load())
}

func TestEmptyBatchIsWrapped(t *testing.T) {
	var notified atomic.Int32
	c := New(startServer(t, &notified))

	responses, err := c.Batch(t.Context(), jsonrpc.Batch{})
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, jsonrpc.CodeInvalidRequest, responses[0].Err().Code)
	assert.True(t, responses[0].ID().IsNull())
}

func TestCallCBOR(t *testing.T) {
	var notified atomic.Int32
	c := &Client{URL: startServer(t, &notified, jsonrpc.WithCodec(jsonrpc.CBOR)), Codec: jsonrpc.CBOR}

	resp, err := c.Call(t.Context(), "subtract", []any{5, 8})
	require.NoError(t, err)
	assert.Equal(t, int64(-3), resp.Result())
}

func TestStatusError(t *testing.T) {
	var notified atomic.Int32
	url := startServer(t, &notified)

	// The JSON endpoint rejects CBOR bodies.
	c := &Client{URL: url, Codec: jsonrpc.CBOR}
	_, err := c.Call(t.Context(), "subtract", []any{1, 1})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnsupportedMediaType, se.StatusCode)
}

func TestCallNoReply(t *testing.T) {
	srv := httptest.NewServer(endpoint.HandleFunc(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (endpoint.Renderer, error) {
		return &endpoint.NoContentRenderer{}, nil
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).Call(t.Context(), "anything", nil)
	assert.ErrorIs(t, err, ErrNoReply)
}

func TestCallCancelled(t *testing.T) {
	var notified atomic.Int32
	c := New(startServer(t, &notified))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := c.Call(ctx, "subtract", []any{1, 1})
	assert.ErrorIs(t, err, context.Canceled)
}
