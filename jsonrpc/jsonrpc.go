package jsonrpc

import (
	"context"
	"mime"
	"net/http"
	"strings"

	"github.com/mnehpets/onerpc/endpoint"
)

// HTTPEndpoint serves a Registry over HTTP as described by JSON-RPC over
// HTTP: one POST per message, 200 with the reply, 204 when there is nothing
// to send.
//
// Use endpoint.Handler(e.Endpoint, processors...) or e.Handler to create an
// http.Handler.
type HTTPEndpoint struct {
	registry *Registry
	// concurrent selects ResolveConcurrent for batches.
	concurrent bool
	codecs     map[string]Codec
}

// EndpointOption configures an HTTPEndpoint.
type EndpointOption func(*HTTPEndpoint)

// WithConcurrentBatches resolves batch members in parallel.
func WithConcurrentBatches(enabled bool) EndpointOption {
	return func(e *HTTPEndpoint) {
		e.concurrent = enabled
	}
}

// WithCodec accepts request bodies of c.ContentType() and answers in kind.
func WithCodec(c Codec) EndpointOption {
	return func(e *HTTPEndpoint) {
		e.codecs[c.ContentType()] = c
	}
}

// NewEndpoint creates an HTTPEndpoint for reg. JSON is always accepted.
func NewEndpoint(reg *Registry, opts ...EndpointOption) *HTTPEndpoint {
	e := &HTTPEndpoint{
		registry: reg,
		codecs:   map[string]Codec{JSON.ContentType(): JSON},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// rpcParams captures the raw request body. Parsing is deferred to the
// endpoint because JSON-RPC reports malformed bodies in-band. The size limit
// is left to the server (see middleware.BodyLimitProcessor).
type rpcParams struct {
	Body        []byte `body:"" maxLength:"0"`
	ContentType string `header:"Content-Type"`
}

// Endpoint is the endpoint function that processes JSON-RPC requests.
// Pass to endpoint.Handler() to create an http.Handler.
func (e *HTTPEndpoint) Endpoint(w http.ResponseWriter, r *http.Request, params rpcParams) (endpoint.Renderer, error) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		return nil, endpoint.Error(http.StatusMethodNotAllowed, "JSON-RPC requires POST method", nil)
	}

	codec, ok := e.codecFor(params.ContentType)
	if !ok {
		return nil, endpoint.Error(http.StatusUnsupportedMediaType, "unsupported Content-Type "+params.ContentType, nil)
	}
	return e.handleBody(r.Context(), codec, params.Body)
}

// Handler returns an http.Handler running processors before the endpoint.
// Set its Logger field to choose where request failures are logged.
func (e *HTTPEndpoint) Handler(processors ...endpoint.Processor) *endpoint.EndpointHandler[rpcParams] {
	return endpoint.Handler(e.Endpoint, processors...)
}

// codecFor picks the codec for a Content-Type header. An empty header means
// JSON.
func (e *HTTPEndpoint) codecFor(contentType string) (Codec, bool) {
	if strings.TrimSpace(contentType) == "" {
		return JSON, true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, false
	}
	c, ok := e.codecs[strings.ToLower(mt)]
	return c, ok
}

// handleBody resolves one message and returns a renderer for the reply.
func (e *HTTPEndpoint) handleBody(ctx context.Context, codec Codec, body []byte) (endpoint.Renderer, error) {
	call := ReadCall(codec, body)

	var reply Reply
	if e.concurrent {
		reply = ResolveConcurrent(ctx, e.registry, call)
	} else {
		reply = Resolve(ctx, e.registry, call)
	}

	data, ok, err := WriteReply(codec, reply)
	if err != nil {
		return nil, endpoint.Error(http.StatusInternalServerError, "", err)
	}
	// Nothing to send means the message held only notifications.
	if !ok {
		return &endpoint.NoContentRenderer{}, nil
	}
	return &endpoint.BytesRenderer{ContentType: codec.ContentType(), Body: data}, nil
}
