package jsonrpc

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Version is the value of the "jsonrpc" member of every message.
const Version = "2.0"

// ErrInvalidResponse is returned when a decoded value is neither a success
// nor a failure response.
var ErrInvalidResponse = errors.New("jsonrpc: invalid response")

// Call is an inbound message handed to the resolver: a *Request or a Batch.
type Call interface {
	isCall()
}

// Reply is what the resolver hands back: a *Response or a BatchResponse.
// A nil Reply means there is nothing to send.
type Reply interface {
	isReply()
}

// Request is a single JSON-RPC request. A request whose ID is absent is a
// notification.
type Request struct {
	Method string
	// Params is nil, a positional []any or a named map[string]any.
	Params any
	ID     ID

	// invalid is set when the request could not be decoded; the resolver
	// answers it with this error and a null id.
	invalid *Error
}

// NewRequest constructs a request that expects a response.
func NewRequest(method string, params any, id ID) *Request {
	return &Request{Method: method, Params: params, ID: id}
}

// NewNotification constructs a request without an id.
func NewNotification(method string, params any) *Request {
	return &Request{Method: method, Params: params}
}

// Invalid returns the decode-time failure of r, or nil for a well-formed
// request.
func (r *Request) Invalid() *Error { return r.invalid }

// IsNotification reports whether r expects no response.
func (r *Request) IsNotification() bool { return r.ID.IsNotification() }

func (*Request) isCall() {}

// Batch is an ordered list of requests sent as one message.
type Batch []*Request

func (Batch) isCall() {}

type wireRequest struct {
	JSONRPC string `json:"jsonrpc" cbor:"jsonrpc"`
	Method  string `json:"method" cbor:"method"`
	Params  any    `json:"params,omitempty" cbor:"params,omitempty"`
	ID      *ID    `json:"id,omitempty" cbor:"id,omitempty"`
}

func (r *Request) wire() wireRequest {
	w := wireRequest{JSONRPC: Version, Method: r.Method, Params: r.Params}
	if !r.ID.IsNotification() {
		id := r.ID
		w.ID = &id
	}
	return w
}

func (r *Request) MarshalJSON() ([]byte, error) { return marshalJSON(r.wire()) }
func (r *Request) MarshalCBOR() ([]byte, error) { return cbor.Marshal(r.wire()) }

// Response is the reply to one request. It holds either a result or an error,
// fixed at construction.
type Response struct {
	id     ID
	result any
	err    *Error
}

// NewSuccess constructs a success response. It returns nil when id is absent,
// since notifications are never answered.
func NewSuccess(result any, id ID) *Response {
	if id.IsNotification() {
		return nil
	}
	return &Response{id: id, result: result}
}

// NewFailure constructs a failure response carrying err. It returns nil when
// id is absent.
func NewFailure(err *Error, id ID) *Response {
	if id.IsNotification() {
		return nil
	}
	if err == nil {
		err = newKindError(InternalError, nil)
	}
	return &Response{id: id, err: err}
}

// NewErrorResponse is NewFailure with the error object spelled out.
func NewErrorResponse(code int, message string, data any, id ID) *Response {
	return NewFailure(&Error{Code: code, Message: message, Data: data}, id)
}

func (r *Response) ID() ID        { return r.id }
func (r *Response) IsError() bool { return r.err != nil }

// Result returns the result value; it is nil for failure responses.
func (r *Response) Result() any { return r.result }

// Err returns the error object; it is nil for success responses.
func (r *Response) Err() *Error { return r.err }

func (*Response) isReply() {}

// BatchResponse holds the responses to a Batch, in request order.
type BatchResponse []*Response

func (BatchResponse) isReply() {}

type wireResult struct {
	JSONRPC string `json:"jsonrpc" cbor:"jsonrpc"`
	ID      ID     `json:"id" cbor:"id"`
	Result  any    `json:"result" cbor:"result"`
}

type wireError struct {
	JSONRPC string `json:"jsonrpc" cbor:"jsonrpc"`
	ID      ID     `json:"id" cbor:"id"`
	Error   *Error `json:"error" cbor:"error"`
}

func (r *Response) wire() any {
	if r.err != nil {
		return wireError{JSONRPC: Version, ID: r.id, Error: r.err}
	}
	return wireResult{JSONRPC: Version, ID: r.id, Result: r.result}
}

func (r *Response) MarshalJSON() ([]byte, error) { return marshalJSON(r.wire()) }
func (r *Response) MarshalCBOR() ([]byte, error) { return cbor.Marshal(r.wire()) }

// ParseCall turns a decoded value into a Call. It never fails: malformed
// requests are returned as requests whose Invalid method reports the problem,
// so the resolver can answer them.
func ParseCall(raw any) Call {
	list, ok := raw.([]any)
	if !ok {
		return parseRequest(raw)
	}
	if len(list) == 0 {
		return invalidRequest(NewInvalidRequestError(""))
	}
	batch := make(Batch, len(list))
	for i, item := range list {
		batch[i] = parseRequest(item)
	}
	return batch
}

func invalidRequest(err *Error) *Request {
	return &Request{ID: NullID, invalid: err}
}

func parseRequest(raw any) *Request {
	if !Validate(raw, RequestShape) {
		return invalidRequest(NewInvalidRequestError(""))
	}
	obj := raw.(map[string]any)
	method := obj["method"].(string)
	if method == "" {
		return invalidRequest(NewInvalidRequestError(""))
	}
	req := &Request{Method: method, Params: obj["params"]}
	if v, ok := obj["id"]; ok {
		id, err := idFromRaw(v)
		if err != nil {
			return invalidRequest(NewInvalidRequestError(""))
		}
		req.ID = id
	}
	return req
}

// ParseReply turns a decoded value into a *Response or a BatchResponse.
func ParseReply(raw any) (Reply, error) {
	list, ok := raw.([]any)
	if !ok {
		resp, err := ParseResponse(raw)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	batch := make(BatchResponse, 0, len(list))
	for i, item := range list {
		resp, err := ParseResponse(item)
		if err != nil {
			return nil, fmt.Errorf("batch member %d: %w", i, err)
		}
		batch = append(batch, resp)
	}
	return batch, nil
}

// ParseResponse turns a decoded value into a *Response.
func ParseResponse(raw any) (*Response, error) {
	switch {
	case Validate(raw, ResultShape):
		obj := raw.(map[string]any)
		id, err := idFromRaw(obj["id"])
		if err != nil {
			return nil, err
		}
		return &Response{id: id, result: obj["result"]}, nil
	case Validate(raw, ErrorShape):
		obj := raw.(map[string]any)
		id, err := idFromRaw(obj["id"])
		if err != nil {
			return nil, err
		}
		e := obj["error"].(map[string]any)
		code, _ := toInt64(e["code"])
		return &Response{id: id, err: &Error{
			Code:    int(code),
			Message: e["message"].(string),
			Data:    e["data"],
		}}, nil
	default:
		return nil, ErrInvalidResponse
	}
}

// Equal reports whether two responses carry the same id and outcome.
func (r *Response) Equal(other *Response) bool {
	if r == nil || other == nil {
		return r == other
	}
	if !r.id.Equal(other.id) {
		return false
	}
	if (r.err == nil) != (other.err == nil) {
		return false
	}
	if r.err != nil {
		return reflect.DeepEqual(r.err, other.err)
	}
	return reflect.DeepEqual(r.result, other.result)
}

// ExpectsReply reports whether a peer resolving call sends something back.
func ExpectsReply(call Call) bool {
	switch c := call.(type) {
	case *Request:
		return c.invalid != nil || !c.IsNotification()
	case Batch:
		if len(c) == 0 {
			return true
		}
		for _, req := range c {
			if ExpectsReply(req) {
				return true
			}
		}
	}
	return false
}
