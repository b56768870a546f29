package jsonrpc

import (
	"errors"
	"fmt"
	"reflect"
)

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// Kind is one of the fixed failure categories defined by JSON-RPC 2.0.
type Kind int

const (
	// KindUnknown is returned by KindOf for codes outside the taxonomy.
	KindUnknown Kind = iota
	ParseError
	InvalidRequest
	MethodNotFound
	InvalidParams
	InternalError
	ServerError
)

var kinds = [...]struct {
	code    int
	name    string
	message string
}{
	KindUnknown:    {0, "Unknown", ""},
	ParseError:     {CodeParseError, "ParseError", "Parse error"},
	InvalidRequest: {CodeInvalidRequest, "InvalidRequest", "Invalid Request"},
	MethodNotFound: {CodeMethodNotFound, "MethodNotFound", "Method not found"},
	InvalidParams:  {CodeInvalidParams, "InvalidParams", "Invalid params"},
	InternalError:  {CodeInternalError, "InternalError", "Internal error"},
	ServerError:    {CodeServerError, "ServerError", "Server error"},
}

func (k Kind) valid() bool {
	return k > KindUnknown && int(k) < len(kinds)
}

// Code returns the wire error code for k, or 0 for KindUnknown.
func (k Kind) Code() int {
	if !k.valid() {
		return 0
	}
	return kinds[k].code
}

// Message returns the default message for k.
func (k Kind) Message() string {
	if !k.valid() {
		return ""
	}
	return kinds[k].message
}

func (k Kind) String() string {
	if !k.valid() {
		return kinds[KindUnknown].name
	}
	return kinds[k].name
}

// KindOf maps a wire error code back to its Kind.
func KindOf(code int) Kind {
	for k := ParseError; int(k) < len(kinds); k++ {
		if kinds[k].code == code {
			return k
		}
	}
	return KindUnknown
}

// Error is the error object carried by a failure Response. It also
// implements error, so capabilities may return it to choose the code.
type Error struct {
	Code    int    `json:"code" cbor:"code"`
	Message string `json:"message" cbor:"message"`
	Data    any    `json:"data,omitempty" cbor:"data,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return "jsonrpc: <nil>"
	}
	if e.Data != nil {
		return fmt.Sprintf("jsonrpc: %s (%d): %v", e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("jsonrpc: %s (%d)", e.Message, e.Code)
}

// Kind reports which taxonomy entry e belongs to.
func (e *Error) Kind() Kind {
	return KindOf(e.Code)
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithData returns a copy of e carrying data.
func (e *Error) WithData(data any) *Error {
	c := *e
	c.Data = data
	return &c
}

func newKindError(k Kind, data any) *Error {
	return &Error{Code: k.Code(), Message: k.Message(), Data: data}
}

// The constructors below use the default message of their kind; a non-empty
// detail is attached as data.

func NewParseError(detail string) *Error {
	return newKindError(ParseError, detailData(detail))
}

func NewInvalidRequestError(detail string) *Error {
	return newKindError(InvalidRequest, detailData(detail))
}

func NewMethodNotFoundError(detail string) *Error {
	return newKindError(MethodNotFound, detailData(detail))
}

func NewInvalidParamsError(detail string) *Error {
	return newKindError(InvalidParams, detailData(detail))
}

func NewInternalError(detail string) *Error {
	return newKindError(InternalError, detailData(detail))
}

func NewServerError(detail string) *Error {
	return newKindError(ServerError, detailData(detail))
}

func detailData(detail string) any {
	if detail == "" {
		return nil
	}
	return detail
}

// asError converts a failure returned by a capability into the error object
// sent to the peer.
//
// Taxonomy errors pass through unchanged. Application errors with custom codes
// are folded into ServerError, keeping the original in data. Anything else is
// an InternalError whose data names the failure type and message.
func asError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		if rpcErr == nil {
			// A nil *Error stored in a non-nil error interface.
			return newKindError(InternalError, "Error: <nil>")
		}
		if rpcErr.Kind() != KindUnknown {
			return rpcErr
		}
		return newKindError(ServerError, map[string]any{
			"code":    rpcErr.Code,
			"message": rpcErr.Message,
			"data":    rpcErr.Data,
		})
	}
	return newKindError(InternalError, failureData(err))
}

// failureData renders err as "<TypeName>: <message>".
func failureData(err error) string {
	return failureName(err) + ": " + err.Error()
}

func failureName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "error"
	}
	return t.Name()
}
