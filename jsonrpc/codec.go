package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Codec converts between wire bytes and values. Decode returns the generic
// form the validator understands: map[string]any, []any, string, bool, nil
// and numbers. A Decode failure is always a *Error of kind ParseError.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)
	ContentType() string
}

// JSON is the canonical codec. Numbers decode as json.Number so integer ids
// survive a round trip.
var JSON Codec = jsonCodec{}

// CBOR encodes messages as RFC 8949 CBOR, with the same field names as JSON.
var CBOR Codec = newCBORCodec()

type jsonCodec struct{}

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Encode(v any) ([]byte, error) {
	return marshalJSON(v)
}

// marshalJSON is json.Marshal without HTML escaping. The wire marshalers use
// it too, since json.Encoder keeps the escaping a nested json.Marshal did.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Drop the newline json.Encoder appends.
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (jsonCodec) Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, NewParseError("")
	}
	// Reject trailing data after the first value.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, NewParseError("")
	}
	return v, nil
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) ContentType() string { return "application/cbor" }

func (c cborCodec) Encode(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c cborCodec) Decode(data []byte) (any, error) {
	var v any
	if err := c.dec.Unmarshal(data, &v); err != nil {
		return nil, NewParseError("")
	}
	return v, nil
}

// Encode is JSON.Encode.
func Encode(v any) ([]byte, error) { return JSON.Encode(v) }

// Decode is JSON.Decode.
func Decode(data []byte) (any, error) { return JSON.Decode(data) }

// ReadCall decodes data with codec and parses the result. Undecodable input
// becomes a request carrying a ParseError.
func ReadCall(codec Codec, data []byte) Call {
	raw, err := codec.Decode(data)
	if err != nil {
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			rpcErr = NewParseError("")
		}
		return invalidRequest(rpcErr)
	}
	return ParseCall(raw)
}

// WriteReply encodes reply with codec. It reports false, and no bytes, when
// there is nothing to send.
func WriteReply(codec Codec, reply Reply) ([]byte, bool, error) {
	if reply == nil {
		return nil, false, nil
	}
	if b, ok := reply.(BatchResponse); ok && len(b) == 0 {
		return nil, false, nil
	}
	data, err := codec.Encode(reply)
	if err == nil {
		return data, true, nil
	}
	// Some member holds a value the codec cannot represent. Answer that member
	// with an InternalError and keep the rest.
	switch r := reply.(type) {
	case *Response:
		reply = encodable(codec, r)
	case BatchResponse:
		fixed := make(BatchResponse, len(r))
		for i, resp := range r {
			fixed[i] = encodable(codec, resp)
		}
		reply = fixed
	}
	data, err = codec.Encode(reply)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// encodable returns r, or an InternalError response for the same id when the
// payload of r cannot be encoded with codec.
func encodable(codec Codec, r *Response) *Response {
	if r == nil {
		return r
	}
	var payload any = r.result
	if r.err != nil {
		payload = r.err.Data
	}
	if _, err := codec.Encode(payload); err != nil {
		return NewFailure(NewInternalError(failureData(err)), r.id)
	}
	return r
}
