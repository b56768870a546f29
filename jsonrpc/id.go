package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// ID is a request id. The zero value is an absent id, which marks the request
// as a notification; NullID is present but null.
type ID struct {
	value   any // nil, int64 or string
	present bool
}

// NullID is the id used when a response cannot be tied to a request.
var NullID = ID{present: true}

func Int64ID(n int64) ID   { return ID{value: n, present: true} }
func StringID(s string) ID { return ID{value: s, present: true} }

// IsNotification reports whether the id is absent.
func (id ID) IsNotification() bool { return !id.present }

// IsNull reports whether the id is present and null.
func (id ID) IsNull() bool { return id.present && id.value == nil }

// Raw returns nil, an int64 or a string.
func (id ID) Raw() any { return id.value }

// Equal reports whether two ids are the same.
func (id ID) Equal(other ID) bool {
	return id.present == other.present && id.value == other.value
}

func (id ID) String() string {
	switch v := id.value.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return strconv.Quote(v)
	}
	if id.present {
		return "null"
	}
	return "<none>"
}

// idFromRaw converts a validated decoded id value.
func idFromRaw(v any) (ID, error) {
	if v == nil {
		return NullID, nil
	}
	if s, ok := v.(string); ok {
		return StringID(s), nil
	}
	if n, ok := toInt64(v); ok {
		return Int64ID(n), nil
	}
	return ID{}, fmt.Errorf("jsonrpc: invalid id type %T", v)
}

func (id ID) MarshalJSON() ([]byte, error) {
	return marshalJSON(id.value)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	parsed, err := idFromRaw(v)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(id.value)
}
