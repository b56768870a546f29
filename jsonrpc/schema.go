package jsonrpc

import (
	"encoding/json"
	"fmt"
	"math"
)

// Node describes the type of a single field in a Shape. The set of node types
// is closed: Literal, Primitive, Union, Any and *Shape.
type Node interface {
	node()
}

// Literal matches exactly one value, compared with ==.
type Literal struct {
	Value any
}

// Primitive matches one category of decoded value.
type Primitive int

const (
	String Primitive = iota + 1
	Integer
	Number
	Bool
	Null
	Array
	Object
)

// Union matches when any of its branches matches.
type Union []Node

// Any matches every value, including null.
type Any struct{}

func (Literal) node()   {}
func (Primitive) node() {}
func (Union) node()     {}
func (Any) node()       {}
func (*Shape) node()    {}

// Field is one named entry of a Shape.
type Field struct {
	Name     string
	Required bool
	Type     Node
}

// Shape describes a key-value object: the keys it may carry, which of them
// are required, and the type of each.
type Shape struct {
	Name   string
	Fields []Field
}

func (s *Shape) field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

var version = Literal{Value: Version}

var idType = Union{Integer, String, Null}

// RequestShape is the shape of a single request object.
var RequestShape = &Shape{
	Name: "Request",
	Fields: []Field{
		{Name: "jsonrpc", Required: true, Type: version},
		{Name: "method", Required: true, Type: String},
		{Name: "params", Type: Union{Array, Object}},
		{Name: "id", Type: idType},
	},
}

var errorObjectShape = &Shape{
	Name: "ErrorObject",
	Fields: []Field{
		{Name: "code", Required: true, Type: Integer},
		{Name: "message", Required: true, Type: String},
		{Name: "data", Type: Any{}},
	},
}

// ResultShape is the shape of a success response.
var ResultShape = &Shape{
	Name: "Result",
	Fields: []Field{
		{Name: "jsonrpc", Required: true, Type: version},
		{Name: "id", Required: true, Type: idType},
		{Name: "result", Required: true, Type: Any{}},
	},
}

// ErrorShape is the shape of a failure response.
var ErrorShape = &Shape{
	Name: "Error",
	Fields: []Field{
		{Name: "jsonrpc", Required: true, Type: version},
		{Name: "id", Required: true, Type: idType},
		{Name: "error", Required: true, Type: errorObjectShape},
	},
}

// Validate reports whether value, as produced by a Codec, conforms to shape.
//
// Validate panics if shape contains a node it does not know how to check;
// that is a bug in the shape, not in the value.
func Validate(value any, shape *Shape) bool {
	obj, ok := value.(map[string]any)
	if !ok {
		return false
	}
	for key := range obj {
		if _, ok := shape.field(key); !ok {
			return false
		}
	}
	for _, f := range shape.Fields {
		v, present := obj[f.Name]
		if !present {
			if f.Required {
				return false
			}
			continue
		}
		if !matches(v, f.Type) {
			return false
		}
	}
	return true
}

func matches(v any, n Node) bool {
	switch n := n.(type) {
	case Any:
		return true
	case Literal:
		return v == n.Value
	case Primitive:
		return isPrimitive(v, n)
	case Union:
		for _, branch := range n {
			if matches(v, branch) {
				return true
			}
		}
		return false
	case *Shape:
		return Validate(v, n)
	default:
		panic(fmt.Sprintf("jsonrpc: unsupported schema node %T", n))
	}
}

func isPrimitive(v any, p Primitive) bool {
	switch p {
	case String:
		_, ok := v.(string)
		return ok
	case Integer:
		_, ok := toInt64(v)
		return ok
	case Number:
		switch v.(type) {
		case json.Number, float64, float32, int, int64, uint64:
			return true
		}
		return false
	case Bool:
		_, ok := v.(bool)
		return ok
	case Null:
		return v == nil
	case Array:
		_, ok := v.([]any)
		return ok
	case Object:
		_, ok := v.(map[string]any)
		return ok
	default:
		panic(fmt.Sprintf("jsonrpc: unsupported primitive %d", int(p)))
	}
}

// toInt64 accepts the integer representations the codecs produce.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
