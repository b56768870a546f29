package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Capability is an invocable method. The resolver calls CallPositional when
// params is an array or absent, and CallNamed when params is an object.
//
// A capability signals an argument mismatch by returning an *Error of kind
// InvalidParams. Any other error becomes an InternalError response.
type Capability interface {
	CallPositional(ctx context.Context, args []any) (any, error)
	CallNamed(ctx context.Context, args map[string]any) (any, error)
}

// PositionalFunc is a Capability that only accepts positional arguments.
type PositionalFunc func(ctx context.Context, args []any) (any, error)

func (f PositionalFunc) CallPositional(ctx context.Context, args []any) (any, error) {
	return f(ctx, args)
}

func (f PositionalFunc) CallNamed(context.Context, map[string]any) (any, error) {
	return nil, NewInvalidParamsError("named params not supported")
}

// NamedFunc is a Capability that only accepts named arguments. A call without
// params is passed an empty map.
type NamedFunc func(ctx context.Context, args map[string]any) (any, error)

func (f NamedFunc) CallPositional(ctx context.Context, args []any) (any, error) {
	if len(args) == 0 {
		return f(ctx, map[string]any{})
	}
	return nil, NewInvalidParamsError("positional params not supported")
}

func (f NamedFunc) CallNamed(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// funcCapability holds reflection data for a function wrapped by Func.
type funcCapability struct {
	fn       reflect.Value
	withCtx  bool
	params   []reflect.Type // excludes the context; a variadic tail is its slice type
	variadic bool
	names    []string
	result   bool // first output is a value
	errOut   bool // last output is an error
}

// Func wraps fn as a Capability.
//
// fn may take a leading context.Context followed by any parameters, and may
// be variadic. It may return nothing, a value, an error, or a value and an
// error. names, when given, name the non-variadic parameters in order and
// enable calls with named params.
//
// Func panics if fn is not a function of that form or if names does not match
// its parameters.
func Func(fn any, names ...string) Capability {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		panic(fmt.Sprintf("jsonrpc: Func: %T is not a function", fn))
	}
	ft := v.Type()
	c := &funcCapability{fn: v, variadic: ft.IsVariadic()}

	for i := 0; i < ft.NumIn(); i++ {
		in := ft.In(i)
		if i == 0 && in == contextType {
			c.withCtx = true
			continue
		}
		c.params = append(c.params, in)
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			c.errOut = true
		} else {
			c.result = true
		}
	case 2:
		if ft.Out(1) != errorType {
			panic(fmt.Sprintf("jsonrpc: Func: second result of %s must be error", ft))
		}
		c.result, c.errOut = true, true
	default:
		panic(fmt.Sprintf("jsonrpc: Func: %s has too many results", ft))
	}

	if len(names) > 0 {
		if len(names) != c.fixed() {
			panic(fmt.Sprintf("jsonrpc: Func: %d names for %d parameters", len(names), c.fixed()))
		}
		c.names = names
	}
	return c
}

// fixed is the number of non-variadic parameters.
func (c *funcCapability) fixed() int {
	if c.variadic {
		return len(c.params) - 1
	}
	return len(c.params)
}

func (c *funcCapability) CallPositional(ctx context.Context, args []any) (any, error) {
	fixed := c.fixed()
	if len(args) < fixed || (!c.variadic && len(args) > fixed) {
		return nil, NewInvalidParamsError(fmt.Sprintf("expected %d params, got %d", fixed, len(args)))
	}

	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		t := c.params[min(i, len(c.params)-1)]
		if i >= fixed {
			t = t.Elem()
		}
		v, err := convertArg(arg, t)
		if err != nil {
			return nil, NewInvalidParamsError(fmt.Sprintf("param %d: %v", i, err))
		}
		in = append(in, v)
	}
	return c.call(ctx, in)
}

func (c *funcCapability) CallNamed(ctx context.Context, args map[string]any) (any, error) {
	if c.names == nil && c.fixed() > 0 {
		return nil, NewInvalidParamsError("named params not supported")
	}
	for key := range args {
		if !slices.Contains(c.names, key) {
			return nil, NewInvalidParamsError("unknown param: " + key)
		}
	}

	in := make([]reflect.Value, 0, len(c.names))
	for i, name := range c.names {
		arg, ok := args[name]
		if !ok {
			return nil, NewInvalidParamsError("missing param: " + name)
		}
		v, err := convertArg(arg, c.params[i])
		if err != nil {
			return nil, NewInvalidParamsError(fmt.Sprintf("param %s: %v", name, err))
		}
		in = append(in, v)
	}
	return c.call(ctx, in)
}

func (c *funcCapability) call(ctx context.Context, args []reflect.Value) (any, error) {
	if c.withCtx {
		args = append([]reflect.Value{reflect.ValueOf(&ctx).Elem()}, args...)
	}
	out := c.fn.Call(args)

	var result any
	if c.result {
		result = out[0].Interface()
	}
	if c.errOut {
		if errV := out[len(out)-1]; !errV.IsNil() {
			return nil, errV.Interface().(error)
		}
	}
	return result, nil
}

// convertArg converts a decoded value to t, going through JSON when the value
// is not directly assignable.
func convertArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use null as %s", t)
	}
	if v := reflect.ValueOf(arg); v.Type().AssignableTo(t) {
		return v, nil
	}
	data, err := json.Marshal(arg)
	if err != nil {
		return reflect.Value{}, err
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return ptr.Elem(), nil
}

// typedCapability holds reflection data for a params struct P.
type typedCapability[P, R any] struct {
	fn          func(context.Context, P) (R, error)
	paramNames  []string // JSON tag names for validation and named params
	paramFields []int    // Field indices for positional params
}

// Typed wraps fn, whose arguments are gathered in the struct P.
//
// Named params map to the fields of P by json tag and must all be present.
// Positional params fill the fields in declaration order. Typed panics if P is
// not a struct.
func Typed[P, R any](fn func(context.Context, P) (R, error)) Capability {
	pt := reflect.TypeFor[P]()
	if pt.Kind() != reflect.Struct {
		panic(fmt.Sprintf("jsonrpc: Typed: params type %s is not a struct", pt))
	}
	c := &typedCapability[P, R]{fn: fn}
	for i := 0; i < pt.NumField(); i++ {
		field := pt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" {
			name = strings.Split(tag, ",")[0]
			if name == "-" {
				continue
			}
			if name == "" {
				name = field.Name
			}
		}
		c.paramNames = append(c.paramNames, name)
		c.paramFields = append(c.paramFields, i)
	}
	return c
}

func (c *typedCapability[P, R]) CallPositional(ctx context.Context, args []any) (any, error) {
	if len(args) != len(c.paramFields) {
		return nil, NewInvalidParamsError("invalid number of params")
	}
	var p P
	pv := reflect.ValueOf(&p).Elem()
	for i, arg := range args {
		field := pv.Field(c.paramFields[i])
		v, err := convertArg(arg, field.Type())
		if err != nil {
			return nil, NewInvalidParamsError("invalid params")
		}
		field.Set(v)
	}
	return c.fn(ctx, p)
}

func (c *typedCapability[P, R]) CallNamed(ctx context.Context, args map[string]any) (any, error) {
	for _, name := range c.paramNames {
		if _, ok := args[name]; !ok {
			return nil, NewInvalidParamsError("missing param: " + name)
		}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, NewInvalidParamsError("invalid params")
	}
	var p P
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, NewInvalidParamsError("invalid params")
	}
	return c.fn(ctx, p)
}
