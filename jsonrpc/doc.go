// Package jsonrpc implements the JSON-RPC 2.0 message protocol
// (https://www.jsonrpc.org/specification): decoding and validating messages,
// dispatching requests to registered capabilities, and building responses,
// including batches and notifications.
//
// # Basic Usage
//
// Build a registry and resolve decoded messages against it:
//
//	reg := jsonrpc.NewRegistry(map[string]jsonrpc.Capability{
//	    "sum": jsonrpc.Func(func(xs ...int) int {
//	        total := 0
//	        for _, x := range xs {
//	            total += x
//	        }
//	        return total
//	    }),
//	})
//
//	call := jsonrpc.ReadCall(jsonrpc.JSON, body)
//	reply := jsonrpc.Resolve(ctx, reg, call)
//	out, ok, err := jsonrpc.WriteReply(jsonrpc.JSON, reply)
//
// When ok is false there is nothing to send: the message was a notification
// or a batch of notifications.
//
// To serve over HTTP:
//
//	e := jsonrpc.NewEndpoint(reg)
//	http.Handle("/rpc", endpoint.Handler(e.Endpoint))
//
// # Capabilities
//
// A Capability accepts positional (array) or named (object) params. Func
// adapts an ordinary Go function; pass parameter names to allow named calls:
//
//	jsonrpc.Func(func(ctx context.Context, word string) (string, error) {
//	    return "hello " + word + "!", nil
//	}, "word")
//
// Typed adapts a function taking a params struct, whose json tags name the
// params:
//
//	type AddParams struct {
//	    A int `json:"a"`
//	    B int `json:"b"`
//	}
//
//	jsonrpc.Typed(func(ctx context.Context, p AddParams) (int, error) {
//	    return p.A + p.B, nil
//	})
//
// # Error Handling
//
// Return an *Error to choose the response code:
//
//	return 0, jsonrpc.NewInvalidParamsError("division by zero")
//
// Any other error, or a panic, is reported as an InternalError whose data
// holds the failure type and message. An *Error with a code outside the
// standard table is reported as a ServerError carrying the original code,
// message and data.
//
// Standard error codes are defined as constants:
//   - CodeParseError (-32700)
//   - CodeInvalidRequest (-32600)
//   - CodeMethodNotFound (-32601)
//   - CodeInvalidParams (-32602)
//   - CodeInternalError (-32603)
//   - CodeServerError (-32000)
//
// # Batches
//
// Resolve handles batch members one after another; ResolveConcurrent runs
// them in parallel and waits for all of them. Both keep the order of the
// requests and leave out notifications.
package jsonrpc
