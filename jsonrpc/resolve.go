package jsonrpc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Resolve answers call using the capabilities in reg, one request at a time.
//
// It returns a *Response for a single request, a BatchResponse for a batch,
// or nil when there is nothing to send (a notification, or a batch made only
// of notifications). Failures of the invoked capabilities, including panics,
// are turned into failure responses and never escape.
func Resolve(ctx context.Context, reg *Registry, call Call) Reply {
	return resolve(ctx, reg, call, false)
}

// ResolveConcurrent is Resolve, except that the members of a batch are
// resolved in parallel. It waits for every member before returning, and the
// responses keep the order of their requests.
func ResolveConcurrent(ctx context.Context, reg *Registry, call Call) Reply {
	return resolve(ctx, reg, call, true)
}

func resolve(ctx context.Context, reg *Registry, call Call, concurrent bool) Reply {
	switch c := call.(type) {
	case *Request:
		if resp := resolveRequest(ctx, reg, c); resp != nil {
			return resp
		}
		return nil
	case Batch:
		return resolveBatch(ctx, reg, c, concurrent)
	default:
		return NewFailure(NewInvalidRequestError(""), NullID)
	}
}

func resolveBatch(ctx context.Context, reg *Registry, batch Batch, concurrent bool) Reply {
	if len(batch) == 0 {
		return NewFailure(NewInvalidRequestError(""), NullID)
	}

	// Each member writes only its own slot.
	responses := make([]*Response, len(batch))
	if concurrent {
		var wg sync.WaitGroup
		for i, req := range batch {
			wg.Go(func() {
				responses[i] = resolveRequest(ctx, reg, req)
			})
		}
		wg.Wait()
	} else {
		for i, req := range batch {
			responses[i] = resolveRequest(ctx, reg, req)
		}
	}

	out := make(BatchResponse, 0, len(responses))
	for _, resp := range responses {
		if resp != nil {
			out = append(out, resp)
		}
	}
	// No responses means all requests were notifications.
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveRequest(ctx context.Context, reg *Registry, req *Request) *Response {
	if req == nil {
		return NewFailure(NewInvalidRequestError(""), NullID)
	}
	if err := req.Invalid(); err != nil {
		return NewFailure(err, NullID)
	}

	capability, ok := reg.Lookup(req.Method)
	if !ok {
		return NewFailure(NewMethodNotFoundError(""), req.ID)
	}

	result, err := invoke(ctx, capability, req)
	if err != nil {
		return NewFailure(asError(err), req.ID)
	}
	return NewSuccess(result, req.ID)
}

// invoke calls capability with the convention matching req.Params.
func invoke(ctx context.Context, capability Capability, req *Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "jsonrpc: recovered panic", "method", req.Method, "id", req.ID.String(), "panic", r)
			if e, ok := r.(error); ok {
				err = NewInternalError(failureData(e))
			} else {
				err = NewInternalError(fmt.Sprintf("panic: %v", r))
			}
		}
	}()

	params, err := normalizeParams(req.Params)
	if err != nil {
		return nil, err
	}
	switch p := params.(type) {
	case nil:
		return capability.CallPositional(ctx, nil)
	case []any:
		return capability.CallPositional(ctx, p)
	case map[string]any:
		return capability.CallNamed(ctx, p)
	default:
		return nil, NewInvalidParamsError(fmt.Sprintf("params must be an array or an object, not %T", p))
	}
}

// normalizeParams accepts params built in-process, such as []int or a
// struct, by passing them through the canonical codec.
func normalizeParams(params any) (any, error) {
	switch params.(type) {
	case nil, []any, map[string]any:
		return params, nil
	}
	data, err := JSON.Encode(params)
	if err != nil {
		return nil, NewInvalidParamsError(err.Error())
	}
	return JSON.Decode(data)
}
