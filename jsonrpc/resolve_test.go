package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testRegistry(calls *atomic.Int32) *Registry {
	return NewRegistry(map[string]Capability{
		"sum": Func(func(nums ...int) int {
			calls.Add(1)
			total := 0
			for _, n := range nums {
				total += n
			}
			return total
		}),
		"echo": Func(func(s string) string {
			calls.Add(1)
			return s
		}, "s"),
		"fail": Func(func() error {
			calls.Add(1)
			return errors.New("exploded")
		}),
		"custom": Func(func() error {
			calls.Add(1)
			return NewError(-1000, "quota").WithData("daily")
		}),
		"panic": Func(func() int {
			calls.Add(1)
			panic("kaboom")
		}),
		"panic_err": Func(func() int {
			calls.Add(1)
			panic(fmt.Errorf("wrapped: %w", context.Canceled))
		}),
		"nil_error": PositionalFunc(func(context.Context, []any) (any, error) {
			calls.Add(1)
			var err *Error
			return nil, err
		}),
		"inf": Func(func() float64 {
			calls.Add(1)
			return math.Inf(1)
		}),
		"sleep": Func(func(ms int) int {
			calls.Add(1)
			time.Sleep(time.Duration(ms) * time.Millisecond)
			return ms
		}, "ms"),
	})
}

// resolveJSON runs body through decode, resolve and encode, the way a
// transport does.
func resolveJSON(t *testing.T, reg *Registry, body string, concurrent bool) string {
	t.Helper()
	call := ReadCall(JSON, []byte(body))
	var reply Reply
	if concurrent {
		reply = ResolveConcurrent(t.Context(), reg, call)
	} else {
		reply = Resolve(t.Context(), reg, call)
	}
	data, ok, err := WriteReply(JSON, reply)
	if err != nil {
		t.Fatalf("encode reply: %v", err)
	}
	if !ok {
		return ""
	}
	return string(data)
}

func TestResolveScenarios(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "variadic sum",
			body: `{"jsonrpc":"2.0","method":"sum","params":[1,2,3],"id":1}`,
			want: `{"jsonrpc":"2.0","id":1,"result":6}`,
		},
		{
			name: "method not found",
			body: `{"jsonrpc":"2.0","method":"absent","id":2}`,
			want: `{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"Method not found"}}`,
		},
		{
			name: "parse error",
			body: `{not json`,
			want: `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`,
		},
		{
			name: "batch with notification",
			body: `[{"jsonrpc":"2.0","method":"sum","params":[1],"id":1},{"jsonrpc":"2.0","method":"sum","params":[5]},{"jsonrpc":"2.0","method":"sum","params":[2],"id":2}]`,
			want: `[{"jsonrpc":"2.0","id":1,"result":1},{"jsonrpc":"2.0","id":2,"result":2}]`,
		},
		{
			name: "invalid request",
			body: `{"jsonrpc":"2.0","method":1,"id":3}`,
			want: `{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}}`,
		},
		{
			name: "empty batch",
			body: `[]`,
			want: `{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}}`,
		},
		{
			name: "batch of invalid members",
			body: `[1,2]`,
			want: `[{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}},{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}}]`,
		},
		{
			name: "named params",
			body: `{"jsonrpc":"2.0","method":"echo","params":{"s":"hi"},"id":"a"}`,
			want: `{"jsonrpc":"2.0","id":"a","result":"hi"}`,
		},
		{
			name: "invalid params",
			body: `{"jsonrpc":"2.0","method":"echo","params":[1,2],"id":4}`,
			want: `{"jsonrpc":"2.0","id":4,"error":{"code":-32602,"message":"Invalid params","data":"expected 1 params, got 2"}}`,
		},
		{
			name: "null argument",
			body: `{"jsonrpc":"2.0","method":"sum","params":[null,1],"id":9}`,
			want: `{"jsonrpc":"2.0","id":9,"error":{"code":-32602,"message":"Invalid params","data":"param 0: cannot use null as int"}}`,
		},
		{
			name: "typed nil error",
			body: `{"jsonrpc":"2.0","method":"nil_error","id":10}`,
			want: `{"jsonrpc":"2.0","id":10,"error":{"code":-32603,"message":"Internal error","data":"Error: <nil>"}}`,
		},
		{
			name: "unencodable result",
			body: `[{"jsonrpc":"2.0","method":"sum","params":[1],"id":1},{"jsonrpc":"2.0","method":"inf","id":2}]`,
			want: `[{"jsonrpc":"2.0","id":1,"result":1},{"jsonrpc":"2.0","id":2,"error":{"code":-32603,"message":"Internal error","data":"UnsupportedValueError: json: unsupported value: +Inf"}}]`,
		},
		{
			name: "application failure",
			body: `{"jsonrpc":"2.0","method":"fail","id":5}`,
			want: `{"jsonrpc":"2.0","id":5,"error":{"code":-32603,"message":"Internal error","data":"errorString: exploded"}}`,
		},
		{
			name: "custom code",
			body: `{"jsonrpc":"2.0","method":"custom","id":6}`,
			want: `{"jsonrpc":"2.0","id":6,"error":{"code":-32000,"message":"Server error","data":{"code":-1000,"data":"daily","message":"quota"}}}`,
		},
		{
			name: "panic",
			body: `{"jsonrpc":"2.0","method":"panic","id":7}`,
			want: `{"jsonrpc":"2.0","id":7,"error":{"code":-32603,"message":"Internal error","data":"panic: kaboom"}}`,
		},
		{
			name: "panic with error",
			body: `{"jsonrpc":"2.0","method":"panic_err","id":8}`,
			want: `{"jsonrpc":"2.0","id":8,"error":{"code":-32603,"message":"Internal error","data":"wrapError: wrapped: context canceled"}}`,
		},
	}

	for _, concurrent := range []bool{false, true} {
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/concurrent=%v", tt.name, concurrent), func(t *testing.T) {
				var calls atomic.Int32
				got := resolveJSON(t, testRegistry(&calls), tt.body, concurrent)
				if got != tt.want {
					t.Errorf("got  %s\nwant %s", got, tt.want)
				}
			})
		}
	}
}

func TestResolveNotificationsAreSuppressed(t *testing.T) {
	bodies := []string{
		`{"jsonrpc":"2.0","method":"sum","params":[1,2]}`,
		`{"jsonrpc":"2.0","method":"fail"}`,
		`{"jsonrpc":"2.0","method":"panic"}`,
		`{"jsonrpc":"2.0","method":"echo","params":[1,2,3]}`,
		`{"jsonrpc":"2.0","method":"absent"}`,
		`[{"jsonrpc":"2.0","method":"sum"},{"jsonrpc":"2.0","method":"fail"}]`,
		`{"jsonrpc":"2.0","method":"nil_error"}`,
	}
	for _, body := range bodies {
		var calls atomic.Int32
		reg := testRegistry(&calls)
		if reply := Resolve(t.Context(), reg, ReadCall(JSON, []byte(body))); reply != nil {
			t.Errorf("%s: got reply %v, want none", body, reply)
		}
		if reply := ResolveConcurrent(t.Context(), reg, ReadCall(JSON, []byte(body))); reply != nil {
			t.Errorf("%s: concurrent got reply %v, want none", body, reply)
		}
	}
}

func TestResolveNotificationStillInvokes(t *testing.T) {
	var calls atomic.Int32
	Resolve(t.Context(), testRegistry(&calls), NewNotification("sum", []any{1}))
	if calls.Load() != 1 {
		t.Errorf("got %d calls, want 1", calls.Load())
	}
}

func TestResolveBatchOrdering(t *testing.T) {
	// Members finish in reverse order; responses keep request order.
	var calls atomic.Int32
	reg := testRegistry(&calls)
	batch := Batch{
		NewRequest("sleep", []any{60}, Int64ID(1)),
		NewNotification("sleep", []any{5}),
		NewRequest("sleep", []any{30}, Int64ID(2)),
		NewRequest("absent", nil, Int64ID(3)),
		NewRequest("sleep", []any{0}, Int64ID(4)),
	}

	want := BatchResponse{
		NewSuccess(60, Int64ID(1)),
		NewSuccess(30, Int64ID(2)),
		NewFailure(NewMethodNotFoundError(""), Int64ID(3)),
		NewSuccess(0, Int64ID(4)),
	}

	for _, resolve := range []func(context.Context, *Registry, Call) Reply{Resolve, ResolveConcurrent} {
		reply := resolve(t.Context(), reg, batch)
		got, ok := reply.(BatchResponse)
		if !ok {
			t.Fatalf("got %T, want BatchResponse", reply)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("batch mismatch (-want +got):\n%s", diff)
		}
	}
	if calls.Load() != 8 {
		t.Errorf("got %d calls, want 8", calls.Load())
	}
}

func TestResolveConcurrentRunsInParallel(t *testing.T) {
	var calls atomic.Int32
	reg := testRegistry(&calls)
	batch := make(Batch, 10)
	for i := range batch {
		batch[i] = NewRequest("sleep", []any{100}, Int64ID(int64(i)))
	}

	start := time.Now()
	reply := ResolveConcurrent(t.Context(), reg, batch)
	elapsed := time.Since(start)

	if got := len(reply.(BatchResponse)); got != 10 {
		t.Fatalf("got %d responses, want 10", got)
	}
	// Ten sequential sleeps would take a full second.
	if elapsed > 800*time.Millisecond {
		t.Errorf("concurrent batch took %v", elapsed)
	}
}

func TestResolveIsRepeatable(t *testing.T) {
	var calls atomic.Int32
	reg := testRegistry(&calls)
	req := NewRequest("echo", map[string]any{"s": "same"}, StringID("r"))

	first := Resolve(t.Context(), reg, req).(*Response)
	second := Resolve(t.Context(), reg, req).(*Response)
	if !first.Equal(second) {
		t.Errorf("responses differ: %v vs %v", first, second)
	}
}

func TestResolveInProcessParams(t *testing.T) {
	var calls atomic.Int32
	reg := testRegistry(&calls)

	resp := Resolve(t.Context(), reg, NewRequest("sum", []int{4, 5}, Int64ID(1))).(*Response)
	if resp.IsError() || resp.Result() != 9 {
		t.Errorf("got %+v", resp)
	}

	type echoArgs struct {
		S string `json:"s"`
	}
	resp = Resolve(t.Context(), reg, NewRequest("echo", echoArgs{S: "struct"}, Int64ID(2))).(*Response)
	if resp.IsError() || resp.Result() != "struct" {
		t.Errorf("got %+v", resp)
	}

	resp = Resolve(t.Context(), reg, NewRequest("echo", "scalar", Int64ID(3))).(*Response)
	if !resp.IsError() || resp.Err().Code != CodeInvalidParams {
		t.Errorf("scalar params: got %+v", resp)
	}
}

func TestResolveCapabilityRejectingBothConventions(t *testing.T) {
	reject := PositionalFunc(func(context.Context, []any) (any, error) {
		return nil, NewInvalidParamsError("")
	})
	reg := NewRegistry(map[string]Capability{"reject": reject})

	for _, params := range []any{nil, []any{1}, map[string]any{"a": 1}} {
		resp := Resolve(t.Context(), reg, NewRequest("reject", params, Int64ID(1))).(*Response)
		if resp.Err() == nil || resp.Err().Code != CodeInvalidParams {
			t.Errorf("params %v: got %+v, want InvalidParams", params, resp)
		}
	}
}

func TestResolvePassesContext(t *testing.T) {
	type key struct{}
	reg := NewRegistry(map[string]Capability{
		"value": Func(func(ctx context.Context) any { return ctx.Value(key{}) }),
	})
	ctx := context.WithValue(t.Context(), key{}, "v")
	resp := ResolveConcurrent(ctx, reg, Batch{NewRequest("value", nil, Int64ID(1))}).(BatchResponse)
	if resp[0].Result() != "v" {
		t.Errorf("got %v", resp[0].Result())
	}
}
