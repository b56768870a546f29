// Package methods holds the demo methods served by example/server.
package methods

import (
	"context"
	"fmt"
	"time"

	"github.com/mnehpets/onerpc/jsonrpc"
)

// CrashError is returned by CrashOnCall.
type CrashError struct{}

func (CrashError) Error() string { return "my call crashed" }

// Sleep waits for the given number of seconds, or until ctx is done.
func Sleep(ctx context.Context, seconds int) (string, error) {
	if seconds < 0 {
		return "", jsonrpc.NewInvalidParamsError("seconds must not be negative")
	}
	t := time.NewTimer(time.Duration(seconds) * time.Second)
	defer t.Stop()
	select {
	case <-t.C:
		return fmt.Sprintf("slept for %ds", seconds), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CrashOnCall always fails.
func CrashOnCall() error {
	return CrashError{}
}

// SumNumbers adds its arguments.
func SumNumbers(nums ...int) int {
	total := 0
	for _, n := range nums {
		total += n
	}
	return total
}

// SayHello greets word.
func SayHello(word string) string {
	return fmt.Sprintf("hello %s!", word)
}

type SubtractParams struct {
	Minuend    int `json:"minuend"`
	Subtrahend int `json:"subtrahend"`
}

// Subtract takes its operands positionally or by name.
func Subtract(_ context.Context, p SubtractParams) (int, error) {
	return p.Minuend - p.Subtrahend, nil
}

// Registry returns the demo methods.
func Registry() *jsonrpc.Registry {
	return jsonrpc.NewRegistry(map[string]jsonrpc.Capability{
		"sleep":         jsonrpc.Func(Sleep, "seconds"),
		"crash_on_call": jsonrpc.Func(CrashOnCall),
		"sum_numbers":   jsonrpc.Func(SumNumbers),
		"say_hello":     jsonrpc.Func(SayHello, "word"),
		"subtract":      jsonrpc.Typed(Subtract),
	})
}
