// Command client sends a fixed list of demo calls to example/server and
// prints the replies.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mnehpets/onerpc/client"
	"github.com/mnehpets/onerpc/config"
	"github.com/mnehpets/onerpc/jsonrpc"
	"github.com/mnehpets/onerpc/socket"
	"github.com/mnehpets/onerpc/websocket"
)

func demoCalls() []jsonrpc.Call {
	return []jsonrpc.Call{
		jsonrpc.NewRequest("sum_numbers", []any{1, 2, 3, 4, 5}, jsonrpc.Int64ID(0)),
		jsonrpc.NewRequest("say_hello", []any{"USER"}, jsonrpc.Int64ID(1)),
		jsonrpc.NewRequest("sleep", []any{2}, jsonrpc.Int64ID(2)),
		jsonrpc.NewRequest("sleep", []any{2}, jsonrpc.Int64ID(3)),
		jsonrpc.NewRequest("crash_on_call", nil, jsonrpc.Int64ID(4)),
		jsonrpc.NewRequest("sum_numbers", []any{"type", "error"}, jsonrpc.Int64ID(5)),
		jsonrpc.NewRequest("say_hello", map[string]any{"world": "wrong param name"}, jsonrpc.Int64ID(6)),
		jsonrpc.NewRequest("say_hello", []any{"wrong", "param", "count"}, jsonrpc.Int64ID(7)),
		jsonrpc.NewNotification("say_hello", []any{"this is a notification"}),
		jsonrpc.Batch{
			jsonrpc.NewRequest("sum_numbers", []any{0, -1}, jsonrpc.Int64ID(8)),
			jsonrpc.NewRequest("crash_on_call", nil, jsonrpc.Int64ID(9)),
			jsonrpc.NewRequest("say_hello", []any{"world"}, jsonrpc.Int64ID(8)),
		},
		jsonrpc.NewRequest("subtract", map[string]any{"minuend": 42, "subtrahend": 23}, client.NewID()),
	}
}

// sender delivers one call over some transport.
type sender func(ctx context.Context, call jsonrpc.Call) (jsonrpc.Reply, error)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Log)

	var send sender
	addr := cfg.Server.Addr()
	codec := jsonrpc.JSON
	if cfg.Server.Codec == "cbor" {
		codec = jsonrpc.CBOR
	}
	switch cfg.Server.Transport {
	case "socket":
		send = func(ctx context.Context, call jsonrpc.Call) (jsonrpc.Reply, error) {
			return socket.Call(ctx, "tcp", addr, codec, call)
		}
	case "websocket":
		url := "ws://" + addr + cfg.Server.Path
		send = func(ctx context.Context, call jsonrpc.Call) (jsonrpc.Reply, error) {
			return websocket.Call(ctx, url, call)
		}
	default:
		c := &client.Client{URL: "http://" + addr + cfg.Server.Path, Codec: codec}
		send = c.Send
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, call := range demoCalls() {
		reply, err := send(ctx, call)
		if err != nil {
			logger.Error("call failed", "error", err)
			continue
		}
		printReply(reply)
	}
}

func printReply(reply jsonrpc.Reply) {
	switch r := reply.(type) {
	case *jsonrpc.Response:
		printResponse(r)
	case jsonrpc.BatchResponse:
		for _, resp := range r {
			printResponse(resp)
		}
	}
}

func printResponse(resp *jsonrpc.Response) {
	if resp.IsError() {
		fmt.Println(resp.ID(), resp.Err().Message, resp.Err().Data)
		return
	}
	fmt.Println(resp.ID(), resp.Result())
}
