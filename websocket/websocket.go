// Package websocket serves JSON-RPC over WebSocket connections. Every
// message received is one JSON-RPC request or batch; replies are written back
// on the same connection, and notifications get none.
package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mnehpets/onerpc/jsonrpc"
)

// Handler upgrades HTTP requests to WebSocket connections and serves the
// Registry on them until the peer closes.
type Handler struct {
	Registry *jsonrpc.Registry
	// Concurrent resolves batch members in parallel.
	Concurrent bool
	// CheckOrigin is passed to the upgrader. When nil, same-origin requests
	// (or requests without an Origin header) are accepted.
	CheckOrigin func(r *http.Request) bool
	// MaxMessageBytes caps the size of a received message. Zero means the
	// gorilla/websocket default of no limit.
	MaxMessageBytes int64
	Logger          *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: h.CheckOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger().WarnContext(r.Context(), "websocket: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	h.serveConn(r.Context(), conn)
}

func (h *Handler) serveConn(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	if h.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.MaxMessageBytes)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Messages are resolved in their own goroutines so a slow method does
	// not hold up the connection; writes are serialized.
	var (
		wg      sync.WaitGroup
		writeMu sync.Mutex
	)
	defer wg.Wait()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger().WarnContext(ctx, "websocket: read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		wg.Go(func() {
			out, ok := h.handleMessage(ctx, data)
			if !ok {
				return
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				h.logger().WarnContext(ctx, "websocket: write failed", "error", err)
				cancel()
			}
		})
	}
}

// handleMessage resolves one message and returns the encoded reply, if any.
func (h *Handler) handleMessage(ctx context.Context, data []byte) ([]byte, bool) {
	call := jsonrpc.ReadCall(jsonrpc.JSON, data)
	var reply jsonrpc.Reply
	if h.Concurrent {
		reply = jsonrpc.ResolveConcurrent(ctx, h.Registry, call)
	} else {
		reply = jsonrpc.Resolve(ctx, h.Registry, call)
	}
	out, ok, err := jsonrpc.WriteReply(jsonrpc.JSON, reply)
	if err != nil {
		h.logger().ErrorContext(ctx, "websocket: encode reply", "error", err)
		return nil, false
	}
	return out, ok
}

// Call dials url, sends call and waits for the reply if one is expected.
func Call(ctx context.Context, url string, call jsonrpc.Call) (jsonrpc.Reply, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket: dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
	}

	payload, err := jsonrpc.Encode(call)
	if err != nil {
		return nil, fmt.Errorf("websocket: encode: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, fmt.Errorf("websocket: write: %w", err)
	}
	if !jsonrpc.ExpectsReply(call) {
		return nil, nil
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("websocket: read: %w", err)
	}
	raw, err := jsonrpc.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("websocket: decode reply: %w", err)
	}
	return jsonrpc.ParseReply(raw)
}
