// Package socket serves JSON-RPC over plain stream connections, one message
// per connection: the client writes a request (or batch), the server reads
// that one encoded value, answers with the reply, if any, and closes the
// connection.
package socket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/mnehpets/onerpc/jsonrpc"
)

// DefaultMaxMessageBytes is used when Server.MaxMessageBytes is zero.
const DefaultMaxMessageBytes = 1 << 20

// Server answers JSON-RPC messages read from accepted connections.
type Server struct {
	Registry *jsonrpc.Registry
	// Codec defaults to jsonrpc.JSON.
	Codec jsonrpc.Codec
	// Concurrent resolves batch members in parallel.
	Concurrent bool
	// ReadTimeout bounds the time spent reading a message. Zero means no limit.
	ReadTimeout time.Duration
	// MaxMessageBytes caps the size of a message.
	MaxMessageBytes int64
	Logger          *slog.Logger
}

func (s *Server) codec() jsonrpc.Codec {
	if s.Codec != nil {
		return s.Codec
	}
	return jsonrpc.JSON
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Serve accepts connections on ln until ctx is done, then closes ln and waits
// for open connections to finish. It returns nil after a shutdown through ctx.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("socket: accept: %w", err)
		}
		wg.Go(func() {
			s.serveConn(ctx, conn)
		})
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	if s.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
			s.logger().WarnContext(ctx, "socket: set deadline", "remote", remote, "error", err)
		}
	}

	limit := s.MaxMessageBytes
	if limit <= 0 {
		limit = DefaultMaxMessageBytes
	}
	data, err := readMessage(s.codec(), conn, limit)
	if errors.Is(err, errTooLarge) {
		s.logger().WarnContext(ctx, "socket: message too large", "remote", remote, "limit", limit)
		return
	}
	if err != nil {
		s.logger().WarnContext(ctx, "socket: read failed", "remote", remote, "error", err)
		return
	}

	call := jsonrpc.ReadCall(s.codec(), data)
	var reply jsonrpc.Reply
	if s.Concurrent {
		reply = jsonrpc.ResolveConcurrent(ctx, s.Registry, call)
	} else {
		reply = jsonrpc.Resolve(ctx, s.Registry, call)
	}

	out, ok, err := jsonrpc.WriteReply(s.codec(), reply)
	if err != nil {
		s.logger().ErrorContext(ctx, "socket: encode reply", "remote", remote, "error", err)
		return
	}
	if !ok {
		return
	}
	if _, err := conn.Write(out); err != nil {
		s.logger().WarnContext(ctx, "socket: write failed", "remote", remote, "error", err)
	}
}

var errTooLarge = errors.New("socket: message too large")

// readMessage reads one encoded value from r. The value ends where its
// encoding ends, so the peer need not close its write side. Malformed or
// truncated input is returned as read so that it draws a parse error reply.
func readMessage(codec jsonrpc.Codec, r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	tee := io.TeeReader(io.LimitReader(r, limit+1), &buf)

	var (
		data []byte
		err  error
	)
	if codec.ContentType() == jsonrpc.CBOR.ContentType() {
		var raw cbor.RawMessage
		err = cbor.NewDecoder(tee).Decode(&raw)
		data = raw
	} else {
		var raw json.RawMessage
		err = json.NewDecoder(tee).Decode(&raw)
		data = raw
	}

	if int64(len(data)) > limit || (err != nil && int64(buf.Len()) > limit) {
		return nil, errTooLarge
	}
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return data, nil
}

// closeWriter is implemented by *net.TCPConn and *net.UnixConn.
type closeWriter interface {
	CloseWrite() error
}

// Call sends call to the server at addr and returns its reply, which is nil
// when the server sends nothing back.
func Call(ctx context.Context, network, addr string, codec jsonrpc.Codec, call jsonrpc.Call) (jsonrpc.Reply, error) {
	if codec == nil {
		codec = jsonrpc.JSON
	}
	payload, err := codec.Encode(call)
	if err != nil {
		return nil, fmt.Errorf("socket: encode: %w", err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("socket: dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}

	if _, err := io.Copy(conn, bytes.NewReader(payload)); err != nil {
		return nil, fmt.Errorf("socket: write: %w", err)
	}
	if cw, ok := conn.(closeWriter); ok {
		if err := cw.CloseWrite(); err != nil {
			return nil, fmt.Errorf("socket: close write: %w", err)
		}
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("socket: read: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	raw, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("socket: decode reply: %w", err)
	}
	return jsonrpc.ParseReply(raw)
}
