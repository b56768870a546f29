// Command server serves the demo methods over the transport chosen in the
// configuration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mnehpets/onerpc/config"
	"github.com/mnehpets/onerpc/endpoint"
	"github.com/mnehpets/onerpc/example/methods"
	"github.com/mnehpets/onerpc/jsonrpc"
	"github.com/mnehpets/onerpc/middleware"
	"github.com/mnehpets/onerpc/socket"
	"github.com/mnehpets/onerpc/websocket"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	printConfig := flag.Bool("print-config", false, "print the effective config and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *printConfig {
		out, err := cfg.YAML()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	logger := config.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := methods.Registry()
	logger.Info("starting server",
		"transport", cfg.Server.Transport,
		"addr", cfg.Server.Addr(),
		"methods", reg.Methods())

	switch cfg.Server.Transport {
	case "socket":
		ln, err := net.Listen("tcp", cfg.Server.Addr())
		if err != nil {
			return err
		}
		srv := &socket.Server{
			Registry:        reg,
			Codec:           codecFor(cfg),
			Concurrent:      cfg.Server.Concurrent,
			ReadTimeout:     cfg.Server.ReadTimeout,
			MaxMessageBytes: cfg.Server.MaxBodyBytes,
			Logger:          logger,
		}
		return srv.Serve(ctx, ln)

	case "websocket":
		mux := newMux(reg)
		mux.Handle(cfg.Server.Path, &websocket.Handler{
			Registry:        reg,
			Concurrent:      cfg.Server.Concurrent,
			CheckOrigin:     checkOrigin(cfg.CORS.AllowedOrigins),
			MaxMessageBytes: cfg.Server.MaxBodyBytes,
			Logger:          logger,
		})
		return serveHTTP(ctx, cfg, mux, logger)

	default:
		return serveHTTP(ctx, cfg, newHTTPHandler(cfg, reg, logger), logger)
	}
}

// newHTTPHandler serves reg at cfg.Server.Path behind the logging, header and
// body limit processors.
func newHTTPHandler(cfg *config.Config, reg *jsonrpc.Registry, logger *slog.Logger) http.Handler {
	// JSON is always accepted; a cbor codec adds application/cbor.
	e := jsonrpc.NewEndpoint(reg,
		jsonrpc.WithConcurrentBatches(cfg.Server.Concurrent),
		jsonrpc.WithCodec(codecFor(cfg)),
	)
	h := e.Handler(
		middleware.NewLoggingProcessor(logger),
		middleware.NewAPIHeadersProcessor(middleware.WithCORS(cfg.CORS.AllowedOrigins...)),
		middleware.BodyLimitProcessor{Limit: cfg.Server.MaxBodyBytes},
	)
	h.Logger = logger

	mux := newMux(reg)
	mux.Handle(cfg.Server.Path, h)
	return mux
}

func codecFor(cfg *config.Config) jsonrpc.Codec {
	if cfg.Server.Codec == "cbor" {
		return jsonrpc.CBOR
	}
	return jsonrpc.JSON
}

// newMux returns a mux answering GET /methods with the registered method
// names.
func newMux(reg *jsonrpc.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /methods", endpoint.HandleFunc(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (endpoint.Renderer, error) {
		return &endpoint.JSONRenderer{Value: reg.Methods()}, nil
	}, middleware.NewAPIHeadersProcessor()))
	return mux
}

// checkOrigin admits same-origin requests and the configured origins.
func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           h,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
