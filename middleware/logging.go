package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mnehpets/onerpc/endpoint"
)

// LoggingProcessor logs one line per request after the rest of the chain has
// run.
type LoggingProcessor struct {
	Logger *slog.Logger
	// Level is the level used for successful requests. Failed requests are
	// logged at warn.
	Level slog.Level
}

// NewLoggingProcessor creates a LoggingProcessor writing to logger at info level.
func NewLoggingProcessor(logger *slog.Logger) *LoggingProcessor {
	return &LoggingProcessor{Logger: logger, Level: slog.LevelInfo}
}

// Process implements endpoint.Processor.
func (p *LoggingProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	err := next(w, r)
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"content_type", r.Header.Get("Content-Type"),
		"duration", time.Since(start),
	}
	var ee *endpoint.EndpointError
	if errors.As(err, &ee) && ee.Status < http.StatusBadRequest {
		// Early replies such as CORS preflights are not failures.
		logger.Log(r.Context(), p.Level, "rpc request", append(attrs, "status", ee.Status)...)
		return err
	}
	if err != nil {
		logger.WarnContext(r.Context(), "rpc request failed", append(attrs, "error", err)...)
		return err
	}
	logger.Log(r.Context(), p.Level, "rpc request", attrs...)
	return nil
}

var _ endpoint.Processor = (*LoggingProcessor)(nil)
