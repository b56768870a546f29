package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/mnehpets/onerpc/endpoint"
)

// APIHeadersProcessor sets response headers suited to a JSON-RPC endpoint and,
// when configured, answers CORS preflight requests from browser clients.
//
// Defaults from NewAPIHeadersProcessor:
//   - X-Content-Type-Options: nosniff
//   - Content-Security-Policy: default-src 'none'; frame-ancestors 'none'
//   - Referrer-Policy: no-referrer
//   - Cache-Control: no-store
//   - no CORS headers
type APIHeadersProcessor struct {
	// ContentTypeOptions enables X-Content-Type-Options: nosniff.
	ContentTypeOptions bool

	// ContentSecurityPolicy sets the Content-Security-Policy header.
	// Set to empty string to disable.
	ContentSecurityPolicy string

	// ReferrerPolicy sets the Referrer-Policy header.
	// Set to empty string to disable.
	ReferrerPolicy string

	// CacheControl sets the Cache-Control header. RPC replies are per call
	// and should not be cached. Set to empty string to disable.
	CacheControl string

	// CORS configures Cross-Origin Resource Sharing headers.
	// Set to nil to disable CORS headers.
	CORS *CORSConfig
}

// CORSConfig configures Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the endpoint. "*" allows
	// any origin unless AllowCredentials is set.
	AllowedOrigins []string

	// AllowedHeaders lists request headers allowed in preflight.
	// Default: ["Content-Type"]
	AllowedHeaders []string

	// AllowCredentials allows cookies and auth headers to be sent.
	AllowCredentials bool

	// MaxAge is how long, in seconds, preflight results may be cached.
	// Default: 3600
	MaxAge int
}

// APIHeadersOption is a functional option for configuring APIHeadersProcessor.
type APIHeadersOption func(*APIHeadersProcessor)

// NewAPIHeadersProcessor creates an APIHeadersProcessor with defaults for RPC APIs.
func NewAPIHeadersProcessor(opts ...APIHeadersOption) *APIHeadersProcessor {
	p := &APIHeadersProcessor{
		ContentTypeOptions:    true,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
		CacheControl:          "no-store",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithCSP sets the Content-Security-Policy header.
func WithCSP(policy string) APIHeadersOption {
	return func(p *APIHeadersProcessor) {
		p.ContentSecurityPolicy = policy
	}
}

// WithReferrerPolicy sets the Referrer-Policy header.
func WithReferrerPolicy(policy string) APIHeadersOption {
	return func(p *APIHeadersProcessor) {
		p.ReferrerPolicy = policy
	}
}

// WithCORS enables CORS for origins. A nil or empty list leaves CORS off.
func WithCORS(origins ...string) APIHeadersOption {
	return func(p *APIHeadersProcessor) {
		if len(origins) == 0 {
			p.CORS = nil
			return
		}
		p.CORS = &CORSConfig{
			AllowedOrigins: origins,
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         3600,
		}
	}
}

// WithCORSConfig sets the CORS configuration directly.
func WithCORSConfig(config *CORSConfig) APIHeadersOption {
	return func(p *APIHeadersProcessor) {
		p.CORS = config
	}
}

// Process implements endpoint.Processor.
func (p *APIHeadersProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	h := w.Header()
	if p.ContentTypeOptions {
		h.Set("X-Content-Type-Options", "nosniff")
	}
	if p.ContentSecurityPolicy != "" {
		h.Set("Content-Security-Policy", p.ContentSecurityPolicy)
	}
	if p.ReferrerPolicy != "" {
		h.Set("Referrer-Policy", p.ReferrerPolicy)
	}
	if p.CacheControl != "" {
		h.Set("Cache-Control", p.CacheControl)
	}

	if p.CORS != nil {
		setCORSHeaders(w, r, p.CORS)

		// A preflight is an OPTIONS request with Origin and
		// Access-Control-Request-Method; answer it without reaching the
		// endpoint, which only accepts POST.
		if r.Method == http.MethodOptions &&
			r.Header.Get("Origin") != "" &&
			r.Header.Get("Access-Control-Request-Method") != "" {
			return endpoint.Error(http.StatusNoContent, "", nil)
		}
	}

	return next(w, r)
}

// setCORSHeaders sets CORS headers based on the configuration.
func setCORSHeaders(w http.ResponseWriter, r *http.Request, config *CORSConfig) {
	// Without an Origin header this is not a cross-origin request.
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	h := w.Header()
	h.Add("Vary", "Origin")
	switch {
	case slices.Contains(config.AllowedOrigins, origin):
		h.Set("Access-Control-Allow-Origin", origin)
	case slices.Contains(config.AllowedOrigins, "*") && !config.AllowCredentials:
		// CORS forbids '*' together with credentials.
		h.Set("Access-Control-Allow-Origin", "*")
	default:
		return
	}

	if config.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}

	if r.Method == http.MethodOptions {
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		allowed := config.AllowedHeaders
		if len(allowed) == 0 {
			allowed = []string{"Content-Type"}
		}
		h.Set("Access-Control-Allow-Headers", strings.Join(allowed, ", "))
		if config.MaxAge > 0 {
			h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
		}
	}
}

var _ endpoint.Processor = (*APIHeadersProcessor)(nil)
