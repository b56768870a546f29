package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mnehpets/onerpc/endpoint"
)

func TestBodyLimitProcessor_DeclaredLengthTooLarge(t *testing.T) {
	p := BodyLimitProcessor{Limit: 4}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))

	var called bool
	err := p.Process(httptest.NewRecorder(), r, passThrough(&called))
	if called {
		t.Error("next should not run")
	}
	var ee *endpoint.EndpointError
	if !errors.As(err, &ee) || ee.Status != http.StatusRequestEntityTooLarge {
		t.Fatalf("got %v, want 413", err)
	}
}

func TestBodyLimitProcessor_UndeclaredLengthCappedOnRead(t *testing.T) {
	p := BodyLimitProcessor{Limit: 4}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
	r.ContentLength = -1

	var readErr error
	err := p.Process(httptest.NewRecorder(), r, func(_ http.ResponseWriter, r *http.Request) error {
		_, readErr = io.ReadAll(r.Body)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	var mbe *http.MaxBytesError
	if !errors.As(readErr, &mbe) || mbe.Limit != 4 {
		t.Errorf("got %v, want MaxBytesError", readErr)
	}
}

func TestBodyLimitProcessor_WithinLimit(t *testing.T) {
	for _, limit := range []int64{0, 10, 100} {
		p := BodyLimitProcessor{Limit: limit}
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))

		var body []byte
		err := p.Process(httptest.NewRecorder(), r, func(_ http.ResponseWriter, r *http.Request) error {
			var err error
			body, err = io.ReadAll(r.Body)
			return err
		})
		if err != nil {
			t.Fatalf("limit %d: %v", limit, err)
		}
		if string(body) != "0123456789" {
			t.Errorf("limit %d: got %q", limit, body)
		}
	}
}

func TestBodyLimitProcessor_InHandler(t *testing.T) {
	h := endpoint.Handler(func(_ http.ResponseWriter, _ *http.Request, p struct {
		Body []byte `body:"" maxLength:"0"`
	}) (endpoint.Renderer, error) {
		return &endpoint.BytesRenderer{Body: p.Body}, nil
	}, BodyLimitProcessor{Limit: 4})

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
	r.ContentLength = -1
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("got %d, want 413", w.Code)
	}
}
