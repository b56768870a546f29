package endpoint

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBytesRenderer_SetsContentTypeAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	r := &BytesRenderer{ContentType: "application/json", Body: []byte(`{"ok":true}`)}
	if err := r.Render(rec, httptest.NewRequest(http.MethodPost, "/", nil)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("got status %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("got Content-Type %q", got)
	}
	if got := rec.Body.String(); got != `{"ok":true}` {
		t.Errorf("got body %q", got)
	}
}

func TestBytesRenderer_Defaults(t *testing.T) {
	rec := httptest.NewRecorder()
	r := &BytesRenderer{Status: http.StatusAccepted}
	if err := r.Render(rec, httptest.NewRequest(http.MethodPost, "/", nil)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("got status %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/octet-stream" {
		t.Errorf("got Content-Type %q", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("got body %q", rec.Body.String())
	}
}

func TestJSONRenderer_EncodesWithoutHTMLEscaping(t *testing.T) {
	rec := httptest.NewRecorder()
	r := &JSONRenderer{Value: map[string]any{"html": "<b>"}}
	if err := r.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
		t.Fatal(err)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("got Content-Type %q", got)
	}
	if got := rec.Body.String(); got != "{\"html\":\"<b>\"}\n" {
		t.Errorf("got body %q", got)
	}
}

func TestJSONRenderer_EncodeError_IsReturned(t *testing.T) {
	rec := httptest.NewRecorder()
	r := &JSONRenderer{Value: make(chan int)}
	if err := r.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)); err == nil {
		t.Fatal("expected error")
	}
}

func TestNoContentRenderer(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := (&NoContentRenderer{}).Render(rec, httptest.NewRequest(http.MethodPost, "/", nil)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := (&NoContentRenderer{Status: http.StatusAccepted}).Render(rec, httptest.NewRequest(http.MethodPost, "/", nil)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("got %d", rec.Code)
	}
}
