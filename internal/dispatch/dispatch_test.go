package dispatch

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scriptedge/scriptedge/internal/config"
	"github.com/scriptedge/scriptedge/internal/tenant"
)

const fixtureYAML = `
name: fixture
routes:
  /api/hello:
    - method: GET
      handler: hello
  /api/echo/:name:
    - method: GET
      handler: echo
`

const fixtureBundle = `({
  hello: function(req) {
    return { status: 200, headers: {"content-type": "text/plain"}, body: "hello" };
  },
  echo: function(req) {
    return { status: 200, headers: {}, body: "hi " + req.params.name };
  }
})`

func newTestHandler(t *testing.T, host, bundle, yamlSrc string) *Handler {
	t.Helper()
	cfg, err := config.Parse([]byte(yamlSrc))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	sw, err := tenant.New(bundle, cfg.Routes)
	if err != nil {
		t.Fatalf("tenant.New: %v", err)
	}
	registry := tenant.NewRegistry()
	registry.Register(host, sw)
	return New(registry, nil, nil)
}

func TestDispatchBasicRequest(t *testing.T) {
	h := newTestHandler(t, "tenant.example.com", fixtureBundle, fixtureYAML)

	req := httptest.NewRequest(http.MethodGet, "http://tenant.example.com/api/hello", nil)
	req.Host = "tenant.example.com"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "hello" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "hello")
	}
	if rec.Header().Get("content-type") != "text/plain" {
		t.Fatalf("content-type header not propagated, got %q", rec.Header().Get("content-type"))
	}
}

func TestDispatchPathParameter(t *testing.T) {
	h := newTestHandler(t, "tenant.example.com", fixtureBundle, fixtureYAML)

	req := httptest.NewRequest(http.MethodGet, "http://tenant.example.com/api/echo/world", nil)
	req.Host = "tenant.example.com"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Body.String() != "hi world" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "hi world")
	}
}

func TestDispatchMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, "tenant.example.com", fixtureBundle, fixtureYAML)

	req := httptest.NewRequest(http.MethodPost, "http://tenant.example.com/api/hello", nil)
	req.Host = "tenant.example.com"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestDispatchUnknownHost(t *testing.T) {
	h := newTestHandler(t, "tenant.example.com", fixtureBundle, fixtureYAML)

	req := httptest.NewRequest(http.MethodGet, "http://other.example.com/api/hello", nil)
	req.Host = "other.example.com"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDispatchUnknownPath(t *testing.T) {
	h := newTestHandler(t, "tenant.example.com", fixtureBundle, fixtureYAML)

	req := httptest.NewRequest(http.MethodGet, "http://tenant.example.com/nope", nil)
	req.Host = "tenant.example.com"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDispatchHotSwap(t *testing.T) {
	cfg, err := config.Parse([]byte(fixtureYAML))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	sw, err := tenant.New(fixtureBundle, cfg.Routes)
	if err != nil {
		t.Fatalf("tenant.New: %v", err)
	}
	registry := tenant.NewRegistry()
	registry.Register("tenant.example.com", sw)
	h := New(registry, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "http://tenant.example.com/api/hello", nil)
	req.Host = "tenant.example.com"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "hello" {
		t.Fatalf("before swap: body = %q, want %q", rec.Body.String(), "hello")
	}

	const swapped = `({
	  hello: function(req) {
	    return { status: 200, headers: {}, body: "goodbye" };
	  }
	})`
	if err := sw.Swap(swapped, cfg.Routes); err != nil {
		t.Fatalf("Swap: %v", err)
	}

	req2 := httptest.NewRequest(http.MethodGet, "http://tenant.example.com/api/hello", nil)
	req2.Host = "tenant.example.com"
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)
	if rec2.Body.String() != "goodbye" {
		t.Fatalf("after swap: body = %q, want %q", rec2.Body.String(), "goodbye")
	}
}

func TestDispatchRequestBodyAndQueryReachHandler(t *testing.T) {
	const bundle = `({
	  echo: function(req) {
	    return { status: 200, headers: {}, body: req.method + ":" + req.query.q + ":" + (req.body || "") };
	  }
	})`
	const yamlSrc = `
name: fixture
routes:
  /echo:
    - method: POST
      handler: echo
`
	h := newTestHandler(t, "tenant.example.com", bundle, yamlSrc)

	req := httptest.NewRequest(http.MethodPost, "http://tenant.example.com/echo?q=val", strings.NewReader("payload"))
	req.Host = "tenant.example.com"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Body.String() != "POST:val:payload" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "POST:val:payload")
	}
}

func TestDispatchInvalidUTF8BodyIsAbsent(t *testing.T) {
	const bundle = `({
	  echo: function(req) {
	    return { status: 200, headers: {}, body: req.method + ":" + req.query.q + ":" + (req.body || "<absent>") };
	  }
	})`
	const yamlSrc = `
name: fixture
routes:
  /echo:
    - method: POST
      handler: echo
`
	h := newTestHandler(t, "tenant.example.com", bundle, yamlSrc)

	invalid := []byte{0xff, 0xfe, 0xfd}
	req := httptest.NewRequest(http.MethodPost, "http://tenant.example.com/echo?q=val", bytes.NewReader(invalid))
	req.Host = "tenant.example.com"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Body.String() != "POST:val:<absent>" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "POST:val:<absent>")
	}
}
