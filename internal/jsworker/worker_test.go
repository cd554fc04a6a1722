package jsworker

import (
	"testing"

	"github.com/scriptedge/scriptedge/internal/apperrors"
)

func strptr(s string) *string { return &s }

func TestRunPlainHandler(t *testing.T) {
	w, err := New(`({
		hello: function (req) {
			return { status: 200, headers: { "content-type": "text/plain" }, body: "hi " + req.params.name };
		}
	})`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := w.Run("hello", Request{
		Method: "GET",
		URL:    "/hello/world",
		Params: map[string]string{"name": "world"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	if resp.Body == nil || *resp.Body != "hi world" {
		t.Fatalf("body = %v, want %q", resp.Body, "hi world")
	}
	if resp.Headers["content-type"] != "text/plain" {
		t.Fatalf("headers = %v", resp.Headers)
	}
}

func TestRunPromiseHandler(t *testing.T) {
	// Simulates what the bundler hands otto after stripping async/await:
	// the handler itself now returns a plain value directly, but it may
	// still construct an explicit Promise, which the polyfill must settle.
	w, err := New(`({
		hello: function (req) {
			return new Promise(function (resolve) {
				resolve({ status: 201, headers: {}, body: "created" });
			});
		}
	})`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := w.Run("hello", Request{Method: "POST", URL: "/hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Status != 201 || resp.Body == nil || *resp.Body != "created" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRunChainedPromiseHandler(t *testing.T) {
	w, err := New(`({
		hello: function (req) {
			return Promise.resolve({ status: 200, headers: {} })
				.then(function (r) { r.body = "chained"; return r; });
		}
	})`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := w.Run("hello", Request{Method: "GET", URL: "/hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Body == nil || *resp.Body != "chained" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRunRejectedPromise(t *testing.T) {
	w, err := New(`({
		hello: function (req) {
			return Promise.reject("boom");
		}
	})`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = w.Run("hello", Request{Method: "GET", URL: "/hello"})
	if apperrors.KindFor(err) != apperrors.KindWorkerRejected {
		t.Fatalf("expected WorkerRejected, got %v", err)
	}
}

func TestRunMissingStatus(t *testing.T) {
	w, err := New(`({
		hello: function (req) {
			return { headers: {} };
		}
	})`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = w.Run("hello", Request{Method: "GET", URL: "/hello"})
	if apperrors.KindFor(err) != apperrors.KindWorkerShape {
		t.Fatalf("expected WorkerShape, got %v", err)
	}
}

func TestRunMissingHeaders(t *testing.T) {
	w, err := New(`({
		hello: function (req) {
			return { status: 200 };
		}
	})`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = w.Run("hello", Request{Method: "GET", URL: "/hello"})
	if apperrors.KindFor(err) != apperrors.KindWorkerShape {
		t.Fatalf("expected WorkerShape, got %v", err)
	}
}

func TestRunUnknownHandler(t *testing.T) {
	w, err := New(`({ hello: function (req) { return { status: 200, headers: {} }; } })`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := w.Run("missing", Request{Method: "GET", URL: "/x"}); err == nil {
		t.Fatal("expected error for unknown handler")
	}
}

func TestRunBodyPassthrough(t *testing.T) {
	w, err := New(`({
		echo: function (req) {
			return { status: 200, headers: {}, body: req.body };
		}
	})`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := w.Run("echo", Request{Method: "POST", URL: "/echo", Body: strptr(`{"a":1}`)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Body == nil || *resp.Body != `{"a":1}` {
		t.Fatalf("body = %v", resp.Body)
	}
}
