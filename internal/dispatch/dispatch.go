// Package dispatch implements the request pipeline from spec.md §3/§4: the
// single http.Handler that resolves a tenant from the request host,
// matches the request path against that tenant's current RouterTable,
// runs the matched handler inside a pooled JS Worker, and renders the
// result (or any apperrors failure) as an HTTP response. It is the
// composition root tying together internal/tenant, internal/routetable,
// internal/jsworker, internal/logging, and internal/metrics, the same
// role the teacher's router.ServeHTTP plays for its own request
// lifecycle (_examples/rivaas-dev-rivaas/router/router.go).
package dispatch

import (
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/scriptedge/scriptedge/internal/apperrors"
	"github.com/scriptedge/scriptedge/internal/config"
	"github.com/scriptedge/scriptedge/internal/jsworker"
	"github.com/scriptedge/scriptedge/internal/logging"
	"github.com/scriptedge/scriptedge/internal/metrics"
	"github.com/scriptedge/scriptedge/internal/tenant"
)

// Handler is the server's top-level http.Handler.
type Handler struct {
	registry *tenant.Registry
	logger   *logging.Config
	metrics  *metrics.Recorder
}

// New returns a Handler dispatching against registry. logger and
// recorder may be nil, in which case logging and metrics are skipped.
func New(registry *tenant.Registry, logger *logging.Config, recorder *metrics.Recorder) *Handler {
	return &Handler{registry: registry, logger: logger, metrics: recorder}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	method, err := config.ParseMethod(r.Method)
	if err != nil {
		h.fail(w, r, "", "", start, apperrors.RouteMethodNotAllowed(r.Method))
		return
	}

	swappable, err := h.registry.Resolve(r.Host)
	if err != nil {
		h.fail(w, r, r.Host, "", start, err)
		return
	}
	inner := swappable.Load()

	match, err := inner.Table.Match(method, r.URL.Path)
	if err != nil {
		h.fail(w, r, r.Host, "", start, err)
		return
	}

	worker, err := inner.Worker()
	if err != nil {
		h.fail(w, r, r.Host, match.Pattern, start, apperrors.WorkerInit("acquiring worker", err))
		return
	}

	req, err := buildRequest(r, match.Params)
	if err != nil {
		inner.Release(worker)
		h.fail(w, r, r.Host, match.Pattern, start, apperrors.Internal("reading request body", err))
		return
	}

	resp, err := worker.Run(match.HandlerName, req)
	inner.Release(worker)
	if err != nil {
		h.fail(w, r, r.Host, match.Pattern, start, err)
		return
	}

	writeResponse(w, resp)
	h.succeed(r, r.Host, match.Pattern, start, int(resp.Status))
}

// buildRequest flattens an *http.Request into the single-value maps the
// JS Worker boundary expects (spec.md §3): a repeated header keeps its
// last value and a repeated query key keeps its first, the same
// single-value simplification the wire Request/Response shapes make
// everywhere else.
func buildRequest(r *http.Request, params map[string]string) (jsworker.Request, error) {
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[k] = v[len(v)-1]
		}
	}

	query := make(map[string]string, len(r.URL.Query()))
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	var body *string
	if r.Body != nil && r.Body != http.NoBody {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return jsworker.Request{}, err
		}
		// Invalid UTF-8 is treated the same as a missing body (spec.md §3,
		// §4.F step 4), not passed through and mangled by encoding/json's
		// string encoder.
		if len(data) > 0 && utf8.Valid(data) {
			s := string(data)
			body = &s
		}
	}

	return jsworker.Request{
		Method:  r.Method,
		URL:     r.URL.RequestURI(),
		Headers: headers,
		Query:   query,
		Params:  params,
		Body:    body,
	}, nil
}

func writeResponse(w http.ResponseWriter, resp *jsworker.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(int(resp.Status))
	if resp.Body != nil {
		io.WriteString(w, *resp.Body)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, tenantHost, route string, start time.Time, err error) {
	status := apperrors.WriteResponse(w, err)
	if h.logger != nil {
		h.logger.LogError(err, "dispatch failed", "host", r.Host, "path", r.URL.Path, "kind", string(apperrors.KindFor(err)))
	}
	h.observe(tenantHost, route, r.Method, metrics.Outcome(apperrors.KindFor(err)), start)
	_ = status
}

func (h *Handler) succeed(r *http.Request, tenantHost, route string, start time.Time, status int) {
	if h.logger != nil {
		h.logger.LogRequest(r, "status", status, "duration_us", time.Since(start).Microseconds())
	}
	h.observe(tenantHost, route, r.Method, metrics.OutcomeForStatus(status), start)
}

func (h *Handler) observe(tenantHost, route, method string, outcome metrics.Outcome, start time.Time) {
	if h.metrics == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	h.metrics.Observe(stripPortForMetrics(tenantHost), route, method, outcome, time.Since(start).Seconds())
}

func stripPortForMetrics(host string) string {
	if i := strings.LastIndexByte(host, ':'); i != -1 {
		return host[:i]
	}
	return host
}
