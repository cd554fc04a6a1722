// Package tracing wires the OpenTelemetry span-per-request behavior
// called out in spec.md §4.G ("structured HTTP tracing ... span per
// request including headers"). The teacher repo factors tracing into
// its own module (tracing/) built on go.opentelemetry.io/otel; rather
// than adopt that module's broader provider-configuration surface, this
// package exercises the same otel/sdk/trace stack directly at the one
// place this server needs it: one span bracketing dispatch.
package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies this package's spans in exported trace data.
const TracerName = "github.com/scriptedge/scriptedge/internal/dispatch"

// NewProvider returns an SDK TracerProvider exporting to exporter (a
// stdouttrace.Exporter in the CLI's default wiring, swappable in tests).
func NewProvider(exporter sdktrace.SpanExporter) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
}

// New returns a middleware that opens one span per request, recording
// the method, target, and every request header, and marking the span's
// status from the final response code.
func New(tp trace.TracerProvider) func(http.Handler) http.Handler {
	tracer := tp.Tracer(TracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.RequestURI()),
				attribute.String("http.host", r.Host),
			)
			for name, values := range r.Header {
				for _, v := range values {
					span.SetAttributes(attribute.String("http.header."+name, v))
				}
			}

			sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", sw.status))
			if sw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.status))
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wroteHeader {
		s.status = status
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(status)
}
