// Package servertime implements the Server-Time middleware from spec.md
// §4.G: it measures wall-clock elapsed time from request entry to
// response emission and sets an x-server-time header in microseconds,
// in the same request-id-adjacent style as the teacher's own
// middleware/requestid package but measuring latency instead of
// identity.
package servertime

import (
	"fmt"
	"net/http"
	"time"

	"github.com/scriptedge/scriptedge/internal/logging"
)

// HeaderName carries the elapsed microseconds, e.g. "X-Server-Time: 842us".
const HeaderName = "X-Server-Time"

// New returns a middleware that times the wrapped handler and sets
// HeaderName on the response. The header must be set at the moment
// headers are actually flushed, not after ServeHTTP returns — by then
// the status line may already be on the wire — so this wraps
// ResponseWriter rather than timing around the call.
func New(logger *logging.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &timingWriter{ResponseWriter: w, start: time.Now(), logger: logger}
			next.ServeHTTP(sw, r)
			sw.flushHeader()
		})
	}
}

type timingWriter struct {
	http.ResponseWriter
	start       time.Time
	logger      *logging.Config
	wroteHeader bool
}

func (w *timingWriter) WriteHeader(status int) {
	w.flushHeader()
	w.ResponseWriter.WriteHeader(status)
}

func (w *timingWriter) Write(b []byte) (int, error) {
	w.flushHeader()
	return w.ResponseWriter.Write(b)
}

func (w *timingWriter) flushHeader() {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true

	elapsed := time.Since(w.start)
	if elapsed < 0 {
		if w.logger != nil {
			w.logger.Warn("servertime: negative elapsed duration, omitting header")
		}
		return
	}
	w.Header().Set(HeaderName, fmt.Sprintf("%dus", elapsed.Microseconds()))
}
