// Package server implements the graceful HTTP server lifecycle spec.md
// §4 calls for: listen, serve dispatch traffic, print a startup banner,
// and shut down cleanly when the context is canceled. The start/ready/
// shutdown sequencing is grounded on the teacher's own App.runServer
// (_examples/rivaas-dev-rivaas/app/server.go): start the listener in a
// goroutine, signal readiness, then select on a server error versus
// context cancellation, finally giving Shutdown a fresh context so a
// canceled parent doesn't zero out the graceful shutdown window.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/scriptedge/scriptedge/internal/logging"
	"github.com/scriptedge/scriptedge/internal/metrics"
	"github.com/scriptedge/scriptedge/internal/middleware/compression"
	"github.com/scriptedge/scriptedge/internal/middleware/requestid"
	"github.com/scriptedge/scriptedge/internal/middleware/servertime"
	"github.com/scriptedge/scriptedge/internal/middleware/tracing"
)

// Options configures Run.
type Options struct {
	Addr            string
	ServiceName     string
	ShutdownTimeout time.Duration
	Logger          *logging.Config
	Metrics         *metrics.Recorder
	HealthPath      string
	MetricsPath     string

	// TracerProvider overrides the default stdout-exporting provider
	// Run builds for the tracing middleware. Tests that want to
	// inspect spans set this; production callers leave it nil.
	TracerProvider *sdktrace.TracerProvider
}

func (o *Options) withDefaults() *Options {
	out := *o
	if out.Addr == "" {
		out.Addr = ":8080"
	}
	if out.ServiceName == "" {
		out.ServiceName = "scriptedge"
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = 10 * time.Second
	}
	if out.HealthPath == "" {
		out.HealthPath = "/healthz"
	}
	if out.MetricsPath == "" {
		out.MetricsPath = "/metrics"
	}
	return &out
}

// Run serves dispatch on opts.Addr until ctx is canceled, then shuts down
// gracefully within opts.ShutdownTimeout. Callers build ctx with
// signal.NotifyContext so Ctrl-C and SIGTERM trigger the same path.
func Run(ctx context.Context, opts Options, dispatchHandler http.Handler) error {
	o := opts.withDefaults()

	tp := o.TracerProvider
	if tp == nil {
		exporter, err := stdouttrace.New()
		if err != nil {
			return fmt.Errorf("server: building trace exporter: %w", err)
		}
		tp = tracing.NewProvider(exporter)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	handler := requestid.New()(
		servertime.New(o.Logger)(
			tracing.New(tp)(
				compression.New()(dispatchHandler),
			),
		),
	)

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.HandleFunc(o.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	if o.Metrics != nil {
		mux.Handle(o.MetricsPath, o.Metrics.Handler())
	}

	httpServer := &http.Server{
		Addr:              o.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	ready := make(chan struct{})

	go func() {
		printBanner(o.ServiceName, o.Addr)
		if o.Logger != nil {
			o.Logger.Info("server starting", "address", o.Addr, "healthz", o.HealthPath, "metrics", o.MetricsPath)
		}
		close(ready)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	<-ready

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		if o.Logger != nil {
			o.Logger.Info("server shutting down", "reason", ctx.Err())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), o.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if o.Logger != nil {
		o.Logger.Info("server exited")
	}
	return nil
}

func printBanner(serviceName, addr string) {
	art := figure.NewFigure(serviceName, "", false)
	art.Print()
	displayAddr := addr
	if len(addr) > 0 && addr[0] == ':' {
		displayAddr = "0.0.0.0" + addr
	}
	fmt.Fprintf(os.Stdout, "\nlistening on http://%s\n\n", displayAddr)
}
