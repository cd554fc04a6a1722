// Package apperrors defines the error taxonomy shared by the dispatch
// pipeline and its collaborators. Every error that can surface from a
// request carries an HTTP status via the Typer interface, the same
// marker-interface shape the teacher's errors package uses to let
// errors.As dispatch on behavior instead of concrete type.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the category of a dispatch-time failure.
type Kind string

const (
	KindHostNotFound         Kind = "host_not_found"
	KindRoutePathNotFound    Kind = "route_path_not_found"
	KindRouteMethodNotAllow  Kind = "route_method_not_allowed"
	KindWorkerInit           Kind = "worker_init"
	KindWorkerShape          Kind = "worker_shape"
	KindWorkerRejected       Kind = "worker_rejected"
	KindInternal             Kind = "internal"
)

// Typer is implemented by errors that know their own HTTP status code.
type Typer interface {
	HTTPStatus() int
}

// Coder is implemented by errors that carry a stable Kind for programmatic
// dispatch (logging fields, metrics labels, and so on).
type Coder interface {
	Kind() Kind
}

// Error is the concrete error type produced by this package. It is
// intentionally small: a kind, an HTTP status, a human detail, and an
// optional wrapped cause.
type Error struct {
	kind   Kind
	status int
	detail string
	cause  error
}

func (e *Error) Error() string {
	if e.detail == "" {
		return string(e.kind)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.detail)
}

func (e *Error) Unwrap() error { return e.cause }

// Kind implements Coder.
func (e *Error) Kind() Kind { return e.kind }

// HTTPStatus implements Typer.
func (e *Error) HTTPStatus() int { return e.status }

func newErr(kind Kind, status int, detail string, cause error) *Error {
	return &Error{kind: kind, status: status, detail: detail, cause: cause}
}

// HostNotFound reports that no tenant is registered for the given host.
func HostNotFound(host string) *Error {
	return newErr(KindHostNotFound, http.StatusNotFound, fmt.Sprintf("no tenant registered for host %q", host), nil)
}

// RoutePathNotFound reports that no path pattern matched the request path.
func RoutePathNotFound(path string) *Error {
	return newErr(KindRoutePathNotFound, http.StatusNotFound, fmt.Sprintf("no route matches path %q", path), nil)
}

// RouteMethodNotAllowed reports a path match with an empty method slot.
func RouteMethodNotAllowed(method string) *Error {
	return newErr(KindRouteMethodNotAllow, http.StatusMethodNotAllowed, fmt.Sprintf("method %q not allowed for this path", method), nil)
}

// WorkerInit reports that a bundle failed to evaluate inside the JS engine.
func WorkerInit(detail string, cause error) *Error {
	return newErr(KindWorkerInit, http.StatusInternalServerError, detail, cause)
}

// WorkerShape reports a malformed handler return value.
func WorkerShape(detail string) *Error {
	return newErr(KindWorkerShape, http.StatusBadGateway, detail, nil)
}

// WorkerRejected reports a rejected handler promise.
func WorkerRejected(detail string) *Error {
	return newErr(KindWorkerRejected, http.StatusInternalServerError, detail, nil)
}

// Internal wraps any unexpected failure.
func Internal(detail string, cause error) *Error {
	return newErr(KindInternal, http.StatusInternalServerError, detail, cause)
}

// StatusFor returns the HTTP status that should be reported for err,
// defaulting to 500 when err does not implement Typer.
func StatusFor(err error) int {
	var typed Typer
	if errors.As(err, &typed) {
		return typed.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// KindFor returns the Kind for err, or KindInternal when err does not
// implement Coder.
func KindFor(err error) Kind {
	var coded Coder
	if errors.As(err, &coded) {
		return coded.Kind()
	}
	return KindInternal
}

// WriteResponse renders err as the short plain-text body the dispatch
// pipeline's error taxonomy calls for, and returns the status written.
func WriteResponse(w http.ResponseWriter, err error) int {
	status := StatusFor(err)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, err.Error())
	return status
}
