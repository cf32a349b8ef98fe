// Package apperr defines the typed errors raised by services.  Each error
// carries a Kind that maps to an HTTP status and a message that is safe to
// return to clients.  The wrapped cause, if any, is only ever logged.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	KindServerError Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "server_error"
	}
}

// HTTPStatus returns the response status for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a client-facing error with an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, msg string) *Error { return &Error{Kind: k, Message: msg} }

func BadRequest(msg string) *Error   { return newErr(KindBadRequest, msg) }
func Unauthorized(msg string) *Error { return newErr(KindUnauthorized, msg) }
func Forbidden(msg string) *Error    { return newErr(KindForbidden, msg) }
func NotFound(msg string) *Error     { return newErr(KindNotFound, msg) }
func Conflict(msg string) *Error     { return newErr(KindConflict, msg) }

// ServerError builds a 500 error whose message is shown to the client while
// cause stays server side.
func ServerError(msg string, cause error) *Error {
	return &Error{Kind: KindServerError, Message: msg, Err: cause}
}

// As reports whether err (or anything it wraps) is an *Error.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Wrap keeps already typed errors untouched and turns anything else into a
// ServerError with msg.  A nil err yields nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	return ServerError(msg, err)
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == k
}
