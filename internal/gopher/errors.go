package gopher

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies why a request produced no data.
type FetchErrorKind int

const (
	// KindConnect is any connection or I/O failure not covered by another kind.
	KindConnect FetchErrorKind = iota
	// KindConnectTimeout means the TCP connection was not established in time.
	KindConnectTimeout
	// KindReadTimeout means the server stopped sending before closing the connection.
	KindReadTimeout
	// KindResolve means the host name could not be resolved.
	KindResolve
	// KindSizeLimit means the response grew beyond the configured ceiling.
	KindSizeLimit
	// KindCanceled means the caller's context ended during the request.
	KindCanceled
)

// Sentinels matched by FetchError.Is, one per kind.
var (
	ErrConnect        = errors.New("connection failed")
	ErrConnectTimeout = errors.New("connect timeout")
	ErrReadTimeout    = errors.New("read timeout")
	ErrResolve        = errors.New("name resolution failed")
	ErrSizeLimit      = errors.New("response size limit exceeded")
	ErrCanceled       = errors.New("request canceled")
)

// sentinel returns the sentinel error for the kind.
func (k FetchErrorKind) sentinel() error {
	switch k {
	case KindConnectTimeout:
		return ErrConnectTimeout
	case KindReadTimeout:
		return ErrReadTimeout
	case KindResolve:
		return ErrResolve
	case KindSizeLimit:
		return ErrSizeLimit
	case KindCanceled:
		return ErrCanceled
	default:
		return ErrConnect
	}
}

// String returns the kind's short description.
func (k FetchErrorKind) String() string {
	return k.sentinel().Error()
}

// FetchError describes a failed request. The partial response, if any, is
// never attached.
type FetchError struct {
	Kind     FetchErrorKind
	Host     string
	Port     int
	Selector string
	Err      error
}

// Error implements error.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s:%d selector %q", e.Kind, e.Host, e.Port, DisplaySelector(e.Selector))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a FetchError against the sentinel of its kind.
func (e *FetchError) Is(target error) bool {
	return target == e.Kind.sentinel()
}
