package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInvalidState        = errors.New("invalid state")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInsufficientStock   = errors.New("insufficient stock")
)

// Kind is the machine-readable code returned to API clients.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindInvalidState        Kind = "invalid_state"
	KindInvalidArgument     Kind = "invalid_argument"
	KindForbidden           Kind = "forbidden"
	KindUnauthorized        Kind = "unauthorized"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInsufficientStock   Kind = "insufficient_stock"
	KindInternal            Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrConflict, KindConflict},
	{ErrInvalidState, KindInvalidState},
	{ErrInvalidArgument, KindInvalidArgument},
	{ErrForbidden, KindForbidden},
	{ErrUnauthorized, KindUnauthorized},
	{ErrUpstreamUnavailable, KindUpstreamUnavailable},
	{ErrInsufficientStock, KindInsufficientStock},
}

// KindOf classifies err. Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

func NotFound(format string, args ...any) error { return wrap(ErrNotFound, format, args...) }
func Conflict(format string, args ...any) error { return wrap(ErrConflict, format, args...) }
func InvalidState(format string, args ...any) error {
	return wrap(ErrInvalidState, format, args...)
}
func InvalidArgument(format string, args ...any) error {
	return wrap(ErrInvalidArgument, format, args...)
}
func Forbidden(format string, args ...any) error    { return wrap(ErrForbidden, format, args...) }
func Unauthorized(format string, args ...any) error { return wrap(ErrUnauthorized, format, args...) }

// Upstream marks a failed call to an external collaborator.
func Upstream(service string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, service, err)
}

func wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
