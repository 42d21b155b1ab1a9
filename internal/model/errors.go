package model

import "errors"

var (
	ErrValidation    = errors.New("validation failed")
	ErrUnauthorized  = errors.New("not authorized")
	ErrWindowExpired = errors.New("time window expired")
	ErrNotFound      = errors.New("not found")
)

// KindOf names the error kind carried by err, or "internal" when err wraps none of them.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnauthorized):
		return "authorization"
	case errors.Is(err, ErrWindowExpired):
		return "time_window_expired"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
