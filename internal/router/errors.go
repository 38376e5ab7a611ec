package router

import "errors"

var (
	// ErrMissingHandler is returned when a binding has no handler.
	ErrMissingHandler = errors.New("router: binding has no handler")

	// ErrUnboundHandler is returned when a handler's feature has no binding.
	ErrUnboundHandler = errors.New("router: handler has no binding")

	// ErrDuplicateHandler is returned when two handlers own the same feature.
	ErrDuplicateHandler = errors.New("router: duplicate handler")
)
