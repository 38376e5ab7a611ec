package registry

import "errors"

// Domain errors for the registry package.
var (
	// ErrDuplicateTopic is returned when two bindings share a command topic.
	ErrDuplicateTopic = errors.New("registry: duplicate command topic")

	// ErrDuplicateFeature is returned when two bindings share a feature name.
	ErrDuplicateFeature = errors.New("registry: duplicate feature")

	// ErrInvalidBinding is returned when a binding is missing a field or
	// its command topic contains a wildcard.
	ErrInvalidBinding = errors.New("registry: invalid binding")
)
