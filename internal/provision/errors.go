package provision

import "errors"

var (
	// ErrIncomplete is returned when the credentials file lacks an SSID.
	ErrIncomplete = errors.New("provision: credentials incomplete")

	// ErrJoinFailed is returned when the network cannot be joined.
	ErrJoinFailed = errors.New("provision: join failed")

	// ErrUnknownJoiner is returned for an unsupported join mode.
	ErrUnknownJoiner = errors.New("provision: unknown join mode")
)
