package journal

import "errors"

var (
	// ErrNotFound is returned by Latest when a feature has no entries.
	ErrNotFound = errors.New("journal entry not found")

	// ErrFeatureRequired is returned when a feature name is empty.
	ErrFeatureRequired = errors.New("feature is required")
)
