package ota

import "errors"

var (
	// ErrRestartRequired is returned by Service after a new image was installed.
	ErrRestartRequired = errors.New("ota: restart required")

	// ErrUnauthorized is returned when the upload password is wrong.
	ErrUnauthorized = errors.New("ota: unauthorised")

	// ErrInvalidTarget is returned for an unknown update target.
	ErrInvalidTarget = errors.New("ota: invalid target")

	// ErrBusy is returned when an upload is already in progress.
	ErrBusy = errors.New("ota: update already in progress")

	// ErrImageTooLarge is returned when an image exceeds the size limit.
	ErrImageTooLarge = errors.New("ota: image too large")

	// ErrEmptyImage is returned when an upload carries no bytes.
	ErrEmptyImage = errors.New("ota: empty image")

	// ErrChecksumMismatch is returned when the received image does not
	// match the X-Update-MD5 header.
	ErrChecksumMismatch = errors.New("ota: checksum mismatch")

	// ErrInstallFailed is returned when a staged image cannot be installed.
	ErrInstallFailed = errors.New("ota: install failed")

	// ErrInvalidHash is returned when the configured password hash cannot be parsed.
	ErrInvalidHash = errors.New("ota: invalid password hash")
)
