package ota

import "fmt"

// Target selects which image an upload replaces.
type Target string

const (
	TargetFirmware   Target = "firmware"
	TargetFilesystem Target = "filesystem"
)

// ParseTarget validates a target name. Empty selects the firmware.
func ParseTarget(s string) (Target, error) {
	switch Target(s) {
	case "", TargetFirmware:
		return TargetFirmware, nil
	case TargetFilesystem:
		return TargetFilesystem, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTarget, s)
}

// EventKind is the stage of an upload.
type EventKind string

const (
	EventStart    EventKind = "start"
	EventProgress EventKind = "progress"
	EventEnd      EventKind = "end"
	EventError    EventKind = "error"
)

// ErrorCode says which stage of an upload failed.
type ErrorCode string

const (
	ErrorAuth    ErrorCode = "auth"
	ErrorBegin   ErrorCode = "begin"
	ErrorConnect ErrorCode = "connect"
	ErrorReceive ErrorCode = "receive"
	ErrorEnd     ErrorCode = "end"
)

// Event reports upload progress to the Updater.
type Event struct {
	Kind   EventKind
	Target Target

	// Received and Total are byte counts. Total is -1 when the client sent
	// no Content-Length.
	Received int64
	Total    int64

	// Image is the staged file, set on EventEnd.
	Image string

	// Code and Err are set on EventError.
	Code ErrorCode
	Err  error
}

// Percent returns upload progress in the range 0-100, or -1 when unknown.
func (e Event) Percent() int {
	if e.Total <= 0 {
		return -1
	}
	return int(e.Received * 100 / e.Total)
}
