// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vending

import "errors"

// Error classes. Wrapped with context via fmt.Errorf and tested with errors.Is.
var (
	// ErrTransportEmpty is reported when the peripheral returned no bytes
	ErrTransportEmpty = errors.New("no data received")

	// ErrMalformedFrame covers invalid hex and frames too short for their layout
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrIndexOutOfRange is reported when a decoded bay or mode has no table entry
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrUnknownCommand is reported for a command the profile cannot send
	ErrUnknownCommand = errors.New("unknown command")
)

// ErrorKind returns a short label for the class of err, for metrics and logs
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransportEmpty):
		return "transport_empty"
	case errors.Is(err, ErrMalformedFrame):
		return "malformed_frame"
	case errors.Is(err, ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	default:
		return "other"
	}
}
