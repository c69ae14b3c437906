// Package process holds the value types and sentinel errors shared by the
// memory reading, snapshot and rendering packages.
package process

import "errors"

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring a target process is attempted
	// without a valid PID.
	ErrProcessNotOpen = errors.New("process not open")
)
