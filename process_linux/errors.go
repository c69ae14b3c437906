//go:build linux

package process_linux

import (
	"fmt"

	"memvis/process"
)

// SnapshotError is returned when the mapping table of a process cannot be
// read or parsed. It invalidates a whole sampling cycle.
type SnapshotError struct {
	PID  process.ProcessID
	Path string
	Err  error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot of process %d failed reading %s: %v", e.PID, e.Path, e.Err)
}

func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// StackPointerError is returned when a resolver cannot obtain the stack pointer.
type StackPointerError struct {
	PID      process.ProcessID
	Strategy string
	Err      error
}

func (e *StackPointerError) Error() string {
	return fmt.Sprintf("failed to read stack pointer of process %d (%s): %v", e.PID, e.Strategy, e.Err)
}

func (e *StackPointerError) Unwrap() error {
	return e.Err
}
