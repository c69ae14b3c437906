package console

import "time"

// Terminal is the device the console draws on and reads keys from.
type Terminal interface {
	// ReadKey waits up to timeout for a key; KeyNone means none arrived.
	ReadKey(timeout time.Duration) (Key, error)
	// Prompt reads one line of input with line editing.
	Prompt(label string) (string, error)
	// Draw replaces the screen with frame.
	Draw(frame string) error
	// Close restores the terminal.
	Close() error
}
