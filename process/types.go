package process

import "fmt"

// ProcessID represents a unique identifier for a process
type ProcessID int

// Proc returns the procfs path of name for this process, e.g. /proc/42/maps.
func (pid ProcessID) Proc(name string) string {
	return fmt.Sprintf("/proc/%d/%s", int(pid), name)
}

// ProcessInfo contains basic information about a process
type ProcessInfo struct {
	PID  ProcessID // Process ID
	Name string    // Process name from /proc/[pid]/comm or the exe basename
}
