//go:build linux

package process_linux

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"memvis/process"
)

// ProcessStatus is what /proc/<pid>/stat and /proc/<pid>/status say about a process.
type ProcessStatus struct {
	PID     process.ProcessID
	PPID    int
	Name    string
	State   string
	Threads int
	VmSize  int64 // Virtual memory size in KB
	VmRSS   int64 // Resident set size in KB
	Cmdline string
}

func (s ProcessStatus) String() string {
	return fmt.Sprintf("%s (%s) threads=%d vsz=%dkB rss=%dkB", s.Name, s.State, s.Threads, s.VmSize, s.VmRSS)
}

// ReadStatus reads the status of pid from fs. Only stat is required.
func ReadStatus(fs afero.Fs, pid process.ProcessID) (ProcessStatus, error) {
	st := ProcessStatus{PID: pid}

	statData, err := afero.ReadFile(fs, pid.Proc("stat"))
	if err != nil {
		return st, fmt.Errorf("failed to read %s: %w", pid.Proc("stat"), err)
	}
	if err := parseStatFile(string(statData), &st); err != nil {
		return st, fmt.Errorf("failed to parse stat file: %w", err)
	}

	if statusData, err := afero.ReadFile(fs, pid.Proc("status")); err == nil {
		parseStatusFile(string(statusData), &st)
	}

	if cmdlineData, err := afero.ReadFile(fs, pid.Proc("cmdline")); err == nil {
		st.Cmdline = strings.TrimSpace(strings.ReplaceAll(string(cmdlineData), "\x00", " "))
	}

	return st, nil
}

// Status reads the status of the sampled process.
func (r *Reader) Status() (ProcessStatus, error) {
	return ReadStatus(r.fs, r.pid)
}

// parseStatFile parses /proc/[pid]/stat. The comm field may contain spaces
// and parentheses, so fields are counted from the last ')'.
func parseStatFile(data string, st *ProcessStatus) error {
	open := strings.IndexByte(data, '(')
	closing := strings.LastIndexByte(data, ')')
	if open < 0 || closing < open {
		return fmt.Errorf("invalid stat file format")
	}
	st.Name = data[open+1 : closing]

	// fields after comm start at field 3 (state)
	fields := strings.Fields(data[closing+1:])
	if len(fields) < 18 {
		return fmt.Errorf("invalid stat file format")
	}

	st.State = fields[0]
	if ppid, err := strconv.Atoi(fields[1]); err == nil {
		st.PPID = ppid
	}
	if threads, err := strconv.Atoi(fields[17]); err == nil {
		st.Threads = threads
	}
	return nil
}

// parseStatusFile parses /proc/[pid]/status file for memory info
func parseStatusFile(data string, st *ProcessStatus) {
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		switch parts[0] {
		case "VmSize:":
			if size, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				st.VmSize = size
			}
		case "VmRSS:":
			if rss, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				st.VmRSS = rss
			}
		}
	}
}
