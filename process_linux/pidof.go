//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/afero"

	"memvis/process"
)

// linkReader is implemented by filesystems that can resolve symlinks, the OS
// filesystem among them.
type linkReader interface {
	ReadlinkIfPossible(name string) (string, error)
}

// ListByName returns all processes whose comm or exe basename equals name,
// ordered by pid. The match is case-sensitive, like pidof.
func ListByName(fs afero.Fs, name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}

	entries, err := afero.ReadDir(fs, "/proc")
	if err != nil {
		return nil, fmt.Errorf("read /proc: %w", err)
	}

	selfPID := os.Getpid()
	var out []process.ProcessInfo

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue // not a PID dir
		}
		if pid == selfPID {
			continue // skip ourselves
		}

		comm, _ := afero.ReadFile(fs, filepath.Join("/proc", e.Name(), "comm"))
		comm = bytesTrimNL(comm)
		if string(comm) == name {
			out = append(out, process.ProcessInfo{PID: process.ProcessID(pid), Name: string(comm)})
			continue
		}

		// may fail for zombies or without permission
		if lr, ok := fs.(linkReader); ok {
			exe, _ := lr.ReadlinkIfPossible(filepath.Join("/proc", e.Name(), "exe"))
			if exe != "" && filepath.Base(exe) == name {
				out = append(out, process.ProcessInfo{PID: process.ProcessID(pid), Name: filepath.Base(exe)})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].PID < out[j].PID
	})
	return out, nil
}

// OneByName returns the match with the lowest pid, or os.ErrNotExist if none.
func OneByName(fs afero.Fs, name string) (process.ProcessInfo, error) {
	ps, err := ListByName(fs, name)
	if err != nil {
		return process.ProcessInfo{}, err
	}
	if len(ps) == 0 {
		return process.ProcessInfo{}, fmt.Errorf("no process named %q: %w", name, os.ErrNotExist)
	}
	return ps[0], nil
}

func bytesTrimNL(b []byte) []byte {
	// comm ends with a newline
	for len(b) > 0 {
		switch b[len(b)-1] {
		case '\n', '\r', ' ', '\t':
			b = b[:len(b)-1]
		default:
			return b
		}
	}
	return b
}
