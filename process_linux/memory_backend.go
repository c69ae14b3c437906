//go:build linux

package process_linux

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/afero"

	"memvis/process"
)

// Memory backend names accepted by NewMemoryBackend.
const (
	BackendProcfs  = "procfs"
	BackendVMReadv = "vm-readv"
)

// MemoryBackend reads a span of another process's memory.
type MemoryBackend interface {
	ReadMemory(pid process.ProcessID, addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error)
}

// NewMemoryBackend returns the backend called name. fs is only used by the procfs backend.
func NewMemoryBackend(name string, fs afero.Fs) (MemoryBackend, error) {
	switch name {
	case BackendProcfs, "":
		return &ProcfsMemory{fs: fs}, nil
	case BackendVMReadv:
		return &VMReadvMemory{}, nil
	}
	return nil, fmt.Errorf("unknown memory backend %q (want %s or %s)", name, BackendProcfs, BackendVMReadv)
}

// ProcfsMemory reads through /proc/[pid]/mem. The file is opened, sought,
// read and closed on every call; offsets are only meaningful for the mapping
// table they were taken from.
type ProcfsMemory struct {
	fs afero.Fs
}

// NewProcfsMemory creates a procfs backend on fs.
func NewProcfsMemory(fs afero.Fs) *ProcfsMemory {
	return &ProcfsMemory{fs: fs}
}

func (m *ProcfsMemory) ReadMemory(pid process.ProcessID, addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	if uint64(addr) > math.MaxInt64 {
		return nil, fmt.Errorf("address %s is beyond the seekable range", addr.ToString())
	}

	path := pid.Proc("mem")
	f, err := m.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(addr), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s to %s: %w", path, addr.ToString(), err)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", size.ToString(), addr.ToString(), err)
	}
	return buf, nil
}
