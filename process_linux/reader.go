//go:build linux

// Package process_linux samples the address space of a live Linux process
// through procfs: its mapping table, the bytes behind each readable mapping
// and the stack pointer of the main thread.
package process_linux

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"memvis/logflags"
	"memvis/process"
	"memvis/process/memory_map"
	"memvis/snapshot"
)

// Reader produces fresh snapshots of one process. It holds no file open
// between calls.
type Reader struct {
	pid  process.ProcessID
	fs   afero.Fs
	maps memory_map.MemoryMap
	mem  MemoryBackend
	sp   StackPointerResolver
	log  *logrus.Entry
}

// Option configures a Reader.
type Option func(*Reader)

// WithFs replaces the filesystem /proc is read from.
func WithFs(fs afero.Fs) Option {
	return func(r *Reader) {
		r.fs = fs
	}
}

// WithMemoryBackend replaces the procfs memory backend.
func WithMemoryBackend(mem MemoryBackend) Option {
	return func(r *Reader) {
		r.mem = mem
	}
}

// WithStackPointerResolver replaces the ptrace resolver.
func WithStackPointerResolver(sp StackPointerResolver) Option {
	return func(r *Reader) {
		r.sp = sp
	}
}

// NewReader creates a Reader for pid. Unless overridden, /proc is read from
// the host filesystem, memory through /proc/<pid>/mem and the stack pointer
// with ptrace.
func NewReader(pid process.ProcessID, opts ...Option) (*Reader, error) {
	if pid <= 0 {
		return nil, process.ErrProcessNotOpen
	}

	r := &Reader{pid: pid}
	for _, opt := range opts {
		opt(r)
	}
	if r.fs == nil {
		r.fs = afero.NewOsFs()
	}
	if r.mem == nil {
		r.mem = NewProcfsMemory(r.fs)
	}
	if r.sp == nil {
		r.sp = PtraceResolver{}
	}
	r.maps = memory_map.NewLinuxMemoryMap(r.fs)
	r.log = logflags.ReaderLogger().WithField("pid", int(pid))

	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := r.fs.Stat(procPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("process with PID %d does not exist", pid)
	}

	return r, nil
}

// PID returns the process this reader samples.
func (r *Reader) PID() process.ProcessID {
	return r.pid
}

// ListRegions reads and parses the mapping table. A missing table or a
// single malformed line fails the whole call with a *SnapshotError.
func (r *Reader) ListRegions() ([]memory_map.RegionDescriptor, error) {
	regions, err := r.maps.ReadMemoryMap(int(r.pid))
	if err != nil {
		return nil, &SnapshotError{PID: r.pid, Path: r.pid.Proc("maps"), Err: err}
	}
	return regions, nil
}

// ReadRegions reads the bytes of every readable region in descriptors.
// The stack is narrowed to [sp, End). A region that cannot be read comes
// back zero-filled. ctx is checked between regions.
func (r *Reader) ReadRegions(ctx context.Context, descriptors []memory_map.RegionDescriptor) ([]snapshot.Region, error) {
	regions := make([]snapshot.Region, 0, len(descriptors))
	failed := 0

	for _, desc := range descriptors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !desc.IsReadable() {
			continue
		}
		if desc.IsStack() {
			desc = r.narrowStack(desc)
		}

		data, ok := r.readRegion(desc)
		if !ok {
			failed++
		}
		regions = append(regions, snapshot.NewRegion(desc, data))
	}

	r.log.WithFields(logrus.Fields{"regions": len(regions), "failed": failed}).Debug("regions read")
	return regions, nil
}

// Sample lists the regions and reads them.
func (r *Reader) Sample(ctx context.Context) ([]snapshot.Region, error) {
	descriptors, err := r.ListRegions()
	if err != nil {
		return nil, err
	}
	return r.ReadRegions(ctx, descriptors)
}

// StackPointer returns the current stack pointer of the process.
func (r *Reader) StackPointer() (process.ProcessMemoryAddress, error) {
	return r.sp.Resolve(r.pid)
}

// narrowStack bounds the stack mapping to its live part. Without a usable
// stack pointer the whole mapping is read.
func (r *Reader) narrowStack(desc memory_map.RegionDescriptor) memory_map.RegionDescriptor {
	sp, err := r.sp.Resolve(r.pid)
	if err == nil && !desc.Contains(uint64(sp)) {
		err = fmt.Errorf("stack pointer %s outside %s: %w", sp.ToString(), desc.Path, process.ErrAddressNotMapped)
	}
	if err != nil {
		r.log.WithError(err).Warn("reading whole stack mapping")
		return desc
	}
	return desc.WithStart(uint64(sp))
}

// readRegion always returns a buffer of the region's size. ok is false when
// the read failed and the buffer is zero.
func (r *Reader) readRegion(desc memory_map.RegionDescriptor) ([]byte, bool) {
	size := desc.Size()
	data, err := r.mem.ReadMemory(r.pid, process.ProcessMemoryAddress(desc.Start), process.ProcessMemorySize(size))
	if err != nil {
		r.log.WithError(err).WithField("region", desc.String()).Debug("region unreadable, zero-filled")
		return make([]byte, size), false
	}
	if uint64(len(data)) < size {
		padded := make([]byte, size)
		copy(padded, data)
		return padded, true
	}
	return data[:size], true
}
