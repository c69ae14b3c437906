//go:build linux

package memory_map

import (
	"bufio"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/spf13/afero"
)

// parsedLineCacheSize bounds the number of distinct maps lines kept parsed
// between sampling cycles. Typical processes have a few hundred mappings.
const parsedLineCacheSize = 4096

// MemoryMap defines the interface for operations related to a process's memory map
type MemoryMap interface {
	// ReadMemoryMap reads and parses the memory map for a process
	ReadMemoryMap(pid int) ([]RegionDescriptor, error)
}

// LinuxMemoryMap implements MemoryMap for Linux on top of an afero filesystem
// rooted at /. Parsed lines are cached, most of the table is unchanged between cycles.
type LinuxMemoryMap struct {
	fs     afero.Fs
	parsed *lru.Cache
}

// NewLinuxMemoryMap creates a new LinuxMemoryMap instance
func NewLinuxMemoryMap(fs afero.Fs) *LinuxMemoryMap {
	cache, err := lru.New(parsedLineCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &LinuxMemoryMap{fs: fs, parsed: cache}
}

// ReadMemoryMap reads and parses the memory map for a process from /proc/[pid]/maps.
// A single malformed line fails the whole read with a *ParseError.
func (l *LinuxMemoryMap) ReadMemoryMap(pid int) ([]RegionDescriptor, error) {
	file, err := l.fs.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var memoryMap []RegionDescriptor
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if cached, ok := l.parsed.Get(line); ok {
			memoryMap = append(memoryMap, cached.(RegionDescriptor))
			continue
		}

		desc, err := ParseLine(line)
		if err != nil {
			return nil, err
		}
		l.parsed.Add(line, desc)
		memoryMap = append(memoryMap, desc)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return memoryMap, nil
}
