//go:build linux

package process_linux

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"memvis/logflags"
	"memvis/process"
	"memvis/process/memory_map"
)

// Stack pointer strategies accepted by NewStackPointerResolver.
const (
	StrategyPtrace  = "ptrace"
	StrategySyscall = "syscall"
)

// StackPointerResolver obtains the current stack pointer of a process.
// Failures are returned as *StackPointerError.
type StackPointerResolver interface {
	Resolve(pid process.ProcessID) (process.ProcessMemoryAddress, error)
}

// NewStackPointerResolver returns the resolver for strategy.
func NewStackPointerResolver(strategy string, fs afero.Fs) (StackPointerResolver, error) {
	switch strategy {
	case StrategyPtrace:
		return PtraceResolver{}, nil
	case StrategySyscall:
		return NewSyscallFileResolver(fs), nil
	}
	return nil, fmt.Errorf("unknown stack pointer strategy %q (want %s or %s)", strategy, StrategyPtrace, StrategySyscall)
}

var hexToken = regexp.MustCompile(`0x[0-9a-fA-F]+`)

// SyscallFileResolver reads the stack pointer from /proc/<pid>/syscall
// without stopping the process. The file holds the syscall number, its
// arguments, then the stack and instruction pointers; a running process only
// reports "running".
type SyscallFileResolver struct {
	fs afero.Fs
}

func NewSyscallFileResolver(fs afero.Fs) *SyscallFileResolver {
	return &SyscallFileResolver{fs: fs}
}

func (s *SyscallFileResolver) Resolve(pid process.ProcessID) (process.ProcessMemoryAddress, error) {
	fail := func(err error) (process.ProcessMemoryAddress, error) {
		logflags.StackPointerLogger().WithField("pid", int(pid)).WithError(err).Debug("syscall file without stack pointer")
		return 0, &StackPointerError{PID: pid, Strategy: StrategySyscall, Err: err}
	}

	f, err := s.fs.Open(pid.Proc("syscall"))
	if err != nil {
		return fail(err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fail(err)
	}
	line = strings.TrimSpace(line)

	tokens := hexToken.FindAllString(line, -1)
	if len(tokens) < 2 {
		return fail(fmt.Errorf("no stack pointer in %q", line))
	}

	sp, err := memory_map.ParseHex(tokens[len(tokens)-2])
	if err != nil {
		return fail(err)
	}
	return process.ProcessMemoryAddress(sp), nil
}
