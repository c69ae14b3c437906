//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	"memvis/logflags"
	"memvis/process"
)

// PtraceResolver reads the stack pointer register of the thread group
// leader. It seizes the process, interrupts it, reads the registers and
// detaches again. A signal that arrives while the process is held is
// delivered on detach.
type PtraceResolver struct{}

type ptraceResult struct {
	sp  uint64
	err error
}

func (PtraceResolver) Resolve(pid process.ProcessID) (process.ProcessMemoryAddress, error) {
	log := logflags.StackPointerLogger().WithField("pid", int(pid))

	done := make(chan ptraceResult, 1)
	go func() {
		// every ptrace request must come from the thread that seized the tracee
		runtime.LockOSThread()
		sp, attached, err := readStackPointer(int(pid))
		if attached {
			// exiting with the thread still locked terminates it, and the
			// kernel releases every tracee of a dead tracer
			log.WithError(err).Warn("tracee left seized, dropping the tracer thread")
		} else {
			runtime.UnlockOSThread()
		}
		done <- ptraceResult{sp: sp, err: err}
	}()

	res := <-done
	if res.err != nil {
		return 0, &StackPointerError{PID: pid, Strategy: StrategyPtrace, Err: res.err}
	}
	return process.ProcessMemoryAddress(res.sp), nil
}

// readStackPointer reports attached when the tracee could not be detached.
func readStackPointer(pid int) (sp uint64, attached bool, err error) {
	if err := ptraceSeize(pid); err != nil {
		return 0, false, fmt.Errorf("seize: %w", err)
	}

	sig, err := interruptAndWait(pid)
	if err != nil {
		// only a stopped tracee can be detached, the attempt may fail
		if detachErr := ptraceDetach(pid, 0); detachErr != nil {
			logflags.StackPointerLogger().WithError(detachErr).WithField("pid", pid).Debug("detach after failed stop")
			return 0, true, err
		}
		return 0, false, err
	}

	sp, regErr := stackPointerRegister(pid)
	if err := ptraceDetach(pid, sig); err != nil {
		return 0, true, fmt.Errorf("detach: %w", err)
	}
	if regErr != nil {
		return 0, false, fmt.Errorf("registers: %w", regErr)
	}
	return sp, false, nil
}

// interruptAndWait stops a seized tracee and returns the signal to deliver
// on detach, zero for a ptrace event stop.
func interruptAndWait(pid int) (int, error) {
	if err := interruptTracee(pid); err != nil {
		return 0, fmt.Errorf("interrupt: %w", err)
	}

	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, unix.WALL, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("wait: %w", err)
		}
		if ws.Exited() || ws.Signaled() {
			return 0, fmt.Errorf("process %d exited", pid)
		}
		if !ws.Stopped() {
			continue
		}
		// interrupt and group stops under PTRACE_SEIZE report PTRACE_EVENT_STOP
		if stopEvent(ws) == unix.PTRACE_EVENT_STOP {
			return 0, nil
		}
		// signal-delivery stop: the signal was meant for the process
		return int(ws.StopSignal()), nil
	}
}

// stopEvent extracts the ptrace event from a stop status. WaitStatus.TrapCause
// only reports events for SIGTRAP stops, group stops carry the stop signal.
func stopEvent(ws unix.WaitStatus) int {
	return int(uint32(ws)>>16) & 0xff
}

func ptraceSeize(pid int) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_SEIZE, uintptr(pid), 0, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// interruptTracee is replaced in tests to simulate a tracee that cannot be stopped.
var interruptTracee = ptraceInterrupt

func ptraceInterrupt(pid int) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_INTERRUPT, uintptr(pid), 0, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func ptraceDetach(pid, sig int) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_DETACH, uintptr(pid), 1, uintptr(sig), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
