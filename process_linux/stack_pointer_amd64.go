//go:build linux && amd64

package process_linux

import "golang.org/x/sys/unix"

func stackPointerRegister(pid int) (uint64, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return 0, err
	}
	return regs.Rsp, nil
}
