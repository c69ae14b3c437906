//go:build linux && !amd64

package process_linux

import (
	"fmt"
	"runtime"
)

func stackPointerRegister(pid int) (uint64, error) {
	return 0, fmt.Errorf("reading registers is not supported on %s", runtime.GOARCH)
}
