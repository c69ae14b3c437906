package process

import (
	"fmt"
	"math"
)

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

// MaxAddress is the highest representable address.
const MaxAddress = ProcessMemoryAddress(math.MaxUint64)

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%x", uint64(pma))
}

// Offset returns pma+size, saturating at MaxAddress instead of wrapping.
func (pma ProcessMemoryAddress) Offset(size ProcessMemorySize) ProcessMemoryAddress {
	if uint64(size) > uint64(MaxAddress-pma) {
		return MaxAddress
	}
	return pma + ProcessMemoryAddress(size)
}

// Back returns pma-size, saturating at zero.
func (pma ProcessMemoryAddress) Back(size ProcessMemorySize) ProcessMemoryAddress {
	if uint64(size) > uint64(pma) {
		return 0
	}
	return pma - ProcessMemoryAddress(size)
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint64

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint64(pms))
}
