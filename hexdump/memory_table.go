package hexdump

import (
	"fmt"
	"io"
	"strings"

	"memvis/coloransi"
	"memvis/process"
	"memvis/process/memory_map"
)

const (
	// MaxMetadataLine is the widest metadata entry; longer ones continue on
	// the next free row.
	MaxMetadataLine = 19

	// Wildcard stands in for unknown metadata.
	Wildcard = "????????"
)

// metadata rows; the others stay free for continuations
const (
	rowAddressesLabel = 0
	rowAddressRange   = 1
	rowPermissions    = 2
	rowOffset         = 4
	rowDevice         = 6
	rowInode          = 8
	rowPathname       = 10
)

// MemoryTable lays out Width*Height bytes starting at an address.
type MemoryTable struct {
	Width   int
	Height  int
	Options CellOptions

	start    process.ProcessMemoryAddress
	metadata *memory_map.RegionDescriptor
	data     []byte
}

// NewMemoryTable creates a table of height rows of width bytes.
func NewMemoryTable(width, height int, ascii bool) *MemoryTable {
	options := DefaultOptions()
	options.ASCII = ascii
	return &MemoryTable{Width: width, Height: height, Options: options}
}

// Size is the number of bytes one table shows.
func (m *MemoryTable) Size() process.ProcessMemorySize {
	return process.ProcessMemorySize(m.Width * m.Height)
}

// SetMemoryBytes sets the window to render. metadata may be nil.
func (m *MemoryTable) SetMemoryBytes(start process.ProcessMemoryAddress, metadata *memory_map.RegionDescriptor, data []byte) {
	m.start = start
	m.metadata = metadata
	m.data = data
}

// Header returns the column titles.
func (m *MemoryTable) Header() []string {
	header := []string{"Address Space Data", "Address"}
	for i := 0; i < m.Width; i++ {
		header = append(header, fmt.Sprintf("0x%x", i))
	}
	return header
}

// Rows returns the cells of every row, metadata and address first. Cells
// past the end of the data are empty.
func (m *MemoryTable) Rows() [][]string {
	rows := make([][]string, 0, m.Height)
	var leftover []rune

	for row := 0; row < m.Height; row++ {
		entry := []rune(m.metadataAt(row))
		if len(entry) == 0 {
			entry, leftover = leftover, nil
		}
		if len(entry) > MaxMetadataLine {
			leftover = entry[MaxMetadataLine:]
			entry = entry[:MaxMetadataLine]
		}

		offset := process.ProcessMemorySize(row * m.Width)
		cells := make([]string, 0, m.Width+2)
		cells = append(cells, string(entry), m.start.Offset(offset).ToString())

		for col := 0; col < m.Width; col++ {
			i := row*m.Width + col
			if i >= len(m.data) {
				cells = append(cells, "")
				continue
			}
			cells = append(cells, formatCell(m.data[i], m.Options))
		}
		rows = append(rows, cells)
	}
	return rows
}

// Render writes the table to w.
func (m *MemoryTable) Render(w io.Writer) error {
	cols := make([]ColumnSpec, 0, m.Width+2)
	for i, title := range m.Header() {
		spec := ColumnSpec{Header: title, BlankValue: " "}
		if i == 0 {
			spec.MinWidth = MaxMetadataLine
		}
		if i == 1 && m.Options.Colorize {
			spec.FormatFunc = m.colorAddress
		}
		if i >= 2 {
			// "0x00" is the widest cell
			spec.MinWidth = 4
		}
		cols = append(cols, spec)
	}

	table := NewTable(cols...)
	for _, row := range m.Rows() {
		table.AddRow(row...)
	}
	return table.Render(w)
}

func (m *MemoryTable) colorAddress(value string) string {
	return coloransi.Foreground(m.Options.AddressColor, value)
}

// Draw renders the table to a string.
func (m *MemoryTable) Draw() string {
	var b strings.Builder
	_ = m.Render(&b)
	return b.String()
}

func (m *MemoryTable) metadataAt(row int) string {
	if m.metadata == nil {
		return Wildcard
	}
	md := m.metadata
	switch row {
	case rowAddressesLabel:
		return "Addresses:"
	case rowAddressRange:
		return fmt.Sprintf("%x-%x", md.Start, md.End)
	case rowPermissions:
		return "Permissions: " + md.Perms
	case rowOffset:
		return fmt.Sprintf("Offset: %d", md.Offset)
	case rowDevice:
		return "Device: " + md.Device
	case rowInode:
		return fmt.Sprintf("Inode: %d", md.Inode)
	case rowPathname:
		if md.Path == "" {
			return "Pathname: " + Wildcard
		}
		return "Pathname: " + md.Path
	}
	return ""
}
