// Package hexdump renders a window of process memory as a grid of cells,
// one row per line of bytes, next to a column describing the mapping the
// window lies in.
package hexdump

import (
	"fmt"

	"memvis/coloransi"
)

// CellOptions defines how a single byte cell is rendered
type CellOptions struct {
	// ASCII renders printable bytes as their character instead of hex
	ASCII bool

	// Colorize wraps cells in ANSI colour sequences
	Colorize bool

	// HexColor is the color for bytes rendered as hex
	HexColor coloransi.ColorCode

	// ASCIIColor is the color for bytes rendered as characters
	ASCIIColor coloransi.ColorCode

	// ZeroColor is the color for zero bytes (0x00)
	ZeroColor coloransi.ColorCode

	// AddressColor is the color of the address column
	AddressColor coloransi.ColorCode
}

// DefaultOptions returns the default cell options
func DefaultOptions() CellOptions {
	return CellOptions{
		ASCII:      true,
		Colorize:   true,
		HexColor:   coloransi.Green,
		ASCIIColor: coloransi.BrightWhite,
		ZeroColor:  coloransi.BrightBlack,

		AddressColor: coloransi.ColorTeal,
	}
}

// IsPrintable reports whether b is a printable ASCII character.
func IsPrintable(b byte) bool {
	return b > 31 && b < 127
}

// FormatByte renders b as its character when ASCII is set and b is
// printable, else as hex without padding (0xa, 0xff), zero as 0x00.
func FormatByte(b byte, options CellOptions) string {
	if options.ASCII && IsPrintable(b) {
		return string(rune(b))
	}
	if b == 0 {
		return "0x00"
	}
	return fmt.Sprintf("0x%x", b)
}

func formatCell(b byte, options CellOptions) string {
	text := FormatByte(b, options)
	if !options.Colorize {
		return text
	}

	switch {
	case b == 0:
		return coloransi.Foreground(options.ZeroColor, text)
	case options.ASCII && IsPrintable(b):
		return coloransi.Foreground(options.ASCIIColor, text)
	default:
		return coloransi.Foreground(options.HexColor, text)
	}
}
