package console

import (
	"bytes"
	"unicode/utf8"
)

// Key is a decoded key press: a rune, or one of the negative special keys.
type Key rune

const (
	KeyNone Key = 0

	KeyUp Key = -(iota + 1)
	KeyDown
	KeyLeft
	KeyRight
	KeyPageUp
	KeyPageDown
	KeyEscape
)

var escapeSequences = []struct {
	seq []byte
	key Key
}{
	{[]byte("\x1b[A"), KeyUp},
	{[]byte("\x1b[B"), KeyDown},
	{[]byte("\x1b[C"), KeyRight},
	{[]byte("\x1b[D"), KeyLeft},
	{[]byte("\x1bOA"), KeyUp},
	{[]byte("\x1bOB"), KeyDown},
	{[]byte("\x1bOC"), KeyRight},
	{[]byte("\x1bOD"), KeyLeft},
	{[]byte("\x1b[5~"), KeyPageUp},
	{[]byte("\x1b[6~"), KeyPageDown},
}

// decodeKey decodes the first key in buf and returns how many bytes it used.
func decodeKey(buf []byte) (Key, int) {
	if len(buf) == 0 {
		return KeyNone, 0
	}

	if buf[0] == 0x1b {
		for _, e := range escapeSequences {
			if bytes.HasPrefix(buf, e.seq) {
				return e.key, len(e.seq)
			}
		}
		// unknown or cut short: swallow the CSI so its tail is not read as runes
		if len(buf) > 1 && (buf[1] == '[' || buf[1] == 'O') {
			n := 2
			for n < len(buf) && (buf[n] < 0x40 || buf[n] > 0x7e) {
				n++
			}
			if n < len(buf) {
				n++
			}
			return KeyEscape, n
		}
		return KeyEscape, 1
	}

	r, size := utf8.DecodeRune(buf)
	return Key(r), size
}
