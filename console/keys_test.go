package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeKey(t *testing.T) {
	for _, tc := range []struct {
		in   string
		key  Key
		used int
	}{
		{"", KeyNone, 0},
		{"\x1b[A", KeyUp, 3},
		{"\x1b[B", KeyDown, 3},
		{"\x1b[C", KeyRight, 3},
		{"\x1b[D", KeyLeft, 3},
		{"\x1bOA", KeyUp, 3},
		{"\x1b[5~", KeyPageUp, 4},
		{"\x1b[6~", KeyPageDown, 4},
		{"\x1b[Aq", KeyUp, 3},
		{"\x1b", KeyEscape, 1},
		{"\x1b[1;5A", KeyEscape, 6},
		{"\x1b[", KeyEscape, 2},
		{"q", 'q', 1},
		{"jq", 'j', 1},
		{"é", 'é', 2},
	} {
		key, used := decodeKey([]byte(tc.in))
		assert.Equal(t, tc.key, key, "%q", tc.in)
		assert.Equal(t, tc.used, used, "%q", tc.in)
	}
}
