//go:build linux

package memory_map

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mapsFixture = `55d0c1a00000-55d0c1a22000 r--p 00000000 fd:01 1835041 /usr/bin/cat
55d0c1c21000-55d0c1c42000 rw-p 00000000 00:00 0 [heap]

7fff0137c000-7fff0139d000 rw-p 00000000 00:00 0 [stack]
`

func TestReadMemoryMap(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proc/42/maps", []byte(mapsFixture), 0444))

	mm := NewLinuxMemoryMap(fs)
	regions, err := mm.ReadMemoryMap(42)
	require.NoError(t, err)
	require.Len(t, regions, 3)
	assert.Equal(t, "/usr/bin/cat", regions[0].Path)
	assert.Equal(t, "[heap]", regions[1].Path)
	assert.True(t, regions[2].IsStack())

	// second read is served from the parsed line cache and must be identical
	again, err := mm.ReadMemoryMap(42)
	require.NoError(t, err)
	assert.Equal(t, regions, again)
}

func TestReadMemoryMapFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	mm := NewLinuxMemoryMap(fs)

	_, err := mm.ReadMemoryMap(7)
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/proc/7/maps", []byte(mapsFixture+"garbage\n"), 0444))
	_, err = mm.ReadMemoryMap(7)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "garbage", perr.Line)
}
