package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingFileYieldsDefaults(t *testing.T) {
	c, err := LoadConfig(afero.NewMemMapFs(), "/home/op/.memvis/config.yml")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.NoError(t, c.Validate())
	assert.Equal(t, 100*time.Millisecond, c.FrameInterval())
}

func TestLoadOverridesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg.yml", []byte(`
width: 16
ascii: false
period: 250ms
stack-pointer: syscall
`), 0600))

	c, err := LoadConfig(fs, "/cfg.yml")
	require.NoError(t, err)
	assert.Equal(t, 16, c.Width)
	assert.Equal(t, 26, c.Height)
	assert.False(t, c.ASCII)
	assert.Equal(t, 250*time.Millisecond, c.Period)
	assert.Equal(t, "syscall", c.StackPointer)
	assert.Equal(t, "procfs", c.Backend)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg.yml", []byte("widht: 16\n"), 0600))
	_, err := LoadConfig(fs, "/cfg.yml")
	assert.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := Default()
	c.Height = 40
	c.Backend = "vm-readv"
	require.NoError(t, SaveConfig(fs, "/home/op/.memvis/config.yml", c))

	loaded, err := LoadConfig(fs, "/home/op/.memvis/config.yml")
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"width":      func(c *Config) { c.Width = 0 },
		"height":     func(c *Config) { c.Height = -1 },
		"period":     func(c *Config) { c.Period = 0 },
		"frame rate": func(c *Config) { c.FrameRate = 0 },
		"strategy":   func(c *Config) { c.StackPointer = "guess" },
		"backend":    func(c *Config) { c.Backend = "dma" },
	} {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestDefaultConfigFile(t *testing.T) {
	assert.Contains(t, DefaultConfigFile(), ".memvis/config.yml")
}
