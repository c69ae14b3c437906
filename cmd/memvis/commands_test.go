//go:build linux

package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*options, error) {
	t.Helper()
	cmd, o := newCommand()
	missing := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, cmd.ParseFlags(append([]string{"--config", missing}, args...)))
	_, err := loadConfig(cmd, o)
	return o, err
}

func TestFlagsOverrideDefaults(t *testing.T) {
	cmd, o := newCommand()
	missing := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", missing,
		"-p", "1234", "-j", "16", "-i", "8", "-n", "-b",
		"--period", "500ms", "--frame-rate", "30", "--backend", "vm-readv",
		"-s", "0x7ffc0000",
	}))

	cfg, err := loadConfig(cmd, o)
	require.NoError(t, err)
	assert.Equal(t, 1234, o.pid)
	assert.Equal(t, 16, cfg.Width)
	assert.Equal(t, 8, cfg.Height)
	assert.Equal(t, "syscall", cfg.StackPointer)
	assert.False(t, cfg.ASCII)
	assert.Equal(t, 500*time.Millisecond, cfg.Period)
	assert.Equal(t, 30, cfg.FrameRate)
	assert.Equal(t, "vm-readv", cfg.Backend)
}

func TestUnsetFlagsKeepConfig(t *testing.T) {
	cmd, o := newCommand()
	missing := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, cmd.ParseFlags([]string{"--config", missing, "--pid", "7"}))

	cfg, err := loadConfig(cmd, o)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Width)
	assert.Equal(t, 26, cfg.Height)
	assert.True(t, cfg.ASCII)
	assert.Equal(t, "ptrace", cfg.StackPointer)
}

func TestFlagValidation(t *testing.T) {
	_, err := parse(t)
	assert.Error(t, err, "no target")

	_, err = parse(t, "--pid", "1", "--name", "cat")
	assert.Error(t, err, "both targets")

	_, err = parse(t, "--pid", "1", "-s", "nowhere")
	assert.Error(t, err, "bad start address")

	_, err = parse(t, "--pid", "1", "--width", "0")
	assert.Error(t, err, "zero width")

	_, err = parse(t, "--pid", "1", "--backend", "dma")
	assert.Error(t, err, "unknown backend")
}

func TestStartProfile(t *testing.T) {
	p, err := startProfile("")
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = startProfile("block")
	assert.Error(t, err)
}
