// Package config holds the settings of a memvis session, read from
// $HOME/.memvis/config.yml and overridden from the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".memvis"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Width is the number of bytes per row.
	Width int `yaml:"width"`
	// Height is the number of rows per page.
	Height int `yaml:"height"`
	// ASCII renders printable bytes as characters rather than hex.
	ASCII bool `yaml:"ascii"`

	// Period between two samples of the target.
	Period time.Duration `yaml:"period"`
	// FrameRate is the number of frames drawn per second.
	FrameRate int `yaml:"frame-rate"`

	// StackPointer selects how the stack pointer is read: ptrace or syscall.
	StackPointer string `yaml:"stack-pointer"`
	// Backend selects how memory is read: procfs or vm-readv.
	Backend string `yaml:"backend"`

	// LogDest is the file library logs are written to.
	LogDest string `yaml:"log-dest"`
	// Debug enables debug level logging.
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Width:        10,
		Height:       26,
		ASCII:        true,
		Period:       5 * time.Second,
		FrameRate:    10,
		StackPointer: "ptrace",
		Backend:      "procfs",
		LogDest:      "memvis.log",
	}
}

// LoadConfig reads the configuration at file on fs. Keys missing from the
// file keep their defaults; a missing file yields Default().
func LoadConfig(fs afero.Fs, file string) (*Config, error) {
	c := Default()

	data, err := afero.ReadFile(fs, file)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, fmt.Errorf("unable to decode config file %s: %w", file, err)
	}
	return c, nil
}

// SaveConfig will marshal and save the config struct to file.
func SaveConfig(fs afero.Fs, file string, conf *Config) error {
	out, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(path.Dir(file), 0700); err != nil {
		return err
	}
	return afero.WriteFile(fs, file, out, 0600)
}

// Validate rejects settings the viewer cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Width <= 0:
		return fmt.Errorf("width must be positive, got %d", c.Width)
	case c.Height <= 0:
		return fmt.Errorf("height must be positive, got %d", c.Height)
	case c.Period <= 0:
		return fmt.Errorf("period must be positive, got %s", c.Period)
	case c.FrameRate <= 0:
		return fmt.Errorf("frame rate must be positive, got %d", c.FrameRate)
	}

	switch c.StackPointer {
	case "ptrace", "syscall":
	default:
		return fmt.Errorf("unknown stack pointer strategy %q", c.StackPointer)
	}
	switch c.Backend {
	case "procfs", "vm-readv":
	default:
		return fmt.Errorf("unknown memory backend %q", c.Backend)
	}
	return nil
}

// FrameInterval is the time between two frames.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) string {
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file)
}

// DefaultConfigFile is $HOME/.memvis/config.yml.
func DefaultConfigFile() string {
	return GetConfigFilePath(configFile)
}
