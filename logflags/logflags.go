// Package logflags configures the file logger shared by the memvis packages.
// Every package asks for a logger tagged with its layer; until Setup is
// called everything is discarded so library users and tests stay quiet.
package logflags

import (
	"io"
	"io/ioutil"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.Mutex
	root   = newRootLogger(ioutil.Discard, logrus.InfoLevel)
	logOut io.Closer
)

func newRootLogger(out io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.Out = out
	l.Level = level
	l.Formatter = &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}
	return l
}

// Setup directs all layer loggers to dest, truncating it. An empty dest
// keeps logging disabled. With debug set the level is lowered to Debug.
func Setup(dest string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	level := logrus.InfoLevel
	if debug {
		level = logrus.DebugLevel
	}
	if dest == "" {
		root.SetOutput(ioutil.Discard)
		root.SetLevel(level)
		return nil
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	closeLocked()
	logOut = f
	root.SetOutput(f)
	root.SetLevel(level)
	return nil
}

// SetOutput replaces the destination with w. Used by tests to capture output.
func SetOutput(w io.Writer, level logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	root.SetOutput(w)
	root.SetLevel(level)
}

// Close flushes and closes the log file opened by Setup, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	root.SetOutput(ioutil.Discard)
	return closeLocked()
}

func closeLocked() error {
	if logOut == nil {
		return nil
	}
	err := logOut.Close()
	logOut = nil
	return err
}

func makeLogger(fields logrus.Fields) *logrus.Entry {
	return root.WithFields(fields)
}

// ReaderLogger returns a logger for the snapshot reader.
func ReaderLogger() *logrus.Entry {
	return makeLogger(logrus.Fields{"layer": "reader"})
}

// StackPointerLogger returns a logger for the stack pointer resolvers.
func StackPointerLogger() *logrus.Entry {
	return makeLogger(logrus.Fields{"layer": "reader", "kind": "stackpointer"})
}

// StoreLogger returns a logger for the snapshot store.
func StoreLogger() *logrus.Entry {
	return makeLogger(logrus.Fields{"layer": "store"})
}

// SamplerLogger returns a logger for the background sampler.
func SamplerLogger() *logrus.Entry {
	return makeLogger(logrus.Fields{"layer": "sampler"})
}

// ConsoleLogger returns a logger for the interactive console.
func ConsoleLogger() *logrus.Entry {
	return makeLogger(logrus.Fields{"layer": "console"})
}
