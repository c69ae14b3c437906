//go:build linux

package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-delve/liner"
	"golang.org/x/sys/unix"
)

const (
	enterAltScreen = "\033[?1049h"
	leaveAltScreen = "\033[?1049l"
	hideCursor     = "\033[?25l"
	showCursor     = "\033[?25h"
	cursorHome     = "\033[H"
	clearToEOL     = "\033[K"
	clearToEOS     = "\033[J"
)

// TTY is a Terminal on a Linux tty in non-canonical mode. Signals stay
// enabled so that ^C reaches the process.
type TTY struct {
	in      *os.File
	out     io.Writer
	saved   unix.Termios
	pending []byte
	buf     [64]byte
}

// OpenTTY switches in to non-canonical, no-echo mode and enters the
// alternate screen on out.
func OpenTTY(in *os.File, out io.Writer) (*TTY, error) {
	fd := int(in.Fd())
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("not a terminal: %w", err)
	}

	t := &TTY{in: in, out: out, saved: *saved}
	if err := t.rawMode(); err != nil {
		return nil, err
	}
	if _, err := io.WriteString(out, enterAltScreen+hideCursor); err != nil {
		t.restore()
		return nil, err
	}
	return t, nil
}

func (t *TTY) rawMode() error {
	raw := t.saved
	raw.Lflag &^= unix.ICANON | unix.ECHO | unix.IEXTEN
	raw.Iflag &^= unix.ICRNL | unix.IXON
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(int(t.in.Fd()), unix.TCSETS, &raw); err != nil {
		return fmt.Errorf("setting raw mode: %w", err)
	}
	return nil
}

func (t *TTY) restore() error {
	saved := t.saved
	return unix.IoctlSetTermios(int(t.in.Fd()), unix.TCSETS, &saved)
}

func (t *TTY) ReadKey(timeout time.Duration) (Key, error) {
	if len(t.pending) == 0 {
		fds := []unix.PollFd{{Fd: int32(t.in.Fd()), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if errors.Is(err, unix.EINTR) {
			return KeyNone, nil
		}
		if err != nil {
			return KeyNone, err
		}
		if n == 0 {
			return KeyNone, nil
		}

		read, err := unix.Read(int(t.in.Fd()), t.buf[:])
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				return KeyNone, nil
			}
			return KeyNone, err
		}
		if read == 0 {
			return KeyNone, io.EOF
		}
		t.pending = append(t.pending, t.buf[:read]...)
	}

	key, used := decodeKey(t.pending)
	t.pending = t.pending[used:]
	return key, nil
}

// Prompt hands the terminal to a line editor for one line.
func (t *TTY) Prompt(label string) (string, error) {
	t.pending = nil
	if err := t.restore(); err != nil {
		return "", err
	}
	fmt.Fprint(t.out, showCursor+"\r\n")

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	text, err := line.Prompt(label)
	line.Close()

	fmt.Fprint(t.out, hideCursor)
	if rawErr := t.rawMode(); rawErr != nil {
		return "", rawErr
	}
	return text, err
}

func (t *TTY) Draw(frame string) error {
	var b strings.Builder
	b.WriteString(cursorHome)
	for _, line := range strings.SplitAfter(frame, "\n") {
		if strings.HasSuffix(line, "\n") {
			b.WriteString(strings.TrimSuffix(line, "\n"))
			b.WriteString(clearToEOL + "\r\n")
			continue
		}
		b.WriteString(line)
	}
	b.WriteString(clearToEOS)
	_, err := io.WriteString(t.out, b.String())
	return err
}

func (t *TTY) Close() error {
	_, werr := io.WriteString(t.out, showCursor+leaveAltScreen)
	if err := t.restore(); err != nil {
		return err
	}
	return werr
}
