// Package console is the interactive view over a snapshot store: it keeps
// the current address window, applies navigation keys and draws one frame
// per tick.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"memvis/hexdump"
	"memvis/logflags"
	"memvis/process"
	"memvis/process/memory_map"
	"memvis/sampler"
	"memvis/snapshot"
)

// ErrInvalidAddress is returned by JumpTo for input that is not a hex address.
var ErrInvalidAddress = errors.New("invalid address")

const helpLine = "↑/↓ scroll  ←/→ region  PgUp/PgDn page  j jump  a ascii/hex  q quit"

// Memory is the read side of the snapshot store. A frame works on one
// region set so its bytes, index and region count agree.
type Memory interface {
	Regions() *snapshot.RegionSet
	UpdatedAt() time.Time
}

// Options configures the view.
type Options struct {
	Width     int
	Height    int
	ASCII     bool
	FrameRate int

	// Stats, when set, feeds sampler failures into the status line.
	Stats func() sampler.Stats
}

// Console owns the window [start, end) and the region index last reported
// by the store. It is used from one goroutine.
type Console struct {
	pid    process.ProcessID
	memory Memory
	table  *hexdump.MemoryTable
	stats  func() sampler.Stats

	start process.ProcessMemoryAddress
	end   process.ProcessMemoryAddress
	index int

	frameInterval time.Duration
	status        string
	now           func() time.Time
	log           *logrus.Entry
}

// New creates a console showing memory from start.
func New(pid process.ProcessID, memory Memory, start process.ProcessMemoryAddress, opts Options) *Console {
	frameRate := opts.FrameRate
	if frameRate <= 0 {
		frameRate = 10
	}
	c := &Console{
		pid:           pid,
		memory:        memory,
		table:         hexdump.NewMemoryTable(opts.Width, opts.Height, opts.ASCII),
		stats:         opts.Stats,
		frameInterval: time.Second / time.Duration(frameRate),
		now:           time.Now,
		log:           logflags.ConsoleLogger().WithField("pid", int(pid)),
	}
	c.setStart(start)
	return c
}

// Window returns the current [start, end).
func (c *Console) Window() (process.ProcessMemoryAddress, process.ProcessMemoryAddress) {
	return c.start, c.end
}

// Index returns the region index reported by the last frame.
func (c *Console) Index() int {
	return c.index
}

// Status returns the feedback shown below the table.
func (c *Console) Status() string {
	return c.status
}

// ASCII reports whether printable bytes are shown as characters.
func (c *Console) ASCII() bool {
	return c.table.Options.ASCII
}

// setStart moves the window; the end saturates at the top of the address space.
func (c *Console) setStart(start process.ProcessMemoryAddress) {
	c.start = start
	c.end = start.Offset(c.table.Size())
}

// Scroll moves the window by rows lines of width bytes.
func (c *Console) Scroll(rows int) {
	step := process.ProcessMemorySize(c.table.Width)
	if rows < 0 {
		c.setStart(c.start.Back(step * process.ProcessMemorySize(-rows)))
		return
	}
	c.setStart(c.start.Offset(step * process.ProcessMemorySize(rows)))
}

// Page moves the window by pages of height rows.
func (c *Console) Page(pages int) {
	c.Scroll(pages * c.table.Height)
}

// ChangeRegion moves delta regions away from the current index, clamped to
// the known regions, and jumps to the start of that region.
func (c *Console) ChangeRegion(delta int) {
	ranges := c.memory.Regions().Ranges()
	if len(ranges) == 0 {
		c.status = "no regions sampled yet"
		return
	}

	c.index += delta
	if c.index < 0 {
		c.index = 0
	}
	if c.index >= len(ranges) {
		c.index = len(ranges) - 1
	}
	c.setStart(ranges[c.index].Start)
	c.log.WithFields(logrus.Fields{"index": c.index, "start": c.start.ToString()}).Debug("changed region")
}

// JumpTo moves the window to the hex address in text. Invalid input leaves
// the window unchanged.
func (c *Console) JumpTo(text string) error {
	addr, err := memory_map.ParseHex(text)
	if err != nil {
		c.status = fmt.Sprintf("Wrong input! %q is not a hex address", strings.TrimSpace(text))
		return fmt.Errorf("%w: %q", ErrInvalidAddress, text)
	}
	c.setStart(process.ProcessMemoryAddress(addr))
	c.status = "jumped to " + c.start.ToString()
	return nil
}

// ToggleASCII switches printable bytes between characters and hex.
func (c *Console) ToggleASCII() {
	c.table.Options.ASCII = !c.table.Options.ASCII
}

// Frame queries the store for the window and renders it with a status line.
func (c *Console) Frame() string {
	set := c.memory.Regions()
	res := set.GetRange(c.start, c.end)
	c.index = res.Index
	c.table.SetMemoryBytes(c.start, res.Metadata, res.Bytes)

	var b strings.Builder
	_ = c.table.Render(&b)
	b.WriteString(c.statusLine(set.Len()))
	b.WriteString("\n")
	b.WriteString(helpLine)
	b.WriteString("\n")
	return b.String()
}

func (c *Console) statusLine(regions int) string {
	age := "no sample yet"
	if updated := c.memory.UpdatedAt(); !updated.IsZero() {
		age = "sampled " + c.now().Sub(updated).Truncate(100*time.Millisecond).String() + " ago"
	}

	parts := []string{
		fmt.Sprintf("pid %d", c.pid),
		fmt.Sprintf("region %d/%d", min(c.index+1, regions), regions),
		age,
	}
	if c.status != "" {
		parts = append(parts, c.status)
	}
	if c.stats != nil {
		if err := c.stats().LastError; err != nil {
			parts = append(parts, "last sample failed: "+err.Error())
		}
	}
	return strings.Join(parts, " | ")
}

// HandleKey applies one key and reports whether the operator asked to quit.
// Feedback from the previous key is dropped once another key arrives.
func (c *Console) HandleKey(key Key, term Terminal) bool {
	switch key {
	case KeyNone:
		return false
	case 'q', 'Q':
		return true
	}

	c.status = ""
	switch key {
	case KeyUp:
		c.Scroll(-1)
	case KeyDown:
		c.Scroll(1)
	case KeyLeft:
		c.ChangeRegion(-1)
	case KeyRight:
		c.ChangeRegion(1)
	case KeyPageUp:
		c.Page(-1)
	case KeyPageDown:
		c.Page(1)
	case 'a', 'A':
		c.ToggleASCII()
	case 'j', 'J':
		c.promptJump(term)
	}
	return false
}

func (c *Console) promptJump(term Terminal) {
	text, err := term.Prompt("Input address to jump to: ")
	if err != nil {
		c.status = "jump cancelled"
		return
	}
	if err := c.JumpTo(text); err != nil {
		c.log.WithError(err).Debug("jump rejected")
	}
}

// Run reads keys and draws frames until the operator quits or ctx is done.
// Waiting for a key is bounded by the frame interval, so the view refreshes
// at the frame rate even when idle.
func (c *Console) Run(ctx context.Context, term Terminal) error {
	c.log.Info("console started")
	defer c.log.Info("console stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		key, err := term.ReadKey(c.frameInterval)
		if err != nil {
			return fmt.Errorf("reading key: %w", err)
		}
		if c.HandleKey(key, term) {
			return nil
		}

		if err := term.Draw(c.Frame()); err != nil {
			return fmt.Errorf("drawing frame: %w", err)
		}
	}
}
