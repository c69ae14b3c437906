package memory_map

import (
	"fmt"
	"strconv"
	"strings"
)

// StackPath is the pseudo path name the kernel gives the main thread's stack.
const StackPath = "[stack]"

// RegionDescriptor describes one line of a process's memory mapping table.
type RegionDescriptor struct {
	Start  uint64 // First address of the region
	End    uint64 // One past the last address of the region
	Perms  string // Permissions (e.g., "r-xp" for read, execute, private)
	Offset uint64 // Offset into the mapped file
	Device string // Device as "major:minor"
	Inode  uint64 // Inode of the mapped file, 0 for anonymous mappings
	Path   string // Path name, pseudo name such as [heap], or empty
}

// ParseError is returned when a line does not follow the mapping table grammar.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed memory map line %q: %s", e.Line, e.Reason)
}

// Size returns the size of the region in bytes.
func (rd RegionDescriptor) Size() uint64 {
	if rd.End < rd.Start {
		return 0
	}
	return rd.End - rd.Start
}

// Contains reports whether addr lies in [Start, End).
func (rd RegionDescriptor) Contains(addr uint64) bool {
	return addr >= rd.Start && addr < rd.End
}

// WithStart returns a copy of the descriptor narrowed to [start, End).
func (rd RegionDescriptor) WithStart(start uint64) RegionDescriptor {
	rd.Start = start
	return rd
}

func (rd RegionDescriptor) IsReadable() bool {
	return len(rd.Perms) > 0 && rd.Perms[0] == 'r'
}

func (rd RegionDescriptor) IsWritable() bool {
	return len(rd.Perms) > 1 && rd.Perms[1] == 'w'
}

func (rd RegionDescriptor) IsExecutable() bool {
	return len(rd.Perms) > 2 && rd.Perms[2] == 'x'
}

func (rd RegionDescriptor) IsShared() bool {
	return len(rd.Perms) > 3 && rd.Perms[3] == 's'
}

func (rd RegionDescriptor) IsPrivate() bool {
	return len(rd.Perms) > 3 && rd.Perms[3] == 'p'
}

// IsStack reports whether the region is the main thread stack.
func (rd RegionDescriptor) IsStack() bool {
	return rd.Path == StackPath
}

// Equal compares range, offset, inode, path and permissions. Device is not part of identity.
func (rd RegionDescriptor) Equal(other RegionDescriptor) bool {
	return rd.Start == other.Start &&
		rd.End == other.End &&
		rd.Offset == other.Offset &&
		rd.Inode == other.Inode &&
		rd.Path == other.Path &&
		rd.Perms == other.Perms
}

// String renders the descriptor back into mapping table syntax.
func (rd RegionDescriptor) String() string {
	s := fmt.Sprintf("%x-%x %s %08x %s %d", rd.Start, rd.End, rd.Perms, rd.Offset, rd.Device, rd.Inode)
	if rd.Path != "" {
		s += " " + rd.Path
	}
	return s
}

// ParseHex converts a hexadecimal string, with or without a 0x prefix, to an integer.
func ParseHex(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if s == "" {
		return 0, fmt.Errorf("empty hex number")
	}
	return strconv.ParseUint(s, 16, 64)
}

// ParseLine parses one line of /proc/[pid]/maps:
//
//	start-end perms offset major:minor inode [pathname]
func ParseLine(line string) (RegionDescriptor, error) {
	fields, path := splitFields(line, 5)
	if len(fields) < 5 {
		return RegionDescriptor{}, &ParseError{Line: line, Reason: fmt.Sprintf("expected at least 5 fields, got %d", len(fields))}
	}

	// Parse address range (e.g., "00400000-0040b000")
	addrRange := strings.Split(fields[0], "-")
	if len(addrRange) != 2 {
		return RegionDescriptor{}, &ParseError{Line: line, Reason: "address range is not start-end"}
	}
	start, err := parseStrictHex(addrRange[0])
	if err != nil {
		return RegionDescriptor{}, &ParseError{Line: line, Reason: "bad start address: " + err.Error()}
	}
	end, err := parseStrictHex(addrRange[1])
	if err != nil {
		return RegionDescriptor{}, &ParseError{Line: line, Reason: "bad end address: " + err.Error()}
	}
	if end < start {
		return RegionDescriptor{}, &ParseError{Line: line, Reason: "end address below start address"}
	}

	perms := fields[1]
	if !validPerms(perms) {
		return RegionDescriptor{}, &ParseError{Line: line, Reason: fmt.Sprintf("bad permissions %q", perms)}
	}

	offset, err := parseStrictHex(fields[2])
	if err != nil {
		return RegionDescriptor{}, &ParseError{Line: line, Reason: "bad offset: " + err.Error()}
	}

	dev := strings.Split(fields[3], ":")
	if len(dev) != 2 {
		return RegionDescriptor{}, &ParseError{Line: line, Reason: "device is not major:minor"}
	}
	for _, part := range dev {
		if _, err := parseStrictHex(part); err != nil {
			return RegionDescriptor{}, &ParseError{Line: line, Reason: "bad device: " + err.Error()}
		}
	}

	inode, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return RegionDescriptor{}, &ParseError{Line: line, Reason: "bad inode: " + err.Error()}
	}

	return RegionDescriptor{
		Start:  start,
		End:    end,
		Perms:  perms,
		Offset: offset,
		Device: fields[3],
		Inode:  inode,
		Path:   path,
	}, nil
}

// parseStrictHex only accepts bare hex digits, the way the kernel prints them.
func parseStrictHex(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty hex number")
	}
	return strconv.ParseUint(s, 16, 64)
}

func validPerms(perms string) bool {
	if len(perms) != 4 {
		return false
	}
	want := [3]byte{'r', 'w', 'x'}
	for i, c := range want {
		if perms[i] != c && perms[i] != '-' {
			return false
		}
	}
	return perms[3] == 's' || perms[3] == 'p'
}

// splitFields returns the first n whitespace separated fields of line and the
// remainder, trimmed. The remainder keeps inner spaces, path names may contain them.
func splitFields(line string, n int) ([]string, string) {
	fields := make([]string, 0, n)
	rest := strings.TrimLeft(line, " \t")
	for len(fields) < n && rest != "" {
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			fields = append(fields, rest)
			rest = ""
			break
		}
		fields = append(fields, rest[:end])
		rest = strings.TrimLeft(rest[end:], " \t")
	}
	return fields, strings.TrimRight(rest, " \t\r\n")
}
