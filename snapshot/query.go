package snapshot

import (
	"sort"

	"memvis/process"
	"memvis/process/memory_map"
)

// QueryResult is the answer to a [start, end) range query.
type QueryResult struct {
	// Index is the position, in the set's ordered ranges, of the last region
	// inspected. It only drives navigation.
	Index int

	// Metadata describes the last region that contributed bytes, nil when the
	// query touched no region.
	Metadata *memory_map.RegionDescriptor

	// Bytes has exactly end-start entries, zero wherever nothing is mapped.
	Bytes []byte
}

// walkHook is called with the index of every region the walk considers.
type walkHook func(index int)

// GetRange collects the bytes of [start, end) across regions and gaps.
func (rs *RegionSet) GetRange(start, end process.ProcessMemoryAddress) QueryResult {
	return rs.getRange(uint64(start), uint64(end), nil)
}

func (rs *RegionSet) getRange(start, end uint64, hook walkHook) QueryResult {
	if end <= start {
		return QueryResult{Bytes: []byte{}}
	}

	// gaps and the unmapped tail are the zero value
	buf := make([]byte, end-start)
	if len(rs.regions) == 0 {
		return QueryResult{Index: 0, Bytes: buf}
	}

	var metadata *memory_map.RegionDescriptor
	cursor := start

	// regions ending at or below start never contribute, skip them
	first := sort.Search(len(rs.regions), func(i int) bool {
		return rs.regions[i].End() > start
	})

	for i := first; i < len(rs.regions); i++ {
		r := rs.regions[i]
		if hook != nil {
			hook(i)
		}

		if cursor < r.Start() {
			cursor = min(r.Start(), end)
		}

		// gap exhausted: the query ends before this region begins
		if cursor >= end {
			return QueryResult{Index: i, Metadata: metadata, Bytes: buf}
		}

		if cursor >= r.End() {
			continue
		}

		// tail contained: the rest of the query lies inside this region
		if end <= r.End() {
			copy(buf[cursor-start:], r.slice(cursor, end))
			desc := r.Descriptor
			return QueryResult{Index: i, Metadata: &desc, Bytes: buf}
		}

		// continuation: take the rest of this region and move on
		copy(buf[cursor-start:], r.slice(cursor, r.End()))
		desc := r.Descriptor
		metadata = &desc
		cursor = r.End()
	}

	return QueryResult{Index: len(rs.regions) - 1, Metadata: metadata, Bytes: buf}
}
