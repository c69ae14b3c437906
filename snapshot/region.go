package snapshot

import (
	"sort"

	"memvis/process"
	"memvis/process/memory_map"
)

// Region is one sampled mapping: its descriptor and the bytes read for it.
// Regions are built once per sampling cycle and never modified afterwards.
type Region struct {
	Descriptor memory_map.RegionDescriptor
	Bytes      []byte
}

// NewRegion pairs a descriptor with its sampled bytes.
func NewRegion(desc memory_map.RegionDescriptor, data []byte) Region {
	return Region{Descriptor: desc, Bytes: data}
}

// Start returns the first address of the region.
func (r Region) Start() uint64 { return r.Descriptor.Start }

// End returns one past the last address of the region.
func (r Region) End() uint64 { return r.Descriptor.End }

// slice returns the sampled bytes for the absolute addresses [from, to).
// The caller guarantees Start <= from <= to <= End. A buffer shorter than the
// range yields fewer bytes; the missing tail reads as zero.
func (r Region) slice(from, to uint64) []byte {
	lo := from - r.Descriptor.Start
	hi := to - r.Descriptor.Start
	n := uint64(len(r.Bytes))
	if lo > n {
		lo = n
	}
	if hi > n {
		hi = n
	}
	return r.Bytes[lo:hi]
}

// AddressRange is the [Start, End) span of one region, used for navigation.
type AddressRange struct {
	Start process.ProcessMemoryAddress
	End   process.ProcessMemoryAddress
}

// RegionSet is an immutable, start-ordered collection of regions with no
// duplicate start addresses.
type RegionSet struct {
	regions []Region
	ranges  []AddressRange
}

var emptySet = &RegionSet{}

// NewRegionSet sorts regions by start address. When two regions share a start
// address the one appearing later in the input wins. The byte buffers are
// shared with the caller and must not be modified afterwards.
func NewRegionSet(regions []Region) *RegionSet {
	if len(regions) == 0 {
		return emptySet
	}

	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start() < sorted[j].Start()
	})

	// collapse runs of equal start addresses, keeping the last one
	out := sorted[:0]
	for i, r := range sorted {
		if i+1 < len(sorted) && sorted[i+1].Start() == r.Start() {
			continue
		}
		out = append(out, r)
	}

	ranges := make([]AddressRange, len(out))
	for i, r := range out {
		ranges[i] = AddressRange{
			Start: process.ProcessMemoryAddress(r.Start()),
			End:   process.ProcessMemoryAddress(r.End()),
		}
	}

	return &RegionSet{regions: out, ranges: ranges}
}

// Len returns the number of regions in the set.
func (rs *RegionSet) Len() int {
	return len(rs.regions)
}

// Region returns the i-th region in address order.
func (rs *RegionSet) Region(i int) Region {
	return rs.regions[i]
}

// Ranges returns a copy of the ordered address ranges.
func (rs *RegionSet) Ranges() []AddressRange {
	result := make([]AddressRange, len(rs.ranges))
	copy(result, rs.ranges)
	return result
}
