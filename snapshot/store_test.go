package snapshot

import (
	"bytes"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memvis/process"
	"memvis/process/memory_map"
)

func fill(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func counting(n int, base byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = base + byte(i)
	}
	return out
}

func region(start, end uint64, perms, path string, data []byte) Region {
	return NewRegion(memory_map.RegionDescriptor{
		Start: start, End: end, Perms: perms, Device: "00:00", Path: path,
	}, data)
}

func addr(v uint64) process.ProcessMemoryAddress {
	return process.ProcessMemoryAddress(v)
}

func TestEmptyStore(t *testing.T) {
	s := NewStore()
	res := s.GetRange(0x1000, 0x1010)
	assert.Equal(t, 0, res.Index)
	assert.Nil(t, res.Metadata)
	assert.Equal(t, make([]byte, 0x10), res.Bytes)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, uint64(0), s.Generation())
	assert.True(t, s.UpdatedAt().IsZero())
}

func TestEndToEndScenario(t *testing.T) {
	a := counting(0x10, 0x10)
	b := counting(0x10, 0x80)
	s := NewStore()
	s.SetRegions([]Region{
		region(0x2000, 0x2010, "r--p", "b", b),
		region(0x1000, 0x1010, "rw-p", "a", a),
	})

	res := s.GetRange(0x1008, 0x2008)
	want := append(append(append([]byte{}, a[8:16]...), make([]byte, 0x2000-0x1010)...), b[0:8]...)
	require.Len(t, res.Bytes, 0x1000)
	assert.Equal(t, want, res.Bytes)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "b", res.Metadata.Path)
	assert.Equal(t, 1, res.Index)
}

func TestStraddlingQuery(t *testing.T) {
	r1 := counting(0x1000, 1)
	r2 := counting(0x1000, 7)
	s := NewStore()
	s.SetRegions([]Region{
		region(0x1000, 0x2000, "rw-p", "r1", r1),
		region(0x3000, 0x4000, "rw-p", "r2", r2),
	})

	res := s.GetRange(0x1F00, 0x3100)
	require.Len(t, res.Bytes, 0x1200)
	assert.Equal(t, r1[0xF00:0x1000], res.Bytes[:0x100])
	assert.Equal(t, make([]byte, 0x1000), res.Bytes[0x100:0x1100])
	assert.Equal(t, r2[:0x100], res.Bytes[0x1100:])
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "r2", res.Metadata.Path)
}

func TestContainedQuery(t *testing.T) {
	data := counting(0x100, 0)
	s := NewStore()
	s.SetRegions([]Region{
		region(0x1000, 0x1100, "r-xp", "text", data),
		region(0x2000, 0x2100, "rw-p", "data", fill(0x100, 0xee)),
	})

	res := s.GetRange(0x1010, 0x1020)
	assert.Equal(t, data[0x10:0x20], res.Bytes)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "text", res.Metadata.Path)
	assert.Equal(t, 0, res.Index)

	// a query ending exactly on the region end is still fully served
	res = s.GetRange(0x10f0, 0x1100)
	assert.Equal(t, data[0xf0:], res.Bytes)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "text", res.Metadata.Path)
}

func TestGapQuery(t *testing.T) {
	s := NewStore()
	s.SetRegions([]Region{
		region(0x1000, 0x2000, "rw-p", "low", fill(0x1000, 1)),
		region(0x5000, 0x6000, "rw-p", "high", fill(0x1000, 2)),
	})

	res := s.GetRange(0x3000, 0x3100)
	assert.Equal(t, make([]byte, 0x100), res.Bytes)
	assert.Nil(t, res.Metadata)
	assert.Equal(t, 1, res.Index)

	// ends exactly where the next region starts: still gap only
	res = s.GetRange(0x2000, 0x5000)
	assert.Equal(t, make([]byte, 0x3000), res.Bytes)
	assert.Nil(t, res.Metadata)

	// below every region
	res = s.GetRange(0x10, 0x20)
	assert.Nil(t, res.Metadata)
	assert.Equal(t, 0, res.Index)
}

func TestTailOverrun(t *testing.T) {
	s := NewStore()
	s.SetRegions([]Region{
		region(0x1000, 0x1010, "rw-p", "a", fill(0x10, 0x41)),
		region(0x2000, 0x2010, "rw-p", "b", fill(0x10, 0x42)),
	})

	res := s.GetRange(0x2008, 0x2108)
	require.Len(t, res.Bytes, 0x100)
	assert.Equal(t, fill(8, 0x42), res.Bytes[:8])
	assert.Equal(t, make([]byte, 0xf8), res.Bytes[8:])
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "b", res.Metadata.Path)
	assert.Equal(t, 1, res.Index)

	// entirely past the last region
	res = s.GetRange(0x9000, 0x9010)
	assert.Equal(t, make([]byte, 0x10), res.Bytes)
	assert.Nil(t, res.Metadata)
	assert.Equal(t, 1, res.Index)
}

func TestShortRegionBufferReadsAsZero(t *testing.T) {
	s := NewStore()
	s.SetRegions([]Region{region(0x1000, 0x1010, "rw-p", "short", fill(4, 9))})

	res := s.GetRange(0x1000, 0x1010)
	assert.Equal(t, append(fill(4, 9), make([]byte, 12)...), res.Bytes)
}

func TestInvertedQuery(t *testing.T) {
	s := NewStore()
	s.SetRegions([]Region{region(0x1000, 0x1010, "rw-p", "a", fill(0x10, 1))})
	res := s.GetRange(0x1008, 0x1008)
	assert.Empty(t, res.Bytes)
	res = s.GetRange(0x1010, 0x1000)
	assert.Empty(t, res.Bytes)
	assert.Nil(t, res.Metadata)
}

func TestDuplicateStartsKeepLast(t *testing.T) {
	set := NewRegionSet([]Region{
		region(0x1000, 0x1010, "rw-p", "first", fill(0x10, 1)),
		region(0x3000, 0x3010, "rw-p", "other", fill(0x10, 3)),
		region(0x1000, 0x1010, "rw-p", "second", fill(0x10, 2)),
	})
	require.Equal(t, 2, set.Len())
	assert.Equal(t, "second", set.Region(0).Descriptor.Path)
	assert.Equal(t, []AddressRange{{0x1000, 0x1010}, {0x3000, 0x3010}}, set.Ranges())

	res := set.GetRange(0x1000, 0x1010)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "second", res.Metadata.Path)
	assert.Equal(t, fill(0x10, 2), res.Bytes)
}

func TestIdempotentQueries(t *testing.T) {
	s := NewStore()
	s.SetRegions([]Region{
		region(0x1000, 0x2000, "rw-p", "a", counting(0x1000, 3)),
		region(0x4000, 0x4100, "r--p", "b", counting(0x100, 5)),
	})
	first := s.GetRange(0x1800, 0x4080)
	second := s.GetRange(0x1800, 0x4080)
	assert.Equal(t, first, second)
}

// reference answers a query byte by byte.
func reference(regions []Region, start, end uint64) []byte {
	out := make([]byte, end-start)
	for a := start; a < end; a++ {
		for _, r := range regions {
			if a >= r.Start() && a < r.End() {
				off := a - r.Start()
				if off < uint64(len(r.Bytes)) {
					out[a-start] = r.Bytes[off]
				}
			}
		}
	}
	return out
}

func TestRandomQueriesMatchReference(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 50; round++ {
		var regions []Region
		next := uint64(rng.Intn(64))
		for n := rng.Intn(6); n > 0; n-- {
			start := next + uint64(rng.Intn(32))
			size := uint64(1 + rng.Intn(48))
			data := make([]byte, size)
			rng.Read(data)
			regions = append(regions, region(start, start+size, "rw-p", "", data))
			next = start + size
		}
		s := NewStore()
		s.SetRegions(regions)

		for q := 0; q < 40; q++ {
			start := uint64(rng.Intn(int(next + 64)))
			end := start + uint64(1+rng.Intn(96))
			res := s.GetRange(addr(start), addr(end))
			require.Len(t, res.Bytes, int(end-start))
			require.Equal(t, reference(regions, start, end), res.Bytes, "round %d query [%#x,%#x)", round, start, end)
			if res.Metadata != nil {
				assert.True(t, res.Metadata.Start < end && res.Metadata.End > start,
					"metadata %s outside query [%#x,%#x)", res.Metadata, start, end)
			}
		}
	}
}

func TestSetRegionsIsAtomicForInFlightReader(t *testing.T) {
	s := NewStore()
	s.SetRegions([]Region{
		region(0x1000, 0x1010, "rw-p", "a", fill(0x10, 0xaa)),
		region(0x2000, 0x2010, "rw-p", "b", fill(0x10, 0xaa)),
	})

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	s.hook = func(i int) {
		if i == 1 {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	}

	done := make(chan QueryResult)
	go func() {
		done <- s.GetRange(0x1000, 0x2010)
	}()

	<-entered
	// the reader is parked between the two regions of the old set
	s.SetRegions([]Region{
		region(0x1000, 0x1010, "rw-p", "a", fill(0x10, 0xbb)),
		region(0x2000, 0x2010, "rw-p", "b", fill(0x10, 0xbb)),
	})
	close(release)

	var res QueryResult
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not finish")
	}
	assert.Equal(t, fill(0x10, 0xaa), res.Bytes[:0x10])
	assert.Equal(t, fill(0x10, 0xaa), res.Bytes[0x1000:])

	res = s.GetRange(0x1000, 0x2010)
	assert.Equal(t, fill(0x10, 0xbb), res.Bytes[:0x10])
	assert.Equal(t, fill(0x10, 0xbb), res.Bytes[0x1000:])
}

func TestConcurrentReadersNeverSeeMixedSets(t *testing.T) {
	s := NewStore()
	makeSet := func(b byte) []Region {
		return []Region{
			region(0x1000, 0x1100, "rw-p", "a", fill(0x100, b)),
			region(0x1200, 0x1300, "rw-p", "b", fill(0x100, b)),
			region(0x1400, 0x1500, "rw-p", "c", fill(0x100, b)),
		}
	}
	s.SetRegions(makeSet(1))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				res := s.GetRange(0x1000, 0x1500)
				seen := res.Bytes[0]
				for _, off := range []int{0x0, 0xff, 0x200, 0x2ff, 0x400, 0x4ff} {
					if res.Bytes[off] != seen {
						t.Errorf("mixed snapshot: byte %#x is %d, expected %d", off, res.Bytes[off], seen)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		s.SetRegions(makeSet(byte(i%250 + 1)))
	}
	close(stop)
	wg.Wait()
	assert.Equal(t, uint64(201), s.Generation())
	assert.False(t, s.UpdatedAt().IsZero())
}
