// Package snapshot holds the most recent sample of a process's address space
// and answers byte range queries against it.
//
// The Store publishes region sets copy-on-write: a new RegionSet is built off
// to the side and swapped in with one atomic pointer store. A reader loads the
// pointer once and walks that set, so it sees either the old or the new
// sample in full and never takes a lock.
package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"memvis/logflags"
	"memvis/process"
)

// Store is the shared, concurrently readable snapshot of a process.
type Store struct {
	current    atomic.Pointer[RegionSet]
	generation atomic.Uint64
	updated    atomic.Int64

	log  *logrus.Entry
	hook walkHook
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{log: logflags.StoreLogger()}
	s.current.Store(emptySet)
	return s
}

// SetRegions replaces the whole snapshot with regions.
func (s *Store) SetRegions(regions []Region) {
	set := NewRegionSet(regions)
	s.current.Store(set)
	s.updated.Store(time.Now().UnixNano())
	gen := s.generation.Add(1)
	s.log.WithFields(logrus.Fields{"regions": set.Len(), "generation": gen}).Debug("snapshot published")
}

// GetRange returns the bytes of [start, end) from the current snapshot.
func (s *Store) GetRange(start, end process.ProcessMemoryAddress) QueryResult {
	return s.current.Load().getRange(uint64(start), uint64(end), s.hook)
}

// Regions returns the current region set. It is immutable and stays valid
// after later SetRegions calls.
func (s *Store) Regions() *RegionSet {
	return s.current.Load()
}

// Ranges returns the ordered address ranges of the current snapshot.
func (s *Store) Ranges() []AddressRange {
	return s.current.Load().Ranges()
}

// Len returns the number of regions in the current snapshot.
func (s *Store) Len() int {
	return s.current.Load().Len()
}

// Generation counts SetRegions calls; zero means nothing was published yet.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// UpdatedAt returns when the current snapshot was published.
func (s *Store) UpdatedAt() time.Time {
	ns := s.updated.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
