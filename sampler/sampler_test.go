package sampler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memvis/process"
	"memvis/process/memory_map"
	"memvis/snapshot"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	fail  map[int]error // call number -> error
	block bool          // wait for ctx before returning
	seen  chan int
}

func newFakeSource() *fakeSource {
	return &fakeSource{fail: map[int]error{}, seen: make(chan int, 64)}
}

func (f *fakeSource) Sample(ctx context.Context) ([]snapshot.Region, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	err := f.fail[n]
	block := f.block
	f.mu.Unlock()

	select {
	case f.seen <- n:
	default:
	}
	if block {
		<-ctx.Done()
	}
	if err != nil {
		return nil, err
	}
	return []snapshot.Region{snapshot.NewRegion(memory_map.RegionDescriptor{
		Start: 0x1000, End: 0x1004, Perms: "rw-p",
	}, []byte{byte(n), byte(n), byte(n), byte(n)})}, nil
}

func (f *fakeSource) StackPointer() (process.ProcessMemoryAddress, error) {
	return 0x7ffe0000, nil
}

func waitCall(t *testing.T, f *fakeSource, want int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-f.seen:
			if n >= want {
				return
			}
		case <-deadline:
			t.Fatalf("source was not called %d times", want)
		}
	}
}

func TestSampleOncePublishes(t *testing.T) {
	src := newFakeSource()
	store := snapshot.NewStore()
	s := New(src, store, time.Hour)

	require.NoError(t, s.SampleOnce(context.Background()))
	assert.Equal(t, uint64(1), store.Generation())
	assert.Equal(t, []byte{1, 1, 1, 1}, store.GetRange(0x1000, 0x1004).Bytes)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Cycles)
	assert.Equal(t, uint64(0), stats.Failures)
	assert.Equal(t, 1, stats.LastRegions)
	assert.False(t, stats.LastSample.IsZero())
}

func TestFailedCycleIsNotPublished(t *testing.T) {
	src := newFakeSource()
	boom := errors.New("maps unreadable")
	src.fail[1] = boom
	store := snapshot.NewStore()
	s := New(src, store, time.Hour)

	assert.ErrorIs(t, s.SampleOnce(context.Background()), boom)
	assert.Equal(t, uint64(0), store.Generation())
	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Failures)
	assert.ErrorIs(t, stats.LastError, boom)
}

func TestRunKeepsGoingAfterFailures(t *testing.T) {
	src := newFakeSource()
	src.fail[1] = errors.New("transient")
	src.fail[2] = errors.New("transient")
	store := snapshot.NewStore()
	s := New(src, store, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()

	waitCall(t, src, 4)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.GreaterOrEqual(t, store.Generation(), uint64(1))
	assert.Equal(t, uint64(2), s.Stats().Failures)
}

func TestStopIsPromptAndIdempotent(t *testing.T) {
	src := newFakeSource()
	store := snapshot.NewStore()
	s := New(src, store, time.Hour)

	// stopping a sampler that never started is harmless
	s.Stop()

	s.Start(context.Background())
	s.Start(context.Background())
	waitCall(t, src, 1)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop waited for the period")
	}

	src.mu.Lock()
	calls := src.calls
	src.mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestCancelledSampleIsDropped(t *testing.T) {
	src := newFakeSource()
	src.block = true
	store := snapshot.NewStore()
	s := New(src, store, time.Hour)

	s.Start(context.Background())
	waitCall(t, src, 1)
	s.Stop()

	assert.Equal(t, uint64(0), store.Generation())
	assert.Equal(t, uint64(0), s.Stats().Failures)
}

func TestStackPointerPassThrough(t *testing.T) {
	s := New(newFakeSource(), snapshot.NewStore(), time.Hour)
	sp, err := s.StackPointer()
	require.NoError(t, err)
	assert.Equal(t, process.ProcessMemoryAddress(0x7ffe0000), sp)
}
