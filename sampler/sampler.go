// Package sampler refreshes a snapshot store from a live process at a fixed
// period.
package sampler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"memvis/logflags"
	"memvis/process"
	"memvis/snapshot"
)

// Source produces one sample of a process's address space.
type Source interface {
	Sample(ctx context.Context) ([]snapshot.Region, error)
	StackPointer() (process.ProcessMemoryAddress, error)
}

// Sink receives every complete sample.
type Sink interface {
	SetRegions(regions []snapshot.Region)
}

// Stats describes the sampler's progress so far.
type Stats struct {
	Cycles       uint64
	Failures     uint64
	LastDuration time.Duration
	LastRegions  int
	LastSample   time.Time
	LastError    error
}

// Sampler publishes a fresh sample into its sink once per period.
type Sampler struct {
	source Source
	sink   Sink
	period time.Duration
	log    *logrus.Entry

	mu     sync.Mutex
	stats  Stats
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a sampler. It does nothing until Start or Run.
func New(source Source, sink Sink, period time.Duration) *Sampler {
	return &Sampler{
		source: source,
		sink:   sink,
		period: period,
		log:    logflags.SamplerLogger(),
	}
}

// SampleOnce takes one sample and publishes it. A failed or cancelled cycle
// publishes nothing.
func (s *Sampler) SampleOnce(ctx context.Context) error {
	begin := time.Now()
	regions, err := s.source.Sample(ctx)
	if err == nil {
		err = ctx.Err()
	}
	elapsed := time.Since(begin)

	s.mu.Lock()
	s.stats.Cycles++
	s.stats.LastDuration = elapsed
	s.stats.LastError = err
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.stats.Failures++
	}
	if err == nil {
		s.stats.LastRegions = len(regions)
		s.stats.LastSample = time.Now()
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.sink.SetRegions(regions)
	s.log.WithFields(logrus.Fields{"regions": len(regions), "took": elapsed}).Debug("sample published")
	return nil
}

// Run samples immediately and then every period until ctx is done. Failed
// cycles are logged and retried on the next period. It returns ctx.Err().
func (s *Sampler) Run(ctx context.Context) error {
	for {
		if err := s.SampleOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.WithError(err).Warn("sampling cycle failed")
		}

		timer := time.NewTimer(s.period)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Start runs the sampler in its own goroutine. Calling Start on a running
// sampler does nothing.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
}

// Stop cancels a started sampler and waits for it to return. A region read in
// flight finishes first; nothing is published afterwards. Stop is idempotent.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// StackPointer passes through to the source, for positioning the view before
// the first sample lands.
func (s *Sampler) StackPointer() (process.ProcessMemoryAddress, error) {
	return s.source.StackPointer()
}

// Stats returns a copy of the current statistics.
func (s *Sampler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
