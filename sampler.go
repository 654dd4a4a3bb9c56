package pitch_compliance

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// DefaultSamplePeriod matches the joint polling rate.
const DefaultSamplePeriod = 10 * time.Millisecond

// SamplerConfig configures an AnalogSampler.
type SamplerConfig struct {
	Channel    string
	NumSamples int
	Period     time.Duration
}

// AnalogSampler repeatedly acquires voltages from one DAQ channel and publishes the latest
// acquisition. Every acquisition opens and closes its own DAQ task.
type AnalogSampler struct {
	daq     DAQ
	cfg     SamplerConfig
	reading *Latest[VoltageReading]
	logger  logging.Logger
	clock   clock.Clock

	mu      sync.Mutex
	workers *utils.StoppableWorkers

	acquired atomic.Uint64
	failed   atomic.Uint64
}

// NewAnalogSampler creates a stopped sampler publishing into reading.
func NewAnalogSampler(daq DAQ, cfg SamplerConfig, reading *Latest[VoltageReading], logger logging.Logger) *AnalogSampler {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.NumSamples <= 0 {
		cfg.NumSamples = 1
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultSamplePeriod
	}
	return &AnalogSampler{daq: daq, cfg: cfg, reading: reading, logger: logger, clock: clock.New()}
}

// Start begins sampling. Starting a running sampler, or one without a DAQ, does nothing.
func (s *AnalogSampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers != nil || s.daq == nil {
		return
	}
	s.workers = utils.NewBackgroundStoppableWorkers(s.run)
}

// Stop ends sampling and waits for the acquisition in flight. No reading is published
// after Stop returns.
func (s *AnalogSampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers == nil {
		return
	}
	s.workers.Stop()
	s.workers = nil
}

// Running reports whether the sample loop is active.
func (s *AnalogSampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workers != nil
}

// Acquired returns the number of successful acquisitions.
func (s *AnalogSampler) Acquired() uint64 { return s.acquired.Load() }

// Failed returns the number of failed acquisitions.
func (s *AnalogSampler) Failed() uint64 { return s.failed.Load() }

func (s *AnalogSampler) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		s.acquire(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *AnalogSampler) acquire(ctx context.Context) {
	samples, err := Sample(ctx, s.daq, s.cfg.Channel, s.cfg.NumSamples)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if n := s.failed.Add(1); n == 1 || n%100 == 0 {
			s.logger.Warnf("keeping previous voltage (%d failures): %v", n, err)
		}
		return
	}
	s.reading.Store(VoltageReading{Samples: samples, At: s.clock.Now()})
	s.acquired.Add(1)
}
