package pitch_compliance

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// DefaultPollPeriod requests joint positions at 100 Hz.
const DefaultPollPeriod = 10 * time.Millisecond

// JointPoller broadcasts position requests to every joint at a fixed period while running.
//
// Stop is cooperative: it cancels the loop and waits for the iteration in flight to
// finish, so no request is sent after Stop returns. A Send that never returns makes Stop
// hang.
type JointPoller struct {
	sender Sender
	period time.Duration
	logger logging.Logger

	mu      sync.Mutex
	workers *utils.StoppableWorkers

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewJointPoller creates a stopped poller. A non-positive period selects DefaultPollPeriod.
func NewJointPoller(sender Sender, period time.Duration, logger logging.Logger) *JointPoller {
	if period <= 0 {
		period = DefaultPollPeriod
	}
	return &JointPoller{sender: sender, period: period, logger: logger}
}

// Start begins polling. Starting a running poller does nothing.
func (p *JointPoller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers != nil {
		return
	}
	p.workers = utils.NewBackgroundStoppableWorkers(p.run)
}

// Stop ends polling and waits for the loop to exit. Stopping a stopped poller does nothing.
func (p *JointPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers == nil {
		return
	}
	p.workers.Stop()
	p.workers = nil
}

// Running reports whether the poll loop is active.
func (p *JointPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers != nil
}

// Sent returns the number of requests sent successfully.
func (p *JointPoller) Sent() uint64 { return p.sent.Load() }

func (p *JointPoller) run(ctx context.Context) {
	request, err := NewRequest(AllJoints, PacketPosition)
	if err != nil {
		p.logger.Errorf("cannot build position request: %v", err)
		return
	}

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.sender.Send(request); err != nil {
			// first failure, then every 100th
			if n := p.failed.Add(1); n == 1 || n%100 == 0 {
				p.logger.Warnf("position request failed (%d failures): %v", n, err)
			}
		} else {
			p.sent.Add(1)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
