package pitch_compliance

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// CommandMode selects when the control loop commands the target configuration.
type CommandMode string

const (
	// CommandNone never commands; the experiment only logs.
	CommandNone CommandMode = "none"
	// CommandOnce commands the target a single time, CommandDelay after the loop starts.
	CommandOnce CommandMode = "once"
	// CommandContinuous re-sends the target on every tick.
	CommandContinuous CommandMode = "continuous"
)

// Defaults for OrchestratorConfig.
const (
	DefaultTickPeriod   = 50 * time.Millisecond
	DefaultCommandDelay = 10 * time.Second
)

// OrchestratorConfig configures the control loop and the producers it owns.
type OrchestratorConfig struct {
	TickPeriod   time.Duration
	SettleDelay  time.Duration
	CommandDelay time.Duration
	CommandMode  CommandMode
	Target       ArmConfiguration
	PollPeriod   time.Duration
	Sampler      SamplerConfig
	Pitch        PitchModel
}

func (c *OrchestratorConfig) fillDefaults() {
	if c.TickPeriod <= 0 {
		c.TickPeriod = DefaultTickPeriod
	}
	if c.CommandDelay <= 0 {
		c.CommandDelay = DefaultCommandDelay
	}
	if c.CommandMode == "" {
		c.CommandMode = CommandNone
	}
	if c.Pitch.isZero() {
		c.Pitch = DefaultPitchModel
	}
}

// Status is a point-in-time summary of an orchestrator.
type Status struct {
	Enabled         bool   `json:"enabled"`
	Ticks           uint64 `json:"ticks"`
	RequestsSent    uint64 `json:"requests_sent"`
	SamplesAcquired uint64 `json:"samples_acquired"`
	SampleFailures  uint64 `json:"sample_failures"`
	DecodeErrors    uint64 `json:"decode_errors"`
	SinkFailures    uint64 `json:"sink_failures"`
	AllJointsSeen   bool   `json:"all_joints_seen"`
	Commanded       bool   `json:"commanded"`
}

// Orchestrator owns the arm link and the analog sampler and runs the control loop that
// pairs their latest values into log records.
type Orchestrator struct {
	cfg       OrchestratorConfig
	transport Transport
	sinks     []RecordSink
	logger    logging.Logger
	clock     clock.Clock

	table     *JointTable
	voltage   *Latest[VoltageReading]
	telemetry *TelemetryHandler
	poller    *JointPoller
	sampler   *AnalogSampler
	commander *CommandSender

	target Latest[ArmConfiguration]
	latest Latest[LogRecord]

	mu       sync.Mutex
	enabled  bool
	attached bool
	control  *utils.StoppableWorkers

	ticks        atomic.Uint64
	sinkFailures atomic.Uint64
	commanded    atomic.Bool
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock used for timestamps and loop timing.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithSinks adds record sinks.
func WithSinks(sinks ...RecordSink) Option {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, sinks...) }
}

// NewOrchestrator wires the producers for transport and daq. Nothing runs until Enable.
func NewOrchestrator(cfg OrchestratorConfig, transport Transport, daq DAQ, logger logging.Logger, opts ...Option) *Orchestrator {
	cfg.fillDefaults()
	o := &Orchestrator{
		cfg:       cfg,
		transport: transport,
		logger:    logger,
		clock:     clock.New(),
		table:     &JointTable{},
		voltage:   &Latest[VoltageReading]{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.telemetry = NewTelemetryHandler(o.table, logger)
	o.poller = NewJointPoller(transport, cfg.PollPeriod, logger)
	o.sampler = NewAnalogSampler(daq, cfg.Sampler, o.voltage, logger)
	o.sampler.clock = o.clock
	o.commander = NewCommandSender(transport, logger)
	o.target.Store(cfg.Target)
	return o
}

// Enable connects to the arm and starts polling, sampling and the control loop. If the
// connection fails nothing is started. The returned release func disables the
// orchestrator and may be called any number of times.
func (o *Orchestrator) Enable(ctx context.Context) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.enabled {
		return o.Disable, nil
	}

	if err := o.transport.Connect(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to connect to arm")
	}
	if !o.attached {
		o.transport.AttachCallback(PacketPosition, o.telemetry.Callback())
		o.attached = true
	}
	o.telemetry.Thaw()
	o.commanded.Store(false)

	o.poller.Start()
	o.sampler.Start()
	o.control = utils.NewBackgroundStoppableWorkers(o.controlLoop)
	o.enabled = true
	o.logger.Infof("experiment enabled (mode %s, tick %v)", o.cfg.CommandMode, o.cfg.TickPeriod)
	return o.Disable, nil
}

// Disable stops the control loop and both producers, then disconnects. It is idempotent,
// safe before Enable, and no shared state is written after it returns.
func (o *Orchestrator) Disable() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.enabled {
		return
	}
	o.control.Stop()
	o.control = nil
	o.poller.Stop()
	o.sampler.Stop()
	o.telemetry.Freeze()
	if err := o.transport.Disconnect(); err != nil {
		o.logger.Warnf("disconnect failed: %v", err)
	}
	o.enabled = false
	o.logger.Infof("experiment disabled after %d ticks", o.ticks.Load())
}

// Close disables the orchestrator and closes its sinks.
func (o *Orchestrator) Close() error {
	o.Disable()
	var errs error
	for _, s := range o.sinks {
		if err := s.Close(); err != nil {
			errs = errors.Wrap(err, "failed to close record sink")
			o.logger.Warn(errs)
		}
	}
	return errs
}

// Enabled reports whether the experiment is running.
func (o *Orchestrator) Enabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enabled
}

// Latest returns the most recent log record.
func (o *Orchestrator) Latest() (LogRecord, bool) {
	return o.latest.Load()
}

// Joints returns the current joint table snapshot.
func (o *Orchestrator) Joints() JointPositions {
	return o.table.Snapshot()
}

// SetTarget changes the configuration the control loop commands.
func (o *Orchestrator) SetTarget(cfg ArmConfiguration) {
	o.target.Store(cfg)
}

// ApplyPreset makes cfg the target and commands it immediately.
func (o *Orchestrator) ApplyPreset(cfg ArmConfiguration) error {
	if !o.Enabled() {
		return ErrNotConnected
	}
	o.SetTarget(cfg)
	return o.commander.Apply(cfg)
}

// SendJoint commands a single joint.
func (o *Orchestrator) SendJoint(id DeviceID, position float64) error {
	if !o.Enabled() {
		return ErrNotConnected
	}
	return o.commander.SendJoint(id, position)
}

// Status summarizes the counters of every loop.
func (o *Orchestrator) Status() Status {
	return Status{
		Enabled:         o.Enabled(),
		Ticks:           o.ticks.Load(),
		RequestsSent:    o.poller.Sent(),
		SamplesAcquired: o.sampler.Acquired(),
		SampleFailures:  o.sampler.Failed(),
		DecodeErrors:    o.telemetry.DecodeErrors(),
		SinkFailures:    o.sinkFailures.Load(),
		AllJointsSeen:   o.table.Complete(),
		Commanded:       o.commanded.Load(),
	}
}

func (o *Orchestrator) controlLoop(ctx context.Context) {
	if !o.sleep(ctx, o.cfg.SettleDelay) {
		return
	}
	start := o.clock.Now()
	ticker := o.clock.Ticker(o.cfg.TickPeriod)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		o.tick(start)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := o.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (o *Orchestrator) tick(start time.Time) {
	rec := o.record()
	o.latest.Store(rec)
	o.ticks.Add(1)

	for _, s := range o.sinks {
		if err := s.Append(rec); err != nil {
			if n := o.sinkFailures.Add(1); n == 1 || n%100 == 0 {
				o.logger.Warnf("failed to log record (%d failures): %v", n, err)
			}
		}
	}

	switch o.cfg.CommandMode {
	case CommandContinuous:
		o.command()
	case CommandOnce:
		if rec.Timestamp.Sub(start) >= o.cfg.CommandDelay && o.commanded.CompareAndSwap(false, true) {
			o.logger.Infof("commanding target after %v", o.cfg.CommandDelay)
			o.command()
		}
	}
}

func (o *Orchestrator) record() LogRecord {
	rec := LogRecord{
		Timestamp:      o.clock.Now(),
		JointPositions: o.table.Snapshot(),
	}
	if v, ok := o.voltage.Load(); ok && len(v.Samples) > 0 {
		rec.Voltage, rec.HasVoltage = v, true
		if p := o.cfg.Pitch.Pitch(v.Value()); !math.IsNaN(float64(p)) {
			rec.Pitch, rec.HasPitch = p, true
		}
	}
	return rec
}

func (o *Orchestrator) command() {
	target, _ := o.target.Load()
	if err := o.commander.Apply(target); err != nil {
		o.logger.Warnf("command failed for joints %v: %v", FailedJoints(err), err)
	}
}
