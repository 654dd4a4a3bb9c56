package pitch_compliance

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
)

var ExperimentModel = resource.NewModel("devrel", "pitch-compliance", "experiment")

func init() {
	resource.RegisterComponent(sensor.API, ExperimentModel,
		resource.Registration[sensor.Sensor, *ExperimentConfig]{
			Constructor: newExperimentSensor,
		},
	)
}

// experimentSensor exposes a running experiment as a sensor. Readings return the latest
// log record; DoCommand drives the experiment.
type experimentSensor struct {
	resource.AlwaysRebuild

	name   resource.Name
	logger logging.Logger

	mu       sync.Mutex
	orch     *Orchestrator
	presets  Presets
	selected int
	pub      *Publisher
	server   *http.Server
}

func newExperimentSensor(
	ctx context.Context,
	deps resource.Dependencies,
	rawConf resource.Config,
	logger logging.Logger,
) (sensor.Sensor, error) {
	conf, err := resource.NativeConfig[*ExperimentConfig](rawConf)
	if err != nil {
		return nil, err
	}
	return NewExperimentSensor(ctx, rawConf.ResourceName(), conf, deps, logger)
}

// NewExperimentSensor builds every collaborator for conf and enables the experiment.
func NewExperimentSensor(
	ctx context.Context,
	name resource.Name,
	conf *ExperimentConfig,
	deps resource.Dependencies,
	logger logging.Logger,
) (sensor.Sensor, error) {
	presets, err := conf.LoadPresets()
	if err != nil {
		return nil, err
	}
	target, err := presets.Select(conf.Preset)
	if err != nil {
		return nil, err
	}
	transport, err := conf.NewTransport(logger)
	if err != nil {
		return nil, err
	}
	daq, err := conf.NewDAQ(deps)
	if err != nil {
		return nil, err
	}
	sinks, err := conf.NewSinks(logger)
	if err != nil {
		return nil, err
	}

	es := &experimentSensor{
		name:     name,
		logger:   logger,
		presets:  presets,
		selected: conf.Preset,
	}
	if conf.PublishAddr != "" {
		es.pub = NewPublisher(logger)
		if es.server, err = es.pub.Serve(conf.PublishAddr); err != nil {
			closeSinks(sinks)
			return nil, err
		}
		sinks = append(sinks, es.pub)
	}

	es.orch = NewOrchestrator(conf.OrchestratorConfig(target), transport, daq, logger, WithSinks(sinks...))
	if _, err := es.orch.Enable(ctx); err != nil {
		es.Close(ctx)
		return nil, err
	}
	logger.Infof("pitch compliance experiment running preset %d of %d", conf.Preset, len(presets))
	return es, nil
}

func closeSinks(sinks []RecordSink) {
	for _, s := range sinks {
		s.Close()
	}
}

// Name returns the sensor's name
func (es *experimentSensor) Name() resource.Name {
	return es.name
}

// Readings returns the latest log record and the experiment state.
func (es *experimentSensor) Readings(ctx context.Context, extra map[string]any) (map[string]any, error) {
	readings := map[string]any{
		"state": es.state(),
	}
	rec, ok := es.orch.Latest()
	if !ok {
		readings["has_voltage"] = false
		return readings, nil
	}
	readings["timestamp"] = rec.Timestamp.UnixNano()
	readings["joint_positions"] = floatList(rec.JointPositions[:])
	readings["has_voltage"] = rec.HasVoltage
	if v, ok := rec.VoltageValue(); ok {
		readings["voltage"] = v
	}
	if rec.HasPitch {
		readings["pitch_deg"] = rec.Pitch.Degrees()
	}
	return readings, nil
}

func (es *experimentSensor) state() string {
	if es.orch.Enabled() {
		return "enabled"
	}
	return "disabled"
}

// DoCommand handles experiment commands
func (es *experimentSensor) DoCommand(ctx context.Context, cmd map[string]any) (map[string]any, error) {
	command, ok := cmd["command"].(string)
	if !ok {
		return nil, fmt.Errorf("command must be a string")
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	switch command {
	case "enable":
		if _, err := es.orch.Enable(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"state": es.state()}, nil

	case "disable":
		es.orch.Disable()
		return map[string]any{"state": es.state()}, nil

	case "apply_preset":
		index, err := intArg(cmd, "index")
		if err != nil {
			return nil, err
		}
		cfg, err := es.presets.Select(index)
		if err != nil {
			return nil, err
		}
		if err := es.orch.ApplyPreset(cfg); err != nil {
			return map[string]any{"failed_joints": deviceNames(FailedJoints(err))}, err
		}
		es.selected = index
		return map[string]any{"preset": index, "configuration": floatList(cfg[:])}, nil

	case "send_joint":
		joint, err := intArg(cmd, "joint")
		if err != nil {
			return nil, err
		}
		if joint < int(LinearJaws) || joint > int(RotateBase) {
			return nil, errors.Wrapf(ErrInvalidAddress, "joint must be 1-%d, got %d", NumJoints, joint)
		}
		position, ok := cmd["position"].(float64)
		if !ok {
			return nil, errors.New("position must be a number")
		}
		if err := es.orch.SendJoint(DeviceID(joint), position); err != nil {
			return nil, err
		}
		return map[string]any{"joint": joint, "position": position}, nil

	case "status":
		st := es.orch.Status()
		return map[string]any{
			"enabled":          st.Enabled,
			"ticks":            st.Ticks,
			"requests_sent":    st.RequestsSent,
			"samples_acquired": st.SamplesAcquired,
			"sample_failures":  st.SampleFailures,
			"decode_errors":    st.DecodeErrors,
			"sink_failures":    st.SinkFailures,
			"all_joints_seen":  st.AllJointsSeen,
			"commanded":        st.Commanded,
			"preset":           es.selected,
			"presets":          len(es.presets),
		}, nil
	}

	return nil, fmt.Errorf("unknown command: %s", command)
}

// intArg reads a numeric DoCommand argument. JSON numbers arrive as float64.
func intArg(cmd map[string]any, key string) (int, error) {
	switch v := cmd[key].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	}
	return 0, fmt.Errorf("%s must be a number", key)
}

func floatList(vals []float64) []any {
	out := make([]any, 0, len(vals))
	for _, v := range vals {
		out = append(out, v)
	}
	return out
}

func deviceNames(ids []DeviceID) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// Close disables the experiment and releases its sinks.
func (es *experimentSensor) Close(ctx context.Context) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	err := es.orch.Close()
	if es.server != nil {
		if serr := es.server.Shutdown(ctx); serr != nil && err == nil {
			err = serr
		}
		es.server = nil
	}
	return err
}
