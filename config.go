package pitch_compliance

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"gopkg.in/yaml.v3"
)

// Arm link types.
const (
	LinkUDP    = "udp"
	LinkSerial = "serial"
)

// DAQ types.
const (
	DAQSerialADC = "serial_adc"
	DAQSensor    = "sensor"
	// DAQNone logs joints only.
	DAQNone = "none"
)

// ArmLinkConfig selects how the arm is reached.
type ArmLinkConfig struct {
	Transport string `json:"transport,omitempty" yaml:"transport"`
	Address   string `json:"address,omitempty" yaml:"address"`
	Port      string `json:"port,omitempty" yaml:"port"`
	BaudRate  int    `json:"baud_rate,omitempty" yaml:"baud_rate"`
}

// DAQConfig selects the potentiometer input.
type DAQConfig struct {
	Type       string  `json:"type,omitempty" yaml:"type"`
	Port       string  `json:"port,omitempty" yaml:"port"`
	BaudRate   int     `json:"baud_rate,omitempty" yaml:"baud_rate"`
	Sensor     string  `json:"sensor,omitempty" yaml:"sensor"`
	Channel    string  `json:"channel,omitempty" yaml:"channel"`
	NumSamples int     `json:"num_samples,omitempty" yaml:"num_samples"`
	PeriodMs   float64 `json:"period_ms,omitempty" yaml:"period_ms"`
}

// LogConfig configures the CSV log.
type LogConfig struct {
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled"`
	Dir      string `json:"dir,omitempty" yaml:"dir"`
	File     string `json:"file,omitempty" yaml:"file"`
}

// ExperimentConfig is the configuration shared by the module and the CLI.
type ExperimentConfig struct {
	Arm ArmLinkConfig `json:"arm" yaml:"arm"`
	DAQ DAQConfig     `json:"daq" yaml:"daq"`

	PresetFile    string         `json:"preset_file,omitempty" yaml:"preset_file"`
	PresetOptions *PresetOptions `json:"preset_options,omitempty" yaml:"preset_options"`
	Preset        int            `json:"preset,omitempty" yaml:"preset"`

	CommandMode     CommandMode `json:"command_mode,omitempty" yaml:"command_mode"`
	CommandDelaySec float64     `json:"command_delay_sec,omitempty" yaml:"command_delay_sec"`
	SettleDelaySec  float64     `json:"settle_delay_sec,omitempty" yaml:"settle_delay_sec"`
	TickPeriodMs    float64     `json:"tick_period_ms,omitempty" yaml:"tick_period_ms"`
	PollPeriodMs    float64     `json:"poll_period_ms,omitempty" yaml:"poll_period_ms"`

	Pitch  *PitchModel   `json:"pitch,omitempty" yaml:"pitch"`
	Log    LogConfig     `json:"log" yaml:"log"`
	Influx *InfluxConfig `json:"influx,omitempty" yaml:"influx"`
	// PublishAddr is the listen address of the websocket record stream, e.g. ":8765".
	PublishAddr string `json:"publish_addr,omitempty" yaml:"publish_addr"`
}

// DefaultExperimentConfig returns a config with every default filled in.
func DefaultExperimentConfig() ExperimentConfig {
	return ExperimentConfig{
		Arm:         ArmLinkConfig{Transport: LinkUDP, Address: DefaultUDPAddress},
		DAQ:         DAQConfig{Type: DAQSerialADC, Channel: DefaultChannel, NumSamples: 1},
		CommandMode: CommandOnce,
	}
}

// LoadExperimentConfig reads a YAML config file on top of the defaults and validates it.
func LoadExperimentConfig(path string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	cfg := DefaultExperimentConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config YAML")
	}
	if _, _, err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills defaults and reports the sensor dependency when the DAQ is a sensor.
func (cfg *ExperimentConfig) Validate(path string) ([]string, []string, error) {
	switch cfg.Arm.Transport {
	case "":
		cfg.Arm.Transport = LinkUDP
		fallthrough
	case LinkUDP:
		if cfg.Arm.Address == "" {
			cfg.Arm.Address = DefaultUDPAddress
		}
	case LinkSerial:
		if cfg.Arm.Port == "" {
			return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "arm.port")
		}
	default:
		return nil, nil, fmt.Errorf("%s: unknown arm transport %q", path, cfg.Arm.Transport)
	}

	var deps []string
	switch cfg.DAQ.Type {
	case "":
		cfg.DAQ.Type = DAQSerialADC
		fallthrough
	case DAQSerialADC:
		if cfg.DAQ.Port == "" {
			return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "daq.port")
		}
	case DAQSensor:
		if cfg.DAQ.Sensor == "" {
			return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "daq.sensor")
		}
		deps = append(deps, cfg.DAQ.Sensor)
	case DAQNone:
	default:
		return nil, nil, fmt.Errorf("%s: unknown daq type %q", path, cfg.DAQ.Type)
	}
	if cfg.DAQ.Channel == "" {
		cfg.DAQ.Channel = DefaultChannel
	}
	if cfg.DAQ.NumSamples <= 0 {
		cfg.DAQ.NumSamples = 1
	}

	switch cfg.CommandMode {
	case "":
		cfg.CommandMode = CommandOnce
	case CommandNone, CommandOnce, CommandContinuous:
	default:
		return nil, nil, fmt.Errorf("%s: unknown command_mode %q", path, cfg.CommandMode)
	}
	if cfg.PresetOptions == nil {
		opts := DefaultPresetOptions
		cfg.PresetOptions = &opts
	}
	if cfg.Preset < 0 {
		return nil, nil, fmt.Errorf("%s: preset must be non-negative", path)
	}
	if cfg.Log.Dir == "" {
		cfg.Log.Dir = "logs"
	}
	return deps, nil, nil
}

// ResolvePath makes a relative path absolute under VIAM_MODULE_DATA, or leaves it alone
// when the variable is unset.
func ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if dir := os.Getenv("VIAM_MODULE_DATA"); dir != "" {
		return filepath.Join(dir, p)
	}
	return p
}

// LoadPresets loads the configured preset table.
func (cfg *ExperimentConfig) LoadPresets() (Presets, error) {
	opts := DefaultPresetOptions
	if cfg.PresetOptions != nil {
		opts = *cfg.PresetOptions
	}
	return LoadPresets(ResolvePath(cfg.PresetFile), opts)
}

// OrchestratorConfig converts the config for target.
func (cfg *ExperimentConfig) OrchestratorConfig(target ArmConfiguration) OrchestratorConfig {
	oc := OrchestratorConfig{
		TickPeriod:   millis(cfg.TickPeriodMs),
		SettleDelay:  seconds(cfg.SettleDelaySec),
		CommandDelay: seconds(cfg.CommandDelaySec),
		CommandMode:  cfg.CommandMode,
		Target:       target,
		PollPeriod:   millis(cfg.PollPeriodMs),
		Sampler: SamplerConfig{
			Channel:    cfg.DAQ.Channel,
			NumSamples: cfg.DAQ.NumSamples,
			Period:     millis(cfg.DAQ.PeriodMs),
		},
	}
	if cfg.Pitch != nil {
		oc.Pitch = *cfg.Pitch
	}
	return oc
}

// NewTransport builds the configured arm link.
func (cfg *ExperimentConfig) NewTransport(logger logging.Logger) (Transport, error) {
	switch cfg.Arm.Transport {
	case LinkSerial:
		return NewSerialTransport(SerialConfig{Port: cfg.Arm.Port, BaudRate: cfg.Arm.BaudRate}, logger), nil
	case LinkUDP, "":
		return NewUDPTransport(cfg.Arm.Address, logger), nil
	}
	return nil, fmt.Errorf("unknown arm transport %q", cfg.Arm.Transport)
}

// NewDAQ builds the configured DAQ. deps is only consulted for a sensor DAQ.
func (cfg *ExperimentConfig) NewDAQ(deps resource.Dependencies) (DAQ, error) {
	switch cfg.DAQ.Type {
	case DAQSerialADC, "":
		return NewSerialADC(SerialADCConfig{Port: cfg.DAQ.Port, BaudRate: cfg.DAQ.BaudRate}), nil
	case DAQSensor:
		s, err := resource.FromDependencies[sensor.Sensor](deps, sensor.Named(cfg.DAQ.Sensor))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get DAQ sensor %s", cfg.DAQ.Sensor)
		}
		return NewSensorDAQ(s), nil
	case DAQNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown daq type %q", cfg.DAQ.Type)
}

// NewSinks opens the configured record sinks. On error every sink opened so far is closed.
func (cfg *ExperimentConfig) NewSinks(logger logging.Logger) ([]RecordSink, error) {
	var sinks []RecordSink
	closeAll := func() {
		for _, s := range sinks {
			s.Close()
		}
	}
	if !cfg.Log.Disabled {
		csvSink, err := NewCSVSink(ResolvePath(cfg.Log.Dir), cfg.Log.File)
		if err != nil {
			return nil, err
		}
		logger.Infof("logging records to %s", csvSink.Path())
		sinks = append(sinks, csvSink)
	}
	if cfg.Influx != nil {
		influx, err := NewInfluxSink(*cfg.Influx)
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, influx)
	}
	return sinks, nil
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
