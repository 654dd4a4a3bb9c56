// discovery.go
package pitch_compliance

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/discovery"
)

var BravoDiscoveryModel = resource.NewModel("devrel", "pitch-compliance", "discovery")

const probeTimeout = 300 * time.Millisecond

func init() {
	resource.RegisterService(
		discovery.API,
		BravoDiscoveryModel,
		resource.Registration[discovery.Service, *BravoDiscoveryConfig]{
			Constructor: newBravoDiscovery,
		})
}

// BravoDiscoveryConfig is the configuration for the discovery service
type BravoDiscoveryConfig struct {
	BaudRate int `json:"baud_rate,omitempty"`
}

// Validate ensures the config is valid
func (cfg *BravoDiscoveryConfig) Validate(path string) ([]string, []string, error) {
	return nil, nil, nil
}

// bravoDiscovery finds arms answering BPL on local serial ports
type bravoDiscovery struct {
	resource.Named
	resource.AlwaysRebuild
	resource.TriviallyCloseable
	baud   int
	logger logging.Logger
}

func newBravoDiscovery(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (discovery.Service, error) {
	cfg, err := resource.NativeConfig[*BravoDiscoveryConfig](conf)
	if err != nil {
		return nil, err
	}
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}

	return &bravoDiscovery{
		Named:  conf.ResourceName().AsNamed(),
		baud:   baud,
		logger: logger,
	}, nil
}

// DiscoverResources probes candidate serial ports and proposes an experiment sensor for
// every port where an arm answered.
func (dis *bravoDiscovery) DiscoverResources(ctx context.Context, extra map[string]any) ([]resource.Config, error) {
	candidates := CandidatePorts()
	dis.logger.Debugf("Probing %d candidate ports", len(candidates))

	var configs []resource.Config
	for _, portPath := range candidates {
		select {
		case <-ctx.Done():
			dis.logger.Info("Discovery cancelled")
			return configs, ctx.Err()
		default:
		}

		if !ProbeSerialArm(ctx, SerialConfig{Port: portPath, BaudRate: dis.baud}, probeTimeout, dis.logger) {
			continue
		}
		dis.logger.Infof("Discovered arm on %s", portPath)
		configs = append(configs, experimentConfigFor(portPath, dis.baud))
	}

	if len(configs) == 0 {
		dis.logger.Info("No arms discovered")
	}
	return configs, nil
}

func experimentConfigFor(portPath string, baud int) resource.Config {
	return resource.Config{
		Name:  "pitch-compliance-" + extractPortSuffix(portPath),
		API:   sensor.API,
		Model: ExperimentModel,
		Attributes: map[string]interface{}{
			"arm": map[string]interface{}{
				"transport": LinkSerial,
				"port":      portPath,
				"baud_rate": baud,
			},
			"daq":          map[string]interface{}{"type": DAQNone},
			"command_mode": string(CommandNone),
		},
	}
}

// ProbeSerialArm requests joint positions on a port and reports whether any position
// packet came back within timeout.
func ProbeSerialArm(ctx context.Context, cfg SerialConfig, timeout time.Duration, logger logging.Logger) bool {
	t := NewSerialTransport(cfg, logger)
	got := make(chan struct{}, 1)
	t.AttachCallback(PacketPosition, func(Packet) {
		select {
		case got <- struct{}{}:
		default:
		}
	})
	return probe(ctx, t, timeout, got, logger)
}

func probe(ctx context.Context, t Transport, timeout time.Duration, got <-chan struct{}, logger logging.Logger) bool {
	if err := t.Connect(ctx); err != nil {
		logger.Debugf("probe: %v", err)
		return false
	}
	defer t.Disconnect()

	req, err := NewRequest(AllJoints, PacketPosition)
	if err != nil {
		return false
	}
	if err := t.Send(req); err != nil {
		logger.Debugf("probe: %v", err)
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-got:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// CandidatePorts lists local serial ports that look like USB serial adapters.
func CandidatePorts() []string {
	return filterCandidatePorts(enumerateSerialPorts())
}

// filterCandidatePorts filters serial ports by platform-specific naming patterns
func filterCandidatePorts(ports []string) []string {
	candidates := []string{}
	for _, port := range ports {
		if isCandidatePort(port) {
			candidates = append(candidates, port)
		}
	}
	return candidates
}

var candidatePrefixes = []string{
	// Linux
	"/dev/ttyUSB", "/dev/ttyACM",
	// macOS
	"/dev/tty.usbmodem", "/dev/tty.usbserial", "/dev/cu.usbmodem", "/dev/cu.usbserial",
	// Windows
	"COM",
}

func isCandidatePort(port string) bool {
	for _, prefix := range candidatePrefixes {
		if strings.HasPrefix(port, prefix) {
			return true
		}
	}
	return false
}

// extractPortSuffix extracts a friendly suffix from port path for naming
// /dev/ttyUSB0 -> "ttyUSB0"
// /dev/tty.usbmodem123 -> "usbmodem123"
func extractPortSuffix(portPath string) string {
	base := filepath.Base(portPath)
	if strings.HasPrefix(base, "tty.usb") {
		return strings.TrimPrefix(base, "tty.")
	}
	if strings.HasPrefix(base, "cu.usb") {
		return strings.TrimPrefix(base, "cu.")
	}
	return base
}

// PortInfo describes one enumerated serial port.
type PortInfo struct {
	Name      string
	IsUSB     bool
	VID       string
	PID       string
	Serial    string
	Candidate bool
}

// ListPorts returns every serial port with its USB details.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	out := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		out = append(out, PortInfo{
			Name:      p.Name,
			IsUSB:     p.IsUSB,
			VID:       p.VID,
			PID:       p.PID,
			Serial:    p.SerialNumber,
			Candidate: isCandidatePort(p.Name),
		})
	}
	return out, nil
}

// enumerateSerialPorts returns a list of all serial ports on the system
func enumerateSerialPorts() []string {
	ports, err := ListPorts()
	if err != nil {
		return []string{}
	}

	var portPaths []string
	for _, port := range ports {
		portPaths = append(portPaths, port.Name)
	}
	return portPaths
}
