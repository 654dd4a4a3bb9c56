package pitch_compliance

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const adcReplyTimeout = time.Second

// SerialADCConfig selects the serial port of a line-protocol ADC bridge.
type SerialADCConfig struct {
	Port     string `json:"port" yaml:"port"`
	BaudRate int    `json:"baud_rate,omitempty" yaml:"baud_rate"`
}

// SerialADC is a DAQ behind a microcontroller that answers "READ <channel> <n>" with one
// line of comma separated volts. Each task owns the port only while it is open.
type SerialADC struct {
	cfg  SerialADCConfig
	open portOpener
}

// NewSerialADC returns a DAQ for cfg.
func NewSerialADC(cfg SerialADCConfig) *SerialADC {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	return &SerialADC{cfg: cfg, open: openSerialPort}
}

// OpenTask opens the port.
func (a *SerialADC) OpenTask(ctx context.Context, channel string) (AnalogTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	port, err := a.open(a.cfg.Port, a.cfg.BaudRate)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open ADC port %s", a.cfg.Port)
	}
	return &serialADCTask{port: port, channel: channel}, nil
}

type serialADCTask struct {
	port    io.ReadWriteCloser
	channel string
}

func (t *serialADCTask) Read(ctx context.Context, samples int) ([]float64, error) {
	if _, err := fmt.Fprintf(t.port, "READ %s %d\n", t.channel, samples); err != nil {
		return nil, errors.Wrap(err, "failed to send ADC request")
	}
	line, err := readLine(ctx, t.port, adcReplyTimeout)
	if err != nil {
		return nil, err
	}
	return parseVolts(line)
}

func (t *serialADCTask) Close() error {
	return t.port.Close()
}

// readLine reads up to a newline. The port is expected to return periodically from Read
// with no data so ctx and the timeout are honored.
func readLine(ctx context.Context, r io.Reader, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var (
		line bytes.Buffer
		buf  [64]byte
	)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", errors.New("timed out waiting for ADC reply")
		}
		n, err := r.Read(buf[:])
		if i := bytes.IndexByte(buf[:n], '\n'); i >= 0 {
			line.Write(buf[:i])
			return strings.TrimSpace(line.String()), nil
		}
		line.Write(buf[:n])
		if err != nil && !isTimeout(err) {
			return "", errors.Wrap(err, "failed to read ADC reply")
		}
	}
}

// parseVolts parses "v1,v2,...". An "ERR <reason>" reply becomes an error.
func parseVolts(line string) ([]float64, error) {
	if reason, ok := strings.CutPrefix(line, "ERR"); ok {
		return nil, errors.Errorf("ADC error: %s", strings.TrimSpace(reason))
	}
	if line == "" {
		return nil, errNoSamples
	}
	fields := strings.Split(line, ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad sample %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}
