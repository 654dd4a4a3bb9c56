package pitch_compliance

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

const (
	// DefaultBaudRate is the Bravo serial link speed.
	DefaultBaudRate   = 115200
	serialReadTimeout = 50 * time.Millisecond
	readBufferSize    = 512
)

// SerialConfig selects the serial port of the arm.
type SerialConfig struct {
	Port     string `json:"port" yaml:"port"`
	BaudRate int    `json:"baud_rate,omitempty" yaml:"baud_rate"`
}

type portOpener func(name string, baud int) (io.ReadWriteCloser, error)

func openSerialPort(name string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// SerialTransport talks BPL over a serial port.
type SerialTransport struct {
	dispatcher
	cfg    SerialConfig
	logger logging.Logger
	open   portOpener

	mu      sync.Mutex
	port    io.ReadWriteCloser
	workers *utils.StoppableWorkers
	closing atomic.Bool
}

// NewSerialTransport returns an unconnected transport for cfg.
func NewSerialTransport(cfg SerialConfig, logger logging.Logger) *SerialTransport {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	return &SerialTransport{cfg: cfg, logger: logger, open: openSerialPort}
}

// Connect opens the port and starts the read loop. Connecting twice is a no-op.
func (t *SerialTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "connect", Err: err}
	}
	port, err := t.open(t.cfg.Port, t.cfg.BaudRate)
	if err != nil {
		return &TransportError{Op: "connect", Err: errors.Wrapf(err, "failed to open serial port %s", t.cfg.Port)}
	}
	t.port = port
	t.closing.Store(false)
	t.workers = utils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		readFrames(ctx, port, &t.dispatcher, &t.closing, t.logger)
	})
	t.logger.Infof("connected to arm on %s at %d baud", t.cfg.Port, t.cfg.BaudRate)
	return nil
}

// Disconnect closes the port and waits for the read loop to exit.
func (t *SerialTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	t.closing.Store(true)
	err := t.port.Close()
	t.workers.Stop()
	t.port, t.workers = nil, nil
	if err != nil {
		return &TransportError{Op: "disconnect", Err: err}
	}
	return nil
}

// Send writes one frame.
func (t *SerialTransport) Send(p Packet) error {
	frame, err := EncodeFrame(p)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return ErrNotConnected
	}
	if _, err := t.port.Write(frame); err != nil {
		return errors.Wrap(err, "serial write failed")
	}
	return nil
}

// AttachCallback registers fn for received packets of kind.
func (t *SerialTransport) AttachCallback(kind PacketID, fn func(Packet)) {
	t.attach(kind, fn)
}

// readFrames reads r until ctx is done or the reader fails, dispatching every decoded
// packet. Read must return periodically for cancellation to be observed.
func readFrames(ctx context.Context, r io.Reader, d *dispatcher, closing *atomic.Bool, logger logging.Logger) {
	var (
		buf      = make([]byte, readBufferSize)
		frames   frameBuffer
		badCount int
	)
	for ctx.Err() == nil {
		n, err := r.Read(buf)
		if n > 0 {
			packets, ferr := frames.feed(buf[:n])
			if ferr != nil {
				badCount++
				if badCount == 1 || badCount%100 == 0 {
					logger.Debugf("dropped malformed frames (%d so far): %v", badCount, ferr)
				}
			}
			for _, p := range packets {
				d.dispatch(p)
			}
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if !closing.Load() && ctx.Err() == nil {
				logger.Errorf("arm read loop stopped: %v", err)
			}
			return
		}
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
