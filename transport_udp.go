package pitch_compliance

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// DefaultUDPAddress is the factory address of the Bravo ethernet interface.
const DefaultUDPAddress = "192.168.2.3:6789"

const udpReadTimeout = 50 * time.Millisecond

// UDPTransport talks BPL over UDP. Every datagram carries one or more frames.
type UDPTransport struct {
	dispatcher
	address string
	logger  logging.Logger

	mu      sync.Mutex
	conn    *net.UDPConn
	workers *utils.StoppableWorkers
	closing atomic.Bool
}

// NewUDPTransport returns an unconnected transport for address. An empty address selects
// DefaultUDPAddress.
func NewUDPTransport(address string, logger logging.Logger) *UDPTransport {
	if address == "" {
		address = DefaultUDPAddress
	}
	return &UDPTransport{address: address, logger: logger}
}

// Connect resolves the arm address and starts the read loop.
func (t *UDPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}
	raddr, err := net.ResolveUDPAddr("udp", t.address)
	if err != nil {
		return &TransportError{Op: "connect", Err: errors.Wrapf(err, "failed to resolve %s", t.address)}
	}
	var d net.Dialer
	c, err := d.DialContext(ctx, "udp", raddr.String())
	if err != nil {
		return &TransportError{Op: "connect", Err: errors.Wrapf(err, "failed to dial %s", t.address)}
	}
	conn := c.(*net.UDPConn)
	t.conn = conn
	t.closing.Store(false)
	t.workers = utils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		readFrames(ctx, deadlineReader{conn}, &t.dispatcher, &t.closing, t.logger)
	})
	t.logger.Infof("connected to arm at udp://%s", t.address)
	return nil
}

// Disconnect stops the read loop and closes the socket.
func (t *UDPTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	t.closing.Store(true)
	t.workers.Stop()
	err := t.conn.Close()
	t.conn, t.workers = nil, nil
	if err != nil {
		return &TransportError{Op: "disconnect", Err: err}
	}
	return nil
}

// Send writes one frame as a datagram.
func (t *UDPTransport) Send(p Packet) error {
	frame, err := EncodeFrame(p)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrNotConnected
	}
	if _, err := t.conn.Write(frame); err != nil {
		return errors.Wrap(err, "udp write failed")
	}
	return nil
}

// AttachCallback registers fn for received packets of kind.
func (t *UDPTransport) AttachCallback(kind PacketID, fn func(Packet)) {
	t.attach(kind, fn)
}

// LocalAddr returns the local socket address while connected.
func (t *UDPTransport) LocalAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

// deadlineReader bounds every read so the read loop can observe cancellation.
type deadlineReader struct {
	conn *net.UDPConn
}

func (r deadlineReader) Read(b []byte) (int, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(udpReadTimeout)); err != nil {
		return 0, err
	}
	n, err := r.conn.Read(b)
	if errors.Is(err, syscall.ECONNREFUSED) {
		// the arm is not listening yet
		return n, nil
	}
	return n, err
}
