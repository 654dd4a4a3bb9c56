package pitch_compliance

import (
	"context"
	"errors"
	"sync"
)

// mockTransport records sent packets. When arm is set it behaves like a Bravo: position
// commands move the simulated joints and position requests are answered on the callback.
type mockTransport struct {
	dispatcher

	mu          sync.Mutex
	connected   bool
	connectErr  error
	sendErr     map[DeviceID]error
	sent        []Packet
	connects    int
	disconnects int
	arm         *fakeArm
}

func newMockTransport() *mockTransport {
	return &mockTransport{sendErr: map[DeviceID]error{}}
}

func (m *mockTransport) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	if m.connectErr != nil {
		return &TransportError{Op: "connect", Err: m.connectErr}
	}
	m.connected = true
	return nil
}

func (m *mockTransport) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
	m.connected = false
	return nil
}

func (m *mockTransport) Send(p Packet) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.sent = append(m.sent, p)
	err := m.sendErr[p.DeviceID()]
	arm := m.arm
	m.mu.Unlock()

	if err == nil && arm != nil {
		for _, reply := range arm.handle(p) {
			m.dispatch(reply)
		}
	}
	return err
}

// setSendErr makes sends to id fail with err; a nil err clears it.
func (m *mockTransport) setSendErr(id DeviceID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.sendErr, id)
		return
	}
	m.sendErr[id] = err
}

func (m *mockTransport) AttachCallback(kind PacketID, fn func(Packet)) {
	m.attach(kind, fn)
}

func (m *mockTransport) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockTransport) Sent() []Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Packet(nil), m.sent...)
}

func (m *mockTransport) sentOfKind(kind PacketID) []Packet {
	var out []Packet
	for _, p := range m.Sent() {
		if p.PacketID() == kind {
			out = append(out, p)
		}
	}
	return out
}

// fakeArm reports joint positions in wire units: the jaws in millimetres.
type fakeArm struct {
	mu        sync.Mutex
	positions [NumJoints]float32
}

func (a *fakeArm) handle(p Packet) []Packet {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch p.PacketID() {
	case PacketPosition:
		if v, err := Decode(p); err == nil {
			a.positions[p.DeviceID()-1] = v
		}
		return nil
	case PacketRequest:
		var replies []Packet
		for i, v := range a.positions {
			id, _ := JointID(i)
			reply, _ := Encode(id, PacketPosition, v)
			replies = append(replies, reply)
		}
		return replies
	}
	return nil
}

// mockDAQ returns the same samples on every read.
type mockDAQ struct {
	mu      sync.Mutex
	samples []float64
	openErr error
	readErr error
	opened  int
	closed  int
	reads   int
	block   chan struct{}
}

func (d *mockDAQ) OpenTask(ctx context.Context, channel string) (AnalogTask, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opened++
	return &mockTask{daq: d}, nil
}

func (d *mockDAQ) set(samples []float64, readErr error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples = samples
	d.readErr = readErr
}

func (d *mockDAQ) counts() (opened, closed, reads int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened, d.closed, d.reads
}

type mockTask struct {
	daq *mockDAQ
}

func (t *mockTask) Read(ctx context.Context, n int) ([]float64, error) {
	t.daq.mu.Lock()
	block := t.daq.block
	t.daq.mu.Unlock()
	if block != nil {
		<-block
	}

	t.daq.mu.Lock()
	defer t.daq.mu.Unlock()
	t.daq.reads++
	if t.daq.readErr != nil {
		return nil, t.daq.readErr
	}
	return append([]float64(nil), t.daq.samples...), nil
}

func (t *mockTask) Close() error {
	t.daq.mu.Lock()
	defer t.daq.mu.Unlock()
	t.daq.closed++
	return nil
}

var errMockIO = errors.New("mock i/o failure")

// memorySink keeps every record appended to it.
type memorySink struct {
	mu      sync.Mutex
	records []LogRecord
	err     error
	closed  bool
}

func (s *memorySink) Append(r LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return s.err
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) Records() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogRecord(nil), s.records...)
}
