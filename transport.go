package pitch_compliance

import (
	"context"
	"sync"
)

// Sender transmits packets to the arm.
type Sender interface {
	Send(p Packet) error
}

// Transport is a bidirectional link to the arm. Callbacks may run on a goroutine owned by
// the transport and must not block.
type Transport interface {
	Sender
	Connect(ctx context.Context) error
	Disconnect() error
	AttachCallback(kind PacketID, fn func(Packet))
}

// dispatcher routes received packets to the callbacks attached for their kind.
type dispatcher struct {
	mu        sync.RWMutex
	callbacks map[PacketID][]func(Packet)
}

func (d *dispatcher) attach(kind PacketID, fn func(Packet)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.callbacks == nil {
		d.callbacks = make(map[PacketID][]func(Packet))
	}
	d.callbacks[kind] = append(d.callbacks[kind], fn)
}

func (d *dispatcher) dispatch(p Packet) {
	d.mu.RLock()
	fns := d.callbacks[p.PacketID()]
	d.mu.RUnlock()
	for _, fn := range fns {
		fn(p)
	}
}
