package pitch_compliance

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// JawScale converts the linear jaws' native millimetres to metres.
const JawScale = 0.001

// TelemetryHandler turns POSITION packets into joint table updates. It is the only writer
// of the table and the only place the jaw unit conversion happens.
type TelemetryHandler struct {
	table  *JointTable
	logger logging.Logger

	mu     sync.RWMutex
	frozen bool

	decodeErrors atomic.Uint64
}

// NewTelemetryHandler creates a handler writing into table.
func NewTelemetryHandler(table *JointTable, logger logging.Logger) *TelemetryHandler {
	return &TelemetryHandler{table: table, logger: logger}
}

// OnPositionPacket stores the position carried by p. Malformed packets leave the table
// untouched. After Freeze, packets are dropped without error.
func (h *TelemetryHandler) OnPositionPacket(p Packet) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.frozen {
		return nil
	}

	if p.PacketID() != PacketPosition {
		return errors.Wrapf(ErrUnsupportedKind, "telemetry handler got %s", p.PacketID())
	}
	index, err := p.DeviceID().Index()
	if err != nil {
		return err
	}
	value, err := Decode(p)
	if err != nil {
		return err
	}

	position := float64(value)
	if p.DeviceID() == LinearJaws {
		position *= JawScale
	}
	h.table.Set(index, position)
	return nil
}

// Callback adapts OnPositionPacket to a transport callback, logging decode failures.
func (h *TelemetryHandler) Callback() func(Packet) {
	return func(p Packet) {
		if err := h.OnPositionPacket(p); err != nil {
			h.decodeErrors.Add(1)
			h.logger.Debugf("dropping telemetry %v: %v", p, err)
		}
	}
}

// DecodeErrors returns how many packets the callback has rejected.
func (h *TelemetryHandler) DecodeErrors() uint64 {
	return h.decodeErrors.Load()
}

// Freeze waits for in-flight packets to finish and ignores every packet after it returns.
func (h *TelemetryHandler) Freeze() {
	h.mu.Lock()
	h.frozen = true
	h.mu.Unlock()
}

// Thaw re-enables table updates after Freeze.
func (h *TelemetryHandler) Thaw() {
	h.mu.Lock()
	h.frozen = false
	h.mu.Unlock()
}
