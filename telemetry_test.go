package pitch_compliance

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func positionPacket(t *testing.T, id DeviceID, v float32) Packet {
	t.Helper()
	p, err := Encode(id, PacketPosition, v)
	require.NoError(t, err)
	return p
}

func TestOnPositionPacketStoresAtIndex(t *testing.T) {
	table := &JointTable{}
	h := NewTelemetryHandler(table, logging.NewTestLogger(t))

	require.NoError(t, h.OnPositionPacket(positionPacket(t, BendElbow, 1.25)))
	got, ok := table.Get(4)
	assert.True(t, ok)
	assert.InDelta(t, 1.25, got, 1e-7)

	for i := 0; i < NumJoints; i++ {
		if i == 4 {
			continue
		}
		_, ok := table.Get(i)
		assert.False(t, ok, "slot %d", i)
	}
}

func TestOnPositionPacketScalesJawOnly(t *testing.T) {
	table := &JointTable{}
	h := NewTelemetryHandler(table, logging.NewTestLogger(t))

	require.NoError(t, h.OnPositionPacket(positionPacket(t, LinearJaws, 42)))
	require.NoError(t, h.OnPositionPacket(positionPacket(t, RotateEndEffector, 42)))

	jaw, _ := table.Get(0)
	other, _ := table.Get(1)
	assert.InDelta(t, 0.042, jaw, 1e-9)
	assert.InDelta(t, 42, other, 1e-9)

	// a second packet is scaled from its own raw value, never from the stored one
	require.NoError(t, h.OnPositionPacket(positionPacket(t, LinearJaws, 42)))
	jaw, _ = table.Get(0)
	assert.InDelta(t, 0.042, jaw, 1e-9)
}

func TestOnPositionPacketRejectsMalformed(t *testing.T) {
	table := &JointTable{}
	h := NewTelemetryHandler(table, logging.NewTestLogger(t))
	require.NoError(t, h.OnPositionPacket(positionPacket(t, BendShoulder, 2)))

	err := h.OnPositionPacket(NewPacket(BendShoulder, PacketPosition, []byte{1, 2, 3}))
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	got, _ := table.Get(5)
	assert.InDelta(t, 2, got, 1e-9)

	err = h.OnPositionPacket(NewPacket(AllJoints, PacketPosition, []byte{0, 0, 0, 0}))
	assert.ErrorIs(t, err, ErrInvalidAddress)

	err = h.OnPositionPacket(NewPacket(BendShoulder, PacketVelocity, []byte{0, 0, 0, 0}))
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestCallbackCountsErrors(t *testing.T) {
	table := &JointTable{}
	h := NewTelemetryHandler(table, logging.NewTestLogger(t))
	cb := h.Callback()

	cb(NewPacket(RotateBase, PacketPosition, []byte{1}))
	cb(positionPacket(t, RotateBase, 3))
	assert.Equal(t, uint64(1), h.DecodeErrors())
	got, ok := table.Get(6)
	assert.True(t, ok)
	assert.InDelta(t, 3, got, 1e-9)
}

func TestFreezeStopsWrites(t *testing.T) {
	table := &JointTable{}
	h := NewTelemetryHandler(table, logging.NewTestLogger(t))

	h.Freeze()
	require.NoError(t, h.OnPositionPacket(positionPacket(t, RotateBase, 3)))
	_, ok := table.Get(6)
	assert.False(t, ok)

	h.Thaw()
	require.NoError(t, h.OnPositionPacket(positionPacket(t, RotateBase, 3)))
	_, ok = table.Get(6)
	assert.True(t, ok)
}

func TestTableSlotsNeverTear(t *testing.T) {
	table := &JointTable{}
	h := NewTelemetryHandler(table, logging.NewTestLogger(t))
	a, b := float32(1.5), float32(-2.75)
	packets := []Packet{positionPacket(t, BendForearm, a), positionPacket(t, BendForearm, b)}

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			h.OnPositionPacket(packets[i%2])
		}
	}()

	for i := 0; i < 10000; i++ {
		got, ok := table.Get(2)
		if !ok {
			continue
		}
		if got != float64(a) && got != float64(b) {
			t.Fatalf("torn read: %v", got)
		}
	}
	close(done)
	wg.Wait()
}
