package pitch_compliance

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func listenArm(t *testing.T) *net.UDPConn {
	t.Helper()
	arm, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { arm.Close() })
	return arm
}

func TestUDPTransportRoundTrip(t *testing.T) {
	arm := listenArm(t)
	tr := NewUDPTransport(arm.LocalAddr().String(), logging.NewTestLogger(t))
	defer tr.Disconnect()

	got := make(chan Packet, NumJoints)
	tr.AttachCallback(PacketPosition, func(p Packet) { got <- p })
	require.NoError(t, tr.Connect(t.Context()))
	require.NotNil(t, tr.LocalAddr())

	req, err := NewRequest(AllJoints, PacketPosition)
	require.NoError(t, err)
	require.NoError(t, tr.Send(req))

	require.NoError(t, arm.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 256)
	n, from, err := arm.ReadFromUDP(buf)
	require.NoError(t, err)
	received, err := DecodeFrame(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, PacketRequest, received.PacketID())
	assert.Equal(t, AllJoints, received.DeviceID())

	// one datagram with two frames
	var reply []byte
	for _, id := range []DeviceID{LinearJaws, RotateBase} {
		p, err := Encode(id, PacketPosition, 2.5)
		require.NoError(t, err)
		frame, err := EncodeFrame(p)
		require.NoError(t, err)
		reply = append(reply, frame...)
	}
	_, err = arm.WriteToUDP(reply, from)
	require.NoError(t, err)

	for _, want := range []DeviceID{LinearJaws, RotateBase} {
		select {
		case p := <-got:
			assert.Equal(t, want, p.DeviceID())
		case <-time.After(time.Second):
			t.Fatalf("no packet for %s", want)
		}
	}
}

func TestUDPTransportLifecycle(t *testing.T) {
	arm := listenArm(t)
	tr := NewUDPTransport(arm.LocalAddr().String(), logging.NewTestLogger(t))

	p, err := Encode(BendElbow, PacketPosition, 0.3)
	require.NoError(t, err)
	assert.ErrorIs(t, tr.Send(p), ErrNotConnected)
	assert.Nil(t, tr.LocalAddr())
	assert.NoError(t, tr.Disconnect())

	require.NoError(t, tr.Connect(t.Context()))
	require.NoError(t, tr.Connect(t.Context()))
	assert.NoError(t, tr.Disconnect())
	assert.ErrorIs(t, tr.Send(p), ErrNotConnected)

	// reconnect after disconnect
	require.NoError(t, tr.Connect(t.Context()))
	assert.NoError(t, tr.Send(p))
	assert.NoError(t, tr.Disconnect())
}

func TestUDPTransportBadAddress(t *testing.T) {
	tr := NewUDPTransport("not-an-address", logging.NewTestLogger(t))
	err := tr.Connect(t.Context())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "connect", te.Op)
}

func TestUDPTransportDefaultAddress(t *testing.T) {
	assert.Equal(t, DefaultUDPAddress, NewUDPTransport("", logging.NewTestLogger(t)).address)
}
