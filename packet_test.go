package pitch_compliance

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []float32{0, 1.57, -3.14159, 1e-9, math.MaxFloat32, float32(math.Inf(-1))}
	for i := 0; i < NumJoints; i++ {
		id, err := JointID(i)
		require.NoError(t, err)
		for _, v := range values {
			p, err := Encode(id, PacketPosition, v)
			require.NoError(t, err)
			assert.Equal(t, id, p.DeviceID())
			assert.Equal(t, PacketPosition, p.PacketID())
			assert.Len(t, p.Data(), FloatPayloadSize)

			got, err := Decode(p)
			require.NoError(t, err)
			assert.Equal(t, math.Float32bits(v), math.Float32bits(got))
		}
	}
}

func TestDecodePreservesNaNBits(t *testing.T) {
	nan := math.Float32frombits(0x7FC00001)
	p, err := Encode(BendElbow, PacketVelocity, nan)
	require.NoError(t, err)
	got, err := Decode(p)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x7FC00001), math.Float32bits(got))
}

func TestEncodeLittleEndian(t *testing.T) {
	p, err := Encode(RotateBase, PacketPosition, 1.0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3F}, p.Data())
}

func TestEncodeRejectsInvalidAddress(t *testing.T) {
	for _, id := range []DeviceID{0x00, 0x08, 0x42, AllJoints} {
		_, err := Encode(id, PacketPosition, 1)
		assert.ErrorIs(t, err, ErrInvalidAddress, "device %s", id)
	}
}

func TestEncodeRejectsUnsupportedKind(t *testing.T) {
	for _, kind := range []PacketID{PacketMode, PacketRequest, 0x7F} {
		_, err := Encode(LinearJaws, kind, 1)
		assert.ErrorIs(t, err, ErrUnsupportedKind, "kind %s", kind)
	}
}

func TestDecodeWrongLength(t *testing.T) {
	for _, n := range []int{0, 3, 5, 8} {
		p := NewPacket(BendForearm, PacketPosition, make([]byte, n))
		_, err := Decode(p)
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr), "length %d", n)
		assert.Equal(t, n, decodeErr.Length)
		assert.Equal(t, BendForearm, decodeErr.Device)
	}
}

func TestPacketIsImmutable(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	p := NewPacket(LinearJaws, PacketPosition, raw)
	raw[0] = 0xFF
	assert.Equal(t, byte(1), p.Data()[0])

	data := p.Data()
	data[1] = 0xFF
	assert.Equal(t, byte(2), p.Data()[1])
}

func TestDeviceIndexBijection(t *testing.T) {
	seen := map[int]bool{}
	for id := LinearJaws; id <= RotateBase; id++ {
		idx, err := id.Index()
		require.NoError(t, err)
		back, err := JointID(idx)
		require.NoError(t, err)
		assert.Equal(t, id, back)
		seen[idx] = true
	}
	assert.Len(t, seen, NumJoints)

	_, err := AllJoints.Index()
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = JointID(NumJoints)
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = JointID(-1)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestNewRequest(t *testing.T) {
	p, err := NewRequest(AllJoints, PacketPosition)
	require.NoError(t, err)
	assert.Equal(t, AllJoints, p.DeviceID())
	assert.Equal(t, PacketRequest, p.PacketID())
	assert.Equal(t, []byte{byte(PacketPosition)}, p.Data())

	p, err = NewRequest(BendShoulder, PacketPosition, PacketVelocity)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x02}, p.Data())

	_, err = NewRequest(0x09, PacketPosition)
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = NewRequest(AllJoints, PacketRequest)
	assert.ErrorIs(t, err, ErrUnsupportedKind)
	_, err = NewRequest(AllJoints)
	assert.Error(t, err)
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "linear_jaws", LinearJaws.String())
	assert.Equal(t, "all_joints", AllJoints.String())
	assert.Equal(t, "device(0x42)", DeviceID(0x42).String())
	assert.Equal(t, "POSITION", PacketPosition.String())
	assert.Equal(t, "PACKET(0x7F)", PacketID(0x7F).String())
}
