package pitch_compliance

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func TestApplySendsEveryJointInOrder(t *testing.T) {
	mt := newMockTransport()
	require.NoError(t, mt.Connect(t.Context()))
	c := NewCommandSender(mt, logging.NewTestLogger(t))

	cfg := ArmConfiguration{10, 1.57, 2.64, 0, 0.6, 3.04, 3.14}
	require.NoError(t, c.Apply(cfg))

	sent := mt.Sent()
	require.Len(t, sent, NumJoints)
	for i, p := range sent {
		assert.Equal(t, DeviceID(i+1), p.DeviceID())
		assert.Equal(t, PacketPosition, p.PacketID())
		v, err := Decode(p)
		require.NoError(t, err)
		assert.Equal(t, float32(cfg[i]), v)
	}
}

func TestApplyDoesNotScaleJaws(t *testing.T) {
	mt := newMockTransport()
	require.NoError(t, mt.Connect(t.Context()))
	c := NewCommandSender(mt, logging.NewTestLogger(t))

	require.NoError(t, c.Apply(ArmConfiguration{25}))
	v, err := Decode(mt.Sent()[0])
	require.NoError(t, err)
	assert.Equal(t, float32(25), v)
}

func TestApplyReportsPartialFailure(t *testing.T) {
	mt := newMockTransport()
	require.NoError(t, mt.Connect(t.Context()))
	mt.setSendErr(BendForearm, errMockIO)
	mt.setSendErr(RotateBase, errMockIO)
	c := NewCommandSender(mt, logging.NewTestLogger(t))

	err := c.Apply(HomeConfiguration)
	require.Error(t, err)
	assert.Equal(t, []DeviceID{BendForearm, RotateBase}, FailedJoints(err))
	assert.True(t, errors.Is(err, errMockIO))

	var sendErr *SendFailedError
	require.True(t, errors.As(err, &sendErr))
	assert.Equal(t, BendForearm, sendErr.Address)

	// every joint was attempted; nothing rolled back
	assert.Len(t, mt.Sent(), NumJoints)
}

func TestSendJoint(t *testing.T) {
	mt := newMockTransport()
	require.NoError(t, mt.Connect(t.Context()))
	c := NewCommandSender(mt, logging.NewTestLogger(t))

	require.NoError(t, c.SendJoint(BendShoulder, 1.1))
	sent := mt.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, BendShoulder, sent[0].DeviceID())

	assert.ErrorIs(t, c.SendJoint(AllJoints, 1), ErrInvalidAddress)

	mt.setSendErr(BendShoulder, errMockIO)
	err := c.SendJoint(BendShoulder, 1)
	assert.Equal(t, []DeviceID{BendShoulder}, FailedJoints(err))
}

func TestFailedJointsNil(t *testing.T) {
	assert.Empty(t, FailedJoints(nil))
	assert.Empty(t, FailedJoints(errMockIO))
}
