package pitch_compliance

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidAddress is returned for device IDs outside the joint range.
	ErrInvalidAddress = errors.New("invalid device address")
	// ErrUnsupportedKind is returned for packet kinds this controller cannot interpret.
	ErrUnsupportedKind = errors.New("unsupported packet kind")
	// ErrPresetIndex is returned when a preset index is out of range.
	ErrPresetIndex = errors.New("preset index out of range")
	// ErrNotConnected is returned by transports used before Connect.
	ErrNotConnected = errors.New("transport not connected")

	errNoSamples = errors.New("no samples returned")
)

// DecodeError reports a payload that does not have the length its kind requires.
type DecodeError struct {
	Device DeviceID
	Kind   PacketID
	Length int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s from %s: payload is %d bytes, want %d",
		e.Kind, e.Device, e.Length, FloatPayloadSize)
}

// SendFailedError reports that the packet for one joint could not be sent.
type SendFailedError struct {
	Address DeviceID
	Err     error
}

func (e *SendFailedError) Error() string {
	return fmt.Sprintf("send to %s (0x%02X) failed: %v", e.Address, uint8(e.Address), e.Err)
}

func (e *SendFailedError) Unwrap() error { return e.Err }

// AcquisitionError reports a failed DAQ acquisition.
type AcquisitionError struct {
	Channel string
	Err     error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Channel, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// TransportError reports a connect or disconnect failure of the arm link.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FrameError reports a malformed BPL frame.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "bad frame: " + e.Reason
}
