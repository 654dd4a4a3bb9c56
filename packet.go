package pitch_compliance

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// DeviceID addresses a single joint of the Bravo 7, or all of them at once.
type DeviceID uint8

// Bravo 7 device IDs. The end effector is joint 1 and the base is joint 7.
const (
	LinearJaws        DeviceID = 0x01
	RotateEndEffector DeviceID = 0x02
	BendForearm       DeviceID = 0x03
	RotateElbow       DeviceID = 0x04
	BendElbow         DeviceID = 0x05
	BendShoulder      DeviceID = 0x06
	RotateBase        DeviceID = 0x07
	AllJoints         DeviceID = 0xFF
)

// NumJoints is the number of individually addressable joints.
const NumJoints = 7

// IsJoint reports whether id addresses exactly one joint.
func (id DeviceID) IsJoint() bool {
	return id >= LinearJaws && id <= RotateBase
}

// Index returns the joint table index for id.
func (id DeviceID) Index() (int, error) {
	if !id.IsJoint() {
		return 0, errors.Wrapf(ErrInvalidAddress, "device 0x%02X", uint8(id))
	}
	return int(id) - 1, nil
}

func (id DeviceID) String() string {
	switch id {
	case LinearJaws:
		return "linear_jaws"
	case RotateEndEffector:
		return "rotate_end_effector"
	case BendForearm:
		return "bend_forearm"
	case RotateElbow:
		return "rotate_elbow"
	case BendElbow:
		return "bend_elbow"
	case BendShoulder:
		return "bend_shoulder"
	case RotateBase:
		return "rotate_base"
	case AllJoints:
		return "all_joints"
	default:
		return fmt.Sprintf("device(0x%02X)", uint8(id))
	}
}

// JointID returns the device ID for a joint table index.
func JointID(index int) (DeviceID, error) {
	if index < 0 || index >= NumJoints {
		return 0, errors.Wrapf(ErrInvalidAddress, "joint index %d", index)
	}
	return DeviceID(index + 1), nil
}

// PacketID tags the meaning of a packet's payload.
type PacketID uint8

// Packet IDs understood by this controller.
const (
	PacketMode     PacketID = 0x01
	PacketVelocity PacketID = 0x02
	PacketPosition PacketID = 0x03
	PacketCurrent  PacketID = 0x05
	PacketRequest  PacketID = 0x60
)

func (k PacketID) String() string {
	switch k {
	case PacketMode:
		return "MODE"
	case PacketVelocity:
		return "VELOCITY"
	case PacketPosition:
		return "POSITION"
	case PacketCurrent:
		return "CURRENT"
	case PacketRequest:
		return "REQUEST"
	default:
		return fmt.Sprintf("PACKET(0x%02X)", uint8(k))
	}
}

// hasFloatPayload reports whether packets of this kind carry a single little-endian float32.
func (k PacketID) hasFloatPayload() bool {
	switch k {
	case PacketVelocity, PacketPosition, PacketCurrent:
		return true
	default:
		return false
	}
}

// FloatPayloadSize is the payload length of position, velocity and current packets.
const FloatPayloadSize = 4

// Packet is a single BPL message. The zero value is not a valid packet; build one with
// Encode, NewRequest or NewPacket.
type Packet struct {
	device DeviceID
	kind   PacketID
	data   []byte
}

// NewPacket builds a packet from raw parts. The data slice is copied.
func NewPacket(device DeviceID, kind PacketID, data []byte) Packet {
	return Packet{device: device, kind: kind, data: append([]byte(nil), data...)}
}

// DeviceID returns the packet's address.
func (p Packet) DeviceID() DeviceID { return p.device }

// PacketID returns the packet's kind.
func (p Packet) PacketID() PacketID { return p.kind }

// Data returns a copy of the payload.
func (p Packet) Data() []byte { return append([]byte(nil), p.data...) }

func (p Packet) String() string {
	return fmt.Sprintf("%s->%s[% X]", p.kind, p.device, p.data)
}

// Encode builds a float-payload packet addressed to a single joint.
func Encode(device DeviceID, kind PacketID, value float32) (Packet, error) {
	if !device.IsJoint() {
		return Packet{}, errors.Wrapf(ErrInvalidAddress, "device 0x%02X", uint8(device))
	}
	if !kind.hasFloatPayload() {
		return Packet{}, errors.Wrapf(ErrUnsupportedKind, "%s has no float payload", kind)
	}
	data := make([]byte, FloatPayloadSize)
	binary.LittleEndian.PutUint32(data, math.Float32bits(value))
	return Packet{device: device, kind: kind, data: data}, nil
}

// Decode returns the float carried by a position, velocity or current packet.
func Decode(p Packet) (float32, error) {
	if !p.kind.hasFloatPayload() {
		return 0, errors.Wrapf(ErrUnsupportedKind, "%s has no float payload", p.kind)
	}
	if len(p.data) != FloatPayloadSize {
		return 0, &DecodeError{Device: p.device, Kind: p.kind, Length: len(p.data)}
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(p.data)), nil
}

// NewRequest asks device to report the given packet kinds.
func NewRequest(device DeviceID, kinds ...PacketID) (Packet, error) {
	if device != AllJoints && !device.IsJoint() {
		return Packet{}, errors.Wrapf(ErrInvalidAddress, "device 0x%02X", uint8(device))
	}
	if len(kinds) == 0 {
		return Packet{}, errors.New("request needs at least one packet kind")
	}
	data := make([]byte, 0, len(kinds))
	for _, k := range kinds {
		if !k.hasFloatPayload() && k != PacketMode {
			return Packet{}, errors.Wrapf(ErrUnsupportedKind, "cannot request %s", k)
		}
		data = append(data, byte(k))
	}
	return Packet{device: device, kind: PacketRequest, data: data}, nil
}
