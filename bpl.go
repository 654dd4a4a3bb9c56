package pitch_compliance

import (
	"bytes"
	"fmt"

	"go.uber.org/multierr"
)

// Frame layout before COBS encoding:
//
//	data | packet id | device id | length | crc8
//
// length counts data plus the four trailing bytes. Encoded frames end in a single 0x00.
const (
	frameTrailer   = 4
	frameDelimiter = 0x00
	maxFrameSize   = 254
)

var crc8Table = func() [256]byte {
	var t [256]byte
	for i := range t {
		c := byte(i)
		for k := 0; k < 8; k++ {
			if c&1 != 0 {
				c = c>>1 ^ 0xB2
			} else {
				c >>= 1
			}
		}
		t[i] = c
	}
	return t
}()

// crc8 is the reflected CRC-8 with polynomial 0x4D, init 0xFF and final xor 0xFF.
func crc8(data []byte) byte {
	c := byte(0xFF)
	for _, b := range data {
		c = crc8Table[c^b]
	}
	return c ^ 0xFF
}

func cobsEncode(src []byte) []byte {
	dst := make([]byte, 1, len(src)+len(src)/254+2)
	codeIdx, code := 0, byte(1)
	for i, b := range src {
		if b != 0 {
			dst = append(dst, b)
			code++
			if code != 0xFF || i == len(src)-1 {
				continue
			}
		}
		dst[codeIdx] = code
		codeIdx, code = len(dst), 1
		dst = append(dst, 0)
	}
	dst[codeIdx] = code
	return dst
}

func cobsDecode(src []byte) ([]byte, error) {
	dst := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		code := int(src[i])
		if code == 0 {
			return nil, &FrameError{Reason: "zero byte inside COBS data"}
		}
		i++
		end := i + code - 1
		if end > len(src) {
			return nil, &FrameError{Reason: "truncated COBS block"}
		}
		block := src[i:end]
		if bytes.IndexByte(block, 0) >= 0 {
			return nil, &FrameError{Reason: "zero byte inside COBS data"}
		}
		dst = append(dst, block...)
		i = end
		if code < 0xFF && i < len(src) {
			dst = append(dst, 0)
		}
	}
	return dst, nil
}

// EncodeFrame serializes p into a delimited frame ready to write to the link.
func EncodeFrame(p Packet) ([]byte, error) {
	if len(p.data)+frameTrailer > maxFrameSize {
		return nil, &FrameError{Reason: fmt.Sprintf("payload of %d bytes is too large", len(p.data))}
	}
	raw := make([]byte, 0, len(p.data)+frameTrailer)
	raw = append(raw, p.data...)
	raw = append(raw, byte(p.kind), byte(p.device), byte(len(p.data)+frameTrailer))
	raw = append(raw, crc8(raw))
	return append(cobsEncode(raw), frameDelimiter), nil
}

// DecodeFrame parses one frame. A trailing delimiter is accepted.
func DecodeFrame(frame []byte) (Packet, error) {
	frame = bytes.TrimSuffix(frame, []byte{frameDelimiter})
	raw, err := cobsDecode(frame)
	if err != nil {
		return Packet{}, err
	}
	if len(raw) < frameTrailer {
		return Packet{}, &FrameError{Reason: fmt.Sprintf("frame of %d bytes is too short", len(raw))}
	}
	n := len(raw)
	if got, want := raw[n-1], crc8(raw[:n-1]); got != want {
		return Packet{}, &FrameError{Reason: fmt.Sprintf("crc mismatch: got 0x%02X, want 0x%02X", got, want)}
	}
	if int(raw[n-2]) != n {
		return Packet{}, &FrameError{Reason: fmt.Sprintf("length field %d does not match frame length %d", raw[n-2], n)}
	}
	return NewPacket(DeviceID(raw[n-3]), PacketID(raw[n-4]), raw[:n-4]), nil
}

// SplitFrames decodes every complete frame in buf and returns the bytes after the last
// delimiter. Malformed frames are skipped and reported in the combined error.
func SplitFrames(buf []byte) ([]Packet, []byte, error) {
	var (
		packets []Packet
		errs    error
	)
	for {
		i := bytes.IndexByte(buf, frameDelimiter)
		if i < 0 {
			break
		}
		frame := buf[:i]
		buf = buf[i+1:]
		if len(frame) == 0 {
			continue
		}
		p, err := DecodeFrame(frame)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		packets = append(packets, p)
	}
	return packets, buf, errs
}

// frameBuffer accumulates stream bytes between reads.
type frameBuffer struct {
	pending []byte
}

func (b *frameBuffer) feed(data []byte) ([]Packet, error) {
	b.pending = append(b.pending, data...)
	packets, rest, err := SplitFrames(b.pending)
	if len(rest) > 2*maxFrameSize {
		err = multierr.Append(err, &FrameError{Reason: "no delimiter in stream, discarding"})
		rest = nil
	}
	b.pending = append(b.pending[:0], rest...)
	return packets, err
}
