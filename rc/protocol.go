// Package rc decodes the remote-control receiver stream.
//
// The receiver sends fixed 18-byte DBUS frames with no header and no checksum.
// Framing relies on the line going idle between frames: the Intake collects one
// burst per idle event into a double buffer and decodes it only when exactly one
// frame's worth of bytes arrived.
package rc

import "encoding/binary"

// Frame layout
const (
	FrameLength   = 18 // bytes in one receiver frame
	RxBufferLen   = 32 // slot capacity, larger than one frame to absorb overrun
	ChannelMask   = 0x7FF
	ChannelOffset = 1024 // raw value of a centred stick

	ChannelMin = 364
	ChannelMax = 1684

	NumChannels = 5
	NumSwitches = 2
)

// Switch is a three-position switch value as sent on the wire.
// The encoding is not monotonic: UP=1, DOWN=2, MIDDLE=3.
type Switch uint8

const (
	SwitchUp     Switch = 1
	SwitchDown   Switch = 2
	SwitchMiddle Switch = 3
)

func (s Switch) String() string {
	switch s {
	case SwitchUp:
		return "up"
	case SwitchMiddle:
		return "middle"
	case SwitchDown:
		return "down"
	default:
		return "invalid"
	}
}

// Mouse is the pointer state forwarded by the receiver.
type Mouse struct {
	X, Y, Z    int16
	PressLeft  uint8
	PressRight uint8
}

// Snapshot is one fully decoded frame.
type Snapshot struct {
	// Channels 0-3 are sticks, 4 is the dial. All are centred around 0.
	Channels [NumChannels]int16
	Switches [NumSwitches]Switch
	Mouse    Mouse
	Keys     uint16
}

// Decode unpacks one frame from buf into out.
// buf must hold at least FrameLength bytes. A nil buf or out is a no-op.
func Decode(buf []byte, out *Snapshot) {
	if buf == nil || out == nil {
		return
	}
	_ = buf[FrameLength-1]

	// 11-bit sticks, LSB first
	out.Channels[0] = int16((uint16(buf[0]) | uint16(buf[1])<<8) & ChannelMask)
	out.Channels[1] = int16((uint16(buf[1])>>3 | uint16(buf[2])<<5) & ChannelMask)
	out.Channels[2] = int16((uint16(buf[2])>>6 | uint16(buf[3])<<2 | uint16(buf[4])<<10) & ChannelMask)
	out.Channels[3] = int16((uint16(buf[4])>>1 | uint16(buf[5])<<7) & ChannelMask)
	// dial is a plain 16-bit field, not masked
	out.Channels[4] = int16(binary.LittleEndian.Uint16(buf[16:18]))

	out.Switches[0] = Switch((buf[5] >> 4) & 0x03)
	out.Switches[1] = Switch((buf[5] >> 6) & 0x03)

	out.Mouse.X = int16(binary.LittleEndian.Uint16(buf[6:8]))
	out.Mouse.Y = int16(binary.LittleEndian.Uint16(buf[8:10]))
	out.Mouse.Z = int16(binary.LittleEndian.Uint16(buf[10:12]))
	out.Mouse.PressLeft = buf[12]
	out.Mouse.PressRight = buf[13]

	out.Keys = binary.LittleEndian.Uint16(buf[14:16])

	for i := range out.Channels {
		out.Channels[i] -= ChannelOffset
	}
}

// Encode packs s into a FrameLength buffer. It is the inverse of Decode for
// channel values whose raw form fits the wire field.
func Encode(s *Snapshot) []byte {
	buf := make([]byte, FrameLength)
	if s == nil {
		return buf
	}

	var raw [NumChannels]uint16
	for i, ch := range s.Channels {
		raw[i] = uint16(ch + ChannelOffset)
	}
	for i := 0; i < 4; i++ {
		raw[i] &= ChannelMask
	}

	// channels 0-3 occupy bits 0..43 of bytes 0..5
	var bits uint64
	for i := 0; i < 4; i++ {
		bits |= uint64(raw[i]) << (11 * i)
	}
	bits |= uint64(s.Switches[0]&0x03) << 44
	bits |= uint64(s.Switches[1]&0x03) << 46
	for i := 0; i < 6; i++ {
		buf[i] = byte(bits >> (8 * i))
	}

	binary.LittleEndian.PutUint16(buf[6:8], uint16(s.Mouse.X))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(s.Mouse.Y))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(s.Mouse.Z))
	buf[12] = s.Mouse.PressLeft
	buf[13] = s.Mouse.PressRight
	binary.LittleEndian.PutUint16(buf[14:16], s.Keys)
	binary.LittleEndian.PutUint16(buf[16:18], raw[4])

	return buf
}
