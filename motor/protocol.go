// Package motor speaks the CAN protocol of the chassis wheel motor controllers
// (M3508 with C620 ESC): one command frame carrying four currents, one feedback
// frame per motor.
package motor

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// CAN identifiers
const (
	CommandID  uint32 = 0x200 // currents for motors 1..4
	FeedbackID uint32 = 0x201 // motor 1, motors 2..4 follow

	NumMotors = 4

	FrameLen   = 8
	MeasureLen = 7

	// CurrentLimit is the largest magnitude the ESC accepts.
	CurrentLimit = 16384
)

var (
	ErrShortFrame = errors.New("motor: feedback frame too short")
	ErrUnknownID  = errors.New("motor: frame id is not a wheel feedback id")
)

// Measure is one decoded feedback frame.
type Measure struct {
	Angle       uint16 `json:"angle"` // 0..8191 per revolution
	SpeedRPM    int16  `json:"speed_rpm"`
	Current     int16  `json:"current"`
	Temperature uint8  `json:"temperature"`
}

// EncodeCurrents builds the command payload: four big-endian int16 values in
// wheel order.
func EncodeCurrents(currents [NumMotors]int16) []byte {
	data := make([]byte, FrameLen)
	for i, c := range currents {
		binary.BigEndian.PutUint16(data[2*i:], uint16(c))
	}
	return data
}

// DecodeCurrents is the inverse of EncodeCurrents.
func DecodeCurrents(data []byte) ([NumMotors]int16, error) {
	var out [NumMotors]int16
	if len(data) < FrameLen {
		return out, errors.Wrapf(ErrShortFrame, "command payload %d bytes", len(data))
	}
	for i := range out {
		out[i] = int16(binary.BigEndian.Uint16(data[2*i:]))
	}
	return out, nil
}

func DecodeMeasure(data []byte) (Measure, error) {
	if len(data) < MeasureLen {
		return Measure{}, errors.Wrapf(ErrShortFrame, "got %d bytes", len(data))
	}
	return Measure{
		Angle:       binary.BigEndian.Uint16(data[0:]),
		SpeedRPM:    int16(binary.BigEndian.Uint16(data[2:])),
		Current:     int16(binary.BigEndian.Uint16(data[4:])),
		Temperature: data[6],
	}, nil
}

// EncodeMeasure builds a feedback payload. Used by the simulator.
func EncodeMeasure(m Measure) []byte {
	data := make([]byte, FrameLen)
	binary.BigEndian.PutUint16(data[0:], m.Angle)
	binary.BigEndian.PutUint16(data[2:], uint16(m.SpeedRPM))
	binary.BigEndian.PutUint16(data[4:], uint16(m.Current))
	data[6] = m.Temperature
	return data
}

// WheelIndex maps a feedback id to its wheel.
func WheelIndex(id uint32) (int, error) {
	if id < FeedbackID || id >= FeedbackID+NumMotors {
		return 0, errors.Wrapf(ErrUnknownID, "id 0x%X", id)
	}
	return int(id - FeedbackID), nil
}
