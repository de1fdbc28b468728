package chassis

import (
	"go_chassis/rc"

	"github.com/pkg/errors"
)

// Velocity is the commanded body velocity.
type Velocity struct {
	VX float64 `json:"vx"` // forward
	VY float64 `json:"vy"` // lateral
	VW float64 `json:"vw"` // angular
}

// Policy decides the velocity of modes whose source is an external reference
// (FollowReference, SpinMode) while no such reference is wired in.
type Policy int

const (
	// PolicyHold keeps the previous cycle's velocity.
	PolicyHold Policy = iota
	// PolicyZero commands zero velocity.
	PolicyZero
)

func (p Policy) String() string {
	switch p {
	case PolicyHold:
		return "hold"
	case PolicyZero:
		return "zero"
	default:
		return "unknown"
	}
}

// ParsePolicy accepts "hold" or "zero".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "hold", "":
		return PolicyHold, nil
	case "zero":
		return PolicyZero, nil
	default:
		return PolicyHold, errors.Errorf("unknown reference policy %q", s)
	}
}

// ChannelMap names the receiver channel feeding each velocity axis.
type ChannelMap struct {
	X int
	Y int
	W int
}

// DefaultChannels: right stick vertical is forward, right stick horizontal is
// lateral, the dial spins.
var DefaultChannels = ChannelMap{X: 1, Y: 0, W: 4}

// Mapper turns a mode and a receiver snapshot into a body velocity.
type Mapper struct {
	Ratio     float64 // channel value to velocity
	Channels  ChannelMap
	Reference Policy

	// Deadzone is carried for configuration parity; no filtering is applied.
	Deadzone int16
}

// Map returns the velocity for this cycle. prev is the previous cycle's value.
func (m Mapper) Map(mode Mode, in rc.Snapshot, prev Velocity) Velocity {
	switch mode {
	case Disabled:
		return Velocity{}
	case FreeMode:
		return Velocity{
			VX: float64(in.Channels[m.Channels.X]) * m.Ratio,
			VY: float64(in.Channels[m.Channels.Y]) * m.Ratio,
			VW: float64(in.Channels[m.Channels.W]) * m.Ratio,
		}
	case FollowReference, SpinMode:
		if m.Reference == PolicyZero {
			return Velocity{}
		}
		return prev
	default:
		return prev
	}
}

func (c ChannelMap) valid() bool {
	for _, ch := range []int{c.X, c.Y, c.W} {
		if ch < 0 || ch >= rc.NumChannels {
			return false
		}
	}
	return true
}
