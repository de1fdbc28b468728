package chassis

import "go_chassis/rc"

// Mode is the chassis behaviour mode.
type Mode int

const (
	Disabled        Mode = iota // velocity forced to zero
	FollowReference             // velocity comes from an external heading reference
	FreeMode                    // sticks drive the body directly
	SpinMode                    // continuous rotation
)

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case FollowReference:
		return "follow_reference"
	case FreeMode:
		return "free"
	case SpinMode:
		return "spin"
	default:
		return "unknown"
	}
}

// SelectMode maps the mode switch position to a behaviour mode.
// A value that is not UP, MIDDLE or DOWN keeps prev. FreeMode is never
// selected here.
func SelectMode(sw rc.Switch, prev Mode) Mode {
	switch sw {
	case rc.SwitchDown:
		return Disabled
	case rc.SwitchMiddle:
		return SpinMode
	case rc.SwitchUp:
		return FollowReference
	default:
		return prev
	}
}
