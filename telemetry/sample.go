// Package telemetry publishes the control loop's per-cycle state to operators.
// The loop hands states to a Hub without blocking; the Hub forwards the latest
// one to every sink and drops whatever the sinks were too slow to take.
package telemetry

import (
	"time"

	"go_chassis/chassis"
	"go_chassis/rc"
)

// Sample is the wire form of one control cycle.
type Sample struct {
	Session string    `json:"session"`
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`

	Cycle       uint64  `json:"cycle"`
	CycleTimeUS float64 `json:"cycle_time_us"`

	Mode     string                                `json:"mode"`
	Velocity chassis.Velocity                      `json:"velocity"`
	Wheels   [chassis.NumWheels]chassis.WheelState `json:"wheels"`

	Channels [rc.NumChannels]int16  `json:"channels"`
	Switches [rc.NumSwitches]string `json:"switches"`
}

func NewSample(session string, seq uint64, st chassis.State, now time.Time) Sample {
	s := Sample{
		Session:     session,
		Seq:         seq,
		Time:        now,
		Cycle:       st.Cycle,
		CycleTimeUS: float64(st.CycleTime) / float64(time.Microsecond),
		Mode:        st.Mode.String(),
		Velocity:    st.Velocity,
		Wheels:      st.Wheels,
		Channels:    st.Input.Channels,
	}
	for i, sw := range st.Input.Switches {
		s.Switches[i] = sw.String()
	}
	return s
}
