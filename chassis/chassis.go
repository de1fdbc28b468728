// Package chassis turns receiver input into wheel current commands for a
// four-wheel omni chassis: mode selection, velocity mapping, kinematics and one
// PID speed loop per wheel.
package chassis

import (
	"context"
	"math"
	"time"

	"go_chassis/pid"
	"go_chassis/rc"

	"github.com/pkg/errors"
)

// Input provides the latest receiver snapshot.
type Input interface {
	Load() rc.Snapshot
}

// SpeedSource is a read-only handle on one wheel's measured speed.
type SpeedSource interface {
	Speed() float64
}

// Actuator receives the four wheel currents of one cycle, in wheel order.
type Actuator interface {
	SendCurrents(ctx context.Context, currents [NumWheels]int16) error
}

// Config is the fixed tuning consumed once by New.
type Config struct {
	Geometry Geometry
	Mapper   Mapper

	Form    pid.Form
	Gains   pid.Gains
	MaxOut  float64
	MaxIOut float64

	// ModeSwitch is the receiver switch index that selects the mode.
	ModeSwitch int
	// ClearOnModeChange resets every wheel PID when the mode changes.
	ClearOnModeChange bool
}

// WheelState is the per-cycle record of one wheel.
type WheelState struct {
	SpeedSet float64 `json:"speed_set"`
	Speed    float64 `json:"speed"`
	Current  int16   `json:"current"`
}

// Wheel binds a wheel record to its feedback handle.
type Wheel struct {
	source SpeedSource
	WheelState
}

// State is a copy of the chassis after one cycle.
type State struct {
	Mode      Mode
	Velocity  Velocity
	Wheels    [NumWheels]WheelState
	Input     rc.Snapshot
	Cycle     uint64
	CycleTime time.Duration
}

// Chassis is the motion state of the robot base. It is owned by the control
// loop and is not safe for concurrent use.
type Chassis struct {
	cfg   Config
	input Input
	sink  Actuator

	Mode     Mode
	Velocity Velocity
	Wheels   [NumWheels]Wheel
	PIDs     [NumWheels]*pid.Controller

	last rc.Snapshot
}

// New builds a chassis in Disabled mode with one PID per wheel.
func New(cfg Config, input Input, sources [NumWheels]SpeedSource, sink Actuator) (*Chassis, error) {
	if input == nil {
		return nil, errors.New("chassis: nil input")
	}
	if sink == nil {
		return nil, errors.New("chassis: nil actuator")
	}
	if cfg.Geometry.WheelCircumference <= 0 {
		return nil, errors.Errorf("chassis: wheel circumference must be positive, got %v", cfg.Geometry.WheelCircumference)
	}
	if !cfg.Mapper.Channels.valid() {
		return nil, errors.Errorf("chassis: channel map out of range: %+v", cfg.Mapper.Channels)
	}
	if cfg.ModeSwitch < 0 || cfg.ModeSwitch >= rc.NumSwitches {
		return nil, errors.Errorf("chassis: mode switch %d out of range", cfg.ModeSwitch)
	}

	c := &Chassis{
		cfg:   cfg,
		input: input,
		sink:  sink,
		Mode:  Disabled,
	}
	for i := range c.Wheels {
		c.Wheels[i].source = sources[i]
		c.PIDs[i] = pid.New(cfg.Form, cfg.Gains, cfg.MaxOut, cfg.MaxIOut)
	}
	return c, nil
}

// Step runs one control cycle: mode, velocity, wheel targets, PID and output.
// The computed currents are kept on the wheels even when sending fails.
func (c *Chassis) Step(ctx context.Context) error {
	c.last = c.input.Load()

	c.chooseMode(c.last)
	c.Velocity = c.cfg.Mapper.Map(c.Mode, c.last, c.Velocity)
	targets := c.cfg.Geometry.WheelSpeeds(c.Velocity)

	var currents [NumWheels]int16
	for i := range c.Wheels {
		w := &c.Wheels[i]
		w.SpeedSet = targets[i]
		if w.source != nil {
			w.Speed = w.source.Speed()
		}
		out := c.PIDs[i].Calc(w.Speed, w.SpeedSet)
		w.Current = toCurrent(out)
		currents[i] = w.Current
	}

	if err := c.sink.SendCurrents(ctx, currents); err != nil {
		return errors.Wrap(err, "send currents")
	}
	return nil
}

// State copies the result of the last cycle.
func (c *Chassis) State() State {
	st := State{
		Mode:     c.Mode,
		Velocity: c.Velocity,
		Input:    c.last,
	}
	for i := range c.Wheels {
		st.Wheels[i] = c.Wheels[i].WheelState
	}
	return st
}

func (c *Chassis) chooseMode(in rc.Snapshot) {
	next := SelectMode(in.Switches[c.cfg.ModeSwitch], c.Mode)
	if next == c.Mode {
		return
	}
	if c.cfg.ClearOnModeChange {
		for _, p := range c.PIDs {
			p.Clear()
		}
	}
	c.Mode = next
}

// toCurrent truncates a PID output toward zero into the int16 command range.
func toCurrent(out float64) int16 {
	switch {
	case math.IsNaN(out):
		return 0
	case out >= math.MaxInt16:
		return math.MaxInt16
	case out <= math.MinInt16:
		return math.MinInt16
	default:
		return int16(out)
	}
}
