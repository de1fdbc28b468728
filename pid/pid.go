// Package pid implements the single-axis feedback controller used on every wheel.
//
// Two arithmetic forms are supported and fixed for the life of a controller:
//   - Position: out = Kp*e + sum(Ki*e) + Kd*(e - e1), integral clamped to MaxIOut
//   - Delta:    out += Kp*(e - e1) + Ki*e + Kd*(e - 2*e1 + e2)
//
// Both forms clamp the combined output to [-MaxOut, +MaxOut] after the terms are
// summed, never per term.
package pid

import "github.com/pkg/errors"

// Form selects the PID arithmetic.
type Form uint8

const (
	Position Form = iota
	Delta
)

func (f Form) String() string {
	switch f {
	case Position:
		return "position"
	case Delta:
		return "delta"
	default:
		return "unknown"
	}
}

// ParseForm accepts "position" or "delta".
func ParseForm(s string) (Form, error) {
	switch s {
	case "position", "":
		return Position, nil
	case "delta":
		return Delta, nil
	default:
		return Position, errors.Errorf("unknown pid form %q", s)
	}
}

// Gains holds the proportional, integral and derivative weights.
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Controller holds tuning, history and the last computed terms.
// Index 0 of Err and Dbuf is the current cycle, 1 the previous, 2 two cycles back.
type Controller struct {
	Form Form

	Kp, Ki, Kd float64

	MaxOut  float64
	MaxIOut float64

	Set float64
	Fdb float64

	Out  float64
	Pout float64
	Iout float64
	Dout float64

	Dbuf [3]float64
	Err  [3]float64
}

// New returns an initialized controller.
func New(form Form, gains Gains, maxOut, maxIOut float64) *Controller {
	c := &Controller{}
	c.Init(form, &gains, maxOut, maxIOut)
	return c
}

// Init sets tuning and zeroes all history and outputs.
// A nil controller or nil gains leaves everything untouched.
func (c *Controller) Init(form Form, gains *Gains, maxOut, maxIOut float64) {
	if c == nil || gains == nil {
		return
	}
	c.Form = form
	c.Kp = gains.Kp
	c.Ki = gains.Ki
	c.Kd = gains.Kd
	c.MaxOut = maxOut
	c.MaxIOut = maxIOut

	c.Dbuf = [3]float64{}
	c.Err = [3]float64{}
	c.Pout, c.Iout, c.Dout, c.Out = 0, 0, 0, 0
}

// Calc runs one update with the measured value fdb and the target set and
// returns the clamped output. A nil controller returns 0.
func (c *Controller) Calc(fdb, set float64) float64 {
	if c == nil {
		return 0
	}
	c.Err[2] = c.Err[1]
	c.Err[1] = c.Err[0]

	c.Set = set
	c.Fdb = fdb
	c.Err[0] = set - fdb

	switch c.Form {
	case Position:
		c.Pout = c.Kp * c.Err[0]
		c.Iout += c.Ki * c.Err[0]
		c.Dbuf[2] = c.Dbuf[1]
		c.Dbuf[1] = c.Dbuf[0]
		c.Dbuf[0] = c.Err[0] - c.Err[1]
		c.Dout = c.Kd * c.Dbuf[0]

		c.Iout = limit(c.Iout, c.MaxIOut)

		c.Out = c.Pout + c.Iout + c.Dout
		c.Out = limit(c.Out, c.MaxOut)

	case Delta:
		c.Pout = c.Kp * (c.Err[0] - c.Err[1])
		c.Iout = c.Ki * c.Err[0]
		c.Dbuf[2] = c.Dbuf[1]
		c.Dbuf[1] = c.Dbuf[0]
		c.Dbuf[0] = c.Err[0] - 2*c.Err[1] + c.Err[2]
		c.Dout = c.Kd * c.Dbuf[0]

		// the output itself integrates in delta form
		c.Out += c.Pout + c.Iout + c.Dout
		c.Out = limit(c.Out, c.MaxOut)
	}

	return c.Out
}

// Clear zeroes history, terms and the cached set/fdb. Gains and clamps stay.
func (c *Controller) Clear() {
	if c == nil {
		return
	}
	c.Err = [3]float64{}
	c.Dbuf = [3]float64{}
	c.Out, c.Pout, c.Iout, c.Dout = 0, 0, 0, 0
	c.Fdb, c.Set = 0, 0
}

// limit saturates x to [-max, +max].
func limit(x, max float64) float64 {
	if x > max {
		return max
	}
	if x < -max {
		return -max
	}
	return x
}
