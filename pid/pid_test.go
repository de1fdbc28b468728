package pid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProportionalOnlyIgnoresHistory(t *testing.T) {
	c := New(Position, Gains{Kp: 2.5}, 1e9, 1e9)

	tests := []struct {
		name string
		fdb  float64
		set  float64
	}{
		{name: "positive error", fdb: 0, set: 10},
		{name: "negative error", fdb: 40, set: -4},
		{name: "zero error", fdb: 7, set: 7},
		{name: "fractional", fdb: 0.5, set: 1.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.Calc(tt.fdb, tt.set)
			assert.Equal(t, 2.5*(tt.set-tt.fdb), out)
			assert.Equal(t, out, c.Out)
		})
	}
}

func TestOutputClampIsIdempotent(t *testing.T) {
	tests := []struct {
		name string
		form Form
		set  float64
		want float64
	}{
		{name: "position positive", form: Position, set: 10, want: 50},
		{name: "position negative", form: Position, set: -10, want: -50},
		{name: "delta positive", form: Delta, set: 10, want: 50},
		{name: "delta negative", form: Delta, set: -10, want: -50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.form, Gains{Kp: 100, Ki: 1}, 50, 1000)
			for i := 0; i < 10; i++ {
				out := c.Calc(0, tt.set)
				require.Equal(t, tt.want, out, "cycle %d", i)
			}
		})
	}
}

func TestPositionIntegralClamp(t *testing.T) {
	c := New(Position, Gains{Ki: 1}, 100, 3)

	wantIout := []float64{2, 3, 3, 3}
	for i, want := range wantIout {
		out := c.Calc(0, 2)
		assert.Equal(t, want, c.Iout, "cycle %d", i)
		assert.Equal(t, want, out, "cycle %d", i)
	}

	// reversing the error unwinds from the clamp, not from the raw sum
	c.Calc(0, -2)
	assert.Equal(t, 1.0, c.Iout)
}

func TestPositionDerivative(t *testing.T) {
	c := New(Position, Gains{Kd: 1}, 100, 100)

	assert.Equal(t, 1.0, c.Calc(0, 1))
	assert.Equal(t, 2.0, c.Calc(0, 3))
	assert.Equal(t, [3]float64{2, 1, 0}, c.Dbuf)
	assert.Equal(t, -3.0, c.Calc(3, 3))
}

func TestDeltaSequence(t *testing.T) {
	c := New(Delta, Gains{Kp: 1, Ki: 0.5, Kd: 0.25}, 100, 0)

	tests := []struct {
		set  float64
		pout float64
		iout float64
		dout float64
		out  float64
	}{
		{set: 1, pout: 1, iout: 0.5, dout: 0.25, out: 1.75},
		{set: 2, pout: 1, iout: 1, dout: 0, out: 3.75},
		{set: 2, pout: 0, iout: 1, dout: -0.25, out: 4.5},
	}

	for i, tt := range tests {
		out := c.Calc(0, tt.set)
		assert.Equal(t, tt.pout, c.Pout, "pout cycle %d", i)
		assert.Equal(t, tt.iout, c.Iout, "iout cycle %d", i)
		assert.Equal(t, tt.dout, c.Dout, "dout cycle %d", i)
		assert.Equal(t, tt.out, out, "out cycle %d", i)
	}
}

func TestErrorHistoryShifts(t *testing.T) {
	c := New(Position, Gains{Kp: 1}, 100, 100)

	c.Calc(0, 1)
	c.Calc(0, 2)
	c.Calc(0, 3)
	assert.Equal(t, [3]float64{3, 2, 1}, c.Err)

	c.Calc(0, 4)
	assert.Equal(t, [3]float64{4, 3, 2}, c.Err)
	assert.Equal(t, 4.0, c.Set)
	assert.Equal(t, 0.0, c.Fdb)
}

func TestInitRejectsNil(t *testing.T) {
	c := New(Position, Gains{Kp: 3, Ki: 2, Kd: 1}, 10, 5)
	c.Calc(0, 1)

	c.Init(Delta, nil, 99, 99)
	assert.Equal(t, Position, c.Form)
	assert.Equal(t, 3.0, c.Kp)
	assert.Equal(t, 10.0, c.MaxOut)
	assert.NotZero(t, c.Out)

	var nilCtrl *Controller
	assert.NotPanics(t, func() {
		nilCtrl.Init(Position, &Gains{}, 1, 1)
		nilCtrl.Clear()
		assert.Equal(t, 0.0, nilCtrl.Calc(1, 2))
	})
}

func TestClearKeepsTuning(t *testing.T) {
	c := New(Delta, Gains{Kp: 3, Ki: 2, Kd: 1}, 10, 5)
	c.Calc(1, 4)
	c.Calc(2, 4)

	c.Clear()

	assert.Equal(t, [3]float64{}, c.Err)
	assert.Equal(t, [3]float64{}, c.Dbuf)
	assert.Zero(t, c.Out)
	assert.Zero(t, c.Pout)
	assert.Zero(t, c.Iout)
	assert.Zero(t, c.Dout)
	assert.Zero(t, c.Set)
	assert.Zero(t, c.Fdb)

	assert.Equal(t, Delta, c.Form)
	assert.Equal(t, Gains{Kp: 3, Ki: 2, Kd: 1}, Gains{Kp: c.Kp, Ki: c.Ki, Kd: c.Kd})
	assert.Equal(t, 10.0, c.MaxOut)
	assert.Equal(t, 5.0, c.MaxIOut)
}

func TestFormString(t *testing.T) {
	assert.Equal(t, "position", Position.String())
	assert.Equal(t, "delta", Delta.String())
	assert.Equal(t, "unknown", Form(9).String())
}

func TestParseForm(t *testing.T) {
	tests := []struct {
		in      string
		want    Form
		wantErr bool
	}{
		{in: "position", want: Position},
		{in: "", want: Position},
		{in: "delta", want: Delta},
		{in: "incremental", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseForm(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.in)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
