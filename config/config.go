// Package config loads the start-up configuration of the chassis controller.
// Values are read once; nothing is reconfigured at runtime.
package config

import (
	"io"
	"os"
	"time"

	"go_chassis/chassis"
	"go_chassis/motor"
	"go_chassis/pid"
	"go_chassis/rc"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Geometry  Geometry  `yaml:"geometry"`
	PID       PID       `yaml:"pid"`
	RC        RC        `yaml:"rc"`
	Chassis   Chassis   `yaml:"chassis"`
	CAN       CAN       `yaml:"can"`
	Telemetry Telemetry `yaml:"telemetry"`
	Log       Log       `yaml:"log"`
}

type Geometry struct {
	WheelPerimeter float64 `yaml:"wheel_perimeter"`
	GearRatio      float64 `yaml:"gear_ratio"`
	Length         float64 `yaml:"length"`
	Width          float64 `yaml:"width"`
}

type PID struct {
	Form    string  `yaml:"form"`
	Kp      float64 `yaml:"kp"`
	Ki      float64 `yaml:"ki"`
	Kd      float64 `yaml:"kd"`
	MaxOut  float64 `yaml:"max_out"`
	MaxIOut float64 `yaml:"max_iout"`
}

type Channels struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
}

type RC struct {
	Port       string        `yaml:"port"`
	Baud       int           `yaml:"baud"`
	IdleGap    time.Duration `yaml:"idle_gap"`
	BufferSize int           `yaml:"buffer_size"`
	Ratio      float64       `yaml:"ratio"`
	Deadzone   int16         `yaml:"deadzone"`
	Channels   Channels      `yaml:"channels"`
	ModeSwitch int           `yaml:"mode_switch"`
}

type Chassis struct {
	LoopPeriod           time.Duration `yaml:"loop_period"`
	ReferencePolicy      string        `yaml:"reference_policy"`
	ClearPIDOnModeChange bool          `yaml:"clear_pid_on_mode_change"`
}

type CAN struct {
	Interface string        `yaml:"interface"`
	Sim       bool          `yaml:"sim"`
	SimGain   float64       `yaml:"sim_gain"`
	SimTau    time.Duration `yaml:"sim_tau"`
}

type MQTT struct {
	Broker   string `yaml:"broker"` // empty disables the sink
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type WebSocket struct {
	Addr string `yaml:"addr"` // empty disables the server
}

type Telemetry struct {
	MQTT      MQTT      `yaml:"mqtt"`
	WebSocket WebSocket `yaml:"websocket"`
}

type Log struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default returns the firmware tuning.
func Default() Config {
	return Config{
		Geometry: Geometry{
			WheelPerimeter: 10,
			GearRatio:      10,
			Length:         10,
			Width:          10,
		},
		PID: PID{
			Form:    pid.Position.String(),
			Kp:      15000,
			Ki:      10,
			Kd:      0,
			MaxOut:  16000,
			MaxIOut: 2000,
		},
		RC: RC{
			Baud:       rc.DefaultBaud,
			IdleGap:    rc.DefaultIdleGap,
			BufferSize: rc.RxBufferLen,
			Ratio:      1000,
			Deadzone:   10,
			Channels:   Channels{X: 1, Y: 0, W: 4},
			ModeSwitch: 0,
		},
		Chassis: Chassis{
			LoopPeriod:      chassis.DefaultPeriod,
			ReferencePolicy: chassis.PolicyHold.String(),
		},
		CAN: CAN{
			Interface: "can0",
			SimGain:   motor.DefaultSimGain,
			SimTau:    motor.DefaultSimTau,
		},
		Telemetry: Telemetry{
			MQTT: MQTT{
				Topic:    "chassis/telemetry",
				ClientID: "go_chassis",
			},
		},
		Log: Log{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrap(err, "open config")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid %s", path)
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	g := c.Geometry
	if g.WheelPerimeter <= 0 || g.GearRatio <= 0 {
		return errors.Errorf("geometry: wheel_perimeter and gear_ratio must be positive")
	}
	if g.Length < 0 || g.Width < 0 {
		return errors.Errorf("geometry: length and width must not be negative")
	}

	if _, err := pid.ParseForm(c.PID.Form); err != nil {
		return errors.Wrap(err, "pid")
	}
	if c.PID.MaxOut <= 0 || c.PID.MaxIOut < 0 {
		return errors.Errorf("pid: max_out must be positive and max_iout not negative")
	}

	if c.RC.Baud <= 0 {
		return errors.Errorf("rc: baud must be positive, got %d", c.RC.Baud)
	}
	if c.RC.BufferSize < rc.FrameLength {
		return errors.Errorf("rc: buffer_size %d is below the frame length %d", c.RC.BufferSize, rc.FrameLength)
	}
	if c.RC.IdleGap <= 0 {
		return errors.Errorf("rc: idle_gap must be positive")
	}
	for name, ch := range map[string]int{"x": c.RC.Channels.X, "y": c.RC.Channels.Y, "w": c.RC.Channels.W} {
		if ch < 0 || ch >= rc.NumChannels {
			return errors.Errorf("rc: channel %s=%d out of range", name, ch)
		}
	}
	if c.RC.ModeSwitch < 0 || c.RC.ModeSwitch >= rc.NumSwitches {
		return errors.Errorf("rc: mode_switch %d out of range", c.RC.ModeSwitch)
	}

	if c.Chassis.LoopPeriod <= 0 {
		return errors.Errorf("chassis: loop_period must be positive")
	}
	if _, err := chassis.ParsePolicy(c.Chassis.ReferencePolicy); err != nil {
		return errors.Wrap(err, "chassis")
	}

	if !c.CAN.Sim && c.CAN.Interface == "" {
		return errors.Errorf("can: interface is required unless sim is set")
	}

	if c.Telemetry.MQTT.Broker != "" && c.Telemetry.MQTT.Topic == "" {
		return errors.Errorf("telemetry: mqtt topic is required with a broker")
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log")
	}
	return nil
}

// ChassisConfig converts the file layout into the chassis tuning.
func (c Config) ChassisConfig() (chassis.Config, error) {
	form, err := pid.ParseForm(c.PID.Form)
	if err != nil {
		return chassis.Config{}, err
	}
	policy, err := chassis.ParsePolicy(c.Chassis.ReferencePolicy)
	if err != nil {
		return chassis.Config{}, err
	}

	return chassis.Config{
		Geometry: chassis.Geometry{
			WheelCircumference: c.Geometry.WheelPerimeter,
			GearRatio:          c.Geometry.GearRatio,
			Length:             c.Geometry.Length,
			Width:              c.Geometry.Width,
		},
		Mapper: chassis.Mapper{
			Ratio: c.RC.Ratio,
			Channels: chassis.ChannelMap{
				X: c.RC.Channels.X,
				Y: c.RC.Channels.Y,
				W: c.RC.Channels.W,
			},
			Reference: policy,
			Deadzone:  c.RC.Deadzone,
		},
		Form:              form,
		Gains:             pid.Gains{Kp: c.PID.Kp, Ki: c.PID.Ki, Kd: c.PID.Kd},
		MaxOut:            c.PID.MaxOut,
		MaxIOut:           c.PID.MaxIOut,
		ModeSwitch:        c.RC.ModeSwitch,
		ClearOnModeChange: c.Chassis.ClearPIDOnModeChange,
	}, nil
}

// Logger builds the process logger described by the log section.
func (c Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.Log.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
