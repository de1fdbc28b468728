package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go_chassis/chassis"
	"go_chassis/config"
	"go_chassis/motor"
	"go_chassis/rc"
	"go_chassis/telemetry"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := cli.NewApp()
	app.Name = "go_chassis"
	app.Usage = "omni chassis controller: RC receiver in, wheel currents out"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "YAML config file, defaults apply when omitted",
		},
		cli.StringFlag{
			Name:  "rc-port",
			Usage: "receiver serial port, overrides rc.port",
		},
		cli.StringFlag{
			Name:  "can",
			Usage: "SocketCAN interface, overrides can.interface",
		},
		cli.BoolFlag{
			Name:  "sim",
			Usage: "drive simulated wheels instead of the CAN bus",
		},
		cli.StringFlag{
			Name:  "mqtt",
			Usage: "telemetry broker, e.g. tcp://localhost:1883",
		},
		cli.StringFlag{
			Name:  "ws",
			Usage: "telemetry WebSocket listen address, e.g. :8080",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "trace, debug, info, warn or error",
		},
	}
	app.Action = run
	app.Commands = []cli.Command{
		{
			Name:  "check",
			Usage: "spin each wheel briefly and verify its feedback",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "current",
					Value: 1000,
					Usage: "test current per wheel, sign sets direction",
				},
				cli.DurationFlag{
					Name:  "duration",
					Value: 500 * time.Millisecond,
					Usage: "drive time per wheel",
				},
			},
			Action: check,
		},
		{
			Name:      "decode",
			Usage:     "decode one receiver frame given as hex",
			ArgsUsage: "<36 hex digits, spaces allowed>",
			Action: func(c *cli.Context) error {
				snap, err := decodeHex(strings.Join(c.Args(), ""))
				if err != nil {
					return err
				}
				printSnapshot(os.Stdout, snap)
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, then applies command line overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.GlobalString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	if c.GlobalIsSet("rc-port") {
		cfg.RC.Port = c.GlobalString("rc-port")
	}
	if c.GlobalIsSet("can") {
		cfg.CAN.Interface = c.GlobalString("can")
	}
	if c.GlobalBool("sim") {
		cfg.CAN.Sim = true
	}
	if c.GlobalIsSet("mqtt") {
		cfg.Telemetry.MQTT.Broker = c.GlobalString("mqtt")
	}
	if c.GlobalIsSet("ws") {
		cfg.Telemetry.WebSocket.Addr = c.GlobalString("ws")
	}
	if c.GlobalIsSet("log-level") {
		cfg.Log.Level = c.GlobalString("log-level")
	}
	return cfg, cfg.Validate()
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	// 1. Motor bus
	bus, err := openBus(cfg, log)
	if err != nil {
		return err
	}
	driver := motor.NewDriver(bus, log.With().Str("component", "motor").Logger())

	// the bus outlives the loop so the release frame below can still go out
	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()
	g.Go(func() error { return driver.Run(busCtx) })

	// 2. Receiver
	store := rc.NewStore()
	if cfg.RC.Port != "" {
		port, err := rc.OpenSerial(cfg.RC.Port, cfg.RC.Baud)
		if err != nil {
			return err
		}
		tr := rc.NewSerialTransport(port, cfg.RC.IdleGap, log.With().Str("component", "rc").Logger())
		intake, err := rc.NewIntake(tr, make([]byte, cfg.RC.BufferSize), make([]byte, cfg.RC.BufferSize), store)
		if err != nil {
			port.Close()
			return err
		}
		tr.OnIdle(intake.HandleIdle)
		g.Go(func() error { return tr.Run(ctx) })
		log.Info().Str("port", cfg.RC.Port).Int("baud", cfg.RC.Baud).Msg("receiver open")
	} else {
		log.Warn().Msg("no receiver port, chassis stays disabled")
	}

	// 3. Telemetry
	var sinks []telemetry.Sink
	if broker := cfg.Telemetry.MQTT.Broker; broker != "" {
		sink, err := telemetry.DialMQTT(broker, cfg.Telemetry.MQTT.ClientID, cfg.Telemetry.MQTT.Topic,
			log.With().Str("component", "mqtt").Logger())
		if err != nil {
			log.Warn().Err(err).Msg("mqtt telemetry disabled")
		} else {
			sinks = append(sinks, sink)
		}
	}
	if addr := cfg.Telemetry.WebSocket.Addr; addr != "" {
		sink := telemetry.NewWebSocketSink(log.With().Str("component", "websocket").Logger())
		if err := sink.Listen(addr); err != nil {
			log.Warn().Err(err).Msg("websocket telemetry disabled")
		} else {
			sinks = append(sinks, sink)
		}
	}
	var observer chassis.Observer
	if len(sinks) > 0 {
		hub := telemetry.NewHub(log.With().Str("component", "telemetry").Logger(), sinks...)
		observer = hub
		g.Go(func() error { return hub.Run(ctx) })
	}

	// 4. Chassis
	cc, err := cfg.ChassisConfig()
	if err != nil {
		return err
	}
	var sources [chassis.NumWheels]chassis.SpeedSource
	for i := range sources {
		sources[i] = driver.Motor(i)
	}
	ch, err := chassis.New(cc, store, sources, driver)
	if err != nil {
		return err
	}
	loop := chassis.NewLoop(ch, cfg.Chassis.LoopPeriod, observer, log.With().Str("component", "loop").Logger())

	g.Go(func() error {
		defer busCancel()
		err := loop.Run(ctx)
		if serr := driver.SendCurrents(busCtx, [motor.NumMotors]int16{}); serr != nil {
			log.Warn().Err(serr).Msg("release wheels")
		}
		return err
	})

	err = g.Wait()
	sent, received, rejected := driver.Stats()
	log.Info().
		Uint64("sent", sent).
		Uint64("received", received).
		Uint64("rejected", rejected).
		Msg("shutdown")
	return err
}

func openBus(cfg config.Config, log zerolog.Logger) (motor.Bus, error) {
	if cfg.CAN.Sim {
		log.Info().Msg("using simulated wheels")
		return motor.NewSimBus(cfg.CAN.SimGain, cfg.CAN.SimTau, cfg.Chassis.LoopPeriod), nil
	}
	bus, err := motor.OpenSocketBus(cfg.CAN.Interface)
	if err != nil {
		return nil, err
	}
	log.Info().Str("interface", cfg.CAN.Interface).Msg("using CAN bus")
	return bus, nil
}

func check(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := cfg.Logger(os.Stderr)

	bus, err := openBus(cfg, log)
	if err != nil {
		return err
	}
	driver := motor.NewDriver(bus, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the bus stays open past an interrupt so runCheck can release the wheels
	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()
	go driver.Run(busCtx)

	opts := checkOptions{
		Current:  int16(c.Int("current")),
		Duration: c.Duration("duration"),
		Timeout:  time.Second,
	}
	if _, failed := runCheck(ctx, driver, opts, os.Stdout); failed > 0 {
		return errors.Errorf("%d checks failed", failed)
	}
	return nil
}

// decodeHex parses one receiver frame written as hex.
func decodeHex(s string) (rc.Snapshot, error) {
	var snap rc.Snapshot
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == ':' || r == '\t' {
			return -1
		}
		return r
	}, s)

	buf, err := hex.DecodeString(s)
	if err != nil {
		return snap, errors.Wrap(err, "parse hex")
	}
	if len(buf) != rc.FrameLength {
		return snap, errors.Errorf("frame is %d bytes, want %d", len(buf), rc.FrameLength)
	}
	rc.Decode(buf, &snap)
	return snap, nil
}

func printSnapshot(w io.Writer, s rc.Snapshot) {
	fmt.Fprintf(w, "channels: %d %d %d %d %d\n",
		s.Channels[0], s.Channels[1], s.Channels[2], s.Channels[3], s.Channels[4])
	fmt.Fprintf(w, "switches: %s %s\n", s.Switches[0], s.Switches[1])
	fmt.Fprintf(w, "mouse:    x=%d y=%d z=%d left=%d right=%d\n",
		s.Mouse.X, s.Mouse.Y, s.Mouse.Z, s.Mouse.PressLeft, s.Mouse.PressRight)
	fmt.Fprintf(w, "keys:     0x%04X\n", s.Keys)
	fmt.Fprintf(w, "mode:     %s\n", chassis.SelectMode(s.Switches[0], chassis.Disabled))
}
