package motor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var ErrBusClosed = errors.New("motor: bus closed")

// Bus is a raw CAN link. Recv blocks until a frame arrives or the bus is
// closed.
type Bus interface {
	Send(id uint32, data []byte) error
	Recv() (id uint32, data []byte, err error)
	Close() error
}

// Driver owns the bus: it sends current commands and keeps the latest
// feedback of each motor.
type Driver struct {
	bus Bus
	log zerolog.Logger

	measures [NumMotors]atomic.Pointer[Measure]
	motors   [NumMotors]*Motor

	sent     atomic.Uint64
	received atomic.Uint64
	rejected atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

func NewDriver(bus Bus, log zerolog.Logger) *Driver {
	d := &Driver{bus: bus, log: log}
	for i := range d.measures {
		d.measures[i].Store(&Measure{})
		d.motors[i] = &Motor{driver: d, index: i}
	}
	return d
}

// Motor returns the read-only handle of wheel i, or nil when i is out of range.
func (d *Driver) Motor(i int) *Motor {
	if i < 0 || i >= NumMotors {
		return nil
	}
	return d.motors[i]
}

// SendCurrents writes one command frame. Currents are sent as given.
func (d *Driver) SendCurrents(ctx context.Context, currents [NumMotors]int16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.bus.Send(CommandID, EncodeCurrents(currents)); err != nil {
		return errors.Wrap(err, "write command frame")
	}
	d.sent.Add(1)
	return nil
}

// Run reads feedback frames until ctx is cancelled or the bus fails.
// Cancelling ctx closes the bus.
func (d *Driver) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { d.Close() })
	defer stop()

	for {
		id, data, err := d.bus.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "read feedback frame")
		}
		d.handle(id, data)
	}
}

func (d *Driver) handle(id uint32, data []byte) {
	// 1. Route by id, other traffic on the bus is not ours
	idx, err := WheelIndex(id)
	if err != nil {
		return
	}

	// 2. Decode
	m, err := DecodeMeasure(data)
	if err != nil {
		d.rejected.Add(1)
		d.log.Debug().Err(err).Int("wheel", idx).Msg("dropping feedback frame")
		return
	}

	// 3. Publish
	d.measures[idx].Store(&m)
	d.received.Add(1)
}

// Stats reports frame counters.
func (d *Driver) Stats() (sent, received, rejected uint64) {
	return d.sent.Load(), d.received.Load(), d.rejected.Load()
}

func (d *Driver) Close() error {
	d.closeOnce.Do(func() { d.closeErr = d.bus.Close() })
	return d.closeErr
}

// Motor is a read-only view of one wheel's feedback.
type Motor struct {
	driver *Driver
	index  int
}

func (m *Motor) Index() int { return m.index }

// Measure returns the latest feedback; zero until the first frame arrives.
func (m *Motor) Measure() Measure {
	return *m.driver.measures[m.index].Load()
}

// Speed is the measured shaft speed in rpm.
func (m *Motor) Speed() float64 {
	return float64(m.Measure().SpeedRPM)
}
