package motor

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Plant is a first-order model of one wheel: speed approaches Gain*current
// with time constant Tau.
type Plant struct {
	Gain float64       // rpm per current unit at steady state
	Tau  time.Duration // time constant

	speed float64 // rpm
	angle float64 // encoder ticks, 0..8191
}

const ticksPerRev = 8192

// Step advances the plant by dt under current and returns its feedback.
func (p *Plant) Step(current int16, dt time.Duration) Measure {
	target := p.Gain * float64(current)

	if p.Tau <= 0 || dt >= p.Tau {
		p.speed = target
	} else {
		alpha := float64(dt) / float64(p.Tau)
		p.speed += (target - p.speed) * alpha
	}

	p.angle += p.speed / 60 * dt.Seconds() * ticksPerRev
	p.angle = math.Mod(p.angle, ticksPerRev)
	if p.angle < 0 {
		p.angle += ticksPerRev
	}

	return Measure{
		Angle:       uint16(p.angle),
		SpeedRPM:    saturate16(p.speed),
		Current:     current,
		Temperature: 30,
	}
}

// Speed is the plant's current speed in rpm.
func (p *Plant) Speed() float64 { return p.speed }

func saturate16(v float64) int16 {
	if v >= math.MaxInt16 {
		return math.MaxInt16
	}
	if v <= math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Simulator defaults
const (
	DefaultSimGain = 0.5
	DefaultSimTau  = 50 * time.Millisecond
	DefaultSimStep = 2 * time.Millisecond
	simQueueLen    = 64
)

type frame struct {
	id   uint32
	data []byte
}

// SimBus is an in-process Bus backed by four plants. Every command frame
// advances the plants by one step and queues one feedback frame per motor.
// When the reader falls behind, the oldest feedback is dropped.
type SimBus struct {
	mu     sync.Mutex
	plants [NumMotors]Plant
	step   time.Duration
	closed bool

	frames chan frame
	done   chan struct{}
}

func NewSimBus(gain float64, tau, step time.Duration) *SimBus {
	if step <= 0 {
		step = DefaultSimStep
	}
	b := &SimBus{
		step:   step,
		frames: make(chan frame, simQueueLen),
		done:   make(chan struct{}),
	}
	for i := range b.plants {
		b.plants[i] = Plant{Gain: gain, Tau: tau}
	}
	return b
}

func (b *SimBus) Send(id uint32, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if id != CommandID {
		return nil
	}
	currents, err := DecodeCurrents(data)
	if err != nil {
		return err
	}

	for i := range b.plants {
		m := b.plants[i].Step(currents[i], b.step)
		b.push(frame{id: FeedbackID + uint32(i), data: EncodeMeasure(m)})
	}
	return nil
}

// push queues f, discarding the oldest frame when full. Caller holds mu.
func (b *SimBus) push(f frame) {
	for {
		select {
		case b.frames <- f:
			return
		default:
		}
		select {
		case <-b.frames:
		default:
		}
	}
}

func (b *SimBus) Recv() (uint32, []byte, error) {
	select {
	case f := <-b.frames:
		return f.id, f.data, nil
	case <-b.done:
		return 0, nil, ErrBusClosed
	}
}

func (b *SimBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.Wrap(ErrBusClosed, "close")
	}
	b.closed = true
	close(b.done)
	return nil
}

// Speeds returns the true plant speeds.
func (b *SimBus) Speeds() [NumMotors]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out [NumMotors]float64
	for i := range b.plants {
		out[i] = b.plants[i].Speed()
	}
	return out
}
