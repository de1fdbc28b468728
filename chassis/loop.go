package chassis

import (
	"context"
	"runtime"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/rs/zerolog"
)

// DefaultPeriod is the control cycle when none is configured.
const DefaultPeriod = 2 * time.Millisecond

// Observer receives a copy of every cycle's state. Observe must not block.
type Observer interface {
	Observe(State)
}

// Loop drives the chassis at a fixed cadence.
type Loop struct {
	chassis  *Chassis
	observer Observer
	log      zerolog.Logger

	Period time.Duration

	stopChan chan struct{}
	stopOnce sync.Once

	cycles    uint64
	cycleTime *movingaverage.MovingAverage
	failing   bool
}

func NewLoop(c *Chassis, period time.Duration, obs Observer, log zerolog.Logger) *Loop {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Loop{
		chassis:   c,
		observer:  obs,
		log:       log,
		Period:    period,
		stopChan:  make(chan struct{}),
		cycleTime: movingaverage.New(64),
	}
}

// Run blocks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	// Lock OS Thread to reduce scheduler jitter
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(l.Period)
	defer ticker.Stop()

	l.log.Info().Dur("period", l.Period).Msg("control loop started")
	defer func() {
		l.log.Info().Uint64("cycles", l.cycles).Msg("control loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.stopChan:
			return nil
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// Stop signals Run to return. Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}

func (l *Loop) tick(ctx context.Context) {
	prevMode := l.chassis.Mode
	start := time.Now()

	err := l.chassis.Step(ctx)

	elapsed := time.Since(start)
	l.cycles++
	l.cycleTime.Add(float64(elapsed))

	// the last computed currents stay in effect on the motors until a send succeeds
	switch {
	case err != nil && !l.failing:
		l.failing = true
		l.log.Warn().Err(err).Uint64("cycle", l.cycles).Msg("actuator write failed")
	case err == nil && l.failing:
		l.failing = false
		l.log.Info().Uint64("cycle", l.cycles).Msg("actuator write recovered")
	}

	if l.chassis.Mode != prevMode {
		l.log.Info().
			Stringer("from", prevMode).
			Stringer("to", l.chassis.Mode).
			Msg("mode changed")
	}

	if l.observer != nil {
		st := l.chassis.State()
		st.Cycle = l.cycles
		st.CycleTime = time.Duration(l.cycleTime.Avg())
		l.observer.Observe(st)
	}
}
