package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go_chassis/chassis"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sink receives samples from the hub's distribution goroutine.
type Sink interface {
	Name() string
	Publish(Sample) error
	Close() error
}

// Stats are the hub counters.
type Stats struct {
	Observed  uint64
	Published uint64
	Dropped   uint64 // overwritten before distribution
	Failures  uint64 // sink publish errors
}

// Hub is a single-slot mailbox between the control loop and the sinks.
// Observe overwrites any state not yet taken; it never queues and never blocks
// on a sink.
type Hub struct {
	log     zerolog.Logger
	session string
	sinks   []Sink
	failing []bool

	mu      sync.Mutex
	cond    *sync.Cond
	pending *chassis.State
	closed  bool

	seq       uint64
	observed  atomic.Uint64
	published atomic.Uint64
	dropped   atomic.Uint64
	failures  atomic.Uint64

	now func() time.Time
}

func NewHub(log zerolog.Logger, sinks ...Sink) *Hub {
	h := &Hub{
		log:     log,
		session: uuid.NewString(),
		sinks:   sinks,
		failing: make([]bool, len(sinks)),
		now:     time.Now,
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Session identifies this process run in every sample.
func (h *Hub) Session() string { return h.session }

// Observe implements chassis.Observer.
func (h *Hub) Observe(st chassis.State) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if h.pending != nil {
		h.dropped.Add(1)
	}
	h.pending = &st
	h.observed.Add(1)
	h.cond.Signal()
	h.mu.Unlock()
}

// Run distributes samples until ctx is cancelled, then closes every sink.
func (h *Hub) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, h.shutdown)
	defer stop()
	defer h.closeSinks()

	h.log.Info().Str("session", h.session).Int("sinks", len(h.sinks)).Msg("telemetry started")

	for {
		st, ok := h.next()
		if !ok {
			return nil
		}
		h.seq++
		h.distribute(NewSample(h.session, h.seq, st, h.now()))
	}
}

// next blocks until a state is pending or the hub is shut down.
func (h *Hub) next() (chassis.State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for h.pending == nil {
		if h.closed {
			return chassis.State{}, false
		}
		h.cond.Wait()
	}
	if h.closed {
		return chassis.State{}, false
	}
	st := *h.pending
	h.pending = nil
	return st, true
}

func (h *Hub) distribute(s Sample) {
	for i, sink := range h.sinks {
		err := sink.Publish(s)
		switch {
		case err != nil:
			h.failures.Add(1)
			if !h.failing[i] {
				h.failing[i] = true
				h.log.Warn().Err(err).Str("sink", sink.Name()).Msg("telemetry publish failed")
			}
		case h.failing[i]:
			h.failing[i] = false
			h.log.Info().Str("sink", sink.Name()).Msg("telemetry publish recovered")
		}
	}
	h.published.Add(1)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cond.Broadcast()
}

func (h *Hub) closeSinks() {
	for _, sink := range h.sinks {
		if err := sink.Close(); err != nil {
			h.log.Warn().Err(err).Str("sink", sink.Name()).Msg("close telemetry sink")
		}
	}
}

func (h *Hub) Stats() Stats {
	return Stats{
		Observed:  h.observed.Load(),
		Published: h.published.Load(),
		Dropped:   h.dropped.Load(),
		Failures:  h.failures.Load(),
	}
}
