package rc

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	ErrNilTransport   = errors.New("rc: nil transport")
	ErrNilStore       = errors.New("rc: nil store")
	ErrBufferMismatch = errors.New("rc: slot buffers differ in length")
	ErrBufferTooSmall = errors.New("rc: slot buffer shorter than one frame")
)

// Transport is the byte producer filling the Intake slots, e.g. a UART in DMA
// double-buffer mode. Remaining reports how many bytes are still free in the
// active slot.
type Transport interface {
	// Bind tells the transport where the two slots live.
	Bind(slots [2][]byte)
	Remaining() int
	Stop()
	SetRemaining(n int)
	Redirect(slot int)
	Resume()
}

// DecodeFunc decodes one frame into out.
type DecodeFunc func(buf []byte, out *Snapshot)

// Intake owns the two receive slots and decides which one the transport fills.
//
// HandleIdle is the completion handler: it must run to completion before the
// next idle event and is called from the transport's context.
type Intake struct {
	transport Transport
	store     *Store
	decode    DecodeFunc

	slots    [2][]byte
	capacity int
	active   atomic.Int32
}

// NewIntake designates a and b as the receive slots. Both must have the same
// length, at least FrameLength. Slot 0 starts active.
func NewIntake(t Transport, a, b []byte, store *Store) (*Intake, error) {
	if t == nil {
		return nil, ErrNilTransport
	}
	if store == nil {
		return nil, ErrNilStore
	}
	if len(a) != len(b) {
		return nil, errors.Wrapf(ErrBufferMismatch, "%d != %d", len(a), len(b))
	}
	if len(a) < FrameLength {
		return nil, errors.Wrapf(ErrBufferTooSmall, "got %d", len(a))
	}

	in := &Intake{
		transport: t,
		store:     store,
		decode:    Decode,
		slots:     [2][]byte{a, b},
		capacity:  len(a),
	}

	t.Stop()
	t.Bind(in.slots)
	t.SetRemaining(in.capacity)
	t.Redirect(0)
	t.Resume()

	return in, nil
}

// Capacity is the shared slot length.
func (in *Intake) Capacity() int {
	return in.capacity
}

// Active returns the index of the slot the transport is currently filling.
func (in *Intake) Active() int {
	return int(in.active.Load())
}

// Settled returns the index of the slot that is safe to read.
func (in *Intake) Settled() int {
	return in.Active() ^ 1
}

// HandleIdle hands the filled slot over and restarts the transport on the
// other one. The settled slot is decoded only when it holds exactly one frame.
func (in *Intake) HandleIdle() {
	settled := in.Active()
	next := settled ^ 1

	// 1. Switch slots while the transport is stopped
	in.transport.Stop()
	received := in.capacity - in.transport.Remaining()
	in.transport.SetRemaining(in.capacity)
	in.transport.Redirect(next)
	in.active.Store(int32(next))
	in.transport.Resume()

	// 2. Exact length is the only framing check
	if received != FrameLength {
		return
	}

	var snap Snapshot
	in.decode(in.slots[settled][:FrameLength], &snap)
	in.store.Publish(snap)
}
