package rc

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// Receiver line settings
const (
	DefaultBaud    = 100000
	DefaultIdleGap = 2 * time.Millisecond
)

// Port is the subset of serial.Port the transport needs.
type Port interface {
	io.ReadCloser
	SetReadTimeout(t time.Duration) error
}

// OpenSerial opens a receiver UART: 8 data bits, even parity, 1 stop bit.
func OpenSerial(name string, baud int) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	return port, nil
}

// SerialTransport fills the Intake slots from a host UART the way a DMA
// channel would: bytes go into the active slot until remaining hits zero,
// further bytes are lost, and a read timeout after data counts as line idle.
type SerialTransport struct {
	port    Port
	idleGap time.Duration
	onIdle  func()
	log     zerolog.Logger

	mu        sync.Mutex
	slots     [2][]byte
	active    int
	remaining int
	enabled   bool
}

func NewSerialTransport(port Port, idleGap time.Duration, log zerolog.Logger) *SerialTransport {
	if idleGap <= 0 {
		idleGap = DefaultIdleGap
	}
	return &SerialTransport{
		port:    port,
		idleGap: idleGap,
		log:     log,
	}
}

// OnIdle registers the completion handler, normally Intake.HandleIdle.
func (st *SerialTransport) OnIdle(fn func()) {
	st.onIdle = fn
}

func (st *SerialTransport) Bind(slots [2][]byte) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.slots = slots
}

func (st *SerialTransport) Remaining() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.remaining
}

func (st *SerialTransport) Stop() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.enabled = false
}

func (st *SerialTransport) SetRemaining(n int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.remaining = n
}

func (st *SerialTransport) Redirect(slot int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.active = slot & 1
}

func (st *SerialTransport) Resume() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.enabled = true
}

// Run reads the port until ctx is cancelled or a read fails. The port is
// closed on return.
func (st *SerialTransport) Run(ctx context.Context) error {
	defer st.port.Close()

	if err := st.port.SetReadTimeout(st.idleGap); err != nil {
		return errors.Wrap(err, "set read timeout")
	}
	st.log.Info().Dur("idle_gap", st.idleGap).Msg("rc receiver started")

	buf := make([]byte, 64)
	pending := false
	for {
		if ctx.Err() != nil {
			st.log.Info().Msg("rc receiver stopped")
			return nil
		}

		n, err := st.port.Read(buf)
		if err != nil {
			return errors.Wrap(err, "rc read")
		}
		if n > 0 {
			st.fill(buf[:n])
			pending = true
			continue
		}

		// timeout with data in flight: the line went idle
		if pending {
			pending = false
			if st.onIdle != nil {
				st.onIdle()
			}
		}
	}
}

func (st *SerialTransport) fill(b []byte) {
	st.mu.Lock()
	defer st.mu.Unlock()

	slot := st.slots[st.active]
	if !st.enabled || slot == nil {
		return
	}
	for _, c := range b {
		if st.remaining <= 0 || st.remaining > len(slot) {
			return
		}
		slot[len(slot)-st.remaining] = c
		st.remaining--
	}
}
