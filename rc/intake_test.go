package rc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockTransport behaves like a DMA channel in double-buffer mode and records
// every command it receives.
type MockTransport struct {
	slots     [2][]byte
	remaining int
	active    int
	enabled   bool
	calls     []string
}

func (m *MockTransport) Bind(slots [2][]byte) {
	m.slots = slots
	m.calls = append(m.calls, "bind")
}

func (m *MockTransport) Remaining() int {
	m.calls = append(m.calls, "remaining")
	return m.remaining
}

func (m *MockTransport) Stop() {
	m.enabled = false
	m.calls = append(m.calls, "stop")
}

func (m *MockTransport) SetRemaining(n int) {
	m.remaining = n
	m.calls = append(m.calls, "set_remaining")
}

func (m *MockTransport) Redirect(slot int) {
	m.active = slot
	m.calls = append(m.calls, "redirect")
}

func (m *MockTransport) Resume() {
	m.enabled = true
	m.calls = append(m.calls, "resume")
}

// Deliver writes data into the active slot as the hardware would.
func (m *MockTransport) Deliver(data []byte) {
	slot := m.slots[m.active]
	for _, b := range data {
		if !m.enabled || m.remaining == 0 {
			return
		}
		slot[len(slot)-m.remaining] = b
		m.remaining--
	}
}

func newTestIntake(t *testing.T) (*Intake, *MockTransport, *Store, *int) {
	t.Helper()
	mock := &MockTransport{}
	store := NewStore()
	in, err := NewIntake(mock, make([]byte, RxBufferLen), make([]byte, RxBufferLen), store)
	require.NoError(t, err)

	decodes := 0
	in.decode = func(buf []byte, out *Snapshot) {
		decodes++
		mock.calls = append(mock.calls, "decode")
		Decode(buf, out)
	}
	mock.calls = nil
	return in, mock, store, &decodes
}

func TestNewIntakeErrors(t *testing.T) {
	store := NewStore()
	tests := []struct {
		name      string
		transport Transport
		a, b      []byte
		store     *Store
		wantErr   error
	}{
		{name: "nil transport", a: make([]byte, 32), b: make([]byte, 32), store: store, wantErr: ErrNilTransport},
		{name: "nil store", transport: &MockTransport{}, a: make([]byte, 32), b: make([]byte, 32), wantErr: ErrNilStore},
		{name: "length mismatch", transport: &MockTransport{}, a: make([]byte, 32), b: make([]byte, 36), store: store, wantErr: ErrBufferMismatch},
		{name: "too small", transport: &MockTransport{}, a: make([]byte, 17), b: make([]byte, 17), store: store, wantErr: ErrBufferTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := NewIntake(tt.transport, tt.a, tt.b, tt.store)
			assert.Nil(t, in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewIntakeArmsTransport(t *testing.T) {
	mock := &MockTransport{}
	in, err := NewIntake(mock, make([]byte, 36), make([]byte, 36), NewStore())
	require.NoError(t, err)

	assert.Equal(t, 36, in.Capacity())
	assert.Equal(t, 36, mock.remaining)
	assert.Equal(t, 0, mock.active)
	assert.True(t, mock.enabled)
	assert.Equal(t, 0, in.Active())
	assert.Equal(t, 1, in.Settled())
}

func TestHandleIdleExactFrame(t *testing.T) {
	in, mock, store, decodes := newTestIntake(t)

	mock.Deliver(centreFrame)
	in.HandleIdle()

	assert.Equal(t, 1, *decodes)
	assert.Equal(t, uint64(1), store.Seq())
	snap := store.Load()
	assert.Equal(t, SwitchMiddle, snap.Switches[0])
	assert.Equal(t, SwitchUp, snap.Switches[1])

	// handoff happens before decode
	assert.Equal(t, []string{"stop", "remaining", "set_remaining", "redirect", "resume", "decode"}, mock.calls)
	assert.Equal(t, 1, in.Active())
	assert.Equal(t, 1, mock.active)
	assert.Equal(t, RxBufferLen, mock.remaining)
}

func TestHandleIdleWrongLengthDropped(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{name: "empty", n: 0},
		{name: "one byte", n: 1},
		{name: "one short", n: FrameLength - 1},
		{name: "one long", n: FrameLength + 1},
		{name: "two frames", n: 2 * FrameLength},
		{name: "overrun", n: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, mock, store, decodes := newTestIntake(t)
			store.Publish(Snapshot{Keys: 42})
			before := store.Seq()

			mock.Deliver(make([]byte, tt.n))
			in.HandleIdle()

			assert.Zero(t, *decodes)
			assert.Equal(t, before, store.Seq())
			assert.Equal(t, Snapshot{Keys: 42}, store.Load())

			// the handoff still happens
			assert.Equal(t, 1, in.Active())
			assert.Equal(t, RxBufferLen, mock.remaining)
			assert.True(t, mock.enabled)
		})
	}
}

func TestHandleIdleAlternatesSlots(t *testing.T) {
	in, mock, store, decodes := newTestIntake(t)

	first := Snapshot{Channels: [NumChannels]int16{100}, Switches: [NumSwitches]Switch{SwitchDown, SwitchDown}}
	second := Snapshot{Channels: [NumChannels]int16{-200}, Switches: [NumSwitches]Switch{SwitchUp, SwitchUp}}

	mock.Deliver(Encode(&first))
	in.HandleIdle()
	assert.Equal(t, 1, in.Active())
	assert.Equal(t, first, store.Load())

	// a noisy burst in slot 1 is dropped
	mock.Deliver(make([]byte, 5))
	in.HandleIdle()
	assert.Equal(t, 0, in.Active())
	assert.Equal(t, first, store.Load())

	mock.Deliver(Encode(&second))
	in.HandleIdle()
	assert.Equal(t, 1, in.Active())
	assert.Equal(t, second, store.Load())

	assert.Equal(t, 2, *decodes)
	assert.Equal(t, uint64(2), store.Seq())
}

func TestHandleIdleLeavesActiveSlotAlone(t *testing.T) {
	in, mock, _, _ := newTestIntake(t)

	mock.Deliver(centreFrame)
	in.HandleIdle()

	// transport now writes slot 1; slot 0 still holds the settled frame
	mock.Deliver([]byte{0xAA, 0xBB})
	assert.Equal(t, centreFrame, in.slots[0][:FrameLength])
	assert.Equal(t, []byte{0xAA, 0xBB}, in.slots[1][:2])
}
