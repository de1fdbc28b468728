//go:build !linux

package motor

import "github.com/pkg/errors"

// SocketBus is only available on Linux.
type SocketBus struct{}

func OpenSocketBus(ifname string) (*SocketBus, error) {
	return nil, errors.Errorf("socketcan %s: not supported on this platform", ifname)
}

func (b *SocketBus) Send(id uint32, data []byte) error { return ErrBusClosed }
func (b *SocketBus) Recv() (uint32, []byte, error)     { return 0, nil, ErrBusClosed }
func (b *SocketBus) Close() error                      { return nil }
