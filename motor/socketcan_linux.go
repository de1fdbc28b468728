//go:build linux

package motor

import (
	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
)

// SocketBus is a Bus on a Linux SocketCAN interface such as can0.
type SocketBus struct {
	sck *canbus.Socket
}

func OpenSocketBus(ifname string) (*SocketBus, error) {
	sck, err := canbus.New()
	if err != nil {
		return nil, errors.Wrap(err, "open can socket")
	}
	if err := sck.Bind(ifname); err != nil {
		sck.Close()
		return nil, errors.Wrapf(err, "bind %s", ifname)
	}
	return &SocketBus{sck: sck}, nil
}

func (b *SocketBus) Send(id uint32, data []byte) error {
	_, err := b.sck.Send(canbus.Frame{
		ID:   id,
		Data: data,
		Kind: canbus.SFF,
	})
	return err
}

func (b *SocketBus) Recv() (uint32, []byte, error) {
	frame, err := b.sck.Recv()
	if err != nil {
		return 0, nil, err
	}
	return frame.ID, frame.Data, nil
}

func (b *SocketBus) Close() error {
	return b.sck.Close()
}
