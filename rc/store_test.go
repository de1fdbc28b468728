package rc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreStartsAtZero(t *testing.T) {
	s := NewStore()
	assert.Equal(t, Snapshot{}, s.Load())
	assert.Zero(t, s.Seq())

	var empty Store
	assert.Equal(t, Snapshot{}, empty.Load())
}

func TestStorePublishCopies(t *testing.T) {
	s := NewStore()
	snap := Snapshot{Keys: 3}
	snap.Channels[2] = -100

	s.Publish(snap)
	snap.Keys = 99

	got := s.Load()
	assert.Equal(t, uint16(3), got.Keys)
	assert.Equal(t, int16(-100), got.Channels[2])
	assert.Equal(t, uint64(1), s.Seq())
}

// Every loaded snapshot must be one that was published whole.
func TestStoreNoTornReads(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			v := int16(i)
			s.Publish(Snapshot{Channels: [NumChannels]int16{v, v, v, v, v}, Keys: uint16(i)})
		}
	}()

	for i := 0; i < 5000; i++ {
		got := s.Load()
		for _, ch := range got.Channels {
			if !assert.Equal(t, int16(got.Keys), ch) {
				break
			}
		}
	}
	wg.Wait()
	assert.Equal(t, uint64(5000), s.Seq())
}
