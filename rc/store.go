package rc

import "sync/atomic"

// Store hands decoded snapshots from the receive path to the control loop.
// Publish and Load swap whole snapshots, so a reader never sees a half-written frame.
type Store struct {
	snap atomic.Pointer[Snapshot]
	seq  atomic.Uint64
}

func NewStore() *Store {
	s := &Store{}
	s.snap.Store(&Snapshot{})
	return s
}

// Publish replaces the current snapshot.
func (s *Store) Publish(snap Snapshot) {
	s.snap.Store(&snap)
	s.seq.Add(1)
}

// Load returns a copy of the latest snapshot.
func (s *Store) Load() Snapshot {
	p := s.snap.Load()
	if p == nil {
		return Snapshot{}
	}
	return *p
}

// Seq is the number of snapshots published so far.
func (s *Store) Seq() uint64 {
	return s.seq.Load()
}
