// Package ids allocates the unique, monotonically increasing downtime and comment ids.
package ids

import "sync/atomic"

// Sequence hands out increasing ids starting after the last seeded one. 0 is never returned.
type Sequence struct {
	last atomic.Uint64
}

// Next returns the next id.
func (s *Sequence) Next() uint64 {
	return s.last.Add(1)
}

// Last returns the most recently allocated id.
func (s *Sequence) Last() uint64 {
	return s.last.Load()
}

// Seed makes sure no id up to and including id is handed out again.
func (s *Sequence) Seed(id uint64) {
	for {
		last := s.last.Load()
		if id <= last || s.last.CompareAndSwap(last, id) {
			return
		}
	}
}

// Allocator holds the id sequences of the engine.
type Allocator struct {
	Downtimes Sequence
	Comments  Sequence
}
