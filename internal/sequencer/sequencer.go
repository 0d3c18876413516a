// Package sequencer provides latest-wins ordering for rapid requery.
//
// Each query surface (one chart view, one table view) owns a strictly
// increasing generation counter. Issuing a query captures the next
// generation; a completed response is applied only if its generation is
// still the surface's newest. Superseded work is discarded, not interrupted:
// cancellation stays cooperative and the engine never needs transport-level
// abort.
package sequencer

import "sync"

// Sequencer tracks per-surface generation counters.
type Sequencer struct {
	mu       sync.Mutex
	surfaces map[string]uint64
}

// New creates an empty sequencer.
func New() *Sequencer {
	return &Sequencer{surfaces: make(map[string]uint64)}
}

// Issue increments the surface's counter and returns the new generation.
// The caller tags its in-flight request with the returned value.
func (s *Sequencer) Issue(surface string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surfaces[surface]++
	return s.surfaces[surface]
}

// Current returns the newest generation issued for the surface.
func (s *Sequencer) Current(surface string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surfaces[surface]
}

// Latest reports whether a response tagged with gen is still the newest for
// its surface and therefore should be applied.
func (s *Sequencer) Latest(surface string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.surfaces[surface]
}

// Reset forgets a surface. Called when the owning view is torn down.
func (s *Sequencer) Reset(surface string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.surfaces, surface)
}
