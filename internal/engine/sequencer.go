package engine

import "sync"

// Entity keys for the sequence space. Single-holding and single-symbol
// mutations use itemEntity so edits to different symbols never invalidate
// each other's confirmations; reorders and bulk replaces contend on the
// bare entity key because they touch the whole list.
const (
	EntityPortfolio = "portfolio"
	EntityWatchlist = "watchlist"
)

// itemEntity returns the sequence key for a single-symbol mutation.
func itemEntity(entity, symbol string) string {
	return entity + ":" + symbol
}

// sequencer issues monotonically increasing sequence numbers per entity
// key and remembers the highest one handed out. A result whose number is
// no longer the highest was superseded while in flight and must not touch
// shared state.
type sequencer struct {
	mu     sync.Mutex
	latest map[string]uint64
}

func newSequencer() *sequencer {
	return &sequencer{latest: make(map[string]uint64)}
}

// take issues the next sequence number for entity.
func (s *sequencer) take(entity string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[entity]++
	return s.latest[entity]
}

// current returns the highest sequence number issued for entity, or zero
// if none has been issued yet.
func (s *sequencer) current(entity string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[entity]
}

// isLatest reports whether seq is still the newest number issued for
// entity.
func (s *sequencer) isLatest(entity string, seq uint64) bool {
	return s.current(entity) == seq
}
