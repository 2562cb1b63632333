// Package cache provides the identity-scoped, TTL-aware store that UI
// consumers read from. It is the single source of truth for query results
// and arbitrates staleness; all writes go through the mutation engine.
package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one cached query result. FetchedAt plus StaleAfter decide
// freshness; Identity records the scope the value was fetched under.
type Entry struct {
	Key        string
	Value      any
	FetchedAt  time.Time
	StaleAfter time.Duration
	Identity   string
}

// Fresh reports whether the entry can be served without a refetch.
// A zero StaleAfter means the entry is stale the moment it is written.
func (e Entry) Fresh(now time.Time) bool {
	if e.FetchedAt.IsZero() || e.StaleAfter <= 0 {
		return false
	}
	return now.Before(e.FetchedAt.Add(e.StaleAfter))
}

// Snapshot captures an entry's prior state for rollback after a failed
// optimistic mutation. Opaque to callers.
type Snapshot struct {
	value      any
	fetchedAt  time.Time
	staleAfter time.Duration
	existed    bool
}

// Store is an in-memory cache keyed by (identity, key). All operations
// are synchronous and serialized by a single mutex, so an optimistic
// mutation can never observe another writer's half-applied state.
type Store struct {
	mu       sync.Mutex
	identity string
	entries  map[string]*Entry
	log      zerolog.Logger
}

// New creates an empty store scoped to the given identity.
func New(identity string, log zerolog.Logger) *Store {
	return &Store{
		identity: identity,
		entries:  make(map[string]*Entry),
		log:      log.With().Str("component", "cache").Logger(),
	}
}

func scopedKey(identity, key string) string {
	return identity + "\x00" + key
}

// Identity returns the store's current scope token.
func (s *Store) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Scope switches the store to a new identity. Every entry belonging to
// any other identity is dropped, so a later read under the new identity
// can never observe the previous user's data.
func (s *Store) Scope(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if identity == s.identity {
		return
	}

	dropped := 0
	for k, e := range s.entries {
		if e.Identity != identity {
			delete(s.entries, k)
			dropped++
		}
	}
	s.identity = identity

	s.log.Debug().
		Str("identity", identity).
		Int("dropped", dropped).
		Msg("Cache rescoped")
}

// Read returns the entry for key under the current identity. The second
// return is false when no entry exists; callers decide what staleness
// means for them via Entry.Fresh.
func (s *Store) Read(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[scopedKey(s.identity, key)]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Write unconditionally replaces the value for key under the current
// identity. Used after a confirmed backend response.
func (s *Store) Write(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(s.identity, key, value, ttl)
}

// ScopedWrite writes only when identity still matches the store's scope.
// A fetch that started before a logout/login completes harmlessly: its
// result is discarded here instead of leaking into the new scope.
func (s *Store) ScopedWrite(identity, key string, value any, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if identity != s.identity {
		s.log.Debug().
			Str("key", key).
			Str("identity", identity).
			Msg("Discarded write for rescoped identity")
		return false
	}
	s.write(identity, key, value, ttl)
	return true
}

func (s *Store) write(identity, key string, value any, ttl time.Duration) {
	s.entries[scopedKey(identity, key)] = &Entry{
		Key:        key,
		Value:      value,
		FetchedAt:  time.Now(),
		StaleAfter: ttl,
		Identity:   identity,
	}
}

// OptimisticWrite applies a pure transformation to the cached value and
// returns the prior state for rollback. The mutator runs under the store
// lock: it must not block, and must treat its argument as read-only and
// return a fresh value. Returns ok=false (and writes nothing) when no
// entry exists for key.
func (s *Store) OptimisticWrite(key string, mutate func(current any) any) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sk := scopedKey(s.identity, key)
	e, ok := s.entries[sk]
	if !ok {
		return Snapshot{}, false
	}

	snap := Snapshot{
		value:      e.Value,
		fetchedAt:  e.FetchedAt,
		staleAfter: e.StaleAfter,
		existed:    true,
	}
	e.Value = mutate(e.Value)
	return snap, true
}

// Rollback restores the state captured by a prior OptimisticWrite. If the
// entry has been dropped since (identity switch), the rollback is a no-op.
func (s *Store) Rollback(key string, snap Snapshot) {
	if !snap.existed {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sk := scopedKey(s.identity, key)
	e, ok := s.entries[sk]
	if !ok {
		return
	}
	e.Value = snap.value
	e.FetchedAt = snap.fetchedAt
	e.StaleAfter = snap.staleAfter
}

// Invalidate marks an entry stale so the next read triggers a refetch.
// The value is kept so it can still serve as a stale fallback.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[scopedKey(s.identity, key)]; ok {
		e.FetchedAt = time.Time{}
	}
}

// InvalidatePrefix marks every entry under the current identity whose key
// starts with prefix as stale.
func (s *Store) InvalidatePrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp := scopedKey(s.identity, prefix)
	for k, e := range s.entries {
		if len(k) >= len(sp) && k[:len(sp)] == sp {
			e.FetchedAt = time.Time{}
		}
	}
}

// Delete removes an entry entirely.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, scopedKey(s.identity, key))
}

// DeleteExpired drops entries that have been stale for longer than grace,
// keeping the map bounded. Returns the number of entries removed.
func (s *Store) DeleteExpired(grace time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range s.entries {
		if e.FetchedAt.IsZero() {
			continue // invalidated but still useful as a stale fallback
		}
		if now.After(e.FetchedAt.Add(e.StaleAfter + grace)) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Entries returns a copy of every entry in the store, across identities.
// Used by the snapshot writer.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out
}

// Restore inserts an entry preserving its original fetch time, dropping it
// silently if it is already past its TTL. Used by the snapshot loader.
func (s *Store) Restore(e Entry) bool {
	if !e.Fresh(time.Now()) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := e
	s.entries[scopedKey(e.Identity, e.Key)] = &stored
	return true
}

// Len returns the number of entries across all identities.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
