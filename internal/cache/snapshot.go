package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/foliosync/foliosync/internal/domain"
)

// SnapshotFileName is the warm-cache file kept under the data directory.
const SnapshotFileName = "cache_snapshot.msgpack"

type snapshotFile struct {
	SavedAt time.Time       `msgpack:"saved_at"`
	Entries []snapshotEntry `msgpack:"entries"`
}

type snapshotEntry struct {
	Identity   string        `msgpack:"identity"`
	Key        string        `msgpack:"key"`
	FetchedAt  time.Time     `msgpack:"fetched_at"`
	StaleAfter time.Duration `msgpack:"stale_after"`
	Payload    []byte        `msgpack:"payload"`
}

// SnapshotManager persists the store's market-data entries (quote, history,
// news classes) to a msgpack file so a restart within TTL does not refetch.
// Portfolio and watchlist entries are never persisted; they are refetched
// from the authoritative store on first read.
type SnapshotManager struct {
	store *Store
	path  string
	log   zerolog.Logger
}

// NewSnapshotManager creates a snapshot manager writing under dataDir.
func NewSnapshotManager(store *Store, dataDir string, log zerolog.Logger) *SnapshotManager {
	return &SnapshotManager{
		store: store,
		path:  filepath.Join(dataDir, SnapshotFileName),
		log:   log.With().Str("component", "cache_snapshot").Logger(),
	}
}

// Path returns the snapshot file location.
func (m *SnapshotManager) Path() string {
	return m.path
}

// Save writes all currently fresh market-data entries to disk atomically.
func (m *SnapshotManager) Save() error {
	now := time.Now()
	file := snapshotFile{SavedAt: now}

	for _, e := range m.store.Entries() {
		if !persistable(e.Key) || !e.Fresh(now) {
			continue
		}
		payload, err := msgpack.Marshal(e.Value)
		if err != nil {
			m.log.Warn().Err(err).Str("key", e.Key).Msg("Skipping unserializable cache entry")
			continue
		}
		file.Entries = append(file.Entries, snapshotEntry{
			Identity:   e.Identity,
			Key:        e.Key,
			FetchedAt:  e.FetchedAt,
			StaleAfter: e.StaleAfter,
			Payload:    payload,
		})
	}

	data, err := msgpack.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to marshal cache snapshot: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache snapshot: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("failed to replace cache snapshot: %w", err)
	}

	m.log.Debug().Int("entries", len(file.Entries)).Msg("Cache snapshot saved")
	return nil
}

// Load restores still-fresh entries for the store's current identity.
// A missing file is not an error. Returns the number restored.
func (m *SnapshotManager) Load() (int, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache snapshot: %w", err)
	}

	var file snapshotFile
	if err := msgpack.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to unmarshal cache snapshot: %w", err)
	}

	identity := m.store.Identity()
	restored := 0
	for _, se := range file.Entries {
		if se.Identity != identity {
			continue
		}
		value, err := decodeSnapshotValue(se.Key, se.Payload)
		if err != nil {
			m.log.Warn().Err(err).Str("key", se.Key).Msg("Skipping undecodable snapshot entry")
			continue
		}
		if m.store.Restore(Entry{
			Key:        se.Key,
			Value:      value,
			FetchedAt:  se.FetchedAt,
			StaleAfter: se.StaleAfter,
			Identity:   se.Identity,
		}) {
			restored++
		}
	}

	m.log.Info().Int("restored", restored).Int("total", len(file.Entries)).Msg("Cache snapshot loaded")
	return restored, nil
}

func persistable(key string) bool {
	return strings.HasPrefix(key, PrefixQuote) ||
		strings.HasPrefix(key, PrefixHistory) ||
		strings.HasPrefix(key, PrefixNews)
}

// decodeSnapshotValue rebuilds the concrete cached type for a class prefix.
// The stored payload must round-trip to the same type the engine caches.
func decodeSnapshotValue(key string, payload []byte) (any, error) {
	switch {
	case strings.HasPrefix(key, PrefixQuote):
		var q domain.Quote
		if err := msgpack.Unmarshal(payload, &q); err != nil {
			return nil, err
		}
		return &q, nil
	case strings.HasPrefix(key, PrefixHistory):
		var h domain.HistoryResponse
		if err := msgpack.Unmarshal(payload, &h); err != nil {
			return nil, err
		}
		return &h, nil
	case strings.HasPrefix(key, PrefixNews):
		var articles []domain.NewsArticle
		if err := msgpack.Unmarshal(payload, &articles); err != nil {
			return nil, err
		}
		return articles, nil
	default:
		return nil, fmt.Errorf("no decoder for snapshot key %q", key)
	}
}
