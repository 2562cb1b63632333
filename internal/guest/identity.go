package guest

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const metaSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const identityKey = "identity"

// LoadOrCreateIdentity returns the guest identity persisted in the database,
// minting and storing a fresh one on first use. The identity scopes the
// cache, so reusing it across restarts lets a returning guest keep warm
// market data while a wiped database starts clean.
func LoadOrCreateIdentity(db *sql.DB) (string, error) {
	if _, err := db.Exec(metaSchema); err != nil {
		return "", fmt.Errorf("failed to create meta table: %w", err)
	}

	var identity string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = ?`, identityKey).Scan(&identity)
	if err == nil {
		return identity, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to load guest identity: %w", err)
	}

	identity = NewIdentity()
	if _, err := db.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)`, identityKey, identity); err != nil {
		return "", fmt.Errorf("failed to store guest identity: %w", err)
	}

	return identity, nil
}

// NewIdentity mints a fresh guest identity token.
func NewIdentity() string {
	return "guest-" + uuid.NewString()
}

// ResetIdentity replaces the persisted identity and wipes all guest state,
// so the fresh identity starts with an empty portfolio and watchlist.
func ResetIdentity(db *sql.DB) (string, error) {
	if _, err := db.Exec(metaSchema); err != nil {
		return "", fmt.Errorf("failed to create meta table: %w", err)
	}

	identity := NewIdentity()

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin identity reset: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"holdings", "watchlist"} {
		// Tables may not exist yet if the stores were never constructed
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			if !isMissingTable(err) {
				return "", fmt.Errorf("failed to clear guest %s: %w", table, err)
			}
		}
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, identityKey, identity); err != nil {
		return "", fmt.Errorf("failed to reset guest identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit identity reset: %w", err)
	}

	return identity, nil
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// Identities wraps a guest database for identity persistence, satisfying
// the engine's IdentityStore seam.
type Identities struct {
	db *sql.DB
}

// NewIdentities wraps db for identity persistence.
func NewIdentities(db *sql.DB) *Identities {
	return &Identities{db: db}
}

// LoadOrCreate returns the persisted guest identity, minting one on first use.
func (i *Identities) LoadOrCreate() (string, error) {
	return LoadOrCreateIdentity(i.db)
}

// Reset mints a fresh identity and wipes guest state.
func (i *Identities) Reset() (string, error) {
	return ResetIdentity(i.db)
}
